package controllers

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/productfeed/internal/catalog"
)

type itemView struct {
	ID                 string  `json:"id"`
	Title              string  `json:"title"`
	Brand              string  `json:"brand,omitempty"`
	Thumbnail          string  `json:"thumbnail,omitempty"`
	Price              float64 `json:"price"`
	DiscountPercentage float64 `json:"discount_percentage"`
	Rating             float64 `json:"rating"`
	EffectivePrice     string  `json:"effective_price"`
}

type sortView struct {
	By        string `json:"by"`
	Direction string `json:"direction"`
}

type errorView struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type snapshotView struct {
	Phase       string     `json:"phase"`
	Items       []itemView `json:"items"`
	Loading     bool       `json:"loading"`
	LoadingMore bool       `json:"loading_more"`
	Sorting     bool       `json:"sorting"`
	Error       *errorView `json:"error,omitempty"`
	HasMore     bool       `json:"has_more"`
	TotalCount  int        `json:"total_count"`
	LoadedCount int        `json:"loaded_count"`
	Page        int        `json:"page"`
	RetryCount  int        `json:"retry_count"`
	Sort        sortView   `json:"sort"`
	RenderMode  string     `json:"render_mode"`
}

type sessionView struct {
	SessionID string       `json:"session_id"`
	Snapshot  snapshotView `json:"snapshot"`
}

type needMoreView struct {
	Accepted bool         `json:"accepted"`
	Snapshot snapshotView `json:"snapshot"`
}

func newItemView(item catalog.Item) itemView {
	return itemView{
		ID:                 item.ID,
		Title:              item.Title,
		Brand:              item.Brand,
		Thumbnail:          item.Thumbnail,
		Price:              item.Price,
		DiscountPercentage: item.DiscountPercentage,
		Rating:             item.Rating,
		EffectivePrice:     decimal.NewFromFloat(item.EffectivePrice()).StringFixed(2),
	}
}

func newSnapshotView(s catalog.Snapshot) snapshotView {
	items := make([]itemView, 0, len(s.Items))
	for _, item := range s.Items {
		items = append(items, newItemView(item))
	}
	view := snapshotView{
		Phase:       string(s.Phase),
		Items:       items,
		Loading:     s.Loading,
		LoadingMore: s.LoadingMore,
		Sorting:     s.Sorting,
		HasMore:     s.HasMore,
		TotalCount:  s.TotalCount,
		LoadedCount: s.LoadedCount,
		Page:        s.Page,
		RetryCount:  s.RetryCount,
		Sort:        sortView{By: string(s.Sort.Mode), Direction: string(s.Sort.Direction)},
		RenderMode:  string(s.RenderMode),
	}
	if s.Error != "" {
		view.Error = &errorView{Code: string(s.ErrorCode), Message: s.Error}
	}
	return view
}
