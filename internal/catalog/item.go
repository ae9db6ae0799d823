package catalog

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/go-playground/validator/v10"
)

// PageSize is the fixed window size of a paged load.
const PageSize = 10

var itemValidator = validator.New(validator.WithRequiredStructEnabled())

// Item is one validated product record. Items are never mutated after ingestion.
type Item struct {
	ID                 string `validate:"required"`
	Title              string `validate:"required"`
	Price              float64
	DiscountPercentage float64
	Rating             float64
	Brand              string
	Thumbnail          string
}

// EffectivePrice is the price after applying the discount percentage.
func (i Item) EffectivePrice() float64 {
	return i.Price * (1 - i.DiscountPercentage/100)
}

type rawItem struct {
	ID                 json.RawMessage `json:"id"`
	Title              json.RawMessage `json:"title"`
	Price              json.RawMessage `json:"price"`
	DiscountPercentage json.RawMessage `json:"discountPercentage"`
	Rating             json.RawMessage `json:"rating"`
	Brand              json.RawMessage `json:"brand"`
	Thumbnail          json.RawMessage `json:"thumbnail"`
}

// ParseItems decodes raw product entries, dropping every entry without an
// identity or a title. Fetch order is preserved.
func ParseItems(raw []json.RawMessage) (items []Item, dropped int) {
	items = make([]Item, 0, len(raw))
	for _, entry := range raw {
		item, ok := parseItem(entry)
		if !ok {
			dropped++
			continue
		}
		items = append(items, item)
	}
	return items, dropped
}

func parseItem(entry json.RawMessage) (Item, bool) {
	trimmed := bytes.TrimSpace(entry)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Item{}, false
	}
	var raw rawItem
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return Item{}, false
	}

	item := Item{
		ID:                 identity(raw.ID),
		Title:              text(raw.Title),
		Price:              number(raw.Price),
		DiscountPercentage: number(raw.DiscountPercentage),
		Rating:             number(raw.Rating),
		Brand:              text(raw.Brand),
		Thumbnail:          text(raw.Thumbnail),
	}
	if err := itemValidator.Struct(item); err != nil {
		return Item{}, false
	}
	return item, true
}

// ParseTotal reads the declared collection size, defaulting to 0.
func ParseTotal(raw json.RawMessage) int {
	total := number(raw)
	if total <= 0 || total > math.MaxInt32 {
		return 0
	}
	return int(total)
}

// identity accepts a non-zero JSON number or a non-empty JSON string.
func identity(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}
	if trimmed[0] == '"' {
		return text(trimmed)
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return ""
	}
	f, err := n.Float64()
	if err != nil || f == 0 {
		return ""
	}
	return n.String()
}

func text(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return ""
	}
	return s
}

// number is lenient: anything that is not a finite JSON number reads as 0.
func number(raw json.RawMessage) float64 {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	if c := trimmed[0]; c != '-' && (c < '0' || c > '9') {
		return 0
	}
	var f float64
	if err := json.Unmarshal(trimmed, &f); err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
