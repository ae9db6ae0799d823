package catalog

import (
	"cmp"
	"slices"
	"strings"

	pkgerrors "github.com/angelmondragon/productfeed/pkg/errors"
)

type SortMode string

const (
	SortNone   SortMode = "none"
	SortRating SortMode = "rating"
	SortPrice  SortMode = "price"
)

// ParseSortMode accepts the two sortable keys; "none" is not a sort request.
func ParseSortMode(value string) (SortMode, error) {
	switch mode := SortMode(strings.ToLower(strings.TrimSpace(value))); mode {
	case SortRating, SortPrice:
		return mode, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "sort mode must be rating or price").
			WithDetails(map[string]any{"by": value})
	}
}

type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// SortDescriptor pairs a key with a direction. Direction is ignored when Mode is SortNone.
type SortDescriptor struct {
	Mode      SortMode
	Direction Direction
}

// DefaultSort renders fetch order.
func DefaultSort() SortDescriptor {
	return SortDescriptor{Mode: SortNone, Direction: Descending}
}

// Apply returns the descriptor after a sort request for mode: the same mode
// flips direction, a new mode starts descending.
func (d SortDescriptor) Apply(mode SortMode) SortDescriptor {
	if d.Mode == mode {
		if d.Direction == Descending {
			return SortDescriptor{Mode: mode, Direction: Ascending}
		}
		return SortDescriptor{Mode: mode, Direction: Descending}
	}
	return SortDescriptor{Mode: mode, Direction: Descending}
}

func sortKey(item Item, mode SortMode) float64 {
	if mode == SortPrice {
		return item.EffectivePrice()
	}
	return item.Rating
}

// Compare orders two items by the key of mode. SortNone compares equal.
func Compare(a, b Item, mode SortMode, dir Direction) int {
	if mode != SortRating && mode != SortPrice {
		return 0
	}
	result := cmp.Compare(sortKey(a, mode), sortKey(b, mode))
	if dir == Descending {
		return -result
	}
	return result
}

// SortItems returns a sorted copy; ties keep their input order.
func SortItems(items []Item, d SortDescriptor) []Item {
	out := slices.Clone(items)
	if d.Mode == SortNone || d.Mode == "" {
		return out
	}
	slices.SortStableFunc(out, func(a, b Item) int {
		return Compare(a, b, d.Mode, d.Direction)
	})
	return out
}
