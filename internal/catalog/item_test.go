package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawProducts(entries ...string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(entries))
	for _, e := range entries {
		out = append(out, json.RawMessage(e))
	}
	return out
}

func TestParseItemsDropsInvalidEntries(t *testing.T) {
	items, dropped := ParseItems(rawProducts(
		`{"id":1,"title":"A","price":100,"discountPercentage":10,"rating":4}`,
		`{"id":2,"price":5}`,
		`{"id":3,"title":""}`,
		`{"id":0,"title":"zero id"}`,
		`{"title":"no id"}`,
		`{"id":"sku-9","title":"string id"}`,
		`{"id":5,"title":42}`,
		`null`,
		`"nope"`,
	))

	require.Len(t, items, 2)
	assert.Equal(t, 7, dropped)
	assert.Equal(t, "1", items[0].ID)
	assert.Equal(t, "A", items[0].Title)
	assert.Equal(t, "sku-9", items[1].ID)
}

func TestParseItemsLenientNumbers(t *testing.T) {
	items, _ := ParseItems(rawProducts(
		`{"id":7,"title":"T","price":"12","discountPercentage":null,"rating":true,"brand":"Acme","thumbnail":"https://img.test/7.png"}`,
	))
	require.Len(t, items, 1)
	item := items[0]
	assert.Zero(t, item.Price)
	assert.Zero(t, item.DiscountPercentage)
	assert.Zero(t, item.Rating)
	assert.Equal(t, "Acme", item.Brand)
	assert.Equal(t, "https://img.test/7.png", item.Thumbnail)
}

func TestParseItemsKeepsFetchOrder(t *testing.T) {
	items, dropped := ParseItems(rawProducts(
		`{"id":3,"title":"C"}`,
		`{"id":1,"title":"A"}`,
		`{"id":2,"title":"B"}`,
	))
	require.Zero(t, dropped)
	assert.Equal(t, []string{"3", "1", "2"}, []string{items[0].ID, items[1].ID, items[2].ID})
}

func TestParseTotal(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{raw: ``, want: 0},
		{raw: `25`, want: 25},
		{raw: `"25"`, want: 0},
		{raw: `-3`, want: 0},
		{raw: `null`, want: 0},
		{raw: `194.0`, want: 194},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseTotal(json.RawMessage(tt.raw)), "raw %q", tt.raw)
	}
}

func TestEffectivePrice(t *testing.T) {
	item := Item{Price: 100, DiscountPercentage: 10}
	assert.InDelta(t, 90.0, item.EffectivePrice(), 1e-9)

	prev := Item{Price: 80}.EffectivePrice()
	for discount := 1.0; discount <= 100; discount++ {
		next := Item{Price: 80, DiscountPercentage: discount}.EffectivePrice()
		assert.Less(t, next, prev, "discount %v", discount)
		prev = next
	}

	assert.Zero(t, Item{Price: 0, DiscountPercentage: 50}.EffectivePrice())
}
