package cartsync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/five82/shopfront/internal/cartapi"
	"github.com/five82/shopfront/internal/storage"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   []cartapi.CartItem
		want []cartapi.CartItem
	}{
		{"nil", nil, []cartapi.CartItem{}},
		{
			"merges duplicates into first position",
			[]cartapi.CartItem{{ItemID: "A", Quantity: 1}, {ItemID: "B", Quantity: 2}, {ItemID: "A", Quantity: 3}},
			[]cartapi.CartItem{{ItemID: "A", Quantity: 4}, {ItemID: "B", Quantity: 2}},
		},
		{
			"drops non-positive and blank ids",
			[]cartapi.CartItem{{ItemID: "A", Quantity: 0}, {ItemID: " ", Quantity: 2}, {ItemID: "C", Quantity: -1}},
			[]cartapi.CartItem{},
		},
		{
			"negative duplicate can cancel an entry",
			[]cartapi.CartItem{{ItemID: "A", Quantity: 2}, {ItemID: "A", Quantity: -2}},
			[]cartapi.CartItem{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalize_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		items := rapid.SliceOf(rapid.Custom(func(t *rapid.T) cartapi.CartItem {
			return cartapi.CartItem{
				ItemID:   rapid.SampledFrom([]string{"A", "B", "C", "D"}).Draw(t, "id"),
				Quantity: rapid.IntRange(-2, 9).Draw(t, "qty"),
			}
		})).Draw(t, "items")

		out := Normalize(items)

		seen := make(map[string]bool)
		for _, item := range out {
			if seen[item.ItemID] {
				t.Fatalf("duplicate itemId %q in %v", item.ItemID, out)
			}
			seen[item.ItemID] = true
			if item.Quantity <= 0 {
				t.Fatalf("non-positive quantity in %v", out)
			}
		}
		if again := Normalize(out); len(again) != len(out) {
			t.Fatalf("Normalize is not idempotent: %v then %v", out, again)
		}
	})
}

// Repeated adds never duplicate an item, whichever path they take.
func TestAdd_NeverDuplicatesItems(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		mode := rapid.SampledFrom([]string{"online", "offline", "failing"}).Draw(rt, "mode")
		api := newFakeAPI()
		if mode == "failing" {
			api.failAll(true)
		}
		h := newHarness(t, api, mode != "offline", storage.NewMemoryMedium())

		ids := []string{"SKU1", "SKU2", "SKU3"}
		want := make(map[string]int)
		n := rapid.IntRange(1, 12).Draw(rt, "adds")
		var items []cartapi.CartItem
		for i := 0; i < n; i++ {
			id := rapid.SampledFrom(ids).Draw(rt, "id")
			qty := rapid.IntRange(1, 5).Draw(rt, "qty")
			want[id] += qty
			items, _ = h.sync.Add(context.Background(), cartapi.NewItem{ItemID: id, Name: id, Price: 1, Quantity: qty})
		}

		if len(items) != len(want) {
			rt.Fatalf("got %d items for %d distinct ids: %v", len(items), len(want), items)
		}
		for _, item := range items {
			if item.Quantity != want[item.ItemID] {
				rt.Fatalf("%s quantity = %d, want %d", item.ItemID, item.Quantity, want[item.ItemID])
			}
		}
	})
}
