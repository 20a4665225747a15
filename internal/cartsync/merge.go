package cartsync

import (
	"strings"

	"github.com/five82/shopfront/internal/cartapi"
)

// Normalize returns a copy of items with one entry per itemId. Duplicates are
// folded into the first occurrence by summing quantities; entries with an
// empty itemId or a non-positive quantity are dropped.
func Normalize(items []cartapi.CartItem) []cartapi.CartItem {
	out := make([]cartapi.CartItem, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		item.ItemID = strings.TrimSpace(item.ItemID)
		if item.ItemID == "" {
			continue
		}
		if i, ok := index[item.ItemID]; ok {
			out[i].Quantity += item.Quantity
			continue
		}
		index[item.ItemID] = len(out)
		out = append(out, item)
	}

	kept := out[:0]
	for _, item := range out {
		if item.Quantity > 0 {
			kept = append(kept, item)
		}
	}
	return kept
}

func mergeAdd(items []cartapi.CartItem, add cartapi.NewItem) []cartapi.CartItem {
	if i := indexOf(items, add.ItemID); i >= 0 {
		items[i].Quantity += add.CartItem().Quantity
		return items
	}
	return append(items, add.CartItem())
}

func setQuantity(items []cartapi.CartItem, itemID string, quantity int) []cartapi.CartItem {
	if i := indexOf(items, itemID); i >= 0 {
		items[i].Quantity = quantity
	}
	return items
}

func removeItem(items []cartapi.CartItem, itemID string) []cartapi.CartItem {
	out := items[:0]
	for _, item := range items {
		if item.ItemID != itemID {
			out = append(out, item)
		}
	}
	return out
}

func indexOf(items []cartapi.CartItem, itemID string) int {
	for i, item := range items {
		if item.ItemID == itemID {
			return i
		}
	}
	return -1
}
