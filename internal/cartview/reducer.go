package cartview

import (
	"github.com/five82/shopfront/internal/cartapi"
)

// ActionType enumerates the reducer vocabulary.
type ActionType int

const (
	SetSnapshot ActionType = iota + 1
	OptimisticAdd
	OptimisticRemove
	OptimisticUpdateQuantity
	Clear
	SetOnlineStatus
)

// Action is a tagged union; the fields used depend on Type.
type Action struct {
	Type     ActionType
	Items    []cartapi.CartItem // SetSnapshot
	Item     cartapi.CartItem   // OptimisticAdd
	ItemID   string             // OptimisticRemove, OptimisticUpdateQuantity
	Quantity int                // OptimisticUpdateQuantity
	Online   bool               // SetOnlineStatus
}

// State is what the UI renders.
type State struct {
	Items   []cartapi.CartItem
	Online  bool
	Version uint64 // bumped on every applied action
}

// TotalQuantity sums item quantities.
func (s State) TotalQuantity() int {
	total := 0
	for _, item := range s.Items {
		total += item.Quantity
	}
	return total
}

// TotalPrice sums item subtotals.
func (s State) TotalPrice() float64 {
	total := 0.0
	for _, item := range s.Items {
		total += item.Subtotal()
	}
	return total
}

// Find returns the item with itemID.
func (s State) Find(itemID string) (cartapi.CartItem, bool) {
	for _, item := range s.Items {
		if item.ItemID == itemID {
			return item, true
		}
	}
	return cartapi.CartItem{}, false
}

// Reduce applies a to s and returns the new state. s is not modified.
func Reduce(s State, a Action) State {
	next := State{Items: cartapi.CloneItems(s.Items), Online: s.Online, Version: s.Version + 1}

	switch a.Type {
	case SetSnapshot:
		next.Items = cartapi.CloneItems(a.Items)
	case OptimisticAdd:
		if a.Item.ItemID == "" {
			return s
		}
		qty := a.Item.Quantity
		if qty <= 0 {
			qty = 1
		}
		merged := false
		for i := range next.Items {
			if next.Items[i].ItemID == a.Item.ItemID {
				next.Items[i].Quantity += qty
				merged = true
				break
			}
		}
		if !merged {
			item := a.Item
			item.Quantity = qty
			next.Items = append(next.Items, item)
		}
	case OptimisticRemove:
		next.Items = without(next.Items, a.ItemID)
	case OptimisticUpdateQuantity:
		if a.Quantity <= 0 {
			next.Items = without(next.Items, a.ItemID)
			break
		}
		for i := range next.Items {
			if next.Items[i].ItemID == a.ItemID {
				next.Items[i].Quantity = a.Quantity
			}
		}
	case Clear:
		next.Items = nil
	case SetOnlineStatus:
		next.Online = a.Online
	default:
		return s
	}
	return next
}

func without(items []cartapi.CartItem, itemID string) []cartapi.CartItem {
	out := items[:0]
	for _, item := range items {
		if item.ItemID != itemID {
			out = append(out, item)
		}
	}
	return out
}
