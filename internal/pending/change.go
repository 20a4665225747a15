package pending

import (
	"time"

	"github.com/google/uuid"

	"github.com/five82/shopfront/internal/cartapi"
)

// Kind names the cart mutation a Change records.
type Kind string

const (
	KindAdd            Kind = "add"
	KindUpdateQuantity Kind = "update_quantity"
	KindRemove         Kind = "remove"
	KindClear          Kind = "clear"
)

// Payload carries the kind-specific arguments. Add uses Item; UpdateQuantity
// uses ItemID and Quantity; Remove uses ItemID; Clear uses nothing.
type Payload struct {
	Item     *cartapi.NewItem `json:"item,omitempty"`
	ItemID   string           `json:"itemId,omitempty"`
	Quantity int              `json:"quantity,omitempty"`
}

// Change is one mutation that has not been confirmed by the remote cart.
type Change struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Payload    Payload   `json:"payload"`
	CreatedAt  time.Time `json:"createdAt"`
	RetryCount int       `json:"retryCount"`
	LastError  string    `json:"lastError,omitempty"`
}

// TargetItemID returns the itemId the change refers to, empty for Clear.
func (c Change) TargetItemID() string {
	if c.Payload.Item != nil {
		return c.Payload.Item.ItemID
	}
	return c.Payload.ItemID
}

// Add records an add of item.
func Add(item cartapi.NewItem) Change {
	return Change{Kind: KindAdd, Payload: Payload{Item: &item}}
}

// UpdateQuantity records a quantity replacement.
func UpdateQuantity(itemID string, quantity int) Change {
	return Change{Kind: KindUpdateQuantity, Payload: Payload{ItemID: itemID, Quantity: quantity}}
}

// Remove records a removal.
func Remove(itemID string) Change {
	return Change{Kind: KindRemove, Payload: Payload{ItemID: itemID}}
}

// Clear records emptying the cart.
func Clear() Change {
	return Change{Kind: KindClear}
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
