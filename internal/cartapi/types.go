package cartapi

// CartItem mirrors an entry of /carts/items. Identity is ItemID; ID is the
// backend's persistence identifier when it assigns one.
type CartItem struct {
	ID       string  `json:"id,omitempty"`
	ItemID   string  `json:"itemId"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Name     string  `json:"name"`
	ImageURL string  `json:"imageUrl,omitempty"`
}

// PersistenceID returns the identifier used to address the item in DELETE
// requests.
func (c CartItem) PersistenceID() string {
	if c.ID != "" {
		return c.ID
	}
	return c.ItemID
}

// Subtotal is price times quantity.
func (c CartItem) Subtotal() float64 {
	return c.Price * float64(c.Quantity)
}

// NewItem is the POST /carts/items body.
type NewItem struct {
	ItemID   string  `json:"itemId"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity,omitempty"`
	ImageURL string  `json:"imageUrl,omitempty"`
}

// CartItem converts the request into the item it would create.
func (n NewItem) CartItem() CartItem {
	qty := n.Quantity
	if qty <= 0 {
		qty = 1
	}
	return CartItem{
		ItemID:   n.ItemID,
		Name:     n.Name,
		Price:    n.Price,
		Quantity: qty,
		ImageURL: n.ImageURL,
	}
}

// UpdateItem is the PUT /carts/items/{itemId} body.
type UpdateItem struct {
	ItemID   string  `json:"itemId"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Name     string  `json:"name"`
}

// Product mirrors an entry of /products.
type Product struct {
	SKU         string  `json:"sku"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	ImageURL    string  `json:"imageUrl"`
	Category    string  `json:"category,omitempty"`
	Quantity    int     `json:"quantity,omitempty"`
}

// NewItem builds a cart add request for qty units of the product.
func (p Product) NewItem(qty int) NewItem {
	return NewItem{
		ItemID:   p.SKU,
		Name:     p.Name,
		Price:    p.Price,
		Quantity: qty,
		ImageURL: p.ImageURL,
	}
}

// CloneItems returns an independent copy of items.
func CloneItems(items []CartItem) []CartItem {
	if items == nil {
		return nil
	}
	dup := make([]CartItem, len(items))
	copy(dup, items)
	return dup
}
