package cartsync

import (
	"context"
	"errors"
	"sync"

	"github.com/five82/shopfront/internal/cartapi"
)

var errDown = &cartapi.NetworkError{Op: "test", Err: errors.New("connection refused")}

// fakeAPI is an in-memory cart that can be switched into failure mode per
// operation.
type fakeAPI struct {
	mu       sync.Mutex
	items    []cartapi.CartItem
	products []cartapi.Product
	fail     map[string]bool
	calls    []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{fail: make(map[string]bool)}
}

func (f *fakeAPI) setFail(op string, on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op] = on
}

func (f *fakeAPI) failAll(on bool) {
	for _, op := range []string{"fetch", "add", "update", "remove", "clear", "products"} {
		f.setFail(op, on)
	}
}

func (f *fakeAPI) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	if f.fail[op] {
		return errDown
	}
	return nil
}

func (f *fakeAPI) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) FetchItems(context.Context) ([]cartapi.CartItem, error) {
	if err := f.record("fetch"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return cartapi.CloneItems(f.items), nil
}

func (f *fakeAPI) FetchProducts(context.Context) ([]cartapi.Product, error) {
	if err := f.record("products"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]cartapi.Product{}, f.products...), nil
}

func (f *fakeAPI) AddItem(_ context.Context, item cartapi.NewItem) (cartapi.CartItem, error) {
	if err := f.record("add"); err != nil {
		return cartapi.CartItem{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ItemID == item.ItemID {
			f.items[i].Quantity += item.CartItem().Quantity
			return f.items[i], nil
		}
	}
	created := item.CartItem()
	created.ID = "srv-" + item.ItemID
	f.items = append(f.items, created)
	return created, nil
}

func (f *fakeAPI) UpdateItem(_ context.Context, itemID string, quantity int) (cartapi.CartItem, error) {
	if err := f.record("update"); err != nil {
		return cartapi.CartItem{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ItemID == itemID {
			f.items[i].Quantity = quantity
			return f.items[i], nil
		}
	}
	return cartapi.CartItem{}, cartapi.ErrItemNotFound
}

func (f *fakeAPI) RemoveItem(_ context.Context, itemID string) error {
	if err := f.record("remove"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ItemID == itemID {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return cartapi.ErrItemNotFound
}

func (f *fakeAPI) ClearAll(context.Context) error {
	if err := f.record("clear"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = nil
	return nil
}

var _ cartapi.CartAPI = (*fakeAPI)(nil)
