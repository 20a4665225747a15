package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/shopfront/internal/cartapi"
	"github.com/five82/shopfront/internal/cartsync"
	"github.com/five82/shopfront/internal/cartview"
	"github.com/five82/shopfront/internal/pending"
	"github.com/five82/shopfront/internal/toast"
)

// Messages

type tickMsg time.Time

type snapshotMsg struct {
	snapshot cartview.Snapshot
	pending  int
}

type productsMsg struct {
	products []cartapi.Product
}

type refreshMsg struct {
	manual bool
	err    error
}

type cartOp int

const (
	opAdd cartOp = iota
	opUpdate
	opRemove
	opClear
)

// cartResultMsg reports a finished synchronizer mutation.
type cartResultMsg struct {
	op     cartOp
	name   string
	online bool
	err    error
}

func (r cartResultMsg) notice() (toast.Level, string) {
	switch {
	case r.err == nil && !r.online:
		return toast.Info, r.offlineText()
	case r.err == nil:
		return toast.Success, r.successText()
	case errors.Is(r.err, cartsync.ErrItemNotFound):
		return toast.Warning, fmt.Sprintf("%s is no longer in the cart", r.label())
	default:
		return toast.Error, r.failureText()
	}
}

func (r cartResultMsg) label() string {
	if r.name == "" {
		return "Item"
	}
	return r.name
}

func (r cartResultMsg) successText() string {
	switch r.op {
	case opAdd:
		return fmt.Sprintf("Added %s to cart", r.label())
	case opUpdate:
		return fmt.Sprintf("Updated %s", r.label())
	case opRemove:
		return fmt.Sprintf("Removed %s from cart", r.label())
	default:
		return "Cart cleared"
	}
}

func (r cartResultMsg) offlineText() string {
	return r.successText() + ". Will sync when back online."
}

func (r cartResultMsg) failureText() string {
	switch r.op {
	case opAdd:
		return "Failed to add to cart. Added locally."
	case opUpdate:
		return "Failed to update cart. Changed locally."
	case opRemove:
		return "Failed to remove from cart. Removed locally."
	default:
		return "Failed to clear cart. Cleared locally."
	}
}

type syncMsg struct {
	result pending.DrainResult
	err    error
}

func (s syncMsg) notice() (toast.Level, string) {
	switch {
	case errors.Is(s.err, cartsync.ErrOffline):
		return toast.Warning, "You are offline"
	case errors.Is(s.err, pending.ErrDrainInProgress):
		return toast.Info, "Sync already running"
	case s.err != nil:
		return toast.Error, "Sync failed: " + s.err.Error()
	case len(s.result.Dropped) > 0:
		return toast.Warning, fmt.Sprintf("Synced %d changes, dropped %d", s.result.Applied, len(s.result.Dropped))
	case len(s.result.Retried) > 0:
		return toast.Warning, fmt.Sprintf("Synced %d changes, %d still pending", s.result.Applied, len(s.result.Retried))
	case s.result.Applied == 0:
		return toast.Info, "Cart is up to date"
	default:
		return toast.Success, fmt.Sprintf("Synced %d changes", s.result.Applied)
	}
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(view *cartview.Store, s *cartsync.Synchronizer) tea.Cmd {
	return func() tea.Msg {
		msg := snapshotMsg{snapshot: view.Snapshot()}
		if s != nil {
			msg.pending = s.PendingCount()
		}
		return msg
	}
}

func loadProductsCmd(ctx context.Context, s *cartsync.Synchronizer) tea.Cmd {
	return func() tea.Msg {
		products, _ := s.Products(ctx)
		return productsMsg{products: products}
	}
}

func refreshCmd(ctx context.Context, s *cartsync.Synchronizer, manual bool) tea.Cmd {
	return func() tea.Msg {
		_, err := s.GetItems(ctx)
		return refreshMsg{manual: manual, err: err}
	}
}

func addCmd(ctx context.Context, s *cartsync.Synchronizer, p cartapi.Product) tea.Cmd {
	return func() tea.Msg {
		_, err := s.Add(ctx, p.NewItem(1))
		return cartResultMsg{op: opAdd, name: p.Name, online: s.Online(), err: err}
	}
}

func updateCmd(ctx context.Context, s *cartsync.Synchronizer, item cartapi.CartItem, quantity int) tea.Cmd {
	return func() tea.Msg {
		_, err := s.UpdateQuantity(ctx, item.ItemID, quantity)
		return cartResultMsg{op: opUpdate, name: item.Name, online: s.Online(), err: err}
	}
}

func removeCmd(ctx context.Context, s *cartsync.Synchronizer, item cartapi.CartItem) tea.Cmd {
	return func() tea.Msg {
		_, err := s.Remove(ctx, item.ItemID)
		return cartResultMsg{op: opRemove, name: item.Name, online: s.Online(), err: err}
	}
}

func clearCmd(ctx context.Context, s *cartsync.Synchronizer) tea.Cmd {
	return func() tea.Msg {
		_, err := s.Clear(ctx)
		return cartResultMsg{op: opClear, online: s.Online(), err: err}
	}
}

func syncCmd(ctx context.Context, s *cartsync.Synchronizer) tea.Cmd {
	return func() tea.Msg {
		res, err := s.Drain(ctx)
		return syncMsg{result: res, err: err}
	}
}
