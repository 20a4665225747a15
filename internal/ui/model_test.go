package ui

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/five82/shopfront/internal/cartapi"
	"github.com/five82/shopfront/internal/cartsync"
	"github.com/five82/shopfront/internal/cartview"
	"github.com/five82/shopfront/internal/events"
	"github.com/five82/shopfront/internal/mockapi"
	"github.com/five82/shopfront/internal/pending"
	"github.com/five82/shopfront/internal/prefs"
	"github.com/five82/shopfront/internal/storage"
	"github.com/five82/shopfront/internal/toast"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func sized(t *testing.T, m Model) Model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model)
}

func press(t *testing.T, m Model, msg tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestNew_UsesSavedTheme(t *testing.T) {
	store := storage.New(storage.NewMemoryMedium(), "test", nil)
	prefs.Save(store, prefs.Prefs{Theme: "Slate"})

	m := New(Options{Prefs: store})
	if m.theme.Name != "Slate" {
		t.Fatalf("theme = %q, want Slate", m.theme.Name)
	}
}

func TestHandleKey_CycleThemePersists(t *testing.T) {
	store := storage.New(storage.NewMemoryMedium(), "test", nil)
	m := New(Options{Prefs: store, ThemeName: "Nightfox"})

	m, _ = press(t, m, runes("T"))
	if m.theme.Name != "Kanagawa" {
		t.Fatalf("theme = %q, want Kanagawa", m.theme.Name)
	}
	if got := prefs.Load(store).Theme; got != "Kanagawa" {
		t.Fatalf("saved theme = %q, want Kanagawa", got)
	}
}

func TestHandleKey_Quit(t *testing.T) {
	m := New(Options{})
	for _, msg := range []tea.KeyMsg{runes("q"), {Type: tea.KeyCtrlC}} {
		_, cmd := press(t, m, msg)
		if cmd == nil {
			t.Fatalf("%s: expected quit command", msg.String())
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Fatalf("%s: command did not quit", msg.String())
		}
	}
}

func TestHandleKey_HelpClosesOnAnyKey(t *testing.T) {
	m := sized(t, New(Options{}))

	m, _ = press(t, m, runes("?"))
	if !m.showHelp {
		t.Fatal("expected help to be shown")
	}
	if !strings.Contains(m.View(), "Keyboard Shortcuts") {
		t.Fatal("help overlay not rendered")
	}

	m, cmd := press(t, m, runes("q"))
	if m.showHelp || cmd != nil {
		t.Fatalf("showHelp = %v, cmd = %v; want help closed and no quit", m.showHelp, cmd)
	}
}

func TestHandleKey_TabSwitchesPane(t *testing.T) {
	m := New(Options{})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.focus != paneCart || m.productTable.Focused() {
		t.Fatalf("focus = %v, table focused = %v", m.focus, m.productTable.Focused())
	}
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.focus != paneProducts || !m.productTable.Focused() {
		t.Fatalf("focus = %v, table focused = %v", m.focus, m.productTable.Focused())
	}
}

func TestCartNavigation_ClampsSelection(t *testing.T) {
	m := New(Options{})
	m.focus = paneCart
	m, _ = press(t, m, runes("j"))
	if m.cartRow != 0 {
		t.Fatalf("cartRow = %d on empty cart, want 0", m.cartRow)
	}

	next, _ := m.Update(snapshotMsg{snapshot: cartview.Snapshot{State: cartview.State{Items: []cartapi.CartItem{
		{ItemID: "A", Quantity: 1}, {ItemID: "B", Quantity: 1},
	}}}})
	m = next.(Model)
	m, _ = press(t, m, runes("j"))
	m, _ = press(t, m, runes("j"))
	if m.cartRow != 1 {
		t.Fatalf("cartRow = %d, want 1", m.cartRow)
	}

	next, _ = m.Update(snapshotMsg{snapshot: cartview.Snapshot{State: cartview.State{Items: []cartapi.CartItem{{ItemID: "A", Quantity: 1}}}}})
	m = next.(Model)
	if m.cartRow != 0 {
		t.Fatalf("cartRow = %d after shrink, want 0", m.cartRow)
	}
}

func TestView_ShowsOfflineBannerAndPending(t *testing.T) {
	m := sized(t, New(Options{}))
	next, _ := m.Update(snapshotMsg{
		snapshot: cartview.Snapshot{State: cartview.State{Online: false, Items: []cartapi.CartItem{
			{ItemID: "SKU-1001", Name: "Widget", Price: 2.5, Quantity: 2},
		}}},
		pending: 3,
	})
	out := next.(Model).View()

	for _, want := range []string{"OFFLINE", "3 pending", "Widget", "$5.00"} {
		if !strings.Contains(out, want) {
			t.Fatalf("View() missing %q", want)
		}
	}
}

func TestCartResultNotice(t *testing.T) {
	netErr := &cartapi.NetworkError{Op: "add item", Status: 503}
	cases := []struct {
		name  string
		msg   cartResultMsg
		level toast.Level
		text  string
	}{
		{"added", cartResultMsg{op: opAdd, name: "Widget", online: true}, toast.Success, "Added Widget to cart"},
		{"queued", cartResultMsg{op: opAdd, name: "Widget"}, toast.Info, "Added Widget to cart. Will sync when back online."},
		{"add failed", cartResultMsg{op: opAdd, name: "Widget", online: true, err: netErr}, toast.Error, "Failed to add to cart. Added locally."},
		{"missing", cartResultMsg{op: opUpdate, name: "Widget", online: true, err: cartsync.ErrItemNotFound}, toast.Warning, "Widget is no longer in the cart"},
		{"clear failed", cartResultMsg{op: opClear, online: true, err: cartapi.ErrClearFailed}, toast.Error, "Failed to clear cart. Cleared locally."},
	}
	for _, tc := range cases {
		level, text := tc.msg.notice()
		if level != tc.level || text != tc.text {
			t.Fatalf("%s: notice = (%v, %q), want (%v, %q)", tc.name, level, text, tc.level, tc.text)
		}
	}
}

func TestSyncNotice(t *testing.T) {
	if _, text := (syncMsg{err: cartsync.ErrOffline}).notice(); text != "You are offline" {
		t.Fatalf("offline notice = %q", text)
	}
	level, text := syncMsg{result: pending.DrainResult{Applied: 2, Dropped: []pending.Change{{}}}}.notice()
	if level != toast.Warning || text != "Synced 2 changes, dropped 1" {
		t.Fatalf("dropped notice = (%v, %q)", level, text)
	}
	if _, text := (syncMsg{err: errors.New("boom")}).notice(); text != "Sync failed: boom" {
		t.Fatalf("error notice = %q", text)
	}
}

func TestNotify_BackOnlineOnlyAfterOutage(t *testing.T) {
	bus := events.New(nil)
	center := toast.NewCenter(0, nil)
	offline := false
	unbind := Notify(bus, center, func() bool { return offline })

	bus.Emit(events.Online())
	if n := len(center.Active()); n != 0 {
		t.Fatalf("toasts = %d, want none before any outage", n)
	}

	offline = true
	bus.Emit(events.Offline())
	bus.Emit(events.Online())
	bus.Emit(events.Dropped(events.DroppedChange{Kind: "add", ItemID: "SKU-1001", Attempts: 3}))

	active := center.Active()
	if len(active) != 3 {
		t.Fatalf("toasts = %d, want 3", len(active))
	}
	if active[0].Message != "You are offline" || active[1].Message != "Back online" {
		t.Fatalf("toasts = %#v", active)
	}
	if active[2].Message != "Gave up on add for SKU-1001 after 3 attempts" {
		t.Fatalf("dropped toast = %q", active[2].Message)
	}

	unbind()
	bus.Emit(events.Offline())
	if n := len(center.Active()); n != 3 {
		t.Fatalf("toasts = %d after unbind, want 3", n)
	}
}

func TestAddProduct_AgainstMockServer(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	backend := mockapi.New(nil, logger)
	srv := httptest.NewServer(backend.Handler())
	defer srv.Close()

	client, err := cartapi.NewClient(srv.URL+"/api/v1", cartapi.WithLogger(logger))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	bus := events.New(nil)
	syncer, err := cartsync.New(cartsync.Deps{API: client, Bus: bus, Logger: logger})
	if err != nil {
		t.Fatalf("cartsync.New: %v", err)
	}
	view := cartview.NewStore(nil, true)
	defer view.Bind(bus)()

	ctx := context.Background()
	m := sized(t, New(Options{Context: ctx, Sync: syncer, View: view}))
	next, _ := m.Update(loadProductsCmd(ctx, syncer)())
	m = next.(Model)
	if len(m.products) != len(mockapi.DefaultCatalog()) {
		t.Fatalf("products = %d, want %d", len(m.products), len(mockapi.DefaultCatalog()))
	}

	m, cmd := press(t, m, runes("a"))
	if got := m.snapshot.TotalQuantity(); got != 0 {
		t.Fatalf("quantity before the synchronizer ran = %d, want 0", got)
	}
	if cmd == nil {
		t.Fatal("expected add command")
	}
	result, ok := cmd().(cartResultMsg)
	if !ok || result.err != nil {
		t.Fatalf("add result = %#v", result)
	}
	if items := backend.Items(); len(items) != 1 || items[0].ItemID != m.products[0].SKU {
		t.Fatalf("server items = %#v", items)
	}

	next, cmd = m.Update(result)
	m = next.(Model)
	if active := m.toasts.Active(); len(active) != 1 || active[0].Message != "Added "+m.products[0].Name+" to cart" {
		t.Fatalf("toasts = %#v", active)
	}
	m = deliver(t, m, cmd)
	if got := m.snapshot.TotalQuantity(); got != 1 {
		t.Fatalf("quantity = %d, want 1", got)
	}
}

// deliver runs cmd and feeds its message back into m.
func deliver(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	next, _ := m.Update(cmd())
	return next.(Model)
}

func TestIncreaseQuantity_ItemRemovedElsewhereLeavesCart(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	backend := mockapi.New(nil, logger)
	srv := httptest.NewServer(backend.Handler())
	defer srv.Close()

	client, err := cartapi.NewClient(srv.URL+"/api/v1", cartapi.WithLogger(logger))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	bus := events.New(nil)
	syncer, err := cartsync.New(cartsync.Deps{API: client, Bus: bus, Logger: logger})
	if err != nil {
		t.Fatalf("cartsync.New: %v", err)
	}
	view := cartview.NewStore(nil, true)
	defer view.Bind(bus)()

	ctx := context.Background()
	product := mockapi.DefaultCatalog()[0]
	if _, err := syncer.Add(ctx, product.NewItem(1)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	m := sized(t, New(Options{Context: ctx, Sync: syncer, View: view}))
	m = deliver(t, m, fetchSnapshotCmd(view, syncer))
	if got := m.snapshot.TotalQuantity(); got != 1 {
		t.Fatalf("quantity = %d, want 1", got)
	}

	// Another device empties the cart.
	if err := client.RemoveItem(ctx, product.SKU); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m, cmd := press(t, m, runes("+"))
	if got := m.snapshot.TotalQuantity(); got != 1 {
		t.Fatalf("quantity before the synchronizer ran = %d, want 1", got)
	}
	if cmd == nil {
		t.Fatal("expected update command")
	}
	result, ok := cmd().(cartResultMsg)
	if !ok || !errors.Is(result.err, cartsync.ErrItemNotFound) {
		t.Fatalf("update result = %#v, want ErrItemNotFound", result)
	}

	next, cmd := m.Update(result)
	m = deliver(t, next.(Model), cmd)

	if n := len(m.snapshot.Items); n != 0 {
		t.Fatalf("cart rows = %d, want 0 after the backend rejected the update", n)
	}
	if local := syncer.LocalItems(); len(local) != 0 {
		t.Fatalf("synchronizer items = %#v, want none", local)
	}
	active := m.toasts.Active()
	if len(active) != 1 || active[0].Message != product.Name+" is no longer in the cart" {
		t.Fatalf("toasts = %#v", active)
	}
	if strings.Contains(m.renderCart(), product.Name) {
		t.Fatalf("cart pane still lists %s", product.Name)
	}
}
