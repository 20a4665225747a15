package ui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/shopfront/internal/cartapi"
	"github.com/five82/shopfront/internal/cartsync"
	"github.com/five82/shopfront/internal/cartview"
	"github.com/five82/shopfront/internal/prefs"
	"github.com/five82/shopfront/internal/storage"
	"github.com/five82/shopfront/internal/toast"
)

// pane identifies which half of the screen has focus.
type pane int

const (
	paneProducts pane = iota
	paneCart
)

// Options configures the UI.
type Options struct {
	Context   context.Context
	Sync      *cartsync.Synchronizer
	View      *cartview.Store
	Toasts    *toast.Center
	Prefs     *storage.Store
	ThemeName string
	PollTick  time.Duration
}

// Model is the root bubbletea model.
type Model struct {
	ctx      context.Context
	sync     *cartsync.Synchronizer
	view     *cartview.Store
	toasts   *toast.Center
	prefs    *storage.Store
	pollTick time.Duration

	keys     keyMap
	help     help.Model
	theme    Theme
	width    int
	height   int
	ready    bool
	focus    pane
	showHelp bool

	products     []cartapi.Product
	productTable table.Model

	snapshot cartview.Snapshot
	pending  int
	cartRow  int
}

// New creates the model. Sync and View may be nil in tests; actions then
// become no-ops.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	pollTick := opts.PollTick
	if pollTick <= 0 {
		pollTick = 500 * time.Millisecond
	}
	toasts := opts.Toasts
	if toasts == nil {
		toasts = toast.NewCenter(0, nil)
	}
	themeName := opts.ThemeName
	if themeName == "" {
		themeName = prefs.Load(opts.Prefs).Theme
	}

	m := Model{
		ctx:      ctx,
		sync:     opts.Sync,
		view:     opts.View,
		toasts:   toasts,
		prefs:    opts.Prefs,
		pollTick: pollTick,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		theme:    GetTheme(themeName),
		productTable: table.New(
			table.WithColumns(productColumns(80)),
			table.WithFocused(true),
			table.WithHeight(10),
		),
	}
	m.applyTableStyles()
	if m.view != nil {
		m.snapshot = m.view.Snapshot()
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tea.EnterAltScreen, tickCmd(m.pollTick)}
	if m.sync != nil {
		cmds = append(cmds, loadProductsCmd(m.ctx, m.sync), refreshCmd(m.ctx, m.sync, false))
	}
	if m.view != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.view, m.sync))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		return m, nil

	case tickMsg:
		cmds := []tea.Cmd{tickCmd(m.pollTick)}
		if m.view != nil {
			cmds = append(cmds, fetchSnapshotCmd(m.view, m.sync))
		}
		return m, tea.Batch(cmds...)

	case snapshotMsg:
		m.snapshot = msg.snapshot
		m.pending = msg.pending
		m.clampCartRow()
		return m, nil

	case productsMsg:
		m.products = msg.products
		m.productTable.SetRows(productRows(m.products))
		return m, nil

	case cartResultMsg:
		level, text := msg.notice()
		m.toasts.Push(level, text)
		return m, m.snapshotCmd()

	case syncMsg:
		level, text := msg.notice()
		m.toasts.Push(level, text)
		return m, m.snapshotCmd()

	case refreshMsg:
		if msg.err != nil {
			m.toasts.Push(toast.Error, "Refresh failed. Showing saved cart.")
		} else if msg.manual {
			m.toasts.Push(toast.Info, "Cart refreshed")
		}
		return m, m.snapshotCmd()
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	return m.renderMain()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.applyTableStyles()
		prefs.Save(m.prefs, prefs.Prefs{Theme: m.theme.Name})
		return m, nil

	case key.Matches(msg, m.keys.Tab):
		m.toggleFocus()
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		if m.sync == nil {
			return m, nil
		}
		return m, tea.Batch(loadProductsCmd(m.ctx, m.sync), refreshCmd(m.ctx, m.sync, true))

	case key.Matches(msg, m.keys.Sync):
		if m.sync == nil {
			return m, nil
		}
		return m, syncCmd(m.ctx, m.sync)

	case key.Matches(msg, m.keys.Clear):
		if m.sync == nil || len(m.snapshot.Items) == 0 {
			return m, nil
		}
		return m, clearCmd(m.ctx, m.sync)
	}

	if m.focus == paneCart {
		return m.handleCartKey(msg)
	}
	return m.handleProductKey(msg)
}

func (m Model) handleProductKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Add) {
		product, ok := m.selectedProduct()
		if !ok || m.sync == nil {
			return m, nil
		}
		return m, addCmd(m.ctx, m.sync, product)
	}

	var cmd tea.Cmd
	m.productTable, cmd = m.productTable.Update(msg)
	return m, cmd
}

func (m Model) handleCartKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := m.snapshot.Items
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cartRow > 0 {
			m.cartRow--
		}
		return m, nil
	case key.Matches(msg, m.keys.Down):
		if m.cartRow < len(items)-1 {
			m.cartRow++
		}
		return m, nil
	}

	item, ok := m.selectedCartItem()
	if !ok || m.sync == nil {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Increase):
		return m.setQuantity(item, item.Quantity+1)
	case key.Matches(msg, m.keys.Decrease):
		return m.setQuantity(item, item.Quantity-1)
	case key.Matches(msg, m.keys.Remove):
		return m, removeCmd(m.ctx, m.sync, item)
	}
	return m, nil
}

func (m Model) setQuantity(item cartapi.CartItem, quantity int) (tea.Model, tea.Cmd) {
	if quantity <= 0 {
		return m, removeCmd(m.ctx, m.sync, item)
	}
	return m, updateCmd(m.ctx, m.sync, item, quantity)
}

func (m *Model) toggleFocus() {
	if m.focus == paneProducts {
		m.focus = paneCart
		m.productTable.Blur()
		return
	}
	m.focus = paneProducts
	m.productTable.Focus()
}

func (m Model) selectedProduct() (cartapi.Product, bool) {
	idx := m.productTable.Cursor()
	if idx < 0 || idx >= len(m.products) {
		return cartapi.Product{}, false
	}
	return m.products[idx], true
}

func (m Model) selectedCartItem() (cartapi.CartItem, bool) {
	if m.cartRow < 0 || m.cartRow >= len(m.snapshot.Items) {
		return cartapi.CartItem{}, false
	}
	return m.snapshot.Items[m.cartRow], true
}

func (m *Model) clampCartRow() {
	if m.cartRow >= len(m.snapshot.Items) {
		m.cartRow = len(m.snapshot.Items) - 1
	}
	if m.cartRow < 0 {
		m.cartRow = 0
	}
}

func (m Model) snapshotCmd() tea.Cmd {
	if m.view == nil {
		return nil
	}
	return fetchSnapshotCmd(m.view, m.sync)
}

// layout sizes the panes for the current window.
func (m *Model) layout() {
	productsWidth := m.productsWidth()
	m.productTable.SetColumns(productColumns(productsWidth - 4))
	m.productTable.SetHeight(max(3, m.bodyHeight()-3))
	m.help.Width = m.width
}

func (m Model) productsWidth() int {
	return max(40, m.width*3/5)
}

func (m Model) bodyHeight() int {
	// header, footer, toast area
	return max(5, m.height-2-toast.MaxActive-2)
}

func (m *Model) applyTableStyles() {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color(m.theme.Border)).
		BorderBottom(true).
		Foreground(lipgloss.Color(m.theme.Accent)).
		Bold(true)
	s.Cell = s.Cell.Foreground(lipgloss.Color(m.theme.Text))
	s.Selected = s.Selected.
		Foreground(lipgloss.Color(m.theme.SelectionFg)).
		Background(lipgloss.Color(m.theme.SelectionBg)).
		Bold(false)
	m.productTable.SetStyles(s)
}

// Run starts the bubbletea program and blocks until it exits.
func Run(opts Options) error {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	p := tea.NewProgram(New(opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
