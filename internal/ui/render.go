package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/shopfront/internal/cartapi"
)

func productColumns(width int) []table.Column {
	price, sku := 10, 10
	name := max(12, width-price-sku-4)
	return []table.Column{
		{Title: "SKU", Width: sku},
		{Title: "Product", Width: name},
		{Title: "Price", Width: price},
	}
}

func productRows(products []cartapi.Product) []table.Row {
	rows := make([]table.Row, 0, len(products))
	for _, p := range products {
		rows = append(rows, table.Row{p.SKU, p.Name, formatPrice(p.Price)})
	}
	return rows
}

func formatPrice(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

// renderMain renders header, panes, toasts and footer.
func (m Model) renderMain() string {
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderProducts(), m.renderCart())
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.renderToasts(),
		m.renderFooter(),
	)
}

func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	state := m.snapshot.State

	status := "ONLINE"
	if !state.Online {
		status = "OFFLINE"
	}
	parts := []string{
		styles.Logo.Render("shopfront"),
		m.theme.Banner(state.Online).Render(status),
	}
	if m.pending > 0 {
		parts = append(parts, styles.Header.Foreground(lipgloss.Color(m.theme.Warning)).
			Render(fmt.Sprintf("%d pending", m.pending)))
	}
	if !state.Online {
		parts = append(parts, styles.Header.Foreground(lipgloss.Color(m.theme.Muted)).
			Render("changes will sync when back online"))
	}
	if !m.snapshot.LastUpdated.IsZero() {
		parts = append(parts, styles.Header.Foreground(lipgloss.Color(m.theme.Faint)).
			Render("updated "+m.snapshot.LastUpdated.Format("15:04:05")))
	}

	return styles.Header.Width(m.width).Render(strings.Join(parts, " "))
}

func (m Model) renderProducts() string {
	styles := m.theme.Styles()
	box := styles.Pane
	if m.focus == paneProducts {
		box = styles.PaneFocused
	}

	var content string
	if len(m.products) == 0 {
		content = styles.MutedText.Render("No products loaded. Press r to refresh.")
	} else {
		content = m.productTable.View()
	}
	title := styles.AccentText.Bold(true).Render("Products")
	return box.Width(m.productsWidth() - 2).Height(m.bodyHeight()).
		Render(title + "\n" + content)
}

func (m Model) renderCart() string {
	styles := m.theme.Styles()
	box := styles.Pane
	if m.focus == paneCart {
		box = styles.PaneFocused
	}
	width := max(24, m.width-m.productsWidth()) - 4

	state := m.snapshot.State
	var b strings.Builder
	b.WriteString(styles.AccentText.Bold(true).Render(fmt.Sprintf("Cart (%d)", state.TotalQuantity())))
	b.WriteString("\n")

	if len(state.Items) == 0 {
		b.WriteString(styles.MutedText.Render("Your cart is empty"))
	}
	for i, item := range state.Items {
		line := cartLine(item, width)
		if m.focus == paneCart && i == m.cartRow {
			b.WriteString(styles.Selected.Width(width).Render(line))
		} else {
			b.WriteString(styles.Text.Render(line))
		}
		b.WriteString("\n")
	}
	if len(state.Items) > 0 {
		b.WriteString(styles.FaintText.Render(strings.Repeat("─", width)))
		b.WriteString("\n")
		b.WriteString(styles.Text.Bold(true).Render(fmt.Sprintf("Total %s", formatPrice(state.TotalPrice()))))
	}

	return box.Width(width + 2).Height(m.bodyHeight()).Render(b.String())
}

func cartLine(item cartapi.CartItem, width int) string {
	right := fmt.Sprintf("x%d %s", item.Quantity, formatPrice(item.Subtotal()))
	name := item.Name
	if name == "" {
		name = item.ItemID
	}
	room := width - lipgloss.Width(right) - 1
	if room < 1 {
		return right
	}
	name = truncate(name, room)
	pad := max(1, room-lipgloss.Width(name)+1)
	return name + strings.Repeat(" ", pad) + right
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 1 {
		return string(r[:width])
	}
	return string(r[:width-1]) + "…"
}

func (m Model) renderToasts() string {
	active := m.toasts.Active()
	lines := make([]string, 0, len(active))
	for i := len(active) - 1; i >= 0; i-- {
		t := active[i]
		color := lipgloss.Color(m.theme.ToastColor(t.Level))
		marker := lipgloss.NewStyle().Foreground(color).Render("●")
		lines = append(lines, " "+marker+" "+lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Text)).Render(t.Message))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderFooter() string {
	return m.theme.Styles().Footer.Render(m.help.ShortHelpView(m.keys.ShortHelp()))
}

// renderHelp renders the key binding overlay.
func (m Model) renderHelp() string {
	styles := m.theme.Styles()

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Keyboard Shortcuts"))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", 30)))
	b.WriteString("\n\n")
	b.WriteString(m.help.FullHelpView(m.keys.FullHelp()))

	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.Accent)).
		Padding(1, 2).
		Render(b.String())

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(m.theme.Background)),
	)
}
