package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

const qtyPlaces = 8

// column is one table column.
type column struct {
	header string
	width  int
	align  lipgloss.Position
}

var columns = []column{
	{"Asset", 14, lipgloss.Left},
	{"Bought", 16, lipgloss.Right},
	{"Sold", 16, lipgloss.Right},
	{"Balance", 16, lipgloss.Right},
	{"Avg buy", 12, lipgloss.Right},
	{"Avg sell", 12, lipgloss.Right},
	{"Price", 12, lipgloss.Right},
	{"PnL", 14, lipgloss.Right},
	{"PnL %", 10, lipgloss.Right},
	{"Last trade", 10, lipgloss.Left},
	{"Conf", 8, lipgloss.Left},
}

// table renders rows with per-cell styles.
type table struct {
	palette     Palette
	headerStyle lipgloss.Style
	rowStyle    lipgloss.Style
	borderStyle lipgloss.Style
}

func newTable(p Palette) *table {
	return &table{
		palette: p,
		headerStyle: lipgloss.NewStyle().
			Foreground(p.Header).
			Bold(true).
			Padding(0, 1),
		rowStyle: lipgloss.NewStyle().
			Foreground(p.Text).
			Padding(0, 1),
		borderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.Border),
	}
}

// RenderTable renders a report as a bordered terminal table followed by
// totals and diagnostics.
func RenderTable(rep *Report) string {
	return newTable(DefaultPalette()).render(rep)
}

func (t *table) render(rep *Report) string {
	var b strings.Builder

	title := lipgloss.NewStyle().Foreground(t.palette.Title).Bold(true)
	b.WriteString(title.Render(fmt.Sprintf("Loss report for %s", rep.Wallet)))
	b.WriteString("\n")

	if len(rep.Rows) == 0 {
		b.WriteString(t.rowStyle.Render("No transfers found"))
		b.WriteString("\n")
		return b.String()
	}

	var content strings.Builder
	content.WriteString(t.renderLine(headerCells(), func(int) lipgloss.Style { return t.headerStyle }))
	content.WriteString("\n")
	content.WriteString(separator())

	for _, r := range rep.Rows {
		content.WriteString("\n")
		cells := rowCells(r)
		content.WriteString(t.renderLine(cells, func(i int) lipgloss.Style { return t.cellStyle(r, i) }))
	}
	b.WriteString(t.borderStyle.Render(content.String()))
	b.WriteString("\n")

	b.WriteString(t.renderTotals(rep.Totals))
	b.WriteString("\n")
	d := rep.Diagnostics
	b.WriteString(lipgloss.NewStyle().Foreground(t.palette.Border).Render(fmt.Sprintf(
		"records %d, events %d, skipped %d, self-transfers %d, unrelated %d, duplicates %d",
		d.Records, d.Events, d.Skipped, d.SelfTransfers, d.Unrelated, d.Duplicates)))
	b.WriteString("\n")
	return b.String()
}

func (t *table) renderLine(cells []string, style func(int) lipgloss.Style) string {
	var line strings.Builder
	for i, col := range columns {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		line.WriteString(renderCell(cell, col.width, col.align, style(i)))
		if i < len(columns)-1 {
			line.WriteString("│")
		}
	}
	return line.String()
}

// cellStyle colors the PnL columns by sign and the confidence column when the
// row is degraded.
func (t *table) cellStyle(r Row, i int) lipgloss.Style {
	switch columns[i].header {
	case "PnL", "PnL %":
		switch {
		case r.TotalPnL.IsNegative():
			return t.rowStyle.Foreground(t.palette.Loss)
		case r.TotalPnL.IsPositive():
			return t.rowStyle.Foreground(t.palette.Gain)
		}
	case "Conf":
		if r.Degraded {
			return t.rowStyle.Foreground(t.palette.Degraded)
		}
	}
	return t.rowStyle
}

func (t *table) renderTotals(tot Totals) string {
	pnl := t.rowStyle
	if tot.TotalPnL.IsNegative() {
		pnl = pnl.Foreground(t.palette.Loss)
	} else if tot.TotalPnL.IsPositive() {
		pnl = pnl.Foreground(t.palette.Gain)
	}
	return fmt.Sprintf("Assets %d (%d degraded)  bought %s  sold %s  holding %s  PnL %s",
		tot.Assets, tot.Degraded,
		money(tot.BoughtValue), money(tot.SoldValue), money(tot.HoldingValue),
		pnl.Render(money(tot.TotalPnL)))
}

func headerCells() []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.header
	}
	return out
}

func separator() string {
	var s strings.Builder
	for i, col := range columns {
		s.WriteString(strings.Repeat("─", col.width))
		if i < len(columns)-1 {
			s.WriteString("┼")
		}
	}
	return s.String()
}

func rowCells(r Row) []string {
	symbol := r.Symbol
	if symbol == "" {
		symbol = shortenAddress(r.AssetID)
	}
	return []string{
		symbol,
		qty(r.BoughtQty),
		qty(r.SoldQty),
		qty(r.Balance),
		money(r.AvgBuyPrice),
		money(r.AvgSellPrice),
		money(r.CurrentPrice),
		money(r.TotalPnL),
		money(r.PnLPercentage),
		r.LastTradeDate,
		string(r.Confidence),
	}
}

// renderCell truncates content to width and applies alignment.
func renderCell(content string, width int, align lipgloss.Position, style lipgloss.Style) string {
	if len(content) > width {
		if width > 3 {
			content = content[:width-3] + "..."
		} else {
			content = content[:width]
		}
	}
	return style.Width(width).Align(align).Render(content)
}

// shortenAddress abbreviates long wallet or contract addresses for display.
func shortenAddress(addr string) string {
	if len(addr) > 12 {
		return addr[:6] + "..." + addr[len(addr)-4:]
	}
	return addr
}

func money(d decimal.Decimal) string { return d.StringFixed(Places) }

func qty(d decimal.Decimal) string { return d.StringFixed(qtyPlaces) }
