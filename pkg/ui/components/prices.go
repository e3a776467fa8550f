// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// PriceRow represents one asset's latest cross-venue snapshot.
type PriceRow struct {
	Asset     string
	CEXBid    decimal.Decimal
	CEXAsk    decimal.Decimal
	DEXMid    decimal.Decimal
	SpreadBps decimal.Decimal
	Synthetic bool
}

// TradeSummary holds the latest completed trade's realized outcome,
// pre-computed by the execution engine - the UI only displays it.
type TradeSummary struct {
	Asset     string
	Direction string
	Status    string
	PnLAbs    float64
	PnLPct    float64
	LatencyMs int64
}

// PricesComponent renders the per-asset price comparison table.
type PricesComponent struct {
	rows  map[string]PriceRow
	trade *TradeSummary
}

// NewPricesComponent creates a new prices component.
func NewPricesComponent() *PricesComponent {
	return &PricesComponent{
		rows: make(map[string]PriceRow),
	}
}

// Upsert records or replaces the latest snapshot for one asset.
func (p *PricesComponent) Upsert(row PriceRow) {
	p.rows[row.Asset] = row
}

// SetLastTrade records the most recently completed trade for display.
func (p *PricesComponent) SetLastTrade(t TradeSummary) {
	p.trade = &t
}

// View renders the prices component.
func (p *PricesComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	positiveStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	negativeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))

	var result string
	result = headerStyle.Render("PRICES")
	result += "\n\n"

	if len(p.rows) == 0 {
		result += dimStyle.Render("  Waiting for price data...") + "\n"
	} else {
		result += fmt.Sprintf("  %-10s  %12s  %12s  %12s  %10s\n",
			"Asset", "CEX bid/ask", "DEX mid", "Spread", "Source")
		result += dimStyle.Render("  " + strings.Repeat("─", 62)) + "\n"

		assets := make([]string, 0, len(p.rows))
		for a := range p.rows {
			assets = append(assets, a)
		}
		sort.Strings(assets)

		for _, a := range assets {
			row := p.rows[a]
			spreadStyle := positiveStyle
			if row.SpreadBps.IsNegative() {
				spreadStyle = negativeStyle
			}
			source := "onchain"
			if row.Synthetic {
				source = warnStyle.Render("synthetic")
			}
			result += fmt.Sprintf("  %-10s  %6s/%-5s  %12s  %s  %10s\n",
				row.Asset,
				row.CEXBid.StringFixed(2),
				row.CEXAsk.StringFixed(2),
				"$"+row.DEXMid.StringFixed(2),
				spreadStyle.Render(fmt.Sprintf("%+9.1fbp", row.SpreadBps.InexactFloat64())),
				source,
			)
		}
	}

	result += "\n"
	result += dimStyle.Render("  " + strings.Repeat("─", 62)) + "\n"

	if p.trade == nil {
		result += dimStyle.Render("  No trades executed yet.") + "\n"
		return result
	}

	t := p.trade
	pnlStyle := positiveStyle
	if t.PnLAbs < 0 {
		pnlStyle = negativeStyle
	}
	result += headerStyle.Render("  LAST TRADE") + "\n\n"
	result += fmt.Sprintf("  %s %s  status=%s\n", t.Asset, t.Direction, t.Status)
	result += fmt.Sprintf("  pnl: %s (%.3f%%)  latency: %dms\n",
		pnlStyle.Render(fmt.Sprintf("$%.2f", t.PnLAbs)), t.PnLPct, t.LatencyMs)

	return result
}
