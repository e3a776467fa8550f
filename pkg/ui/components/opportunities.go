// Package components provides reusable TUI components.
package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// OpportunityRow represents one detected cross-venue opportunity in the
// list.
type OpportunityRow struct {
	Timestamp          string
	Asset              string
	Direction          string
	Size               decimal.Decimal
	GrossSpreadPct     decimal.Decimal
	PredictedNetPnLPct decimal.Decimal
	CEXPrice           decimal.Decimal
	DEXPrice           decimal.Decimal
	WindowID           string
}

// OpportunitiesComponent renders the opportunities list.
type OpportunitiesComponent struct {
	rows       []OpportunityRow
	maxRows    int
	offset     int // For scrolling
	visibleMax int // How many to show at once
}

// NewOpportunitiesComponent creates a new opportunities component.
func NewOpportunitiesComponent(maxRows int) *OpportunitiesComponent {
	return &OpportunitiesComponent{
		rows:       make([]OpportunityRow, 0),
		maxRows:    maxRows,
		offset:     0,
		visibleMax: 5, // Show max 5 opportunities at once
	}
}

// Add adds a new opportunity to the list.
func (o *OpportunitiesComponent) Add(row OpportunityRow) {
	o.rows = append([]OpportunityRow{row}, o.rows...)
	if len(o.rows) > o.maxRows {
		o.rows = o.rows[:o.maxRows]
	}
	// Reset scroll to top on new opportunity
	o.offset = 0
}

// Clear clears all opportunities.
func (o *OpportunitiesComponent) Clear() {
	o.rows = make([]OpportunityRow, 0)
	o.offset = 0
}

// ScrollUp scrolls the list up.
func (o *OpportunitiesComponent) ScrollUp() {
	if o.offset > 0 {
		o.offset--
	}
}

// ScrollDown scrolls the list down.
func (o *OpportunitiesComponent) ScrollDown() {
	maxOffset := len(o.rows) - o.visibleMax
	if maxOffset < 0 {
		maxOffset = 0
	}
	if o.offset < maxOffset {
		o.offset++
	}
}

// Count returns the total number of opportunities.
func (o *OpportunitiesComponent) Count() int {
	return len(o.rows)
}

// View renders the opportunities component.
func (o *OpportunitiesComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	profitStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	scrollHint := lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))

	var result string
	result = headerStyle.Render("OPPORTUNITIES")

	if len(o.rows) > 0 {
		countStr := fmt.Sprintf(" (%d total, ↑↓ scroll)", len(o.rows))
		result += mutedStyle.Render(countStr)
	}
	result += "\n\n"

	if len(o.rows) == 0 {
		result += mutedStyle.Render("  No opportunities detected yet.\n")
		result += mutedStyle.Render("  Monitoring cross-venue spreads...\n")
		return result
	}

	if o.offset > 0 {
		result += scrollHint.Render(fmt.Sprintf("  ▲ %d above\n", o.offset))
	}

	end := o.offset + o.visibleMax
	if end > len(o.rows) {
		end = len(o.rows)
	}

	for i := o.offset; i < end; i++ {
		row := o.rows[i]

		// Line 1: icon [time] Asset | Direction | Size
		result += fmt.Sprintf("  %s [%s] %s | %s | size %s\n",
			profitStyle.Render("●"),
			row.Timestamp,
			row.Asset,
			row.Direction,
			row.Size.StringFixed(4),
		)

		// Line 2: gross/net spread, CEX/DEX prices
		result += fmt.Sprintf("    gross %s%% | net %s%% | cex %s | dex %s\n",
			row.GrossSpreadPct.StringFixed(4),
			profitStyle.Render(row.PredictedNetPnLPct.StringFixed(4)),
			row.CEXPrice.StringFixed(2),
			row.DEXPrice.StringFixed(2),
		)

		result += dimStyle.Render(fmt.Sprintf("    window %s\n", row.WindowID))

		if i < end-1 {
			result += dimStyle.Render("    ─────────────────────────────────\n")
		}
	}

	if end < len(o.rows) {
		result += scrollHint.Render(fmt.Sprintf("\n  ▼ %d more below\n", len(o.rows)-end))
	}

	return result
}
