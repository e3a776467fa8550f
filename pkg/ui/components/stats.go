// Package components provides reusable TUI components.
package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Stats holds run-level counters for display.
type Stats struct {
	Opportunities int64
	Trades        int64
	Filled        int64
	AvgLatencyMs  float64
	Errors        int64
}

// StatsComponent renders run-level statistics.
type StatsComponent struct {
	stats Stats
}

// NewStatsComponent creates a new stats component.
func NewStatsComponent() *StatsComponent {
	return &StatsComponent{}
}

// Update updates the statistics.
func (s *StatsComponent) Update(stats Stats) {
	s.stats = stats
}

// View renders the stats component.
func (s *StatsComponent) View() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	fillRate := float64(0)
	if s.stats.Trades > 0 {
		fillRate = float64(s.stats.Filled) / float64(s.stats.Trades) * 100
	}

	errorsDisplay := valueStyle.Render(fmt.Sprintf("%d", s.stats.Errors))
	if s.stats.Errors > 0 {
		errorsDisplay = errorStyle.Render(fmt.Sprintf("%d", s.stats.Errors))
	}

	return style.Render("STATS") + "\n" +
		fmt.Sprintf("Opportunities: %s  │  Trades: %s  │  Filled: %s (%.1f%%)\n",
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Opportunities)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Trades)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Filled)),
			fillRate,
		) +
		fmt.Sprintf("Avg latency: %s  │  Errors: %s",
			valueStyle.Render(fmt.Sprintf("%.0fms", s.stats.AvgLatencyMs)),
			errorsDisplay,
		)
}
