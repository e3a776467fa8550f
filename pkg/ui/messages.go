// Package ui provides the Bubble Tea TUI for the arbitrage bot.
package ui

import (
	"time"

	executiondomain "github.com/bud42069/Arbeit-Trage/business/execution/domain"
	marketdatadomain "github.com/bud42069/Arbeit-Trage/business/marketdata/domain"
	riskapp "github.com/bud42069/Arbeit-Trage/business/risk/app"
	signaldomain "github.com/bud42069/Arbeit-Trage/business/signal/domain"
)

// Message types for TUI updates

// OpportunityMsg is sent when a cross-venue opportunity is detected by the
// signal engine.
type OpportunityMsg struct {
	Opportunity signaldomain.Opportunity
}

// TradeMsg is sent when the execution engine publishes a completed trade.
type TradeMsg struct {
	Trade executiondomain.Trade
}

// BookUpdateMsg is sent on every CEX book mutation.
type BookUpdateMsg struct {
	Book marketdatadomain.BookSnapshot
}

// PoolUpdateMsg is sent on every DEX pool poll.
type PoolUpdateMsg struct {
	Pool marketdatadomain.PoolSnapshot
}

// RiskMsg is sent whenever the risk service's status changes: pause,
// resume, or a periodic status refresh.
type RiskMsg struct {
	Status riskapp.Status
}

// ConnectionStatusMsg is sent on every status-monitor tick with one venue's
// current connection health, whether or not it changed.
type ConnectionStatusMsg struct {
	Name      string
	Connected bool
	Latency   time.Duration
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// WelcomeCompleteMsg signals the welcome screen is done (timeout or keypress).
type WelcomeCompleteMsg struct{}

// StartModulesMsg signals that modules should start loading.
type StartModulesMsg struct{}

// LogMsg is sent to display a log message in the UI.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}

// StartupMsg is sent during application startup to show progress.
type StartupMsg struct {
	Step    string // Current step name
	Status  string // "connecting", "connected", "failed"
	Message string // Optional message
}
