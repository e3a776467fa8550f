// Package domain holds the risk context's core state type.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskState is the process-wide kill-switch and daily-accounting snapshot.
// There is exactly one instance per process, owned by app.RiskService and
// guarded by its mutex - this type itself carries no synchronization.
type RiskState struct {
	IsPaused         bool
	PauseReason      string
	DailyPnL         decimal.Decimal
	DailyTradeCount  int
	DailyPeriodAnchor time.Time
	ObserveOnly      bool
}
