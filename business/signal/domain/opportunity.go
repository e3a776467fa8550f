package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Opportunity is a detected, potentially profitable cross-venue spread for
// one canonical asset label, emitted into its asset's currently open
// Window. It is a value-semantics bus message: once published, nothing
// mutates it further.
type Opportunity struct {
	ID                  string
	Asset               string
	Direction           Direction
	CEXPrice            decimal.Decimal
	DEXPrice            decimal.Decimal
	GrossSpreadPct      decimal.Decimal
	PredictedNetPnLPct  decimal.Decimal
	IntendedSize        decimal.Decimal
	DetectionTS         time.Time
	WindowID            string
}
