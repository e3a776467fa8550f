// Package domain contains the core domain types for the execution context.
package domain

import (
	"time"

	signaldomain "github.com/bud42069/Arbeit-Trage/business/signal/domain"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a Trade.
type Status string

const (
	StatusPending         Status = "pending"
	StatusFilled          Status = "filled"
	StatusPartiallyFilled Status = "partially_filled"
	StatusCancelled       Status = "cancelled"
	StatusFailed          Status = "failed"
)

// Trade is the realized outcome of acting on an Opportunity: both legs'
// realized prices, total fees, realized PnL, and latency. Published exactly
// once per opportunity acted upon, regardless of outcome.
type Trade struct {
	TradeID       string
	OpportunityID string
	Asset         string
	Direction     signaldomain.Direction
	Size          decimal.Decimal
	CEXPrice      decimal.Decimal
	DEXPrice      decimal.Decimal
	FeesTotal     decimal.Decimal
	PnLAbs        decimal.Decimal
	PnLPct        decimal.Decimal
	LatencyMs     int64
	Status        Status
	CEXOrderID    string
	DEXTxSig      string
	CompletedTS   time.Time
	WindowID      string
}
