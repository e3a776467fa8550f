package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a swap or order relative to the pool/book.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Quote is a transient, single-use price quotation for a bounded swap. A
// Quote must be consumed (or discarded) before ExpiresAt; it is never
// reused across calls.
type Quote struct {
	PoolID        string
	Side          Side
	SizeIn        decimal.Decimal
	SizeOut       decimal.Decimal
	ExecPrice     decimal.Decimal
	ImpactPct     decimal.Decimal
	FeePct        decimal.Decimal
	ExpiresAt     time.Time
	consumed      bool
}

// Expired reports whether now is at or past ExpiresAt.
func (q Quote) Expired(now time.Time) bool {
	return !now.Before(q.ExpiresAt)
}

// Consume marks the quote used. Returns false if it was already consumed
// or has expired - callers must treat that as "no quote available".
func (q *Quote) Consume(now time.Time) bool {
	if q.consumed || q.Expired(now) {
		return false
	}
	q.consumed = true
	return true
}
