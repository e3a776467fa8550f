package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bud42069/Arbeit-Trage/internal/asset"
)

// DataSource tags where a PoolSnapshot's numbers came from.
type DataSource string

const (
	// DataSourceOnChain is set on every snapshot built from a real decode.
	DataSourceOnChain DataSource = "onchain"
	// DataSourceSynthetic is set only by the observe-only synthetic source;
	// it must never appear on a snapshot used to gate a live trade.
	DataSourceSynthetic DataSource = "synthetic"
)

// PoolSnapshot is the canonical state of one DEX pool, as last decoded (or
// synthesized, in observe-only mode) by the DEX connector.
type PoolSnapshot struct {
	Program    string
	PoolID     string
	Timestamp  time.Time
	Reserves   map[string]asset.Amount // token label -> native integer units
	MidPrice   decimal.Decimal
	FeeBps     int
	DataSource DataSource
	Stale      bool
}

// IsStale reports whether the snapshot should be treated as unusable: it
// was explicitly marked stale, or it is older than maxAge.
func (p PoolSnapshot) IsStale(maxAge time.Duration) bool {
	return p.Stale || time.Since(p.Timestamp) > maxAge
}
