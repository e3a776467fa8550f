package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Window groups the opportunities and trades for one asset that occurred
// close together in time. At most one window is open per asset at any
// moment; it closes after the asset has been idle for twice its configured
// grace period and a fresh window opens on the next signal.
type Window struct {
	ID               string
	Asset            string
	StartTS          time.Time
	EndTS            *time.Time // nil while open
	Signals          int
	Trades           int
	DominantDirection Direction
	MaxNetPnLPct     decimal.Decimal
	MeanNetPnLPct    decimal.Decimal

	sumNetPnLPct decimal.Decimal
	cexToDex     int
	dexToCex     int
}

// IsOpen reports whether the window has not yet been closed.
func (w *Window) IsOpen() bool {
	return w.EndTS == nil
}

// RecordOpportunity folds a newly emitted opportunity's stats into the
// window: signal count, dominant direction (majority vote so far) and the
// running max/mean of predicted net PnL percentage.
func (w *Window) RecordOpportunity(direction Direction, netPnLPct decimal.Decimal) {
	w.Signals++
	w.sumNetPnLPct = w.sumNetPnLPct.Add(netPnLPct)
	w.MeanNetPnLPct = w.sumNetPnLPct.Div(decimal.NewFromInt(int64(w.Signals)))
	if netPnLPct.GreaterThan(w.MaxNetPnLPct) {
		w.MaxNetPnLPct = netPnLPct
	}

	switch direction {
	case DirectionCEXToDEX:
		w.cexToDex++
	case DirectionDEXToCEX:
		w.dexToCex++
	}
	if w.cexToDex >= w.dexToCex {
		w.DominantDirection = DirectionCEXToDEX
	} else {
		w.DominantDirection = DirectionDEXToCEX
	}
}

// RecordTrade increments the window's completed-trade counter.
func (w *Window) RecordTrade() {
	w.Trades++
}

// Close marks the window closed at ts. A window must not be closed twice.
func (w *Window) Close(ts time.Time) {
	if w.EndTS != nil {
		return
	}
	w.EndTS = &ts
}
