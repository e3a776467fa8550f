// Package events defines the typed topics carried on the process-wide
// event bus, so every publisher and subscriber across business contexts
// agrees on payload shape without a central "god" module depending on all
// of them.
package events

import (
	executiondomain "github.com/bud42069/Arbeit-Trage/business/execution/domain"
	marketdatadomain "github.com/bud42069/Arbeit-Trage/business/marketdata/domain"
	riskdomain "github.com/bud42069/Arbeit-Trage/business/risk/domain"
	signaldomain "github.com/bud42069/Arbeit-Trage/business/signal/domain"
	"github.com/bud42069/Arbeit-Trage/internal/eventbus"
)

// CEXBookUpdate carries a fresh BookSnapshot after every successful
// mutation of a CEX connector's order book.
var CEXBookUpdate = eventbus.NewTopic[marketdatadomain.BookSnapshot]("cex.bookUpdate")

// DEXPoolUpdate carries a fresh PoolSnapshot after every poll cycle of a
// DEX connector's tracked pool.
var DEXPoolUpdate = eventbus.NewTopic[marketdatadomain.PoolSnapshot]("dex.poolUpdate")

// SignalOpportunity carries a detected cross-venue Opportunity.
var SignalOpportunity = eventbus.NewTopic[signaldomain.Opportunity]("signal.opportunity")

// TradeCompleted carries the realized outcome of acting (or not acting) on
// an Opportunity.
var TradeCompleted = eventbus.NewTopic[executiondomain.Trade]("trade.completed")

// RiskPaused carries the reason the kill-switch engaged.
var RiskPaused = eventbus.NewTopic[riskdomain.Notice]("risk.paused")

// RiskResumed carries the timestamp trading resumed.
var RiskResumed = eventbus.NewTopic[riskdomain.Notice]("risk.resumed")
