// Package app implements the execution bounded context: turning an
// Opportunity into a sequential dual-leg trade and publishing its realized
// outcome, grounded on original_source's ExecutionEngine.
package app

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/shopspring/decimal"

	executiondomain "github.com/bud42069/Arbeit-Trage/business/execution/domain"
	riskapp "github.com/bud42069/Arbeit-Trage/business/risk/app"
	signaldomain "github.com/bud42069/Arbeit-Trage/business/signal/domain"
	"github.com/bud42069/Arbeit-Trage/internal/events"
	"github.com/bud42069/Arbeit-Trage/internal/eventbus"
	"github.com/bud42069/Arbeit-Trage/internal/logger"
)

const (
	tracerName = "github.com/bud42069/Arbeit-Trage/business/execution/app"
	meterName  = "github.com/bud42069/Arbeit-Trage/business/execution/app"

	// An opportunity older than this at the gate is dropped, never executed.
	opportunityTTL = 30 * time.Second

	// Default cap on trades executing at once, per spec's concurrency model.
	defaultMaxInflight = 4

	priorityFeePct = 0.05 // percent, Solana-style priority/network fee leg
)

// CEXLeg places a signed IOC order and reports its fill.
type CEXLeg interface {
	PlaceOrder(ctx context.Context, asset string, buy bool, size, price decimal.Decimal) (orderID string, err error)
}

// DEXLeg submits a bounded swap and reports its transaction signature.
type DEXLeg interface {
	ExecuteSwap(ctx context.Context, asset string, buy bool, sizeIn, minSizeOut decimal.Decimal) (txSig string, err error)
}

// Config holds the execution engine's fee model and limits. Whether a
// trade is simulated or sent live is read from the risk service at
// execute-time (RiskService.ObserveOnly), not captured here, so a runtime
// toggle takes effect immediately.
type Config struct {
	CEXFeePct          decimal.Decimal
	DEXFeePct          decimal.Decimal
	MaxPositionSizeUSD decimal.Decimal
	MaxInflight        int
}

type engineMetrics struct {
	tradesCompleted metric.Int64Counter
	tradesFailed    metric.Int64Counter
	staleDropped    metric.Int64Counter
}

// Engine subscribes to signal.opportunity and executes a sequential
// dual-leg trade for every opportunity that survives the risk gate.
type Engine struct {
	cfg  Config
	cex  CEXLeg
	dex  DEXLeg
	risk *riskapp.RiskService
	bus  *eventbus.Bus
	log  logger.LoggerInterface

	tracer  trace.Tracer
	metrics *engineMetrics
	inflight chan struct{}
}

// New builds an Engine and subscribes it to signal.opportunity.
func New(cfg Config, cex CEXLeg, dex DEXLeg, risk *riskapp.RiskService, bus *eventbus.Bus, log logger.LoggerInterface) (*Engine, error) {
	if cfg.MaxInflight <= 0 {
		cfg.MaxInflight = defaultMaxInflight
	}
	e := &Engine{
		cfg:      cfg,
		cex:      cex,
		dex:      dex,
		risk:     risk,
		bus:      bus,
		log:      log,
		tracer:   otel.Tracer(tracerName),
		inflight: make(chan struct{}, cfg.MaxInflight),
	}
	if err := e.initMetrics(); err != nil {
		return nil, err
	}
	eventbus.Subscribe(bus, events.SignalOpportunity, e.handleOpportunity)
	return e, nil
}

func (e *Engine) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	e.metrics = &engineMetrics{}
	if e.metrics.tradesCompleted, err = meter.Int64Counter(
		"execution_trades_completed_total",
		metric.WithDescription("Total trades published as completed"),
	); err != nil {
		return err
	}
	if e.metrics.tradesFailed, err = meter.Int64Counter(
		"execution_trades_failed_total",
		metric.WithDescription("Total trades that failed both legs"),
	); err != nil {
		return err
	}
	if e.metrics.staleDropped, err = meter.Int64Counter(
		"execution_stale_opportunities_dropped_total",
		metric.WithDescription("Total opportunities dropped for staleness, risk pause or the inflight cap"),
	); err != nil {
		return err
	}
	return nil
}

// handleOpportunity implements the gate/plan/execute/account/publish
// pipeline. It spawns one goroutine per opportunity, bounded by e.inflight,
// so the engine never blocks the event bus's publishing goroutine for the
// full trade duration.
func (e *Engine) handleOpportunity(ctx context.Context, opp signaldomain.Opportunity) error {
	select {
	case e.inflight <- struct{}{}:
	default:
		// At the concurrency cap: drop rather than block the bus indefinitely.
		e.metrics.staleDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "inflight_cap")))
		e.log.Warn(ctx, "opportunity dropped: inflight cap reached", "opportunity_id", opp.ID)
		return nil
	}
	go func() {
		defer func() { <-e.inflight }()
		e.execute(context.Background(), opp)
	}()
	return nil
}

// execute runs the full gate/plan/execute/account/publish pipeline for one
// opportunity.
func (e *Engine) execute(ctx context.Context, opp signaldomain.Opportunity) {
	ctx, span := e.tracer.Start(ctx, "execution.execute",
		trace.WithAttributes(
			attribute.String("opportunity_id", opp.ID),
			attribute.String("asset", opp.Asset),
		),
	)
	defer span.End()

	// 1. Gate.
	if e.risk.IsPaused() {
		e.drop(ctx, opp, "risk_paused")
		return
	}
	if time.Since(opp.DetectionTS) > opportunityTTL {
		e.drop(ctx, opp, "stale_opportunity")
		return
	}

	// 2. Plan.
	size := opp.IntendedSize
	maxSizeByCapital := e.cfg.MaxPositionSizeUSD.Div(opp.CEXPrice)
	if maxSizeByCapital.LessThan(size) {
		size = maxSizeByCapital
	}

	trade := executiondomain.Trade{
		TradeID:       uuid.NewString(),
		OpportunityID: opp.ID,
		Asset:         opp.Asset,
		Direction:     opp.Direction,
		Size:          size,
		CEXPrice:      opp.CEXPrice,
		DEXPrice:      opp.DEXPrice,
		Status:        executiondomain.StatusPending,
		WindowID:      opp.WindowID,
	}

	start := time.Now()

	// 3. Execute. Read observe-only live off the risk service rather than
	// the config value captured at construction, so a runtime
	// SetObserveOnly toggle (the gateway's set_observe_only) takes effect
	// on the next opportunity instead of requiring a restart.
	if e.risk.ObserveOnly() {
		e.simulateDualLeg(ctx, &trade, opp)
	} else {
		e.executeDualLeg(ctx, &trade, opp, size)
	}

	trade.LatencyMs = time.Since(start).Milliseconds()

	// 4. Account.
	e.accountTrade(&trade, opp, size)
	trade.CompletedTS = time.Now()

	// 5. Publish.
	if trade.Status == executiondomain.StatusFailed {
		e.metrics.tradesFailed.Add(ctx, 1)
	} else {
		e.metrics.tradesCompleted.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(trade.Status))))
	}
	e.log.Info(ctx, "trade completed",
		"trade_id", trade.TradeID, "status", trade.Status,
		"pnl_pct", trade.PnLPct.String(), "latency_ms", trade.LatencyMs,
	)
	eventbus.Publish(ctx, e.bus, events.TradeCompleted, trade)
}

func (e *Engine) drop(ctx context.Context, opp signaldomain.Opportunity, reason string) {
	e.metrics.staleDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	e.log.Info(ctx, "opportunity dropped", "opportunity_id", opp.ID, "reason", reason)
}

// simulateDualLeg synthesizes both legs' fills with randomized slippage and
// latency, per §4.6's observe-only path - no external calls.
func (e *Engine) simulateDualLeg(ctx context.Context, trade *executiondomain.Trade, opp signaldomain.Opportunity) {
	latency := 200 + rand.Intn(300)
	time.Sleep(time.Duration(latency) * time.Millisecond)

	slippagePct := decimal.NewFromFloat(0.05 + rand.Float64()*0.10).Div(decimal.NewFromInt(100))

	var actualCEXPrice, actualDEXPrice decimal.Decimal
	if opp.Direction == signaldomain.DirectionCEXToDEX {
		actualCEXPrice = opp.CEXPrice.Mul(decimal.NewFromInt(1).Add(slippagePct))
		actualDEXPrice = opp.DEXPrice.Mul(decimal.NewFromInt(1).Sub(slippagePct))
	} else {
		actualDEXPrice = opp.DEXPrice.Mul(decimal.NewFromInt(1).Add(slippagePct))
		actualCEXPrice = opp.CEXPrice.Mul(decimal.NewFromInt(1).Sub(slippagePct))
	}

	trade.CEXPrice = actualCEXPrice
	trade.DEXPrice = actualDEXPrice
	trade.CEXOrderID = "sim_cex_" + trade.TradeID[:8]
	trade.DEXTxSig = "sim_dex_" + trade.TradeID[:8]
	trade.Status = executiondomain.StatusFilled
}

// executeDualLeg places both legs sequentially against the live venues.
// Partial completion (one leg ok, one failed) yields partially_filled; the
// trade is still published so the imbalance is visible to operators. There
// is no automatic hedge/unwind.
func (e *Engine) executeDualLeg(ctx context.Context, trade *executiondomain.Trade, opp signaldomain.Opportunity, size decimal.Decimal) {
	buyCEX := opp.Direction == signaldomain.DirectionCEXToDEX

	var cexErr, dexErr error
	if buyCEX {
		cexPriceCushion := opp.CEXPrice.Mul(decimal.NewFromFloat(1.001))
		trade.CEXOrderID, cexErr = e.cex.PlaceOrder(ctx, opp.Asset, true, size, cexPriceCushion)

		minSizeOut := size.Mul(opp.DEXPrice).Mul(decimal.NewFromFloat(0.99))
		trade.DEXTxSig, dexErr = e.dex.ExecuteSwap(ctx, opp.Asset, false, size, minSizeOut)
	} else {
		sizeInUSD := size.Mul(opp.DEXPrice)
		minSizeOut := size.Mul(decimal.NewFromFloat(0.99))
		trade.DEXTxSig, dexErr = e.dex.ExecuteSwap(ctx, opp.Asset, true, sizeInUSD, minSizeOut)

		cexPriceCushion := opp.CEXPrice.Mul(decimal.NewFromFloat(0.999))
		trade.CEXOrderID, cexErr = e.cex.PlaceOrder(ctx, opp.Asset, false, size, cexPriceCushion)
	}

	switch {
	case cexErr == nil && dexErr == nil:
		trade.Status = executiondomain.StatusFilled
	case cexErr != nil && dexErr != nil:
		trade.Status = executiondomain.StatusFailed
		e.log.Warn(ctx, "both legs failed", "trade_id", trade.TradeID, "cex_error", cexErr, "dex_error", dexErr)
	default:
		trade.Status = executiondomain.StatusPartiallyFilled
		e.log.Warn(ctx, "one leg failed", "trade_id", trade.TradeID, "cex_error", cexErr, "dex_error", dexErr)
	}
}

// accountTrade computes fees_total/pnl_abs/pnl_pct per §4.6's formulas.
func (e *Engine) accountTrade(trade *executiondomain.Trade, opp signaldomain.Opportunity, size decimal.Decimal) {
	meanPrice := trade.CEXPrice.Add(trade.DEXPrice).Div(decimal.NewFromInt(2))
	feeRatePct := e.cfg.CEXFeePct.Add(e.cfg.DEXFeePct).Add(decimal.NewFromFloat(priorityFeePct))

	trade.FeesTotal = size.Mul(meanPrice).Mul(feeRatePct).Div(decimal.NewFromInt(100))

	spreadAbs := trade.CEXPrice.Sub(trade.DEXPrice).Abs().Mul(size)
	trade.PnLAbs = spreadAbs.Sub(trade.FeesTotal)

	denominator := size.Mul(trade.CEXPrice)
	if denominator.IsZero() {
		trade.PnLPct = decimal.Zero
		return
	}
	trade.PnLPct = trade.PnLAbs.Div(denominator).Mul(decimal.NewFromInt(100))
}
