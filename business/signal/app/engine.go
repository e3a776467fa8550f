// Package app implements the signal bounded context: continuously
// re-evaluating the cross-venue spread predicate against the latest CEX
// book and DEX pool snapshots and emitting Opportunity events.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/shopspring/decimal"

	executiondomain "github.com/bud42069/Arbeit-Trage/business/execution/domain"
	marketdatadomain "github.com/bud42069/Arbeit-Trage/business/marketdata/domain"
	"github.com/bud42069/Arbeit-Trage/business/signal/domain"
	"github.com/bud42069/Arbeit-Trage/internal/events"
	"github.com/bud42069/Arbeit-Trage/internal/eventbus"
	"github.com/bud42069/Arbeit-Trage/internal/logger"
)

const (
	tracerName = "github.com/bud42069/Arbeit-Trage/business/signal/app"
	meterName  = "github.com/bud42069/Arbeit-Trage/business/signal/app"

	defaultOpportunitySize = 50 // base size in asset units; the execution engine caps it at MaxPositionSizeUSD / CEX price.
)

// CostModel is the fee/haircut inputs §4.5's predicate applies, sourced
// from config.SignalConfig.
type CostModel struct {
	CEXFeePct        decimal.Decimal
	DEXFeePct        decimal.Decimal
	HaircutPct       decimal.Decimal
	EmitThresholdPct decimal.Decimal
}

func (c CostModel) totalCosts() decimal.Decimal {
	return c.CEXFeePct.Add(c.DEXFeePct).Add(c.HaircutPct)
}

type engineMetrics struct {
	opportunitiesEmitted metric.Int64Counter
	evaluations          metric.Int64Counter
}

// Engine re-evaluates the cross-venue spread predicate on every market data
// update, grounded directly on original_source's SignalEngine/
// check_opportunities/_evaluate_opportunity.
type Engine struct {
	costModel CostModel
	symbolMap map[string]string // venue symbol -> canonical asset label

	windows *WindowManager
	bus     *eventbus.Bus
	log     logger.LoggerInterface
	tracer  trace.Tracer
	metrics *engineMetrics

	mu    sync.Mutex
	books map[string]marketdatadomain.BookSnapshot // canonical label -> latest CEX book
	pools map[string]marketdatadomain.PoolSnapshot  // canonical label -> latest DEX pool
}

// Config configures the signal engine's predicate and window behavior.
type Config struct {
	CostModel   CostModel
	SymbolMap   map[string]string
	WindowGrace time.Duration
}

// New builds an Engine and subscribes it to cex.bookUpdate / dex.poolUpdate.
func New(cfg Config, bus *eventbus.Bus, log logger.LoggerInterface) (*Engine, error) {
	e := &Engine{
		costModel: cfg.CostModel,
		symbolMap: cfg.SymbolMap,
		windows:   NewWindowManager(cfg.WindowGrace),
		bus:       bus,
		log:       log,
		tracer:    otel.Tracer(tracerName),
		books:     make(map[string]marketdatadomain.BookSnapshot),
		pools:     make(map[string]marketdatadomain.PoolSnapshot),
	}
	if err := e.initMetrics(); err != nil {
		return nil, err
	}
	eventbus.Subscribe(bus, events.CEXBookUpdate, e.handleCEXUpdate)
	eventbus.Subscribe(bus, events.DEXPoolUpdate, e.handleDEXUpdate)
	eventbus.Subscribe(bus, events.TradeCompleted, e.recordTradeCompleted)
	return e, nil
}

func (e *Engine) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	e.metrics = &engineMetrics{}
	if e.metrics.opportunitiesEmitted, err = meter.Int64Counter(
		"signal_opportunities_emitted_total",
		metric.WithDescription("Total opportunities emitted"),
	); err != nil {
		return err
	}
	if e.metrics.evaluations, err = meter.Int64Counter(
		"signal_evaluations_total",
		metric.WithDescription("Total predicate evaluations"),
	); err != nil {
		return err
	}
	return nil
}

func (e *Engine) canonicalLabel(venueSymbol string) (string, bool) {
	label, ok := e.symbolMap[venueSymbol]
	return label, ok
}

func (e *Engine) handleCEXUpdate(ctx context.Context, book marketdatadomain.BookSnapshot) error {
	label, ok := e.canonicalLabel(book.Symbol)
	if !ok {
		return nil
	}
	e.mu.Lock()
	e.books[label] = book
	e.mu.Unlock()
	e.checkOpportunities(ctx, label)
	return nil
}

func (e *Engine) handleDEXUpdate(ctx context.Context, pool marketdatadomain.PoolSnapshot) error {
	e.mu.Lock()
	e.pools[pool.PoolID] = pool
	e.mu.Unlock()
	e.checkOpportunities(ctx, pool.PoolID)
	return nil
}

// checkOpportunities evaluates both directions for asset against the
// latest stored CEX book and DEX pool, per §4.5's predicate.
func (e *Engine) checkOpportunities(ctx context.Context, asset string) {
	e.mu.Lock()
	book, hasBook := e.books[asset]
	pool, hasPool := e.pools[asset]
	e.mu.Unlock()

	if !hasBook || !hasPool {
		return
	}
	if !book.Valid() {
		return
	}

	cexBid, hasBid := book.BestBid()
	cexAsk, hasAsk := book.BestAsk()
	if !hasBid || !hasAsk {
		return
	}
	dexMid := pool.MidPrice

	e.metrics.evaluations.Add(ctx, 1, metric.WithAttributes(attribute.String("asset", asset)))

	// cex->dex: buy CEX ask, sell DEX.
	if dexMid.GreaterThan(cexAsk.Price) {
		grossSpreadPct := dexMid.Sub(cexAsk.Price).Div(cexAsk.Price).Mul(decimal.NewFromInt(100))
		e.evaluate(ctx, asset, domain.DirectionCEXToDEX, cexAsk.Price, dexMid, grossSpreadPct)
	}

	// dex->cex: buy DEX, sell CEX bid.
	if cexBid.Price.GreaterThan(dexMid) {
		grossSpreadPct := cexBid.Price.Sub(dexMid).Div(dexMid).Mul(decimal.NewFromInt(100))
		e.evaluate(ctx, asset, domain.DirectionDEXToCEX, cexBid.Price, dexMid, grossSpreadPct)
	}
}

func (e *Engine) evaluate(ctx context.Context, asset string, direction domain.Direction, cexPrice, dexPrice, grossSpreadPct decimal.Decimal) {
	predictedNetPnLPct := grossSpreadPct.Sub(e.costModel.totalCosts())
	if predictedNetPnLPct.LessThan(e.costModel.EmitThresholdPct) {
		return
	}

	window := e.windows.GetOrCreate(asset, time.Now())
	window.RecordOpportunity(direction, predictedNetPnLPct)

	opp := domain.Opportunity{
		ID:                 uuid.NewString(),
		Asset:              asset,
		Direction:          direction,
		CEXPrice:           cexPrice,
		DEXPrice:           dexPrice,
		GrossSpreadPct:     grossSpreadPct,
		PredictedNetPnLPct: predictedNetPnLPct,
		IntendedSize:       decimal.NewFromInt(defaultOpportunitySize),
		DetectionTS:        time.Now(),
		WindowID:           window.ID,
	}

	e.metrics.opportunitiesEmitted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("asset", asset),
		attribute.String("direction", string(direction)),
	))
	e.log.Info(ctx, "opportunity detected",
		"asset", asset, "direction", direction,
		"gross_spread_pct", grossSpreadPct.String(),
		"predicted_net_pnl_pct", predictedNetPnLPct.String(),
	)

	eventbus.Publish(ctx, e.bus, events.SignalOpportunity, opp)
}

// recordTradeCompleted folds a completed trade's stats back into its
// window - wired by the execution engine via trade.completed.
func (e *Engine) recordTradeCompleted(ctx context.Context, trade executiondomain.Trade) error {
	window := e.windows.GetOrCreate(trade.Asset, time.Now())
	window.RecordTrade()
	return nil
}
