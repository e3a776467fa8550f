package dex

import (
	"context"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/bud42069/Arbeit-Trage/business/marketdata/domain"
	"github.com/bud42069/Arbeit-Trage/internal/events"
	"github.com/bud42069/Arbeit-Trage/internal/eventbus"
	"github.com/bud42069/Arbeit-Trage/internal/logger"
)

// RefPriceFunc returns a live reference price to center the synthetic
// variance band on for poolID, typically the paired CEX symbol's mid
// price. The second return is false when no reference is available yet
// (e.g. the CEX connector hasn't received a book update).
type RefPriceFunc func(poolID string) (decimal.Decimal, bool)

// ObserveOnlyPoolSource wraps a Poller and, only when observe-only mode is
// active, synthesizes a pool snapshot around a live reference price when
// the real poll is stale or unavailable - so the rest of the pipeline
// (signal engine, TUI) has something to evaluate in a paper-trading
// deployment. Every synthetic snapshot is explicitly tagged
// DataSourceSynthetic; nothing downstream may treat it as tradeable. This
// is an opt-in decorator run alongside the real Poller, never an implicit
// fallback inside it.
type ObserveOnlyPoolSource struct {
	poller   *Poller
	poolIDs  []string
	refPrice RefPriceFunc
	variance decimal.Decimal // max +/- variance, e.g. 0.008 for 0.8%

	bus    *eventbus.Bus
	log    logger.LoggerInterface
	tracer trace.Tracer
	synth  metric.Int64Counter
}

// NewObserveOnlyPoolSource builds a decorator around poller that publishes
// a synthetic dex.poolUpdate for any poolID in poolIDs whose real poll is
// stale, centered on refPrice's live quote.
func NewObserveOnlyPoolSource(poller *Poller, poolIDs []string, refPrice RefPriceFunc, bus *eventbus.Bus, log logger.LoggerInterface) (*ObserveOnlyPoolSource, error) {
	o := &ObserveOnlyPoolSource{
		poller:   poller,
		poolIDs:  poolIDs,
		refPrice: refPrice,
		variance: decimal.NewFromFloat(0.008),
		bus:      bus,
		log:      log,
		tracer:   otel.Tracer(tracerName),
	}
	meter := otel.Meter(meterName)
	synth, err := meter.Int64Counter(
		"dex_pool_synthetic_snapshots_total",
		metric.WithDescription("Total observe-only synthetic pool snapshots published"),
	)
	if err != nil {
		return nil, err
	}
	o.synth = synth
	return o, nil
}

// Run publishes a synthetic dex.poolUpdate for every stale-or-unknown pool
// in poolIDs on the same cadence as the real Poller, until ctx is
// cancelled. Pools the real Poller is decoding successfully are left
// alone - this never overwrites a live onchain snapshot.
func (o *ObserveOnlyPoolSource) Run(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, poolID := range o.poolIDs {
				o.publishIfSynthetic(ctx, poolID)
			}
		}
	}
}

func (o *ObserveOnlyPoolSource) publishIfSynthetic(ctx context.Context, poolID string) {
	ctx, span := o.tracer.Start(ctx, "dex.observe_only_pool", trace.WithAttributes(
		attribute.String("pool_id", poolID),
	))
	defer span.End()

	snap, ok := o.Latest(poolID)
	if !ok || snap.DataSource != domain.DataSourceSynthetic {
		return
	}

	o.synth.Add(ctx, 1, metric.WithAttributes(attribute.String("pool_id", poolID)))
	o.log.Debug(ctx, "publishing synthetic pool snapshot", "pool_id", poolID, "mid_price", snap.MidPrice.String())
	eventbus.Publish(ctx, o.bus, events.DEXPoolUpdate, snap)
}

// Latest returns the real on-chain snapshot when fresh, otherwise a
// synthetic one tagged DataSourceSynthetic - never silently indistinguishable
// from a live decode.
func (o *ObserveOnlyPoolSource) Latest(poolID string) (domain.PoolSnapshot, bool) {
	snap, ok := o.poller.Latest(poolID)
	if ok && !snap.Stale {
		return snap, true
	}

	ref, known := o.refPrice(poolID)
	if !known {
		return domain.PoolSnapshot{}, false
	}

	drift := decimal.NewFromFloat(rand.Float64()*2 - 1).Mul(o.variance)
	mid := ref.Mul(decimal.NewFromInt(1).Add(drift))

	return domain.PoolSnapshot{
		PoolID:     poolID,
		Timestamp:  time.Now(),
		MidPrice:   mid,
		DataSource: domain.DataSourceSynthetic,
	}, true
}
