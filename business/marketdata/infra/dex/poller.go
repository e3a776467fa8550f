package dex

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/bud42069/Arbeit-Trage/business/marketdata/domain"
	"github.com/bud42069/Arbeit-Trage/internal/asset"
	"github.com/bud42069/Arbeit-Trage/internal/events"
	"github.com/bud42069/Arbeit-Trage/internal/eventbus"
	"github.com/bud42069/Arbeit-Trage/internal/logger"
	"github.com/bud42069/Arbeit-Trage/internal/ratelimit"
)

const (
	tracerName = "github.com/bud42069/Arbeit-Trage/business/marketdata/infra/dex"
	meterName  = "github.com/bud42069/Arbeit-Trage/business/marketdata/infra/dex"

	pollInterval = 2 * time.Second
	storageSlots = 3 // enough consecutive 32-byte words to cover either layout's offsets
)

// Pool is one polled pool's static configuration.
type Pool struct {
	PoolID    string // asset label this pool quotes, e.g. "SOL-USD"
	Address   common.Address
	Layout    Layout
	LabelA    string
	LabelB    string
}

type pollerMetrics struct {
	polls        metric.Int64Counter
	decodeErrors metric.Int64Counter
}

// Poller periodically fetches each configured pool's raw storage bytes and
// decodes them per its Layout, publishing dex.poolUpdate snapshots. It
// never substitutes synthetic data itself - see ObserveOnlyPoolSource for
// the explicit, opt-in decorator that does.
type Poller struct {
	client   *ethclient.Client
	pools    []Pool
	limiter  *ratelimit.Limiter
	bus      *eventbus.Bus
	log      logger.LoggerInterface
	tracer   trace.Tracer
	metrics  *pollerMetrics

	mu     sync.RWMutex
	latest map[string]domain.PoolSnapshot
}

// NewPoller validates every pool's Layout against its checked-in test
// vector before returning - per the connector contract, a layout that
// cannot reproduce its own reference vector refuses to start rather than
// failing unpredictably at query time.
func NewPoller(client *ethclient.Client, pools []Pool, vectors map[string]Vector, bus *eventbus.Bus, log logger.LoggerInterface) (*Poller, error) {
	for _, p := range pools {
		vec, ok := vectors[p.Layout.Program]
		if !ok {
			return nil, fmt.Errorf("no validation vector registered for program %q (pool %s)", p.Layout.Program, p.PoolID)
		}
		if err := p.Layout.Validate(vec); err != nil {
			return nil, fmt.Errorf("pool %s layout validation failed: %w", p.PoolID, err)
		}
	}

	poller := &Poller{
		client:  client,
		pools:   pools,
		limiter: ratelimit.NewWithBurst(float64(len(pools))/pollInterval.Seconds()+1, len(pools)+1),
		bus:     bus,
		log:     log,
		tracer:  otel.Tracer(tracerName),
		latest:  make(map[string]domain.PoolSnapshot),
	}
	if err := poller.initMetrics(); err != nil {
		return nil, fmt.Errorf("init dex poller metrics: %w", err)
	}
	return poller, nil
}

func (p *Poller) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	p.metrics = &pollerMetrics{}
	if p.metrics.polls, err = meter.Int64Counter(
		"dex_pool_polls_total",
		metric.WithDescription("Total pool state polls attempted"),
	); err != nil {
		return err
	}
	if p.metrics.decodeErrors, err = meter.Int64Counter(
		"dex_pool_decode_errors_total",
		metric.WithDescription("Total pool decode failures"),
	); err != nil {
		return err
	}
	return nil
}

// Run polls every configured pool every ~2s until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, pool := range p.pools {
				p.pollOne(ctx, pool)
			}
		}
	}
}

func (p *Poller) pollOne(ctx context.Context, pool Pool) {
	if err := p.limiter.Wait(ctx); err != nil {
		return
	}

	ctx, span := p.tracer.Start(ctx, "dex.poll_pool", trace.WithAttributes(
		attribute.String("pool_id", pool.PoolID),
		attribute.String("program", pool.Layout.Program),
	))
	defer span.End()

	p.metrics.polls.Add(ctx, 1, metric.WithAttributes(attribute.String("pool_id", pool.PoolID)))

	data, err := p.client.StorageAt(ctx, pool.Address, common.Hash{}, nil)
	if err != nil || len(data) == 0 {
		p.markStale(ctx, pool, err)
		return
	}
	// Fetch additional words to cover the configured offsets; a real EVM
	// storage layout doesn't guarantee contiguity, but struct packing in a
	// single mapping slot is the common case this connector targets.
	for i := 1; i < storageSlots; i++ {
		word, werr := p.client.StorageAt(ctx, pool.Address, common.BigToHash(big.NewInt(int64(i))), nil)
		if werr != nil {
			break
		}
		data = append(data, word...)
	}

	snapshot, err := p.decode(pool, data)
	if err != nil {
		p.metrics.decodeErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("pool_id", pool.PoolID)))
		p.markStale(ctx, pool, err)
		return
	}

	p.mu.Lock()
	p.latest[pool.PoolID] = snapshot
	p.mu.Unlock()

	eventbus.Publish(ctx, p.bus, events.DEXPoolUpdate, snapshot)
}

func (p *Poller) decode(pool Pool, data []byte) (domain.PoolSnapshot, error) {
	switch pool.Layout.Kind {
	case KindSqrtPrice:
		mid, err := pool.Layout.DecodeSqrtPrice(data)
		if err != nil {
			return domain.PoolSnapshot{}, err
		}
		return domain.PoolSnapshot{
			Program:    pool.Layout.Program,
			PoolID:     pool.PoolID,
			Timestamp:  time.Now(),
			MidPrice:   mid,
			FeeBps:     pool.Layout.FeeBps,
			DataSource: domain.DataSourceOnChain,
		}, nil

	case KindConstantProduct:
		reserveA, reserveB, err := pool.Layout.DecodeReserves(data)
		if err != nil {
			return domain.PoolSnapshot{}, err
		}
		assetA := asset.NewAsset(asset.AssetID(pool.LabelA), pool.LabelA, uint8(pool.Layout.DecimalsA))
		assetB := asset.NewAsset(asset.AssetID(pool.LabelB), pool.LabelB, uint8(pool.Layout.DecimalsB))
		amtA, errA := asset.ParseDecimal(assetA, reserveA)
		amtB, errB := asset.ParseDecimal(assetB, reserveB)
		if errA != nil || errB != nil {
			return domain.PoolSnapshot{}, fmt.Errorf("parse reserves: %v / %v", errA, errB)
		}
		return domain.PoolSnapshot{
			Program:   pool.Layout.Program,
			PoolID:    pool.PoolID,
			Timestamp: time.Now(),
			Reserves: map[string]asset.Amount{
				pool.LabelA: amtA,
				pool.LabelB: amtB,
			},
			MidPrice:   reserveB.Div(reserveA),
			FeeBps:     pool.Layout.FeeBps,
			DataSource: domain.DataSourceOnChain,
		}, nil

	default:
		return domain.PoolSnapshot{}, fmt.Errorf("unknown layout kind %q", pool.Layout.Kind)
	}
}

func (p *Poller) markStale(ctx context.Context, pool Pool, cause error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	existing := p.latest[pool.PoolID]
	existing.PoolID = pool.PoolID
	existing.Stale = true
	p.latest[pool.PoolID] = existing
	if cause != nil {
		p.log.Warn(ctx, "dex pool poll failed", "pool_id", pool.PoolID, "error", cause)
	}
}

// Latest returns the last known snapshot for poolID.
func (p *Poller) Latest(poolID string) (domain.PoolSnapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	snap, ok := p.latest[poolID]
	return snap, ok
}
