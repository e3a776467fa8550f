// Package cex implements a venue-parameterized CEX connector: a
// reconnecting L2-book WebSocket client plus a signed IOC order path,
// generalizing the teacher's Binance provider and grounded additionally on
// the Gemini connector's auth scheme and L2 change-feed shape.
package cex

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/bud42069/Arbeit-Trage/business/marketdata/domain"
	"github.com/bud42069/Arbeit-Trage/internal/apperror"
	"github.com/bud42069/Arbeit-Trage/internal/events"
	"github.com/bud42069/Arbeit-Trage/internal/eventbus"
	"github.com/bud42069/Arbeit-Trage/internal/logger"
	"github.com/bud42069/Arbeit-Trage/internal/ratelimit"
	"github.com/bud42069/Arbeit-Trage/internal/wsconn"
	"github.com/shopspring/decimal"
)

const (
	tracerName = "github.com/bud42069/Arbeit-Trage/business/marketdata/infra/cex"
	meterName  = "github.com/bud42069/Arbeit-Trage/business/marketdata/infra/cex"

	// Spec's explicit reconnect policy: 5s, growing linearly, capped at 30s.
	reconnectInitial = 5 * time.Second
	reconnectStep    = 5 * time.Second
	reconnectMax     = 30 * time.Second

	// orderRateLimit bounds IOC order submissions per venue; most venue
	// REST order endpoints cap well under this, so it's a backstop against
	// a runaway execution engine rather than a venue-specific tuning knob.
	orderRateLimit = 10.0 // requests/second
	orderRateBurst = 5
)

// Config holds one venue's connector parameters.
type Config struct {
	Venue        string
	WSPublicURL  string
	BaseURL      string
	Symbols      []string
	StaleTimeout time.Duration
	Auth         AuthScheme
}

type connectorMetrics struct {
	mutations   metric.Int64Counter
	parseErrors metric.Int64Counter
	ordersSent  metric.Int64Counter
}

// bookState is one symbol's mutable order book plus its last-update clock.
type bookState struct {
	mu         sync.RWMutex
	bids, asks []domain.PriceLevel
	lastUpdate time.Time
}

// Connector is a venue-parameterized CEX connector.
type Connector struct {
	cfg    Config
	log    logger.LoggerInterface
	bus    *eventbus.Bus
	conn   *wsconn.Client
	tracer trace.Tracer

	books   map[string]*bookState
	booksMu sync.RWMutex

	orderLimiter *ratelimit.Limiter
	metrics      *connectorMetrics
}

// New builds a Connector. The WebSocket connection itself is established
// by Connect.
func New(cfg Config, bus *eventbus.Bus, log logger.LoggerInterface) (*Connector, error) {
	c := &Connector{
		cfg:          cfg,
		log:          log,
		bus:          bus,
		tracer:       otel.Tracer(tracerName),
		books:        make(map[string]*bookState),
		orderLimiter: ratelimit.NewWithBurst(orderRateLimit, orderRateBurst),
	}
	for _, sym := range cfg.Symbols {
		c.books[sym] = &bookState{}
	}
	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("init cex connector metrics: %w", err)
	}
	return c, nil
}

func (c *Connector) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	c.metrics = &connectorMetrics{}
	if c.metrics.mutations, err = meter.Int64Counter(
		"cex_book_mutations_total",
		metric.WithDescription("Total order book mutations applied"),
	); err != nil {
		return err
	}
	if c.metrics.parseErrors, err = meter.Int64Counter(
		"cex_parse_errors_total",
		metric.WithDescription("Total malformed market data messages dropped"),
	); err != nil {
		return err
	}
	if c.metrics.ordersSent, err = meter.Int64Counter(
		"cex_orders_sent_total",
		metric.WithDescription("Total IOC orders submitted"),
	); err != nil {
		return err
	}
	return nil
}

// rawUpdate is the venue-agnostic shape a raw WS frame decodes into: either
// a wholesale snapshot (IsSnapshot true - replaces the book) or an
// incremental set of (price, size) mutations per side.
type rawUpdate struct {
	Symbol     string
	IsSnapshot bool
	Bids       []domain.PriceLevel
	Asks       []domain.PriceLevel
}

// Connect dials the venue's public WS and begins maintaining order books.
func (c *Connector) Connect(ctx context.Context) error {
	wsCfg := wsconn.DefaultConfig(c.cfg.WSPublicURL, c.cfg.Venue)
	wsCfg.BackoffPolicy = wsconn.Linear{Initial: reconnectInitial, Step: reconnectStep, Max: reconnectMax}

	conn, err := wsconn.New(wsCfg)
	if err != nil {
		return apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithCause(err), apperror.WithContext("failed to create cex connector wsconn"))
	}
	conn.OnMessage(c.handleMessage)

	if err := conn.ConnectWithRetry(ctx); err != nil {
		return apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithCause(err), apperror.WithContext("failed to connect cex connector"))
	}
	c.conn = conn

	c.log.Info(ctx, "cex connector connected", "venue", c.cfg.Venue, "symbols", c.cfg.Symbols)
	return nil
}

// handleMessage decodes one raw frame and applies it to the owning
// symbol's book. Malformed frames are dropped and counted, never fatal.
func (c *Connector) handleMessage(ctx context.Context, data []byte) {
	update, ok := decodeL2Frame(data)
	if !ok {
		c.metrics.parseErrors.Add(ctx, 1)
		return
	}

	c.booksMu.RLock()
	state, known := c.books[update.Symbol]
	c.booksMu.RUnlock()
	if !known {
		return
	}

	state.mu.Lock()
	if update.IsSnapshot {
		state.bids = clampSorted(update.Bids, true)
		state.asks = clampSorted(update.Asks, false)
	} else {
		state.bids = domain.ApplyMutations(state.bids, update.Bids, true)
		state.asks = domain.ApplyMutations(state.asks, update.Asks, false)
	}
	state.lastUpdate = time.Now()
	bids, asks := append([]domain.PriceLevel(nil), state.bids...), append([]domain.PriceLevel(nil), state.asks...)
	state.mu.Unlock()

	c.metrics.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("symbol", update.Symbol)))

	snapshot := domain.BookSnapshot{
		Venue:     c.cfg.Venue,
		Symbol:    update.Symbol,
		Timestamp: time.Now(),
		Bids:      bids,
		Asks:      asks,
	}
	eventbus.Publish(ctx, c.bus, events.CEXBookUpdate, snapshot)
}

func clampSorted(levels []domain.PriceLevel, isBid bool) []domain.PriceLevel {
	return domain.ApplyMutations(nil, levels, isBid)
}

// BestBidAsk returns the best bid and ask levels currently known for
// symbol.
func (c *Connector) BestBidAsk(symbol string) (bid, ask domain.PriceLevel, ok bool) {
	c.booksMu.RLock()
	state, known := c.books[symbol]
	c.booksMu.RUnlock()
	if !known {
		return domain.PriceLevel{}, domain.PriceLevel{}, false
	}

	state.mu.RLock()
	defer state.mu.RUnlock()
	if len(state.bids) == 0 || len(state.asks) == 0 {
		return domain.PriceLevel{}, domain.PriceLevel{}, false
	}
	return state.bids[0], state.asks[0], true
}

// LastUpdateTS returns when symbol's book was last mutated.
func (c *Connector) LastUpdateTS(symbol string) (time.Time, bool) {
	c.booksMu.RLock()
	state, known := c.books[symbol]
	c.booksMu.RUnlock()
	if !known {
		return time.Time{}, false
	}
	state.mu.RLock()
	defer state.mu.RUnlock()
	return state.lastUpdate, true
}

// Close tears down the underlying WebSocket connection.
func (c *Connector) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// decodeL2Frame is intentionally permissive: both Binance's combined-stream
// envelope and Gemini's l2_updates change-list reduce to this one shape
// once unwrapped, so the connector's mutation logic never needs to know
// which venue it is talking to.
func decodeL2Frame(data []byte) (rawUpdate, bool) {
	var envelope struct {
		Symbol  string          `json:"symbol"`
		Type    string          `json:"type"`
		Changes [][3]string     `json:"changes"`
		Bids    [][2]string     `json:"bids"`
		Asks    [][2]string     `json:"asks"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return rawUpdate{}, false
	}
	if envelope.Symbol == "" {
		return rawUpdate{}, false
	}

	u := rawUpdate{Symbol: envelope.Symbol, IsSnapshot: envelope.Type == "snapshot"}

	if len(envelope.Bids) > 0 || len(envelope.Asks) > 0 {
		u.Bids = toLevels(envelope.Bids)
		u.Asks = toLevels(envelope.Asks)
		return u, true
	}

	for _, change := range envelope.Changes {
		side, priceStr, sizeStr := change[0], change[1], change[2]
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			continue
		}
		size, err := decimal.NewFromString(sizeStr)
		if err != nil {
			continue
		}
		level := domain.PriceLevel{Price: price, Size: size}
		if side == "buy" || side == "bid" {
			u.Bids = append(u.Bids, level)
		} else {
			u.Asks = append(u.Asks, level)
		}
	}
	return u, true
}

func toLevels(raw [][2]string) []domain.PriceLevel {
	levels := make([]domain.PriceLevel, 0, len(raw))
	for _, pair := range raw {
		price, err := decimal.NewFromString(pair[0])
		if err != nil {
			continue
		}
		size, err := decimal.NewFromString(pair[1])
		if err != nil {
			continue
		}
		levels = append(levels, domain.PriceLevel{Price: price, Size: size})
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Price.LessThan(levels[j].Price) })
	return levels
}
