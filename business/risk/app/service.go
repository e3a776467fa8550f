// Package app implements the risk context's only service: the process-wide
// kill-switch and daily-loss tracker.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	executiondomain "github.com/bud42069/Arbeit-Trage/business/execution/domain"
	"github.com/bud42069/Arbeit-Trage/business/risk/domain"
	"github.com/bud42069/Arbeit-Trage/internal/cache"
	"github.com/bud42069/Arbeit-Trage/internal/events"
	"github.com/bud42069/Arbeit-Trage/internal/eventbus"
	"github.com/bud42069/Arbeit-Trage/internal/logger"
	"github.com/shopspring/decimal"
)

const (
	tracerName = "github.com/bud42069/Arbeit-Trage/business/risk/app"
	meterName  = "github.com/bud42069/Arbeit-Trage/business/risk/app"

	stalenessDebounce = 60 * time.Second

	// stalenessCacheSweep bounds how long a venue's debounce entry can
	// outlive its TTL before the background sweep reclaims it.
	stalenessCacheSweep = 30 * time.Second
)

// Status is a read-only snapshot of RiskState for external consumers.
type Status struct {
	IsPaused              bool
	PauseReason           string
	DailyPnL              float64
	DailyTradeCount       int
	DailyLossLimitUSD     float64
	DailyRemainingLossUSD float64
	ObserveOnly           bool
}

type riskMetrics struct {
	pauseTriggers   metric.Int64Counter
	resumes         metric.Int64Counter
	stalenessEvents metric.Int64Counter
}

// RiskService holds the single process-wide RiskState instance, guarded by
// a real mutex (the original's single-threaded "logical" mutex becomes a
// real one here since Go is actually multi-threaded).
type RiskService struct {
	mu    sync.Mutex
	state domain.RiskState

	dailyLossLimitUSD float64

	// lastStalenessCheck debounces repeat pause triggers per venue: an
	// entry set with stalenessDebounce ttl expires itself, so a venue that
	// comes back healthy and goes stale again later re-triggers cleanly.
	lastStalenessCheck *cache.Cache[string, time.Time]

	bus     *eventbus.Bus
	log     logger.LoggerInterface
	tracer  trace.Tracer
	metrics *riskMetrics
}

// Config holds the parameters the risk service needs at construction.
type Config struct {
	ObserveOnly       bool
	DailyLossLimitUSD float64
}

// New builds a RiskService and subscribes it to trade.completed.
func New(cfg Config, bus *eventbus.Bus, log logger.LoggerInterface) (*RiskService, error) {
	now := time.Now().UTC()
	s := &RiskService{
		state: domain.RiskState{
			DailyPeriodAnchor: utcDayStart(now),
			ObserveOnly:       cfg.ObserveOnly,
		},
		dailyLossLimitUSD:  cfg.DailyLossLimitUSD,
		lastStalenessCheck: cache.New[string, time.Time](stalenessCacheSweep),
		bus:                bus,
		log:                log,
		tracer:             otel.Tracer(tracerName),
	}

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init risk metrics: %w", err)
	}

	eventbus.Subscribe(bus, events.TradeCompleted, s.HandleTradeCompleted)

	return s, nil
}

func (s *RiskService) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &riskMetrics{}
	if s.metrics.pauseTriggers, err = meter.Int64Counter(
		"risk_pause_triggers_total",
		metric.WithDescription("Total times the kill-switch engaged"),
	); err != nil {
		return err
	}
	if s.metrics.resumes, err = meter.Int64Counter(
		"risk_resumes_total",
		metric.WithDescription("Total manual resumes"),
	); err != nil {
		return err
	}
	if s.metrics.stalenessEvents, err = meter.Int64Counter(
		"risk_staleness_events_total",
		metric.WithDescription("Total staleness detections, per venue"),
	); err != nil {
		return err
	}
	return nil
}

func utcDayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsPaused reports whether the kill-switch is currently engaged. Consulted
// by the execution engine's gate, the sole order/swap issuer, after signal
// detection but before any external order/swap is placed.
func (s *RiskService) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IsPaused
}

// TriggerPause engages the kill-switch. Idempotent: calling it again while
// already paused does not re-publish risk.paused or overwrite the reason.
func (s *RiskService) TriggerPause(ctx context.Context, reason string) {
	s.mu.Lock()
	alreadyPaused := s.state.IsPaused
	if !alreadyPaused {
		s.state.IsPaused = true
		s.state.PauseReason = reason
	}
	s.mu.Unlock()

	if alreadyPaused {
		return
	}

	s.log.Warn(ctx, "kill-switch triggered", "reason", reason)
	s.metrics.pauseTriggers.Add(ctx, 1)
	eventbus.Publish(ctx, s.bus, events.RiskPaused, domain.Notice{Reason: reason, TS: time.Now().UTC()})
}

// Resume manually clears the kill-switch. Never called automatically.
func (s *RiskService) Resume(ctx context.Context) {
	s.mu.Lock()
	s.state.IsPaused = false
	s.state.PauseReason = ""
	s.mu.Unlock()

	s.log.Info(ctx, "risk service resumed")
	s.metrics.resumes.Add(ctx, 1)
	eventbus.Publish(ctx, s.bus, events.RiskResumed, domain.Notice{TS: time.Now().UTC()})
}

// SetObserveOnly toggles synthetic-execution mode.
func (s *RiskService) SetObserveOnly(observeOnly bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ObserveOnly = observeOnly
}

// ObserveOnly reports whether execution should synthesize trades instead of
// calling out to venues.
func (s *RiskService) ObserveOnly() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ObserveOnly
}

// CheckStaleness pauses trading if a venue's last update is older than the
// staleness threshold. Debounced per venue: at most one pause trigger per
// 60s for the same venue, to avoid re-logging/re-publishing on every
// subsequent stale check.
func (s *RiskService) CheckStaleness(ctx context.Context, venue string, lastUpdate time.Time, threshold time.Duration) bool {
	age := time.Since(lastUpdate)
	if age <= threshold {
		return false
	}

	_, debounced := s.lastStalenessCheck.Get(ctx, venue)
	if !debounced {
		s.lastStalenessCheck.Set(ctx, venue, time.Now(), stalenessDebounce)
	}

	if debounced {
		return true
	}

	s.metrics.stalenessEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("venue", venue)))
	s.TriggerPause(ctx, fmt.Sprintf("venue %s data stale: %.1fs", venue, age.Seconds()))
	return true
}

// HandleTradeCompleted is the trade.completed subscriber: it rolls the
// daily aggregate over at UTC midnight, accumulates realized PnL and trade
// count, and triggers the kill-switch if the daily loss limit is breached.
func (s *RiskService) HandleTradeCompleted(ctx context.Context, trade executiondomain.Trade) error {
	now := time.Now().UTC()
	var breach bool
	var pnl float64

	s.mu.Lock()
	today := utcDayStart(now)
	if today.After(s.state.DailyPeriodAnchor) {
		s.state.DailyPnL = decimal.Zero
		s.state.DailyTradeCount = 0
		s.state.DailyPeriodAnchor = today
	}
	s.state.DailyPnL = s.state.DailyPnL.Add(trade.PnLAbs)
	s.state.DailyTradeCount++
	pnl, _ = s.state.DailyPnL.Float64()
	if pnl < -s.dailyLossLimitUSD {
		breach = true
	}
	s.mu.Unlock()

	if breach {
		s.TriggerPause(ctx, fmt.Sprintf("daily loss limit exceeded: %.2f USD", pnl))
	}
	return nil
}

// GetStatus returns a snapshot of the current risk state for UI/gateway
// consumers.
func (s *RiskService) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	dailyPnL, _ := s.state.DailyPnL.Float64()
	return Status{
		IsPaused:              s.state.IsPaused,
		PauseReason:           s.state.PauseReason,
		DailyPnL:              dailyPnL,
		DailyTradeCount:       s.state.DailyTradeCount,
		DailyLossLimitUSD:     s.dailyLossLimitUSD,
		DailyRemainingLossUSD: s.dailyLossLimitUSD + dailyPnL,
		ObserveOnly:           s.state.ObserveOnly,
	}
}

// Close stops the staleness-debounce cache's background sweep goroutine.
func (s *RiskService) Close() {
	s.lastStalenessCheck.Close()
}
