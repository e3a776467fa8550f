package app

import (
	"context"
	"io"
	"testing"
	"time"

	executiondomain "github.com/bud42069/Arbeit-Trage/business/execution/domain"
	"github.com/bud42069/Arbeit-Trage/internal/eventbus"
	"github.com/bud42069/Arbeit-Trage/internal/logger"
	"github.com/shopspring/decimal"
)

func newTestService(t *testing.T, dailyLossLimit float64) *RiskService {
	t.Helper()
	log := logger.New(io.Discard, logger.LevelError, "risk-test", nil)
	bus := eventbus.New(log)
	s, err := New(Config{DailyLossLimitUSD: dailyLossLimit}, bus, log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestCheckStalenessTriggersPauseWhenOverThreshold(t *testing.T) {
	s := newTestService(t, 500)
	ctx := context.Background()

	stale := s.CheckStaleness(ctx, "cex:SOL-USD", time.Now().Add(-time.Minute), 5*time.Second)
	if !stale {
		t.Fatal("expected a one-minute-old update to be reported stale")
	}
	if !s.IsPaused() {
		t.Fatal("expected the kill-switch to engage on a staleness breach")
	}
}

func TestCheckStalenessFreshDoesNotPause(t *testing.T) {
	s := newTestService(t, 500)
	ctx := context.Background()

	stale := s.CheckStaleness(ctx, "cex:SOL-USD", time.Now(), 5*time.Second)
	if stale {
		t.Fatal("expected a fresh update not to be reported stale")
	}
	if s.IsPaused() {
		t.Fatal("expected the kill-switch to remain disengaged for fresh data")
	}
}

func TestCheckStalenessDebouncesRepeatedTriggers(t *testing.T) {
	s := newTestService(t, 500)
	ctx := context.Background()

	s.CheckStaleness(ctx, "cex:SOL-USD", time.Now().Add(-time.Minute), 5*time.Second)
	s.Resume(ctx)

	// Second call within the debounce window must not re-pause, since the
	// venue was already flagged stale less than 60s ago.
	s.CheckStaleness(ctx, "cex:SOL-USD", time.Now().Add(-time.Minute), 5*time.Second)
	if s.IsPaused() {
		t.Fatal("expected the debounce window to suppress a repeat pause")
	}
}

func TestHandleTradeCompletedBreachesDailyLossLimit(t *testing.T) {
	s := newTestService(t, 100)
	ctx := context.Background()

	trade := executiondomain.Trade{PnLAbs: decimal.NewFromInt(-150)}
	if err := s.HandleTradeCompleted(ctx, trade); err != nil {
		t.Fatalf("HandleTradeCompleted: %v", err)
	}

	if !s.IsPaused() {
		t.Fatal("expected a daily loss beyond the limit to trigger the kill-switch")
	}
}

func TestHandleTradeCompletedWithinLimitStaysLive(t *testing.T) {
	s := newTestService(t, 100)
	ctx := context.Background()

	trade := executiondomain.Trade{PnLAbs: decimal.NewFromInt(-20)}
	if err := s.HandleTradeCompleted(ctx, trade); err != nil {
		t.Fatalf("HandleTradeCompleted: %v", err)
	}

	if s.IsPaused() {
		t.Fatal("expected a loss within the daily limit to leave trading live")
	}

	status := s.GetStatus()
	if status.DailyTradeCount != 1 {
		t.Fatalf("DailyTradeCount = %d, want 1", status.DailyTradeCount)
	}
	if status.DailyPnL != -20 {
		t.Fatalf("DailyPnL = %v, want -20", status.DailyPnL)
	}
}

func TestTriggerPauseIsIdempotent(t *testing.T) {
	s := newTestService(t, 500)
	ctx := context.Background()

	s.TriggerPause(ctx, "first reason")
	s.TriggerPause(ctx, "second reason")

	status := s.GetStatus()
	if status.PauseReason != "first reason" {
		t.Fatalf("PauseReason = %q, want %q (first trigger wins)", status.PauseReason, "first reason")
	}
}
