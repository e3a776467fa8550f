package app

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	marketdatadomain "github.com/bud42069/Arbeit-Trage/business/marketdata/domain"
	"github.com/bud42069/Arbeit-Trage/business/signal/domain"
	"github.com/bud42069/Arbeit-Trage/internal/events"
	"github.com/bud42069/Arbeit-Trage/internal/eventbus"
	"github.com/bud42069/Arbeit-Trage/internal/logger"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testEngine(t *testing.T, threshold string) (*Engine, *eventbus.Bus) {
	t.Helper()
	log := logger.New(io.Discard, logger.LevelError, "signal-test", nil)
	bus := eventbus.New(log)

	cfg := Config{
		CostModel: CostModel{
			CEXFeePct:        dec("0.1"),
			DEXFeePct:        dec("0.1"),
			HaircutPct:       dec("0.05"),
			EmitThresholdPct: dec(threshold),
		},
		SymbolMap:   map[string]string{"SOLUSD": "SOL-USD"},
		WindowGrace: time.Minute,
	}
	e, err := New(cfg, bus, log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e, bus
}

func sampleBook() marketdatadomain.BookSnapshot {
	return marketdatadomain.BookSnapshot{
		Venue:     "binance",
		Symbol:    "SOLUSD",
		Timestamp: time.Now(),
		Bids:      []marketdatadomain.PriceLevel{{Price: dec("99"), Size: dec("10")}},
		Asks:      []marketdatadomain.PriceLevel{{Price: dec("100"), Size: dec("10")}},
	}
}

func samplePool(mid string) marketdatadomain.PoolSnapshot {
	return marketdatadomain.PoolSnapshot{
		PoolID:    "SOL-USD",
		Timestamp: time.Now(),
		MidPrice:  dec(mid),
	}
}

func TestCheckOpportunitiesEmitsAboveThreshold(t *testing.T) {
	e, bus := testEngine(t, "0.1")

	oppCh := make(chan domain.Opportunity, 1)
	eventbus.Subscribe(bus, events.SignalOpportunity, func(ctx context.Context, opp domain.Opportunity) error {
		oppCh <- opp
		return nil
	})

	ctx := context.Background()
	if err := e.handleCEXUpdate(ctx, sampleBook()); err != nil {
		t.Fatalf("handleCEXUpdate: %v", err)
	}
	// DEX mid well above the CEX ask (100): gross spread ~5%, net after
	// 0.25% costs is still far above the 0.1% threshold.
	if err := e.handleDEXUpdate(ctx, samplePool("105")); err != nil {
		t.Fatalf("handleDEXUpdate: %v", err)
	}

	select {
	case opp := <-oppCh:
		if opp.Direction != domain.DirectionCEXToDEX {
			t.Fatalf("Direction = %s, want %s", opp.Direction, domain.DirectionCEXToDEX)
		}
		if opp.WindowID == "" {
			t.Fatal("expected opportunity to be assigned to an open window")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for signal.opportunity")
	}
}

func TestCheckOpportunitiesBelowThresholdDoesNotEmit(t *testing.T) {
	e, bus := testEngine(t, "5")

	published := false
	eventbus.Subscribe(bus, events.SignalOpportunity, func(ctx context.Context, opp domain.Opportunity) error {
		published = true
		return nil
	})

	ctx := context.Background()
	e.handleCEXUpdate(ctx, sampleBook())
	// 1% gross spread, well under the 5% emit threshold once costs are netted out.
	e.handleDEXUpdate(ctx, samplePool("101"))

	if published {
		t.Fatal("expected a sub-threshold spread not to be emitted")
	}
}

func TestWindowRolloverOpensFreshWindowAfterGrace(t *testing.T) {
	wm := NewWindowManager(time.Minute)

	first := wm.GetOrCreate("SOL-USD", time.Now())
	first.RecordOpportunity(domain.DirectionCEXToDEX, dec("1"))

	later := time.Now().Add(3 * time.Minute)
	second := wm.GetOrCreate("SOL-USD", later)

	if second.ID == first.ID {
		t.Fatal("expected a new window after the grace period elapsed")
	}
	if first.IsOpen() {
		t.Fatal("expected the stale window to have been closed")
	}
	if len(wm.Closed()) != 1 {
		t.Fatalf("Closed() length = %d, want 1", len(wm.Closed()))
	}
}

func TestWindowManagerReusesOpenWindow(t *testing.T) {
	wm := NewWindowManager(time.Minute)
	now := time.Now()

	first := wm.GetOrCreate("SOL-USD", now)
	second := wm.GetOrCreate("SOL-USD", now.Add(10*time.Second))

	if first.ID != second.ID {
		t.Fatal("expected the window to be reused within the grace period")
	}
}
