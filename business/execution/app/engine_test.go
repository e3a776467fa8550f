package app

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	executiondomain "github.com/bud42069/Arbeit-Trage/business/execution/domain"
	riskapp "github.com/bud42069/Arbeit-Trage/business/risk/app"
	signaldomain "github.com/bud42069/Arbeit-Trage/business/signal/domain"
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

type stubCEXLeg struct{}

func (stubCEXLeg) PlaceOrder(ctx context.Context, asset string, buy bool, size, price decimal.Decimal) (string, error) {
	return "cex-order-1", nil
}

type stubDEXLeg struct{}

func (stubDEXLeg) ExecuteSwap(ctx context.Context, asset string, buy bool, sizeIn, minSizeOut decimal.Decimal) (string, error) {
	return "dex-tx-1", nil
}

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "execution-test", nil)
}

func newTestEngine(t *testing.T, observeOnly bool) (*Engine, *riskapp.RiskService, *eventbus.Bus) {
	t.Helper()
	log := testLogger()
	bus := eventbus.New(log)

	risk, err := riskapp.New(riskapp.Config{ObserveOnly: observeOnly, DailyLossLimitUSD: 500}, bus, log)
	if err != nil {
		t.Fatalf("riskapp.New: %v", err)
	}

	cfg := Config{
		CEXFeePct:          dec("0.35"),
		DEXFeePct:          dec("0.30"),
		MaxPositionSizeUSD: dec("1000"),
		MaxInflight:        4,
	}
	e, err := New(cfg, stubCEXLeg{}, stubDEXLeg{}, risk, bus, log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e, risk, bus
}

func sampleOpportunity() signaldomain.Opportunity {
	return signaldomain.Opportunity{
		ID:           "opp-1",
		Asset:        "SOL-USD",
		Direction:    signaldomain.DirectionCEXToDEX,
		CEXPrice:     dec("100"),
		DEXPrice:     dec("101"),
		IntendedSize: dec("5"),
		DetectionTS:  time.Now(),
		WindowID:     "window-1",
	}
}

func TestAccountTradeComputesFeesAndPnL(t *testing.T) {
	e, _, _ := newTestEngine(t, true)

	trade := executiondomain.Trade{
		CEXPrice: dec("100"),
		DEXPrice: dec("101"),
	}
	opp := sampleOpportunity()
	size := dec("5")

	e.accountTrade(&trade, opp, size)

	// mean price 100.5, fee rate 0.35+0.30+0.05 = 0.70%, fees = 5 * 100.5 * 0.007
	wantFees := dec("3.5175")
	if diff := trade.FeesTotal.Sub(wantFees).Abs(); diff.GreaterThan(dec("0.0001")) {
		t.Fatalf("FeesTotal = %s, want ~%s", trade.FeesTotal, wantFees)
	}

	// spread_abs = |100-101| * 5 = 5, pnl_abs = 5 - fees
	wantPnLAbs := dec("5").Sub(wantFees)
	if diff := trade.PnLAbs.Sub(wantPnLAbs).Abs(); diff.GreaterThan(dec("0.0001")) {
		t.Fatalf("PnLAbs = %s, want ~%s", trade.PnLAbs, wantPnLAbs)
	}

	if trade.PnLPct.IsZero() {
		t.Fatal("expected non-zero PnLPct for a non-zero position")
	}
}

func TestAccountTradeZeroSizeYieldsZeroPnLPct(t *testing.T) {
	e, _, _ := newTestEngine(t, true)

	trade := executiondomain.Trade{CEXPrice: dec("100"), DEXPrice: dec("101")}
	opp := sampleOpportunity()

	e.accountTrade(&trade, opp, decimal.Zero)

	if !trade.PnLPct.IsZero() {
		t.Fatalf("PnLPct = %s, want zero when size is zero", trade.PnLPct)
	}
}

func TestExecuteObserveOnlyPublishesFilledTrade(t *testing.T) {
	e, _, bus := newTestEngine(t, true)

	tradeCh := make(chan executiondomain.Trade, 1)
	eventbus.Subscribe(bus, events.TradeCompleted, func(ctx context.Context, trade executiondomain.Trade) error {
		tradeCh <- trade
		return nil
	})

	e.execute(context.Background(), sampleOpportunity())

	select {
	case trade := <-tradeCh:
		if trade.Status != executiondomain.StatusFilled {
			t.Fatalf("Status = %s, want %s", trade.Status, executiondomain.StatusFilled)
		}
		if trade.CEXOrderID == "" || trade.DEXTxSig == "" {
			t.Fatal("expected synthetic order id and tx sig to be populated")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for trade.completed")
	}
}

func TestExecuteDropsStaleOpportunityWithoutPublishing(t *testing.T) {
	e, _, bus := newTestEngine(t, true)

	published := false
	eventbus.Subscribe(bus, events.TradeCompleted, func(ctx context.Context, trade executiondomain.Trade) error {
		published = true
		return nil
	})

	opp := sampleOpportunity()
	opp.DetectionTS = time.Now().Add(-time.Minute)

	e.execute(context.Background(), opp)

	if published {
		t.Fatal("expected a stale opportunity to be dropped, not executed")
	}
}

func TestExecuteDropsWhenRiskPaused(t *testing.T) {
	e, risk, bus := newTestEngine(t, true)
	risk.TriggerPause(context.Background(), "test pause")

	published := false
	eventbus.Subscribe(bus, events.TradeCompleted, func(ctx context.Context, trade executiondomain.Trade) error {
		published = true
		return nil
	})

	e.execute(context.Background(), sampleOpportunity())

	if published {
		t.Fatal("expected no trade to be published while the kill-switch is engaged")
	}
}

func TestExecuteLiveModeRunsBothLegs(t *testing.T) {
	e, _, bus := newTestEngine(t, false)

	tradeCh := make(chan executiondomain.Trade, 1)
	eventbus.Subscribe(bus, events.TradeCompleted, func(ctx context.Context, trade executiondomain.Trade) error {
		tradeCh <- trade
		return nil
	})

	e.execute(context.Background(), sampleOpportunity())

	select {
	case trade := <-tradeCh:
		if trade.Status != executiondomain.StatusFilled {
			t.Fatalf("Status = %s, want %s", trade.Status, executiondomain.StatusFilled)
		}
		if trade.CEXOrderID != "cex-order-1" || trade.DEXTxSig != "dex-tx-1" {
			t.Fatalf("unexpected leg identifiers: cex=%q dex=%q", trade.CEXOrderID, trade.DEXTxSig)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for trade.completed")
	}
}
