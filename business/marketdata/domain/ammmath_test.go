package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestConstantProductQuote(t *testing.T) {
	amountOut, execPrice, impactPct := ConstantProductQuote(dec("1000"), dec("1000"), dec("10"), 30)

	wantOut := dec("9.8715")
	if diff := amountOut.Sub(wantOut).Abs(); diff.GreaterThan(dec("0.0005")) {
		t.Fatalf("amountOut = %s, want ~%s", amountOut, wantOut)
	}

	wantPrice := dec("0.98715")
	if diff := execPrice.Sub(wantPrice).Abs(); diff.GreaterThan(dec("0.0001")) {
		t.Fatalf("execPrice = %s, want ~%s", execPrice, wantPrice)
	}

	if impactPct.LessThan(decimal.Zero) || impactPct.GreaterThan(dec("2")) {
		t.Fatalf("impactPct = %s, want in [0, 2]", impactPct)
	}
}

func TestConstantProductQuoteZeroAmountIn(t *testing.T) {
	amountOut, execPrice, impactPct := ConstantProductQuote(dec("1000"), dec("1000"), decimal.Zero, 30)
	if !amountOut.IsZero() || !execPrice.IsZero() || !impactPct.IsZero() {
		t.Fatalf("zero amount_in must yield zero output/price/impact, got %s %s %s", amountOut, execPrice, impactPct)
	}
}

func TestConstantProductQuoteFullFee(t *testing.T) {
	amountOut, _, _ := ConstantProductQuote(dec("1000"), dec("1000"), dec("10"), 10000)
	if !amountOut.IsZero() {
		t.Fatalf("fee_bps=10000 must yield zero output, got %s", amountOut)
	}
}

func TestBoundQuoteRejectsExcessiveImpact(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, ok := BoundQuote("pool-1", SideBuy, dec("1000"), dec("1000"), dec("10"), 30, 1, now)
	if ok {
		t.Fatal("expected BoundQuote to reject a quote whose impact exceeds slippageBps")
	}
}

func TestBoundQuoteAcceptsWithinSlippage(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q, ok := BoundQuote("pool-1", SideBuy, dec("1000"), dec("1000"), dec("10"), 30, 200, now)
	if !ok {
		t.Fatal("expected BoundQuote to accept a quote within slippageBps")
	}
	if !q.ExpiresAt.Equal(now.Add(30 * time.Second)) {
		t.Fatalf("ExpiresAt = %s, want %s", q.ExpiresAt, now.Add(30*time.Second))
	}
	if q.Consume(now) != true {
		t.Fatal("expected first Consume to succeed")
	}
	if q.Consume(now) {
		t.Fatal("expected second Consume to fail (already consumed)")
	}
}
