package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// quoteLifetime is how long a BoundQuote result remains valid for Consume.
const quoteLifetime = 30 * time.Second

// ConstantProductQuote computes a constant-product (x*y=k) swap quote.
// Mirrors the reference pool-math formula exactly: amount_in is charged
// fee_bps first, then the output is taken from reserve_out along the
// constant-product curve. Zero amount_in yields a zero-output, zero-impact
// quote. reserve_in and reserve_out must be positive.
func ConstantProductQuote(reserveIn, reserveOut, amountIn decimal.Decimal, feeBps int) (amountOut, execPrice, impactPct decimal.Decimal) {
	if amountIn.IsZero() {
		return decimal.Zero, decimal.Zero, decimal.Zero
	}

	feeMultiplier := decimal.NewFromInt(1).Sub(decimal.NewFromInt(int64(feeBps)).Div(decimal.NewFromInt(10000)))
	amountInEff := amountIn.Mul(feeMultiplier)

	amountOut = reserveOut.Mul(amountInEff).Div(reserveIn.Add(amountInEff))
	execPrice = amountOut.Div(amountIn)

	priceBefore := reserveOut.Div(reserveIn)
	priceAfter := reserveOut.Sub(amountOut).Div(reserveIn.Add(amountIn))

	if priceBefore.IsZero() {
		impactPct = decimal.Zero
	} else {
		impactPct = priceAfter.Sub(priceBefore).Div(priceBefore).Abs().Mul(decimal.NewFromInt(100))
	}
	return amountOut, execPrice, impactPct
}

// BoundQuote computes a ConstantProductQuote for side and gates it against
// slippageBps; if the predicted impact exceeds the allowed slippage, ok is
// false and the caller must not trade. On success the returned Quote
// expires 30s after now.
func BoundQuote(poolID string, side Side, reserveIn, reserveOut, sizeIn decimal.Decimal, feeBps int, slippageBps int, now time.Time) (Quote, bool) {
	amountOut, execPrice, impactPct := ConstantProductQuote(reserveIn, reserveOut, sizeIn, feeBps)

	allowedPct := decimal.NewFromInt(int64(slippageBps)).Div(decimal.NewFromInt(100))
	if impactPct.GreaterThan(allowedPct) {
		return Quote{}, false
	}

	feePct := decimal.NewFromInt(int64(feeBps)).Div(decimal.NewFromInt(100))
	return Quote{
		PoolID:    poolID,
		Side:      side,
		SizeIn:    sizeIn,
		SizeOut:   amountOut,
		ExecPrice: execPrice,
		ImpactPct: impactPct,
		FeePct:    feePct,
		ExpiresAt: now.Add(quoteLifetime),
	}, true
}
