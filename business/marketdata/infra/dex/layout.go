// Package dex implements the DEX connector: a polling pool-state reader and
// a simulated swap submission path, generalizing the teacher's Uniswap V3
// provider to a versioned, config-driven pool layout and grounded
// additionally on the Solana connector's Whirlpool sqrt_price decode.
package dex

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Kind names a pool account layout.
type Kind string

const (
	// KindSqrtPrice is the concentrated-liquidity layout: a packed
	// sqrt_price word in Q(64.F) fixed point at a fixed byte offset.
	KindSqrtPrice Kind = "sqrt_price"
	// KindConstantProduct decodes raw reserve words directly.
	KindConstantProduct Kind = "constant_product"
)

// Layout is one program's pool account layout, validated at startup
// against a known vector before any live pool using it is polled.
type Layout struct {
	Program string
	Kind    Kind

	// sqrt_price layout fields.
	SqrtPriceOffset   int
	SqrtPriceFracBits uint // F in Q64.F; Whirlpool uses 64, Uniswap V3's X96 uses 96.

	// constant_product layout fields.
	ReserveAOffset int
	ReserveBOffset int

	DecimalsA int32
	DecimalsB int32
	FeeBps    int
}

// pow2 returns 2^f, the divisor of a Q(64.F) fixed-point word.
func pow2(f uint) *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), f)
}

// DecodeSqrtPrice reads a little-endian u128 sqrt_price word at
// l.SqrtPriceOffset and returns the mid price reserveB/reserveA-equivalent
// quote, adjusted for token decimals: (sqrt_price / 2^F)^2 * 10^(decimalsB-decimalsA).
func (l Layout) DecodeSqrtPrice(data []byte) (decimal.Decimal, error) {
	if l.Kind != KindSqrtPrice {
		return decimal.Decimal{}, fmt.Errorf("layout %s is not a sqrt_price layout", l.Program)
	}
	end := l.SqrtPriceOffset + 16
	if len(data) < end {
		return decimal.Decimal{}, fmt.Errorf("account data too short: have %d bytes, need %d", len(data), end)
	}

	raw := make([]byte, 16)
	copy(raw, data[l.SqrtPriceOffset:end])
	reverseBytes(raw) // little-endian -> big-endian for big.Int

	sqrtPriceRaw := new(big.Int).SetBytes(raw)
	divisor := pow2(l.SqrtPriceFracBits)

	sqrtPriceDec := decimal.NewFromBigInt(sqrtPriceRaw, 0).DivRound(decimal.NewFromBigInt(divisor, 0), 20)
	priceBeforeDecimals := sqrtPriceDec.Mul(sqrtPriceDec)

	decimalsDelta := int64(l.DecimalsB - l.DecimalsA)
	multiplier := decimal.NewFromInt(10).Pow(decimal.NewFromInt(decimalsDelta))
	return priceBeforeDecimals.Mul(multiplier), nil
}

// DecodeReserves reads two little-endian u128 reserve words for a
// constant_product layout.
func (l Layout) DecodeReserves(data []byte) (reserveA, reserveB decimal.Decimal, err error) {
	if l.Kind != KindConstantProduct {
		return decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("layout %s is not a constant_product layout", l.Program)
	}
	endA, endB := l.ReserveAOffset+16, l.ReserveBOffset+16
	if len(data) < endA || len(data) < endB {
		return decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("account data too short for reserve layout")
	}

	rawA := make([]byte, 16)
	copy(rawA, data[l.ReserveAOffset:endA])
	reverseBytes(rawA)
	rawB := make([]byte, 16)
	copy(rawB, data[l.ReserveBOffset:endB])
	reverseBytes(rawB)

	reserveA = decimal.NewFromBigInt(new(big.Int).SetBytes(rawA), 0)
	reserveB = decimal.NewFromBigInt(new(big.Int).SetBytes(rawB), 0)
	return reserveA, reserveB, nil
}

func reverseBytes(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

// Vector is a known-good (input bytes, expected mid price) pair a Layout
// must reproduce before any live pool using it may be polled.
type Vector struct {
	Name        string
	AccountData []byte
	WantMid     decimal.Decimal
	Tolerance   decimal.Decimal
}

// Validate decodes v.AccountData with l and compares against v.WantMid
// within v.Tolerance. A failing layout must refuse startup for any pool
// that names it, per the connector's construction contract - never a
// panic deferred to query time.
func (l Layout) Validate(v Vector) error {
	var got decimal.Decimal
	var err error
	switch l.Kind {
	case KindSqrtPrice:
		got, err = l.DecodeSqrtPrice(v.AccountData)
	case KindConstantProduct:
		var a, b decimal.Decimal
		a, b, err = l.DecodeReserves(v.AccountData)
		if err == nil {
			got = b.Div(a)
		}
	default:
		return fmt.Errorf("unknown pool layout kind %q", l.Kind)
	}
	if err != nil {
		return fmt.Errorf("layout %s vector %s: decode failed: %w", l.Program, v.Name, err)
	}

	diff := got.Sub(v.WantMid).Abs()
	if diff.GreaterThan(v.Tolerance) {
		return fmt.Errorf("layout %s vector %s: got mid %s, want %s (tolerance %s)",
			l.Program, v.Name, got.String(), v.WantMid.String(), v.Tolerance.String())
	}
	return nil
}
