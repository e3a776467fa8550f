package dex

import (
	"encoding/binary"
	"testing"

	"github.com/shopspring/decimal"
)

// sqrtPriceVectorData builds a synthetic account of offset+24 bytes (89 at
// offset 65) with a known u128 sqrt_price word at offset, reproducing the $145 SOL/USDC case the
// connector must decode correctly before it is trusted with a live pool.
func sqrtPriceVectorData(offset int, sqrtPriceRaw uint64) []byte {
	data := make([]byte, offset+16+8)
	binary.LittleEndian.PutUint64(data[offset:], sqrtPriceRaw)
	return data
}

func TestLayoutValidateSqrtPrice(t *testing.T) {
	// sqrt_price_raw chosen so that (raw/2^64)^2 * 10^(9-6) == 145 exactly:
	// raw = sqrt(145 / 1000) * 2^64.
	const offset = 65
	const fracBits = 64

	want := decimal.NewFromInt(145)
	sqrtPriceDec := want.Div(decimal.NewFromInt(1000)).Pow(decimal.NewFromFloat(0.5))
	raw := sqrtPriceDec.Mul(decimal.NewFromBigInt(pow2(fracBits), 0))
	rawUint := raw.Round(0).BigInt().Uint64()

	vectorData := sqrtPriceVectorData(offset, rawUint)

	l := Layout{
		Program:           "whirlpool",
		Kind:              KindSqrtPrice,
		SqrtPriceOffset:   offset,
		SqrtPriceFracBits: fracBits,
		DecimalsA:         6,
		DecimalsB:         9,
		FeeBps:            30,
	}

	vec := Vector{
		Name:        "sol_usdc_145",
		AccountData: vectorData,
		WantMid:     want,
		Tolerance:   decimal.NewFromFloat(0.5),
	}

	if err := l.Validate(vec); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
}

func TestLayoutValidateSqrtPriceRejectsWrongOffset(t *testing.T) {
	const fracBits = 64
	want := decimal.NewFromInt(145)
	sqrtPriceDec := want.Div(decimal.NewFromInt(1000)).Pow(decimal.NewFromFloat(0.5))
	raw := sqrtPriceDec.Mul(decimal.NewFromBigInt(pow2(fracBits), 0))
	rawUint := raw.Round(0).BigInt().Uint64()

	vectorData := sqrtPriceVectorData(65, rawUint)

	l := Layout{
		Program:           "whirlpool",
		Kind:              KindSqrtPrice,
		SqrtPriceOffset:   128, // wrong offset - vector was built for 65
		SqrtPriceFracBits: fracBits,
		DecimalsA:         6,
		DecimalsB:         9,
	}

	vec := Vector{
		Name:        "sol_usdc_145",
		AccountData: vectorData,
		WantMid:     want,
		Tolerance:   decimal.NewFromFloat(0.5),
	}

	if err := l.Validate(vec); err == nil {
		t.Fatal("expected Validate() to fail for a layout whose offset doesn't match the vector")
	}
}

func TestLayoutDecodeReserves(t *testing.T) {
	data := make([]byte, 64)
	binary.LittleEndian.PutUint64(data[0:], 500000)
	binary.LittleEndian.PutUint64(data[32:], 3400)

	l := Layout{Kind: KindConstantProduct, ReserveAOffset: 0, ReserveBOffset: 32}
	a, b, err := l.DecodeReserves(data)
	if err != nil {
		t.Fatalf("DecodeReserves() error: %v", err)
	}
	if !a.Equal(decimal.NewFromInt(500000)) {
		t.Errorf("reserveA = %s, want 500000", a)
	}
	if !b.Equal(decimal.NewFromInt(3400)) {
		t.Errorf("reserveB = %s, want 3400", b)
	}
}

func TestLayoutDecodeSqrtPriceTooShort(t *testing.T) {
	l := Layout{Kind: KindSqrtPrice, SqrtPriceOffset: 65, SqrtPriceFracBits: 64}
	if _, err := l.DecodeSqrtPrice(make([]byte, 10)); err == nil {
		t.Fatal("expected error decoding too-short account data")
	}
}
