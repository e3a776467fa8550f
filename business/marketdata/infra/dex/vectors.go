package dex

import (
	"encoding/binary"

	"github.com/shopspring/decimal"
)

// KnownVectors is the checked-in set of per-program validation vectors a
// Layout must reproduce before any live pool naming that program may be
// polled. Whirlpool's vector reproduces the reference $145 SOL/USDC mid
// price (SOL 9 decimals, USDC 6 decimals) cited in the original connector.
var KnownVectors = map[string]Vector{
	"whirlpool": whirlpoolVector(),
}

func whirlpoolVector() Vector {
	const offset = 65
	const fracBits = 64

	want := decimal.NewFromInt(145)
	sqrtPriceDec := want.Div(decimal.NewFromInt(1000)).Pow(decimal.NewFromFloat(0.5))
	raw := sqrtPriceDec.Mul(decimal.NewFromBigInt(pow2(fracBits), 0)).Round(0).BigInt().Uint64()

	data := make([]byte, offset+16+8)
	binary.LittleEndian.PutUint64(data[offset:], raw)

	return Vector{
		Name:        "sol_usdc_145",
		AccountData: data,
		WantMid:     want,
		Tolerance:   want.Mul(decimal.NewFromFloat(0.01)), // spec's +/-1% test tolerance
	}
}
