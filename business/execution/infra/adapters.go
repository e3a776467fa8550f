// Package infra adapts the marketdata connectors to the execution engine's
// CEXLeg/DEXLeg ports.
package infra

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/bud42069/Arbeit-Trage/business/marketdata/infra/cex"
	"github.com/bud42069/Arbeit-Trage/business/marketdata/infra/dex"
)

// CEXAdapter adapts a cex.Connector to executionapp.CEXLeg.
type CEXAdapter struct {
	Connector *cex.Connector
}

// PlaceOrder implements executionapp.CEXLeg.
func (a *CEXAdapter) PlaceOrder(ctx context.Context, asset string, buy bool, size, price decimal.Decimal) (string, error) {
	side := cex.SideSell
	if buy {
		side = cex.SideBuy
	}
	clientOrderID := fmt.Sprintf("%s-%d", asset, size.IntPart())
	result := a.Connector.PlaceIOCOrder(ctx, asset, side, size, price, clientOrderID)
	if result.Error != "" {
		return "", fmt.Errorf("%s", result.Error)
	}
	return result.VenueOrderID, nil
}

// DEXAdapter adapts the dex package's swap path to executionapp.DEXLeg.
// QuoteToken is the stable/quote-side token (e.g. USDC) every configured
// pool is priced against; TokenAddrs maps an asset label to its base-token
// contract address on the other side of the pool.
type DEXAdapter struct {
	Router     common.Address
	QuoteToken common.Address
	TokenAddrs map[string]common.Address
	Recipient  common.Address
	Submitter  dex.SwapSubmitter
}

// ExecuteSwap implements executionapp.DEXLeg. buy=true swaps quote token
// for the base asset (e.g. USDC -> SOL); buy=false swaps the other way.
func (a *DEXAdapter) ExecuteSwap(ctx context.Context, asset string, buy bool, sizeIn, minSizeOut decimal.Decimal) (string, error) {
	tokenAddr, ok := a.TokenAddrs[asset]
	if !ok {
		return "", fmt.Errorf("no token address configured for asset %q", asset)
	}

	params := dex.SwapParams{
		AmountIn:         sizeIn.BigInt(),
		AmountOutMinimum: minSizeOut.BigInt(),
		Recipient:        a.Recipient,
	}
	if buy {
		params.TokenIn, params.TokenOut = a.QuoteToken, tokenAddr
	} else {
		params.TokenIn, params.TokenOut = tokenAddr, a.QuoteToken
	}

	return dex.ExecuteSwap(ctx, a.Router, params, a.Submitter)
}
