// Package marketdata implements the marketdata bounded context: the CEX
// WebSocket connector and the DEX pool poller, both publishing canonical
// snapshots onto the event bus.
package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	marketdataDI "github.com/bud42069/Arbeit-Trage/business/marketdata/di"
	"github.com/bud42069/Arbeit-Trage/business/marketdata/infra/cex"
	"github.com/bud42069/Arbeit-Trage/business/marketdata/infra/dex"
	"github.com/bud42069/Arbeit-Trage/internal/config"
	"github.com/bud42069/Arbeit-Trage/internal/di"
	"github.com/bud42069/Arbeit-Trage/internal/eventbus"
	"github.com/bud42069/Arbeit-Trage/internal/logger"
	"github.com/bud42069/Arbeit-Trage/internal/monolith"

	"github.com/ethereum/go-ethereum/ethclient"
)

// Module implements the marketdata bounded context.
type Module struct{}

func buildAuthScheme(cfg config.CEXConfig) (cex.AuthScheme, error) {
	switch cfg.AuthScheme {
	case "binance-hmac-sha256":
		return cex.BinanceHMACScheme{APIKey: cfg.APIKey, APISecret: cfg.APISecret}, nil
	case "gemini-hmac-sha384":
		return cex.GeminiHMACScheme{APIKey: cfg.APIKey, APISecret: cfg.APISecret}, nil
	default:
		return nil, fmt.Errorf("unknown cex auth scheme %q", cfg.AuthScheme)
	}
}

func buildPools(cfg config.DEXConfig) ([]dex.Pool, error) {
	pools := make([]dex.Pool, 0, len(cfg.PoolAddresses))
	for label, addrHex := range cfg.PoolAddresses {
		layoutCfg, ok := cfg.PoolLayouts[label]
		if !ok {
			return nil, fmt.Errorf("no pool layout configured for asset %q", label)
		}
		if !common.IsHexAddress(addrHex) {
			return nil, fmt.Errorf("invalid pool address for asset %q: %q", label, addrHex)
		}
		pools = append(pools, dex.Pool{
			PoolID:  label,
			Address: common.HexToAddress(addrHex),
			Layout: dex.Layout{
				Program:           layoutCfg.Program,
				Kind:              dex.Kind(layoutCfg.Kind),
				SqrtPriceOffset:   layoutCfg.SqrtPriceOffset,
				SqrtPriceFracBits: layoutCfg.SqrtPriceFracBits,
				DecimalsA:         layoutCfg.DecimalsA,
				DecimalsB:         layoutCfg.DecimalsB,
				FeeBps:            layoutCfg.FeeBps,
			},
		})
	}
	return pools, nil
}

// RegisterServices registers the CEX connector and DEX poller with the DI
// container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, marketdataDI.CEXConnector, func(sr di.ServiceRegistry) *cex.Connector {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		bus := sr.Get("eventBus").(*eventbus.Bus)

		auth, err := buildAuthScheme(cfg.CEX)
		if err != nil {
			panic("failed to build cex auth scheme: " + err.Error())
		}

		connector, err := cex.New(cex.Config{
			Venue:        cfg.App.Name,
			WSPublicURL:  cfg.CEX.WSPublicURL,
			BaseURL:      cfg.CEX.BaseURL,
			Symbols:      cfg.CEX.Symbols,
			StaleTimeout: cfg.CEX.StaleTimeout,
			Auth:         auth,
		}, bus, log)
		if err != nil {
			panic("failed to create cex connector: " + err.Error())
		}
		return connector
	})

	di.RegisterToken(c, marketdataDI.DEXPoller, func(sr di.ServiceRegistry) *dex.Poller {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		bus := sr.Get("eventBus").(*eventbus.Bus)
		ethClient := sr.Get("ethClient").(*ethclient.Client)

		pools, err := buildPools(cfg.DEX)
		if err != nil {
			panic("failed to build dex pool list: " + err.Error())
		}

		poller, err := dex.NewPoller(ethClient, pools, dex.KnownVectors, bus, log)
		if err != nil {
			panic("failed to create dex poller: " + err.Error())
		}
		return poller
	})

	return nil
}

// Startup connects the CEX connector and launches the DEX poll loop in the
// background, matching the teacher's "don't block startup on a flaky
// external connection, retry in background" pattern.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	connector := marketdataDI.GetCEXConnector(mono.Services())
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := connector.Connect(connectCtx); err != nil {
		log.Warn(ctx, "cex connector failed to connect, will retry in background", "error", err)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-time.After(5 * time.Second):
					if err := connector.Connect(ctx); err != nil {
						log.Warn(ctx, "cex connector retry failed", "error", err)
						continue
					}
					log.Info(ctx, "cex connector connected")
					return
				}
			}
		}()
	}

	poller := marketdataDI.GetDEXPoller(mono.Services())
	go func() {
		if err := poller.Run(ctx); err != nil && ctx.Err() == nil {
			log.Warn(ctx, "dex poller stopped", "error", err)
		}
	}()

	cfg := mono.Config()
	if cfg.Risk.ObserveOnlyMode {
		source, err := buildObserveOnlySource(cfg, poller, connector, mono.EventBus(), log)
		if err != nil {
			return fmt.Errorf("build observe-only dex source: %w", err)
		}
		go func() {
			if err := source.Run(ctx); err != nil && ctx.Err() == nil {
				log.Warn(ctx, "observe-only dex source stopped", "error", err)
			}
		}()
		log.Info(ctx, "observe-only synthetic dex source started", "pools", len(cfg.DEX.PoolAddresses))
	}

	log.Info(ctx, "marketdata module started")
	return nil
}

// buildObserveOnlySource wires a dex.ObserveOnlyPoolSource whose reference
// price for each pool is the paired CEX symbol's live mid, so a
// paper-trading deployment with no working RPC still feeds the signal
// engine synthetic dex.poolUpdate events instead of going silent.
func buildObserveOnlySource(cfg *config.Config, poller *dex.Poller, connector *cex.Connector, bus *eventbus.Bus, log logger.LoggerInterface) (*dex.ObserveOnlyPoolSource, error) {
	canonicalToVenue := make(map[string]string, len(cfg.Assets.SymbolMap))
	for venueSymbol, canonical := range cfg.Assets.SymbolMap {
		canonicalToVenue[canonical] = venueSymbol
	}

	poolIDs := make([]string, 0, len(cfg.DEX.PoolAddresses))
	for label := range cfg.DEX.PoolAddresses {
		poolIDs = append(poolIDs, label)
	}

	refPrice := func(poolID string) (decimal.Decimal, bool) {
		venueSymbol, ok := canonicalToVenue[poolID]
		if !ok {
			return decimal.Decimal{}, false
		}
		bid, ask, ok := connector.BestBidAsk(venueSymbol)
		if !ok {
			return decimal.Decimal{}, false
		}
		return bid.Price.Add(ask.Price).Div(decimal.NewFromInt(2)), true
	}

	return dex.NewObserveOnlyPoolSource(poller, poolIDs, refPrice, bus, log)
}
