// Package execution implements the execution bounded context: turning
// detected opportunities into sequential dual-leg trades.
package execution

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	executionapp "github.com/bud42069/Arbeit-Trage/business/execution/app"
	executionDI "github.com/bud42069/Arbeit-Trage/business/execution/di"
	executioninfra "github.com/bud42069/Arbeit-Trage/business/execution/infra"
	marketdataDI "github.com/bud42069/Arbeit-Trage/business/marketdata/di"
	"github.com/bud42069/Arbeit-Trage/business/marketdata/infra/dex"
	riskDI "github.com/bud42069/Arbeit-Trage/business/risk/di"
	"github.com/bud42069/Arbeit-Trage/internal/config"
	"github.com/bud42069/Arbeit-Trage/internal/di"
	"github.com/bud42069/Arbeit-Trage/internal/eventbus"
	"github.com/bud42069/Arbeit-Trage/internal/logger"
	"github.com/bud42069/Arbeit-Trage/internal/monolith"
)

// Module implements the execution bounded context.
type Module struct{}

func tokenAddresses(cfg config.DEXConfig) map[string]common.Address {
	out := make(map[string]common.Address, len(cfg.TokenAddresses))
	for label, addr := range cfg.TokenAddresses {
		out[label] = common.HexToAddress(addr)
	}
	return out
}

// RegisterServices registers the execution engine, wiring the CEX/DEX legs
// through the marketdata connectors registered by business/marketdata.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, executionDI.Engine, func(sr di.ServiceRegistry) *executionapp.Engine {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		bus := sr.Get("eventBus").(*eventbus.Bus)
		risk := riskDI.GetRiskService(sr)

		cexConnector := marketdataDI.GetCEXConnector(sr)
		cexLeg := &executioninfra.CEXAdapter{Connector: cexConnector}

		router := common.HexToAddress(cfg.DEX.RouterAddress)
		dexLeg := &executioninfra.DEXAdapter{
			Router:     router,
			QuoteToken: common.HexToAddress(cfg.DEX.QuoteTokenAddress),
			TokenAddrs: tokenAddresses(cfg.DEX),
			Recipient:  common.HexToAddress(cfg.DEX.RecipientAddress),
			Submitter:  dex.NewSimulatedSubmitter(router),
		}

		engineCfg := executionapp.Config{
			CEXFeePct:          cfg.Signal.CEXFeePctDecimal(),
			DEXFeePct:          cfg.Signal.DEXFeePctDecimal(),
			MaxPositionSizeUSD: maxPositionSize(cfg),
			MaxInflight:        cfg.Execution.MaxInflightTrades,
		}

		engine, err := executionapp.New(engineCfg, cexLeg, dexLeg, risk, bus, log)
		if err != nil {
			panic("failed to create execution engine: " + err.Error())
		}
		return engine
	})
	return nil
}

func maxPositionSize(cfg *config.Config) decimal.Decimal {
	return cfg.Risk.MaxPositionSizeUSDDecimal()
}

// Startup eagerly resolves the engine so its signal.opportunity
// subscription is live before the signal engine starts emitting.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	executionDI.GetEngine(mono.Services())
	mono.Logger().Info(ctx, "execution module started",
		"observe_only", mono.RiskService().ObserveOnly(),
	)
	return nil
}
