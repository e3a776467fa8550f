// Package signal implements the signal bounded context: detecting
// cross-venue arbitrage opportunities from the latest CEX/DEX snapshots.
package signal

import (
	"context"

	signalapp "github.com/bud42069/Arbeit-Trage/business/signal/app"
	signalDI "github.com/bud42069/Arbeit-Trage/business/signal/di"
	"github.com/bud42069/Arbeit-Trage/internal/config"
	"github.com/bud42069/Arbeit-Trage/internal/di"
	"github.com/bud42069/Arbeit-Trage/internal/eventbus"
	"github.com/bud42069/Arbeit-Trage/internal/logger"
	"github.com/bud42069/Arbeit-Trage/internal/monolith"
)

// Module implements the signal bounded context.
type Module struct{}

// RegisterServices registers the signal engine with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, signalDI.Engine, func(sr di.ServiceRegistry) *signalapp.Engine {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		bus := sr.Get("eventBus").(*eventbus.Bus)

		engineCfg := signalapp.Config{
			CostModel: signalapp.CostModel{
				CEXFeePct:        cfg.Signal.CEXFeePctDecimal(),
				DEXFeePct:        cfg.Signal.DEXFeePctDecimal(),
				HaircutPct:       cfg.Signal.HaircutPctDecimal(),
				EmitThresholdPct: cfg.Signal.EmitThresholdPctDecimal(),
			},
			SymbolMap:   cfg.Assets.SymbolMap,
			WindowGrace: cfg.Signal.WindowGrace(),
		}

		engine, err := signalapp.New(engineCfg, bus, log)
		if err != nil {
			panic("failed to create signal engine: " + err.Error())
		}
		return engine
	})
	return nil
}

// Startup eagerly resolves the engine so its event subscriptions are live
// before any connector begins publishing.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	signalDI.GetEngine(mono.Services())
	mono.Logger().Info(ctx, "signal module started")
	return nil
}
