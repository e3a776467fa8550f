// Package monolith provides the application container and module interface.
package monolith

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"

	riskapp "github.com/bud42069/Arbeit-Trage/business/risk/app"
	riskdi "github.com/bud42069/Arbeit-Trage/business/risk/di"
	"github.com/bud42069/Arbeit-Trage/internal/asset"
	"github.com/bud42069/Arbeit-Trage/internal/config"
	"github.com/bud42069/Arbeit-Trage/internal/di"
	"github.com/bud42069/Arbeit-Trage/internal/eventbus"
	"github.com/bud42069/Arbeit-Trage/internal/logger"
)

// Monolith is the main application container providing access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	EthClient() *ethclient.Client
	AssetRegistry() *asset.Registry
	EventBus() *eventbus.Bus
	RiskService() *riskapp.RiskService
	Services() di.ServiceRegistry
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

// app implements the Monolith interface.
type app struct {
	config        *config.Config
	logger        logger.LoggerInterface
	ethClient     *ethclient.Client
	assetRegistry *asset.Registry
	eventBus      *eventbus.Bus
	riskService   *riskapp.RiskService
	container     di.Container
}

// New creates a new Monolith instance. The event bus and risk service are
// process-wide singletons built here, in the composition root, rather than
// resolved lazily through the DI container — both are consulted from
// everywhere (connectors, engines, the gateway TUI) and neither has a
// meaningful per-module configuration, so they are constructed once and
// handed out directly.
func New(cfg *config.Config, log logger.LoggerInterface) (*app, error) {
	// Create Ethereum client
	ethClient, err := ethclient.Dial(cfg.Ethereum.HTTPURL)
	if err != nil {
		return nil, err
	}

	// Use default asset registry (pre-populated with common assets)
	assetRegistry := asset.DefaultRegistry()

	bus := eventbus.New(log)

	risk, err := riskapp.New(riskapp.Config{
		ObserveOnly:       cfg.Risk.ObserveOnlyMode,
		DailyLossLimitUSD: cfg.Risk.DailyLossLimitUSD,
	}, bus, log)
	if err != nil {
		return nil, err
	}

	container := di.NewContainer()

	// Register global services
	container.Register("config", cfg)
	container.Register("logger", log)
	container.Register("ethClient", ethClient)
	container.Register("assetRegistry", assetRegistry)
	container.Register("eventBus", bus)
	container.Register(riskdi.RiskService, risk)

	return &app{
		config:        cfg,
		logger:        log,
		ethClient:     ethClient,
		assetRegistry: assetRegistry,
		eventBus:      bus,
		riskService:   risk,
		container:     container,
	}, nil
}

func (a *app) Config() *config.Config {
	return a.config
}

func (a *app) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *app) EthClient() *ethclient.Client {
	return a.ethClient
}

func (a *app) AssetRegistry() *asset.Registry {
	return a.assetRegistry
}

func (a *app) EventBus() *eventbus.Bus {
	return a.eventBus
}

func (a *app) RiskService() *riskapp.RiskService {
	return a.riskService
}

func (a *app) Services() di.ServiceRegistry {
	return a.container
}

// Container returns the DI container for module registration.
func (a *app) Container() di.Container {
	return a.container
}

// RegisterModules registers all provided modules.
func (a *app) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules.
func (a *app) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all resources.
func (a *app) Close() error {
	if a.riskService != nil {
		a.riskService.Close()
	}
	if a.ethClient != nil {
		a.ethClient.Close()
	}
	return nil
}
