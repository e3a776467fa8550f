// Package main is the entry point for the CEX-DEX Arbitrage Bot.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/bud42069/Arbeit-Trage/business/execution"
	executiondomain "github.com/bud42069/Arbeit-Trage/business/execution/domain"
	"github.com/bud42069/Arbeit-Trage/business/marketdata"
	marketdataDI "github.com/bud42069/Arbeit-Trage/business/marketdata/di"
	marketdatadomain "github.com/bud42069/Arbeit-Trage/business/marketdata/domain"
	"github.com/bud42069/Arbeit-Trage/business/risk"
	riskdomain "github.com/bud42069/Arbeit-Trage/business/risk/domain"
	signalmod "github.com/bud42069/Arbeit-Trage/business/signal"
	signaldomain "github.com/bud42069/Arbeit-Trage/business/signal/domain"
	"github.com/bud42069/Arbeit-Trage/internal/apm"
	"github.com/bud42069/Arbeit-Trage/internal/config"
	"github.com/bud42069/Arbeit-Trage/internal/events"
	"github.com/bud42069/Arbeit-Trage/internal/eventbus"
	"github.com/bud42069/Arbeit-Trage/internal/health"
	"github.com/bud42069/Arbeit-Trage/internal/logger"
	"github.com/bud42069/Arbeit-Trage/internal/metrics"
	"github.com/bud42069/Arbeit-Trage/internal/monolith"
	"github.com/bud42069/Arbeit-Trage/pkg/ui"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Parse flags
	configPath := flag.String("config", "", "Path to configuration file")
	cliMode := flag.Bool("cli", false, "Run in CLI mode with logs (no TUI)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("arbitrage-bot %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// TUI is the default, CLI is for debugging
	tuiMode := !*cliMode

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		if !tuiMode {
			fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		}
		cancel()
	}()

	// Run application
	if err := run(ctx, *configPath, tuiMode); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, tuiMode bool) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger (only log to stderr in CLI mode)
	logLevel := logger.LevelInfo
	switch cfg.App.LogLevel {
	case "debug":
		logLevel = logger.LevelDebug
	case "warn":
		logLevel = logger.LevelWarn
	case "error":
		logLevel = logger.LevelError
	}

	var log *logger.Logger
	if tuiMode {
		// In TUI mode, suppress logs (discard output)
		log = logger.New(io.Discard, logLevel, cfg.App.Name, nil)
	} else {
		log = logger.New(os.Stderr, logLevel, cfg.App.Name, nil)
		log.Info(ctx, "starting CEX-DEX Arbitrage Bot",
			"version", version,
			"environment", cfg.App.Environment,
		)
	}

	// Initialize observability if enabled
	var traceProvider apm.TraceProvider
	if cfg.Telemetry.Enabled {
		// Set service name env var for OTEL
		if cfg.Telemetry.ServiceName != "" {
			os.Setenv("OTEL_SERVICE_NAME", cfg.Telemetry.ServiceName)
		}
		if cfg.Telemetry.OTLPEndpoint != "" {
			os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
		}

		// Initialize tracing with Zipkin (local dev friendly)
		traceProvider = apm.NewTraceProvider(log, apm.WithProvider(apm.ZipkinProvider, log))
		log.Info(ctx, "tracing initialized", "provider", "zipkin", "endpoint", cfg.Telemetry.OTLPEndpoint)

		// Initialize metrics with Prometheus
		metrics.NewMetricProvider(
			metrics.WithServiceName(cfg.Telemetry.ServiceName),
			metrics.WithProviderConfig(metrics.ProviderCfg{
				Provider: metrics.PrometheusProvider,
			}),
		)

		// Start Prometheus metrics server in background
		port := cfg.Telemetry.PrometheusPort
		if port == 0 {
			port = 9090
		}
		go metrics.ServePrometheusMetrics(metrics.WithPort(strconv.Itoa(port)))
		log.Info(ctx, "prometheus metrics server started", "port", port)
	}
	defer func() {
		if traceProvider != nil {
			traceProvider.Stop()
		}
	}()

	// Start health check server on port 8081
	healthServer := health.NewServer(8081, version)
	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	} else {
		log.Info(ctx, "health server started", "port", 8081)
	}
	defer healthServer.Stop(ctx)

	// Create monolith (application container)
	mono, err := monolith.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	// Define modules in start order: risk must be live before anything
	// else can consult the kill-switch; then each subscriber before the
	// stage that publishes to it (execution, signal, marketdata), so every
	// subscription is in place before the first event is published.
	modules := []monolith.Module{
		&risk.Module{},
		&execution.Module{},
		&signalmod.Module{},
		&marketdata.Module{},
	}

	// Register all module services
	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}

	if tuiMode {
		// TUI mode: start modules in background so TUI shows immediately
		startFunc := func() error {
			if err := mono.StartModules(ctx, modules...); err != nil {
				return fmt.Errorf("failed to start modules: %w", err)
			}
			go statusMonitorLoop(ctx, mono)
			return nil
		}
		return runTUI(ctx, mono, startFunc)
	}

	// CLI mode: start modules synchronously
	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}
	subscribeUIBridge(mono)

	return runCLI(ctx, mono, log)
}

func runCLI(ctx context.Context, mono monolith.Monolith, log *logger.Logger) error {
	log.Info(ctx, "all modules started, beginning cross-venue monitoring")

	go statusMonitorLoop(ctx, mono)

	<-ctx.Done()
	log.Info(ctx, "shutting down")
	return nil
}

// statusMonitorLoop runs the spec's single 5-second monitor loop: it
// checks every tracked CEX symbol and DEX pool for staleness against the
// risk service's threshold, and reports connection health to the TUI.
func statusMonitorLoop(ctx context.Context, mono monolith.Monolith) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	cfg := mono.Config()
	riskSvc := mono.RiskService()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			connector := marketdataDI.GetCEXConnector(mono.Services())
			for _, symbol := range cfg.CEX.Symbols {
				ts, ok := connector.LastUpdateTS(symbol)
				connected := ok && !riskSvc.CheckStaleness(ctx, "cex:"+symbol, ts, cfg.Risk.StalenessThreshold())
				latency := time.Duration(0)
				if ok {
					latency = time.Since(ts)
				}
				ui.Send(ui.ConnectionStatusMsg{Name: "CEX", Connected: connected, Latency: latency})
			}

			poller := marketdataDI.GetDEXPoller(mono.Services())
			for label := range cfg.DEX.PoolAddresses {
				snap, ok := poller.Latest(label)
				connected := ok && !riskSvc.CheckStaleness(ctx, "dex:"+label, snap.Timestamp, cfg.Risk.StalenessThreshold())
				latency := time.Duration(0)
				if ok {
					latency = time.Since(snap.Timestamp)
				}
				ui.Send(ui.ConnectionStatusMsg{Name: "DEX", Connected: connected, Latency: latency})
			}

			ui.Send(ui.RiskMsg{Status: riskSvc.GetStatus()})
		}
	}
}

// subscribeUIBridge wires the event bus's domain topics onto the TUI's
// message channel, so the dashboard reflects live activity without any
// business module depending on pkg/ui directly.
func subscribeUIBridge(mono monolith.Monolith) {
	bus := mono.EventBus()

	eventbus.Subscribe(bus, events.CEXBookUpdate, func(ctx context.Context, book marketdatadomain.BookSnapshot) error {
		ui.Send(ui.BookUpdateMsg{Book: book})
		return nil
	})
	eventbus.Subscribe(bus, events.DEXPoolUpdate, func(ctx context.Context, pool marketdatadomain.PoolSnapshot) error {
		ui.Send(ui.PoolUpdateMsg{Pool: pool})
		return nil
	})
	eventbus.Subscribe(bus, events.SignalOpportunity, func(ctx context.Context, opp signaldomain.Opportunity) error {
		ui.Send(ui.OpportunityMsg{Opportunity: opp})
		return nil
	})
	eventbus.Subscribe(bus, events.TradeCompleted, func(ctx context.Context, trade executiondomain.Trade) error {
		ui.Send(ui.TradeMsg{Trade: trade})
		return nil
	})
	eventbus.Subscribe(bus, events.RiskPaused, func(ctx context.Context, notice riskdomain.Notice) error {
		ui.Send(ui.RiskMsg{Status: mono.RiskService().GetStatus()})
		return nil
	})
	eventbus.Subscribe(bus, events.RiskResumed, func(ctx context.Context, notice riskdomain.Notice) error {
		ui.Send(ui.RiskMsg{Status: mono.RiskService().GetStatus()})
		return nil
	})
}

func runTUI(ctx context.Context, mono monolith.Monolith, startFunc func() error) error {
	// Channel to receive StartModulesMsg signal
	startSignal := make(chan struct{}, 1)
	ui.OnStartModules = func() {
		select {
		case startSignal <- struct{}{}:
		default:
		}
	}

	subscribeUIBridge(mono)

	// Create and start the TUI program immediately (shows welcome screen)
	p := tea.NewProgram(ui.New(), tea.WithAltScreen())
	ui.Program = p

	// Run bot logic in background (non-blocking)
	errCh := make(chan error, 1)
	go func() {
		// Wait for welcome screen to complete (StartModulesMsg signal)
		select {
		case <-startSignal:
			// Welcome complete, start modules
		case <-ctx.Done():
			errCh <- nil
			return
		}

		if err := startFunc(); err != nil {
			ui.Send(ui.ErrorMsg{Error: err})
			errCh <- err
			return
		}

		<-ctx.Done()
		errCh <- nil
	}()

	// Run TUI (blocking) - shows immediately with welcome screen
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	// Check for bot errors
	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

