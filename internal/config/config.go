// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	CEX       CEXConfig       `mapstructure:"cex"`
	DEX       DEXConfig       `mapstructure:"dex"`
	Assets    AssetsConfig    `mapstructure:"assets_config"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Signal    SignalConfig    `mapstructure:"signal"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// EthereumConfig holds chain-client configuration used by the DEX connector
// for raw storage reads and swap submission.
type EthereumConfig struct {
	WebSocketURL   string        `mapstructure:"websocket_url"`
	HTTPURL        string        `mapstructure:"http_url"`
	ChainID        uint64        `mapstructure:"chain_id"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

// CEXConfig holds the centralized-exchange connector's venue parameters.
// Auth scheme is selected by name so multiple venues (each with its own
// signing convention) can share this one shape.
type CEXConfig struct {
	WSPublicURL  string        `mapstructure:"ws_public_url"`
	WSPrivateURL string        `mapstructure:"ws_private_url"`
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	APISecret    string        `mapstructure:"api_secret"`
	AuthScheme   string        `mapstructure:"auth_scheme"` // "binance-hmac-sha256" | "gemini-hmac-sha384"
	Symbols      []string      `mapstructure:"symbols"`
	DepthSpeedMs int           `mapstructure:"depth_speed_ms"`
	StaleTimeout time.Duration `mapstructure:"stale_timeout"`
}

// DEXConfig holds the decentralized-exchange connector's chain parameters
// and the pools it polls.
type DEXConfig struct {
	RPCURL            string                `mapstructure:"rpc_url"`
	WSURL             string                `mapstructure:"ws_url"`
	PollInterval      time.Duration         `mapstructure:"poll_interval"`
	PoolAddresses     map[string]string     `mapstructure:"pool_addresses"` // asset label -> pool address
	PoolLayouts       map[string]PoolLayout `mapstructure:"pool_layouts"`   // asset label -> layout
	RouterAddress     string                `mapstructure:"router_address"`
	QuoteTokenAddress string                `mapstructure:"quote_token_address"`
	RecipientAddress  string                `mapstructure:"recipient_address"`
	TokenAddresses    map[string]string     `mapstructure:"token_addresses"` // asset label -> base token address
}

// PoolLayout is the versioned, startup-validated byte layout of one pool
// program's account/storage data, used to decode a concentrated-liquidity
// sqrt-price word or a plain constant-product reserve pair.
type PoolLayout struct {
	Program            string `mapstructure:"program"`
	Kind               string `mapstructure:"kind"` // "sqrt_price" | "constant_product"
	SqrtPriceOffset    int    `mapstructure:"sqrt_price_offset"`
	SqrtPriceFracBits  uint   `mapstructure:"sqrt_price_frac_bits"`
	DecimalsA          int32  `mapstructure:"decimals_a"`
	DecimalsB          int32  `mapstructure:"decimals_b"`
	FeeBps             int    `mapstructure:"fee_bps"`
}

// AssetsConfig holds the ordered canonical asset labels and the per-venue
// symbol normalization table (the spec's single source of truth for
// pairing CEX and DEX symbols onto one canonical label).
type AssetsConfig struct {
	Labels    []string          `mapstructure:"labels"`
	SymbolMap map[string]string `mapstructure:"symbol_map"` // venue symbol -> canonical label
}

// RiskConfig holds the kill-switch and daily-loss parameters.
type RiskConfig struct {
	ObserveOnlyMode       bool    `mapstructure:"observe_only_mode"`
	MaxPositionSizeUSD    float64 `mapstructure:"max_position_size_usd"`
	DailyLossLimitUSD     float64 `mapstructure:"daily_loss_limit_usd"`
	StalenessThresholdSec int     `mapstructure:"staleness_threshold_sec"`
}

// MaxPositionSizeUSDDecimal returns the position cap as a decimal.
func (c *RiskConfig) MaxPositionSizeUSDDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MaxPositionSizeUSD)
}

// DailyLossLimitUSDDecimal returns the daily loss limit as a decimal.
func (c *RiskConfig) DailyLossLimitUSDDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.DailyLossLimitUSD)
}

// StalenessThreshold returns the staleness threshold as a duration.
func (c *RiskConfig) StalenessThreshold() time.Duration {
	return time.Duration(c.StalenessThresholdSec) * time.Second
}

// SignalConfig holds the cost model and window parameters for the signal
// engine's profitability predicate.
type SignalConfig struct {
	CEXFeePct        float64 `mapstructure:"cex_fee_pct"`
	DEXFeePct        float64 `mapstructure:"dex_fee_pct"`
	HaircutPct       float64 `mapstructure:"haircut_pct"`
	EmitThresholdPct float64 `mapstructure:"emit_threshold_pct"`
	WindowGraceSec   int     `mapstructure:"window_grace_sec"`
}

// CEXFeePctDecimal returns the CEX fee percentage as a decimal.
func (c *SignalConfig) CEXFeePctDecimal() decimal.Decimal { return decimal.NewFromFloat(c.CEXFeePct) }

// DEXFeePctDecimal returns the DEX fee percentage as a decimal.
func (c *SignalConfig) DEXFeePctDecimal() decimal.Decimal { return decimal.NewFromFloat(c.DEXFeePct) }

// HaircutPctDecimal returns the haircut percentage as a decimal.
func (c *SignalConfig) HaircutPctDecimal() decimal.Decimal { return decimal.NewFromFloat(c.HaircutPct) }

// EmitThresholdPctDecimal returns the emission threshold as a decimal.
func (c *SignalConfig) EmitThresholdPctDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.EmitThresholdPct)
}

// WindowGrace returns the window idle grace period as a duration.
func (c *SignalConfig) WindowGrace() time.Duration {
	return time.Duration(c.WindowGraceSec) * time.Second
}

// ExecutionConfig holds the dual-leg execution engine's concurrency cap.
// Its fee rates come from SignalConfig.
type ExecutionConfig struct {
	MaxInflightTrades int `mapstructure:"max_inflight_trades"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("ARB")
	v.AutomaticEnv()

	// Bind env vars to config keys
	bindEnvVars(v)

	// Set defaults
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "ARB_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "ARB_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "ARB_LOG_LEVEL", "LOG_LEVEL")

	// Ethereum
	v.BindEnv("ethereum.websocket_url", "ARB_ETH_WS_URL", "ETH_WS_URL")
	v.BindEnv("ethereum.http_url", "ARB_ETH_HTTP_URL", "ETH_HTTP_URL")
	v.BindEnv("ethereum.chain_id", "ARB_ETH_CHAIN_ID", "ETH_CHAIN_ID")

	// CEX
	v.BindEnv("cex.ws_public_url", "ARB_CEX_WS_PUBLIC_URL")
	v.BindEnv("cex.ws_private_url", "ARB_CEX_WS_PRIVATE_URL")
	v.BindEnv("cex.base_url", "ARB_CEX_BASE_URL")
	v.BindEnv("cex.api_key", "ARB_CEX_API_KEY")
	v.BindEnv("cex.api_secret", "ARB_CEX_API_SECRET")
	v.BindEnv("cex.symbols", "ARB_CEX_SYMBOLS")

	// DEX
	v.BindEnv("dex.rpc_url", "ARB_DEX_RPC_URL")
	v.BindEnv("dex.ws_url", "ARB_DEX_WS_URL")

	// Risk
	v.BindEnv("risk.observe_only_mode", "ARB_OBSERVE_ONLY_MODE")
	v.BindEnv("risk.max_position_size_usd", "ARB_MAX_POSITION_SIZE_USD")
	v.BindEnv("risk.daily_loss_limit_usd", "ARB_DAILY_LOSS_LIMIT_USD")

	// Signal
	v.BindEnv("signal.emit_threshold_pct", "ARB_EMIT_THRESHOLD_PCT")

	// Telemetry
	v.BindEnv("telemetry.enabled", "ARB_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "ARB_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "ARB_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "arbitrage-bot")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Ethereum defaults
	v.SetDefault("ethereum.chain_id", 1)
	v.SetDefault("ethereum.max_reconnects", 0) // infinite
	v.SetDefault("ethereum.initial_backoff", "1s")
	v.SetDefault("ethereum.max_backoff", "30s")

	// CEX defaults
	v.SetDefault("cex.ws_public_url", "wss://stream.binance.com:9443")
	v.SetDefault("cex.auth_scheme", "binance-hmac-sha256")
	v.SetDefault("cex.symbols", []string{"SOLUSD"})
	v.SetDefault("cex.depth_speed_ms", 100)
	v.SetDefault("cex.stale_timeout", "10s")

	// DEX defaults
	v.SetDefault("dex.poll_interval", "2s")
	v.SetDefault("dex.recipient_address", "0x0000000000000000000000000000000000000001")

	// Assets defaults
	v.SetDefault("assets_config.labels", []string{"SOL-USD"})
	v.SetDefault("assets_config.symbol_map", map[string]string{"solusd": "SOL-USD", "SOL-USD": "SOL-USD"})

	// Risk defaults
	v.SetDefault("risk.observe_only_mode", true)
	v.SetDefault("risk.max_position_size_usd", 1000)
	v.SetDefault("risk.daily_loss_limit_usd", 500)
	v.SetDefault("risk.staleness_threshold_sec", 10)

	// Signal defaults
	v.SetDefault("signal.cex_fee_pct", 0.35)
	v.SetDefault("signal.dex_fee_pct", 0.30)
	v.SetDefault("signal.haircut_pct", 0.75)
	v.SetDefault("signal.emit_threshold_pct", 0.10)
	v.SetDefault("signal.window_grace_sec", 20)

	// Execution defaults
	v.SetDefault("execution.max_inflight_trades", 4)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "arbitrage-bot")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Ethereum.HTTPURL == "" {
		return fmt.Errorf("ethereum.http_url is required")
	}
	if len(c.CEX.Symbols) == 0 {
		return fmt.Errorf("cex.symbols cannot be empty")
	}
	if len(c.Assets.Labels) == 0 {
		return fmt.Errorf("assets_config.labels cannot be empty")
	}
	for label, addr := range c.DEX.PoolAddresses {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("invalid dex.pool_addresses[%s]: %s", label, addr)
		}
	}
	if c.Risk.DailyLossLimitUSD <= 0 {
		return fmt.Errorf("risk.daily_loss_limit_usd must be positive")
	}
	return nil
}
