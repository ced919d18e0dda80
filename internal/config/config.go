// Package config defines the top-level configuration for sibyl and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by SIBYL_* environment variables.
type Config struct {
	Polymarket PolymarketConfig `toml:"polymarket"`
	Oracle     OracleConfig     `toml:"oracle"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Trading    TradingConfig    `toml:"trading"`
	Filter     FilterConfig     `toml:"filter"`
	Sizing     SizingConfig     `toml:"sizing"`
	Resolution ResolutionConfig `toml:"resolution"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PolymarketConfig holds market-data API endpoints.
type PolymarketConfig struct {
	GammaHost string `toml:"gamma_host"`
	PageSize  int    `toml:"page_size"`
	MaxPages  int    `toml:"max_pages"`
	// RateLimit is the client-side request budget per second against the
	// gamma API.
	RateLimit float64 `toml:"rate_limit"`
}

// OracleConfig holds forecasting-oracle API parameters.
type OracleConfig struct {
	APIKey    string   `toml:"api_key"`
	Model     string   `toml:"model"`
	BaseURL   string   `toml:"base_url"`
	MaxTokens int      `toml:"max_tokens"`
	Timeout   duration `toml:"timeout"`
	// InputCostPerMTok / OutputCostPerMTok price a million tokens, used for
	// cost accounting and the amortized per-bet cost fed into sizing.
	InputCostPerMTok  float64 `toml:"input_cost_per_mtok"`
	OutputCostPerMTok float64 `toml:"output_cost_per_mtok"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the archiver.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
	RetentionDays  int    `toml:"retention_days"`
}

// TradingConfig holds cycle-level trading parameters.
type TradingConfig struct {
	InitialBalance float64 `toml:"initial_balance"`
	// AutoTrading gates order placement. When false, the pipeline still
	// runs through sizing and records what it would have bet.
	AutoTrading bool `toml:"auto_trading"`
	// CycleInterval is the scheduler tick; the throttle below decides
	// whether a tick actually calls the oracle.
	CycleInterval duration `toml:"cycle_interval"`
	// Throttle is the minimum time between successive oracle-call cycles.
	// It is also the TTL of the recently-analyzed cache.
	Throttle duration `toml:"throttle"`
	// LockMaxAge bounds the cycle lock validity: a crashed cycle is
	// treated as released after this long.
	LockMaxAge duration `toml:"lock_max_age"`
	// DailyAnalysisCap limits how many contracts one cycle sends to the
	// oracle across all batches.
	DailyAnalysisCap int `toml:"daily_analysis_cap"`
	PerCategoryCap   int `toml:"per_category_cap"`
	BatchSize        int `toml:"batch_size"`
	MaxBatches       int `toml:"max_batches"`
}

// FilterConfig holds market-filter thresholds. The liquidity floor is
// capital-scaled: max(AbsoluteFloor, Multiplier * cash * TypicalBetFraction),
// capped at FloorCeiling.
type FilterConfig struct {
	MaxDaysToClose     int      `toml:"max_days_to_close"`
	MinTimeToClose     duration `toml:"min_time_to_close"`
	AbsoluteFloor      float64  `toml:"absolute_floor"`
	FloorCeiling       float64  `toml:"floor_ceiling"`
	Multiplier         float64  `toml:"multiplier"`
	TypicalBetFraction float64  `toml:"typical_bet_fraction"`
	VolumeFloorRatio   float64  `toml:"volume_floor_ratio"`
	MaxSpread          float64  `toml:"max_spread"`
	SlowCategorySpread float64  `toml:"slow_category_spread"`
	ExtremePrice       float64  `toml:"extreme_price"`
	TargetPoolSize     int      `toml:"target_pool_size"`
}

// SizingConfig holds Kelly sizing parameters.
type SizingConfig struct {
	KellyFraction   float64 `toml:"kelly_fraction"`
	BankrollCap     float64 `toml:"bankroll_cap"`
	MinOrder        float64 `toml:"min_order"`
	ConfidenceFloor int     `toml:"confidence_floor"`
	MinPrice        float64 `toml:"min_price"`
	MaxPrice        float64 `toml:"max_price"`
	MinNetEdge      float64 `toml:"min_net_edge"`
	MinReturnPct    float64 `toml:"min_return_pct"`
	EdgeCeiling     float64 `toml:"edge_ceiling"`
}

// ResolutionConfig holds resolution-engine parameters.
type ResolutionConfig struct {
	Interval        duration `toml:"interval"`
	CheckCooldown   duration `toml:"check_cooldown"`
	WinnerThreshold float64  `toml:"winner_threshold"`
	DriftTolerance  float64  `toml:"drift_tolerance"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "30m", "90s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "30m" or "90s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			GammaHost: "https://gamma-api.polymarket.com",
			PageSize:  100,
			MaxPages:  5,
			RateLimit: 4,
		},
		Oracle: OracleConfig{
			Model:             "claude-sonnet-4-20250514",
			BaseURL:           "https://api.anthropic.com",
			MaxTokens:         4096,
			Timeout:           duration{90 * time.Second},
			InputCostPerMTok:  3.0,
			OutputCostPerMTok: 15.0,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "sibyl",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "sibyl-archive",
			ForcePathStyle: true,
			RetentionDays:  30,
		},
		Trading: TradingConfig{
			InitialBalance:   1000,
			AutoTrading:      true,
			CycleInterval:    duration{5 * time.Minute},
			Throttle:         duration{30 * time.Minute},
			LockMaxAge:       duration{10 * time.Minute},
			DailyAnalysisCap: 20,
			PerCategoryCap:   4,
			BatchSize:        5,
			MaxBatches:       3,
		},
		Filter: FilterConfig{
			MaxDaysToClose:     90,
			MinTimeToClose:     duration{time.Hour},
			AbsoluteFloor:      5_000,
			FloorCeiling:       20_000,
			Multiplier:         50,
			TypicalBetFraction: 0.05,
			VolumeFloorRatio:   1.0,
			MaxSpread:          0.05,
			SlowCategorySpread: 0.08,
			ExtremePrice:       0.03,
			TargetPoolSize:     15,
		},
		Sizing: SizingConfig{
			KellyFraction:   0.25,
			BankrollCap:     0.10,
			MinOrder:        1.0,
			ConfidenceFloor: 60,
			MinPrice:        0.05,
			MaxPrice:        0.95,
			MinNetEdge:      0.02,
			MinReturnPct:    0.005,
			EdgeCeiling:     0.40,
		},
		Resolution: ResolutionConfig{
			Interval:        duration{5 * time.Minute},
			CheckCooldown:   duration{30 * time.Minute},
			WinnerThreshold: 0.95,
			DriftTolerance:  0.01,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8080,
		},
		Mode:     "run",
		LogLevel: "info",
	}
}

// Validate checks the configuration for obvious mistakes and returns a
// combined error listing every problem found.
func (c *Config) Validate() error {
	var problems []string

	switch c.Mode {
	case "run", "once", "serve":
	default:
		problems = append(problems, fmt.Sprintf("mode %q is not one of run, once, serve", c.Mode))
	}

	if c.Oracle.APIKey == "" && c.Mode != "serve" {
		problems = append(problems, "oracle.api_key is required outside serve mode")
	}
	if c.Trading.InitialBalance <= 0 {
		problems = append(problems, "trading.initial_balance must be positive")
	}
	if c.Trading.Throttle.Duration <= 0 {
		problems = append(problems, "trading.throttle must be positive")
	}
	if c.Trading.LockMaxAge.Duration <= 0 {
		problems = append(problems, "trading.lock_max_age must be positive")
	}
	if c.Trading.BatchSize <= 0 || c.Trading.MaxBatches <= 0 {
		problems = append(problems, "trading.batch_size and trading.max_batches must be positive")
	}
	if c.Sizing.KellyFraction <= 0 || c.Sizing.KellyFraction > 1 {
		problems = append(problems, "sizing.kelly_fraction must be in (0, 1]")
	}
	if c.Sizing.BankrollCap <= 0 || c.Sizing.BankrollCap > 1 {
		problems = append(problems, "sizing.bankroll_cap must be in (0, 1]")
	}
	if c.Sizing.MinPrice <= 0 || c.Sizing.MaxPrice >= 1 || c.Sizing.MinPrice >= c.Sizing.MaxPrice {
		problems = append(problems, "sizing price band must satisfy 0 < min_price < max_price < 1")
	}
	if c.Resolution.WinnerThreshold <= 0.5 || c.Resolution.WinnerThreshold > 1 {
		problems = append(problems, "resolution.winner_threshold must be in (0.5, 1]")
	}
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		problems = append(problems, "server.port must be a valid TCP port")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}
