package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SIBYL_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SIBYL_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Polymarket ──
	setStr(&cfg.Polymarket.GammaHost, "SIBYL_POLYMARKET_GAMMA_HOST")
	setInt(&cfg.Polymarket.PageSize, "SIBYL_POLYMARKET_PAGE_SIZE")
	setInt(&cfg.Polymarket.MaxPages, "SIBYL_POLYMARKET_MAX_PAGES")
	setFloat64(&cfg.Polymarket.RateLimit, "SIBYL_POLYMARKET_RATE_LIMIT")

	// ── Oracle ──
	setStr(&cfg.Oracle.APIKey, "SIBYL_ORACLE_API_KEY")
	setStr(&cfg.Oracle.APIKey, "ANTHROPIC_API_KEY") // compatibility alias
	setStr(&cfg.Oracle.Model, "SIBYL_ORACLE_MODEL")
	setStr(&cfg.Oracle.BaseURL, "SIBYL_ORACLE_BASE_URL")
	setInt(&cfg.Oracle.MaxTokens, "SIBYL_ORACLE_MAX_TOKENS")
	setDuration(&cfg.Oracle.Timeout, "SIBYL_ORACLE_TIMEOUT")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "SIBYL_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SIBYL_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SIBYL_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SIBYL_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SIBYL_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SIBYL_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SIBYL_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SIBYL_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SIBYL_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SIBYL_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SIBYL_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SIBYL_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SIBYL_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SIBYL_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SIBYL_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SIBYL_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "SIBYL_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "SIBYL_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SIBYL_S3_REGION")
	setStr(&cfg.S3.Bucket, "SIBYL_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SIBYL_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SIBYL_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "SIBYL_S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.RetentionDays, "SIBYL_S3_RETENTION_DAYS")

	// ── Trading ──
	setFloat64(&cfg.Trading.InitialBalance, "SIBYL_TRADING_INITIAL_BALANCE")
	setBool(&cfg.Trading.AutoTrading, "SIBYL_TRADING_AUTO_TRADING")
	setDuration(&cfg.Trading.CycleInterval, "SIBYL_TRADING_CYCLE_INTERVAL")
	setDuration(&cfg.Trading.Throttle, "SIBYL_TRADING_THROTTLE")
	setDuration(&cfg.Trading.LockMaxAge, "SIBYL_TRADING_LOCK_MAX_AGE")
	setInt(&cfg.Trading.DailyAnalysisCap, "SIBYL_TRADING_DAILY_ANALYSIS_CAP")
	setInt(&cfg.Trading.PerCategoryCap, "SIBYL_TRADING_PER_CATEGORY_CAP")
	setInt(&cfg.Trading.BatchSize, "SIBYL_TRADING_BATCH_SIZE")
	setInt(&cfg.Trading.MaxBatches, "SIBYL_TRADING_MAX_BATCHES")

	// ── Sizing ──
	setFloat64(&cfg.Sizing.KellyFraction, "SIBYL_SIZING_KELLY_FRACTION")
	setFloat64(&cfg.Sizing.BankrollCap, "SIBYL_SIZING_BANKROLL_CAP")
	setFloat64(&cfg.Sizing.MinOrder, "SIBYL_SIZING_MIN_ORDER")
	setInt(&cfg.Sizing.ConfidenceFloor, "SIBYL_SIZING_CONFIDENCE_FLOOR")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SIBYL_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SIBYL_SERVER_PORT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SIBYL_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SIBYL_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SIBYL_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SIBYL_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "SIBYL_MODE")
	setStr(&cfg.LogLevel, "SIBYL_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
