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
// built-in defaults, applies FRARB_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known FRARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Scanner ──
	setStringSlice(&cfg.Scanner.Symbols, "FRARB_SCANNER_SYMBOLS")
	setDuration(&cfg.Scanner.Interval, "FRARB_SCANNER_INTERVAL")
	setFloat64(&cfg.Scanner.SideNotionalUSD, "FRARB_SCANNER_SIDE_NOTIONAL_USD")
	setFloat64(&cfg.Scanner.RequestsPerSec, "FRARB_SCANNER_REQUESTS_PER_SEC")
	setInt(&cfg.Scanner.FetchRetries, "FRARB_SCANNER_FETCH_RETRIES")
	setDuration(&cfg.Scanner.CacheMaxAge, "FRARB_SCANNER_CACHE_MAX_AGE")
	setFloat64(&cfg.Scanner.AprAlertPct, "FRARB_SCANNER_APR_ALERT_PCT")
	setDuration(&cfg.Scanner.AprAlertCooldown, "FRARB_SCANNER_APR_ALERT_COOLDOWN")
	setDuration(&cfg.Scanner.FundingSoon, "FRARB_SCANNER_FUNDING_SOON")

	// ── Engine ──
	setFloat64(&cfg.Engine.KeepMarginBps, "FRARB_ENGINE_KEEP_MARGIN_BPS")
	setFloat64(&cfg.Engine.TakerFeeShort, "FRARB_ENGINE_TAKER_FEE_SHORT")
	setFloat64(&cfg.Engine.TakerFeeLong, "FRARB_ENGINE_TAKER_FEE_LONG")
	setFloat64(&cfg.Engine.SlippageBps, "FRARB_ENGINE_SLIPPAGE_BPS")
	setFloat64(&cfg.Engine.FundingInterval, "FRARB_ENGINE_FUNDING_INTERVAL_HOURS")
	setFloat64(&cfg.Engine.DefaultLeverage, "FRARB_ENGINE_DEFAULT_LEVERAGE")

	// ── Exchanges ──
	setStringSlice(&cfg.Exchanges.Enabled, "FRARB_EXCHANGES_ENABLED")
	setStr(&cfg.Exchanges.Bybit.BaseURL, "FRARB_EXCHANGES_BYBIT_BASE_URL")
	setFloat64(&cfg.Exchanges.Bybit.TakerFee, "FRARB_EXCHANGES_BYBIT_TAKER_FEE")
	setStr(&cfg.Exchanges.Bitget.BaseURL, "FRARB_EXCHANGES_BITGET_BASE_URL")
	setFloat64(&cfg.Exchanges.Bitget.TakerFee, "FRARB_EXCHANGES_BITGET_TAKER_FEE")
	setStr(&cfg.Exchanges.Mexc.BaseURL, "FRARB_EXCHANGES_MEXC_BASE_URL")
	setFloat64(&cfg.Exchanges.Mexc.TakerFee, "FRARB_EXCHANGES_MEXC_TAKER_FEE")
	setBool(&cfg.Exchanges.WSFeed.Enabled, "FRARB_EXCHANGES_WS_FEED_ENABLED")
	setStr(&cfg.Exchanges.WSFeed.URL, "FRARB_EXCHANGES_WS_FEED_URL")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "FRARB_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "FRARB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "FRARB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "FRARB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "FRARB_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "FRARB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "FRARB_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "FRARB_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "FRARB_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "FRARB_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "FRARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "FRARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "FRARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "FRARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "FRARB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "FRARB_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "FRARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "FRARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "FRARB_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "FRARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "FRARB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "FRARB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "FRARB_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "FRARB_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "FRARB_SERVER_PORT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "FRARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "FRARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "FRARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "FRARB_NOTIFY_EVENTS")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "FRARB_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "FRARB_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "FRARB_ARCHIVE_INTERVAL")

	// ── Top-level ──
	setStr(&cfg.Mode, "FRARB_MODE")
	setStr(&cfg.LogLevel, "FRARB_LOG_LEVEL")
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
