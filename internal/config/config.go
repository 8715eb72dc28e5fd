// Package config defines the top-level configuration for the funding
// screener and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by FRARB_* environment variables.
type Config struct {
	Scanner   ScannerConfig   `toml:"scanner"`
	Engine    EngineConfig    `toml:"engine"`
	Rank      RankConfig      `toml:"rank"`
	Exchanges ExchangesConfig `toml:"exchanges"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Archive   ArchiveConfig   `toml:"archive"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// ScannerConfig holds the screening loop parameters.
type ScannerConfig struct {
	Symbols          []string `toml:"symbols"`
	Interval         duration `toml:"interval"`
	SideNotionalUSD  float64  `toml:"side_notional_usd"`
	RequestsPerSec   float64  `toml:"requests_per_sec"`
	FetchRetries     int      `toml:"fetch_retries"`
	CacheMaxAge      duration `toml:"cache_max_age"`
	AprAlertPct      float64  `toml:"apr_alert_pct"`
	AprAlertCooldown duration `toml:"apr_alert_cooldown"`
	FundingSoon      duration `toml:"funding_soon"`
}

// EngineConfig holds the valuation parameters.
type EngineConfig struct {
	KeepMarginBps   float64 `toml:"keep_margin_bps"`
	TakerFeeShort   float64 `toml:"taker_fee_short"`
	TakerFeeLong    float64 `toml:"taker_fee_long"`
	SlippageBps     float64 `toml:"slippage_bps"`
	FundingInterval float64 `toml:"funding_interval_hours"`
	DefaultLeverage float64 `toml:"default_leverage"`
}

// RankConfig holds the liquidity scorer tuning.
type RankConfig struct {
	VolumeTiersUSD []float64 `toml:"volume_tiers_usd"`
	DepthTiersUSD  []float64 `toml:"depth_tiers_usd"`
	WideGapBps     float64   `toml:"wide_gap_bps"`
	ModerateGapBps float64   `toml:"moderate_gap_bps"`
	HighAprPct     float64   `toml:"high_apr_pct"`
	MidAprPct      float64   `toml:"mid_apr_pct"`
	LowAprPct      float64   `toml:"low_apr_pct"`
}

// ExchangesConfig holds the per-venue adapter settings.
type ExchangesConfig struct {
	Enabled []string     `toml:"enabled"`
	Bybit   VenueConfig  `toml:"bybit"`
	Bitget  VenueConfig  `toml:"bitget"`
	Mexc    VenueConfig  `toml:"mexc"`
	WSFeed  WSFeedConfig `toml:"ws_feed"`
}

// VenueConfig holds one venue's endpoint and fee assumption.
type VenueConfig struct {
	BaseURL  string  `toml:"base_url"`
	TakerFee float64 `toml:"taker_fee"`
}

// WSFeedConfig holds the live ticker stream settings.
type WSFeedConfig struct {
	Enabled bool   `toml:"enabled"`
	URL     string `toml:"url"`
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

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
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

// ArchiveConfig holds the evaluation-history archival parameters.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
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
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Scanner: ScannerConfig{
			Symbols:          []string{"BTCUSDT", "ETHUSDT"},
			Interval:         duration{60 * time.Second},
			SideNotionalUSD:  50,
			RequestsPerSec:   5,
			FetchRetries:     3,
			CacheMaxAge:      duration{30 * time.Second},
			AprAlertPct:      100,
			AprAlertCooldown: duration{30 * time.Minute},
			FundingSoon:      duration{5 * time.Minute},
		},
		Engine: EngineConfig{
			KeepMarginBps:   5,
			TakerFeeShort:   0.00055,
			TakerFeeLong:    0.00060,
			SlippageBps:     6,
			FundingInterval: 4,
			DefaultLeverage: 1,
		},
		Rank: RankConfig{
			VolumeTiersUSD: []float64{2e9, 1e9, 3e8, 1e8},
			DepthTiersUSD:  []float64{1e6, 5e5, 2e5, 1e5},
			WideGapBps:     15,
			ModerateGapBps: 5,
			HighAprPct:     200,
			MidAprPct:      100,
			LowAprPct:      80,
		},
		Exchanges: ExchangesConfig{
			Enabled: []string{"bybit", "bitget", "mexc"},
			Bybit:   VenueConfig{TakerFee: 0.00055},
			Bitget:  VenueConfig{TakerFee: 0.00060},
			Mexc:    VenueConfig{TakerFee: 0.00060},
			WSFeed:  WSFeedConfig{Enabled: true},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "frarb",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "frarb-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8000,
		},
		Notify: NotifyConfig{
			Events: []string{"keep_candidate", "position_close", "apr_alert", "funding_soon", "error"},
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scan":    true,
	"monitor": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var knownExchanges = map[string]bool{
	"bybit":  true,
	"bitget": true,
	"mexc":   true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, monitor, full)", c.Mode))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Scanner
	if len(c.Scanner.Symbols) == 0 {
		errs = append(errs, "scanner: symbols must not be empty")
	}
	if c.Scanner.Interval.Duration <= 0 {
		errs = append(errs, "scanner: interval must be > 0")
	}
	if c.Scanner.SideNotionalUSD <= 0 {
		errs = append(errs, "scanner: side_notional_usd must be > 0")
	}
	if c.Scanner.RequestsPerSec <= 0 {
		errs = append(errs, "scanner: requests_per_sec must be > 0")
	}
	if c.Scanner.FetchRetries < 1 {
		errs = append(errs, "scanner: fetch_retries must be >= 1")
	}

	// Engine
	if c.Engine.KeepMarginBps < 0 {
		errs = append(errs, "engine: keep_margin_bps must be >= 0")
	}
	if c.Engine.TakerFeeShort < 0 || c.Engine.TakerFeeLong < 0 {
		errs = append(errs, "engine: taker fees must be >= 0")
	}
	if c.Engine.SlippageBps < 0 {
		errs = append(errs, "engine: slippage_bps must be >= 0")
	}
	if c.Engine.FundingInterval <= 0 {
		errs = append(errs, "engine: funding_interval_hours must be > 0")
	}

	// Exchanges
	if len(c.Exchanges.Enabled) < 2 {
		errs = append(errs, "exchanges: at least two venues must be enabled")
	}
	for _, ex := range c.Exchanges.Enabled {
		if !knownExchanges[ex] {
			errs = append(errs, fmt.Sprintf("exchanges: unknown venue %q (valid: bybit, bitget, mexc)", ex))
		}
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 is only needed when archival is on.
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
