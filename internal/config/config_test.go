package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "scan"
log_level = "debug"

[scanner]
symbols = ["SOLUSDT"]
interval = "30s"
side_notional_usd = 200.0

[engine]
keep_margin_bps = 8.0
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "scan", cfg.Mode)
	require.Equal(t, []string{"SOLUSDT"}, cfg.Scanner.Symbols)
	require.Equal(t, 200.0, cfg.Scanner.SideNotionalUSD)
	require.Equal(t, 8.0, cfg.Engine.KeepMarginBps)

	// Untouched sections keep their defaults.
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.Equal(t, 0.00055, cfg.Engine.TakerFeeShort)
	require.Equal(t, []string{"bybit", "bitget", "mexc"}, cfg.Exchanges.Enabled)
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, `mode = "full"`)

	t.Setenv("FRARB_MODE", "monitor")
	t.Setenv("FRARB_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("FRARB_SCANNER_SYMBOLS", "BTCUSDT, ETHUSDT ,SOLUSDT")
	t.Setenv("FRARB_ENGINE_KEEP_MARGIN_BPS", "7.5")
	t.Setenv("FRARB_SCANNER_INTERVAL", "2m")
	t.Setenv("FRARB_POSTGRES_RUN_MIGRATIONS", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "monitor", cfg.Mode)
	require.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	require.Equal(t, []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}, cfg.Scanner.Symbols)
	require.Equal(t, 7.5, cfg.Engine.KeepMarginBps)
	require.Equal(t, "2m0s", cfg.Scanner.Interval.String())
	require.False(t, cfg.Postgres.RunMigrations)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.LogLevel = "loud"
	cfg.Scanner.Symbols = nil
	cfg.Exchanges.Enabled = []string{"bybit"}
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown mode")
	require.Contains(t, err.Error(), "unknown log_level")
	require.Contains(t, err.Error(), "symbols must not be empty")
	require.Contains(t, err.Error(), "at least two venues")
	require.Contains(t, err.Error(), "redis: addr")
}

func TestValidateUnknownVenue(t *testing.T) {
	cfg := Defaults()
	cfg.Exchanges.Enabled = []string{"bybit", "binance"}

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), `unknown venue "binance"`)
}

func TestValidateArchiveRequiresS3(t *testing.T) {
	cfg := Defaults()
	cfg.Archive.Enabled = true
	cfg.S3.Bucket = ""

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "s3: bucket")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}
