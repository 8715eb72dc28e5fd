package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/hayatoko/frarb/internal/blob/s3"
	"github.com/hayatoko/frarb/internal/cache/redis"
	"github.com/hayatoko/frarb/internal/config"
	"github.com/hayatoko/frarb/internal/domain"
	"github.com/hayatoko/frarb/internal/engine"
	"github.com/hayatoko/frarb/internal/exchange"
	"github.com/hayatoko/frarb/internal/exchange/bitget"
	"github.com/hayatoko/frarb/internal/exchange/bybit"
	"github.com/hayatoko/frarb/internal/exchange/mexc"
	"github.com/hayatoko/frarb/internal/notify"
	"github.com/hayatoko/frarb/internal/store/postgres"
)

// Dependencies bundles every concrete dependency the application modes need.
// It is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	PositionStore   domain.PositionStore
	EvaluationStore domain.EvaluationStore
	AuditStore      domain.AuditStore

	// Caches and bus
	FundingCache domain.FundingCache
	Cooldown     domain.CooldownGuard
	SignalBus    domain.SignalBus

	// Blob storage, only wired when archival is enabled
	BlobWriter domain.BlobWriter
	Archiver   domain.Archiver

	// Market data
	Venues      *exchange.Set
	BybitClient *bybit.Client // nil when bybit is not enabled

	// Core
	Engine *engine.Engine

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.PositionStore = postgres.NewPositionStore(pool)
	deps.EvaluationStore = postgres.NewEvaluationStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.FundingCache = redis.NewFundingCache(redisClient)
	deps.Cooldown = redis.NewCooldownGuard(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- S3 blob storage (archival only) ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.EvaluationStore, deps.AuditStore)
	}

	// --- Exchange adapters ---
	deps.Venues, deps.BybitClient, err = buildVenues(cfg)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: exchanges: %w", err)
	}

	// --- Engine ---
	deps.Engine, err = engine.New(engine.Config{
		Exchanges:             cfg.Exchanges.Enabled,
		KeepMarginBps:         cfg.Engine.KeepMarginBps,
		FallbackTakerFeeShort: cfg.Engine.TakerFeeShort,
		FallbackTakerFeeLong:  cfg.Engine.TakerFeeLong,
		FallbackSlippageBps:   cfg.Engine.SlippageBps,
		Rank:                  engineRankConfig(cfg.Rank),
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: engine: %w", err)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

// buildVenues constructs the enabled exchange adapters.
func buildVenues(cfg *config.Config) (*exchange.Set, *bybit.Client, error) {
	var (
		adapters    []exchange.MarketData
		bybitClient *bybit.Client
	)

	for _, name := range cfg.Exchanges.Enabled {
		switch name {
		case "bybit":
			var opts []bybit.Option
			if fee := cfg.Exchanges.Bybit.TakerFee; fee > 0 {
				opts = append(opts, bybit.WithTakerFee(fee))
			}
			bybitClient = bybit.New(cfg.Exchanges.Bybit.BaseURL, opts...)
			adapters = append(adapters, bybitClient)
		case "bitget":
			var opts []bitget.Option
			if fee := cfg.Exchanges.Bitget.TakerFee; fee > 0 {
				opts = append(opts, bitget.WithTakerFee(fee))
			}
			adapters = append(adapters, bitget.New(cfg.Exchanges.Bitget.BaseURL, opts...))
		case "mexc":
			var opts []mexc.Option
			if fee := cfg.Exchanges.Mexc.TakerFee; fee > 0 {
				opts = append(opts, mexc.WithTakerFee(fee))
			}
			adapters = append(adapters, mexc.New(cfg.Exchanges.Mexc.BaseURL, opts...))
		default:
			return nil, nil, fmt.Errorf("unknown venue %q", name)
		}
	}

	set, err := exchange.NewSet(adapters...)
	if err != nil {
		return nil, nil, err
	}
	return set, bybitClient, nil
}

// engineRankConfig overlays the configured scorer tuning onto the engine
// defaults. Penalty points and grade cutoffs are fixed; the config exposes
// the tier tables and thresholds only.
func engineRankConfig(cfg config.RankConfig) engine.RankConfig {
	rc := engine.DefaultRankConfig()
	if len(cfg.VolumeTiersUSD) > 0 {
		rc.VolumeTiersUSD = cfg.VolumeTiersUSD
	}
	if len(cfg.DepthTiersUSD) > 0 {
		rc.DepthTiersUSD = cfg.DepthTiersUSD
	}
	if cfg.WideGapBps > 0 {
		rc.WideGapBps = cfg.WideGapBps
	}
	if cfg.ModerateGapBps > 0 {
		rc.ModerateGapBps = cfg.ModerateGapBps
	}
	if cfg.HighAprPct > 0 {
		rc.HighAprPct = cfg.HighAprPct
	}
	if cfg.MidAprPct > 0 {
		rc.MidAprPct = cfg.MidAprPct
	}
	if cfg.LowAprPct > 0 {
		rc.LowAprPct = cfg.LowAprPct
	}
	return rc
}
