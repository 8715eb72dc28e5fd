package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hayatoko/frarb/internal/domain"
	"github.com/hayatoko/frarb/internal/exchange/bybit"
	"github.com/hayatoko/frarb/internal/scanner"
	"github.com/hayatoko/frarb/internal/server"
	"github.com/hayatoko/frarb/internal/service"
)

// ScanMode screens candidates only: the scanner loop, the live ticker feed,
// the HTTP API, and archival when enabled. No position monitoring.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	g, ctx := errgroup.WithContext(ctx)

	screenerSvc, positionSvc := a.buildServices(deps)

	sc := scanner.New(deps.Venues, deps.Engine, screenerSvc, nil, deps.FundingCache, a.scannerConfig(), a.logger)
	g.Go(func() error {
		return ignoreCancel(ctx, sc.Run(ctx))
	})

	a.startWSFeed(ctx, g, deps)
	a.startArchiveLoop(ctx, g, deps)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, positionSvc, screenerSvc)
	}

	return g.Wait()
}

// MonitorMode tracks open positions only: it refreshes each leg's funding
// tick and re-marks the ledger on the scan cadence. No candidate screening.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	screenerSvc, positionSvc := a.buildServices(deps)

	g.Go(func() error {
		interval := a.cfg.Scanner.Interval.Duration
		if interval <= 0 {
			interval = time.Minute
		}

		sweep := func(now time.Time) {
			a.refreshPositionTicks(ctx, deps, positionSvc, now)
			if _, err := positionSvc.ReevaluateAll(ctx, now); err != nil {
				a.logger.WarnContext(ctx, "position sweep failed",
					slog.String("error", err.Error()),
				)
			}
		}

		sweep(time.Now().UTC())
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				sweep(time.Now().UTC())
			}
		}
	})

	a.startWSFeed(ctx, g, deps)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, positionSvc, screenerSvc)
	}

	return g.Wait()
}

// FullMode runs everything: screening, position monitoring, the live ticker
// feed, the HTTP API, and archival when enabled.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	screenerSvc, positionSvc := a.buildServices(deps)

	sc := scanner.New(deps.Venues, deps.Engine, screenerSvc, positionSvc, deps.FundingCache, a.scannerConfig(), a.logger)
	g.Go(func() error {
		return ignoreCancel(ctx, sc.Run(ctx))
	})

	a.startWSFeed(ctx, g, deps)
	a.startArchiveLoop(ctx, g, deps)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, positionSvc, screenerSvc)
	}

	return g.Wait()
}

// buildServices constructs the service layer shared by all modes.
func (a *App) buildServices(deps *Dependencies) (*service.ScreenerService, *service.PositionService) {
	screenerSvc := service.NewScreenerService(
		deps.EvaluationStore, deps.SignalBus, deps.Notifier, a.logger,
	)
	positionSvc := service.NewPositionService(
		deps.PositionStore, deps.EvaluationStore, deps.Engine, deps.FundingCache,
		deps.SignalBus, deps.AuditStore, deps.Cooldown, deps.Notifier,
		service.PositionConfig{
			DefaultLeverage:    a.cfg.Engine.DefaultLeverage,
			FundingSoonWindow:  a.cfg.Scanner.FundingSoon.Duration,
			CloseAlertCooldown: a.cfg.Scanner.AprAlertCooldown.Duration,
			AprFloorPct:        a.cfg.Scanner.AprAlertPct,
			AprAlertCooldown:   a.cfg.Scanner.AprAlertCooldown.Duration,
		},
		a.logger,
	)
	return screenerSvc, positionSvc
}

func (a *App) scannerConfig() scanner.Config {
	return scanner.Config{
		Symbols:         a.cfg.Scanner.Symbols,
		Interval:        a.cfg.Scanner.Interval.Duration,
		SideNotionalUSD: a.cfg.Scanner.SideNotionalUSD,
		SlippageBps:     a.cfg.Engine.SlippageBps,
		RequestsPerSec:  a.cfg.Scanner.RequestsPerSec,
		FetchRetries:    a.cfg.Scanner.FetchRetries,
		CacheMaxAge:     a.cfg.Scanner.CacheMaxAge.Duration,
	}
}

// startWSFeed adds the bybit live ticker stream when enabled. Ticks land in
// the funding cache, where both the scanner and the position sweep read them.
func (a *App) startWSFeed(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Exchanges.WSFeed.Enabled || deps.BybitClient == nil {
		return
	}

	feed := bybit.NewWSFeed(
		a.cfg.Exchanges.WSFeed.URL,
		a.cfg.Scanner.Symbols,
		deps.BybitClient,
		func(ctx context.Context, tick domain.FundingTick) {
			if err := deps.FundingCache.SetTick(ctx, tick); err != nil {
				a.logger.WarnContext(ctx, "ws tick cache write failed",
					slog.String("symbol", tick.Symbol),
					slog.String("error", err.Error()),
				)
			}
		},
		a.logger,
	)

	g.Go(func() error {
		defer feed.Close()
		return ignoreCancel(ctx, feed.Run(ctx))
	})
}

// startArchiveLoop adds the periodic evaluation-history archival goroutine.
// Archived rows are deleted from the primary store only after the upload
// succeeded.
func (a *App) startArchiveLoop(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Archive.Enabled || deps.Archiver == nil {
		return
	}

	interval := a.cfg.Archive.Interval.Duration
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour

	g.Go(func() error {
		runOnce := func() {
			before := time.Now().UTC().Add(-retention)
			count, err := deps.Archiver.ArchiveEvaluations(ctx, before)
			if err != nil {
				a.logger.ErrorContext(ctx, "evaluation archive failed",
					slog.String("error", err.Error()),
				)
				return
			}
			if count == 0 {
				return
			}

			deleted, err := deps.EvaluationStore.DeleteBefore(ctx, before)
			if err != nil {
				a.logger.ErrorContext(ctx, "archived evaluation delete failed",
					slog.String("error", err.Error()),
				)
				return
			}
			a.logger.InfoContext(ctx, "evaluations archived",
				slog.Int64("archived", count),
				slog.Int64("deleted", deleted),
				slog.Time("before", before),
			)
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				runOnce()
			}
		}
	})
}

// refreshPositionTicks REST-fetches each open position leg's funding state
// into the cache. Monitor mode has no scanner sweep to keep the cache warm
// for venues without a live stream.
func (a *App) refreshPositionTicks(ctx context.Context, deps *Dependencies, positionSvc *service.PositionService, now time.Time) {
	open, err := positionSvc.ListOpen(ctx)
	if err != nil {
		a.logger.WarnContext(ctx, "list open positions failed",
			slog.String("error", err.Error()),
		)
		return
	}

	for _, pos := range open {
		for _, leg := range []domain.Leg{pos.ShortLeg, pos.LongLeg} {
			venue, err := deps.Venues.Get(leg.Exchange)
			if err != nil {
				a.logger.WarnContext(ctx, "unknown venue for open position",
					slog.String("position_id", pos.ID),
					slog.String("venue", leg.Exchange),
				)
				continue
			}

			fr, err := venue.FundingRate(ctx, pos.Symbol)
			if err != nil {
				a.logger.WarnContext(ctx, "funding refresh failed",
					slog.String("venue", leg.Exchange),
					slog.String("symbol", pos.Symbol),
					slog.String("error", err.Error()),
				)
				continue
			}
			mark, err := venue.MarkPrice(ctx, pos.Symbol)
			if err != nil {
				a.logger.WarnContext(ctx, "mark refresh failed",
					slog.String("venue", leg.Exchange),
					slog.String("symbol", pos.Symbol),
					slog.String("error", err.Error()),
				)
				continue
			}

			if err := deps.FundingCache.SetTick(ctx, domain.FundingTick{
				Exchange:  leg.Exchange,
				Symbol:    pos.Symbol,
				Rate4h:    fr.Rate4h,
				MarkPrice: mark,
				At:        now,
			}); err != nil {
				a.logger.WarnContext(ctx, "funding cache write failed",
					slog.String("venue", leg.Exchange),
					slog.String("symbol", pos.Symbol),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// startHTTPServer adds the HTTP API goroutines with graceful shutdown.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, positionSvc *service.PositionService, screenerSvc *service.ScreenerService) {
	srv := server.New(server.Config{Port: a.cfg.Server.Port}, positionSvc, positionSvc, positionSvc, screenerSvc, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// ignoreCancel converts the error a goroutine returns on context cancellation
// into a clean shutdown.
func ignoreCancel(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return err
}
