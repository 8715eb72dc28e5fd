// Package scanner runs the screening loop: it polls every configured symbol
// across every venue pair on a fixed cadence, assembles valuation inputs,
// invokes the engine, and hands the outcomes to the service layer. REST
// traffic is rate-limited per venue and retried with backoff; the funding
// cache absorbs repeat reads within a sweep and between sweeps.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hayatoko/frarb/internal/domain"
	"github.com/hayatoko/frarb/internal/engine"
	"github.com/hayatoko/frarb/internal/exchange"
)

// Config holds the screening loop parameters.
type Config struct {
	Symbols         []string
	Interval        time.Duration
	SideNotionalUSD float64
	SlippageBps     float64
	RequestsPerSec  float64
	FetchRetries    int
	CacheMaxAge     time.Duration
}

// Recorder receives screening outcomes.
type Recorder interface {
	Record(ctx context.Context, ev domain.EvalResult) (domain.EvalResult, error)
	RecordRank(ctx context.Context, r domain.RankResult) (domain.RankResult, error)
}

// PositionSweeper re-marks open positions against live funding.
type PositionSweeper interface {
	ReevaluateAll(ctx context.Context, now time.Time) ([]domain.PositionSnapshot, error)
}

// venueSnapshot is one venue's funding state for a symbol within a sweep.
type venueSnapshot struct {
	rate4h        float64
	mark          float64
	intervalHours float64
	nextFundingAt time.Time
	takerFee      float64
}

// fundingMeta remembers slow-moving per-listing facts (settlement cadence,
// next settlement time) so cache hits do not force a REST round trip.
type fundingMeta struct {
	intervalHours float64
	nextFundingAt time.Time
}

// Scanner drives the periodic screen. Construct with New and start Run in a
// goroutine; it returns when the context is cancelled.
type Scanner struct {
	venues   *exchange.Set
	eng      *engine.Engine
	recorder Recorder
	sweeper  PositionSweeper // optional; nil in screen-only mode
	cache    domain.FundingCache
	cfg      Config
	logger   *slog.Logger

	limiters map[string]*rate.Limiter

	mu   sync.Mutex
	meta map[string]fundingMeta
}

// New creates a Scanner. sweeper may be nil when position monitoring is not
// wanted.
func New(
	venues *exchange.Set,
	eng *engine.Engine,
	recorder Recorder,
	sweeper PositionSweeper,
	cache domain.FundingCache,
	cfg Config,
	logger *slog.Logger,
) *Scanner {
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 5
	}
	if cfg.FetchRetries < 1 {
		cfg.FetchRetries = 1
	}

	limiters := make(map[string]*rate.Limiter, len(venues.Names()))
	for _, name := range venues.Names() {
		limiters[name] = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1)
	}

	return &Scanner{
		venues:   venues,
		eng:      eng,
		recorder: recorder,
		sweeper:  sweeper,
		cache:    cache,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "scanner")),
		limiters: limiters,
		meta:     make(map[string]fundingMeta),
	}
}

// Run executes one sweep immediately and then one per configured interval
// until the context is cancelled.
func (s *Scanner) Run(ctx context.Context) error {
	if s.cfg.Interval <= 0 {
		return fmt.Errorf("scanner: interval must be positive")
	}

	s.logger.InfoContext(ctx, "scanner starting",
		slog.Int("symbols", len(s.cfg.Symbols)),
		slog.Int("venues", len(s.venues.Names())),
		slog.Duration("interval", s.cfg.Interval),
	)

	s.sweep(ctx, time.Now().UTC())

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx, time.Now().UTC())
		}
	}
}

// sweep screens every symbol across every venue pair, then re-marks open
// positions. Venue errors degrade to skipped legs, never a failed sweep.
func (s *Scanner) sweep(ctx context.Context, now time.Time) {
	start := time.Now()
	var evaluated, kept int

	for _, symbol := range s.cfg.Symbols {
		snaps := s.collect(ctx, symbol, now)
		e, k := s.screenPairs(ctx, symbol, snaps)
		evaluated += e
		kept += k
	}

	if s.sweeper != nil {
		if _, err := s.sweeper.ReevaluateAll(ctx, now); err != nil {
			s.logger.WarnContext(ctx, "position sweep failed",
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "sweep complete",
		slog.Int("evaluated", evaluated),
		slog.Int("kept", kept),
		slog.Duration("elapsed", time.Since(start)),
	)
}

// collect gathers one snapshot per venue for the symbol, in registration
// order. Failing venues are logged and omitted.
func (s *Scanner) collect(ctx context.Context, symbol string, now time.Time) map[string]venueSnapshot {
	snaps := make(map[string]venueSnapshot, len(s.venues.Names()))
	for _, name := range s.venues.Names() {
		venue, err := s.venues.Get(name)
		if err != nil {
			continue
		}
		snap, err := s.snapshot(ctx, venue, symbol, now)
		if err != nil {
			s.logger.WarnContext(ctx, "venue snapshot failed",
				slog.String("venue", name),
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
			continue
		}
		snaps[name] = snap
	}
	return snaps
}

// screenPairs evaluates every unordered venue pair that produced a snapshot.
func (s *Scanner) screenPairs(ctx context.Context, symbol string, snaps map[string]venueSnapshot) (evaluated, kept int) {
	names := s.venues.Names()
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			a, okA := snaps[names[i]]
			b, okB := snaps[names[j]]
			if !okA || !okB {
				continue
			}

			// Accrual is modeled at the faster of the two settlement
			// cadences.
			interval := math.Min(a.intervalHours, b.intervalHours)

			ev, err := s.eng.EvaluateCandidate(engine.CandidateInput{
				Symbol:          symbol,
				ExchangeA:       names[i],
				ExchangeB:       names[j],
				FundingA4h:      a.rate4h,
				FundingB4h:      b.rate4h,
				MarkA:           a.mark,
				MarkB:           b.mark,
				SideNotionalUSD: s.cfg.SideNotionalUSD,
				TakerFeeA:       a.takerFee,
				TakerFeeB:       b.takerFee,
				SlippageBpsA:    s.cfg.SlippageBps,
				SlippageBpsB:    s.cfg.SlippageBps,
				IntervalHours:   interval,
			})
			if err != nil {
				s.logger.WarnContext(ctx, "candidate evaluation failed",
					slog.String("symbol", symbol),
					slog.String("pair", names[i]+"/"+names[j]),
					slog.String("error", err.Error()),
				)
				continue
			}

			ev, err = s.recorder.Record(ctx, ev)
			if err != nil {
				s.logger.ErrorContext(ctx, "record evaluation failed",
					slog.String("symbol", symbol),
					slog.String("error", err.Error()),
				)
				continue
			}
			evaluated++

			if ev.Decision == domain.DecisionKeep {
				kept++
				s.rankCandidate(ctx, ev)
			}
		}
	}
	return evaluated, kept
}

// rankCandidate fetches both legs' liquidity and records the pair's grade.
// Ranking is best-effort display data; failures only log.
func (s *Scanner) rankCandidate(ctx context.Context, ev domain.EvalResult) {
	shortLiq, err := s.fetchLiquidity(ctx, ev.ShortExchange, ev.Symbol)
	if err != nil {
		s.logger.WarnContext(ctx, "short leg liquidity fetch failed",
			slog.String("venue", ev.ShortExchange),
			slog.String("symbol", ev.Symbol),
			slog.String("error", err.Error()),
		)
		return
	}
	longLiq, err := s.fetchLiquidity(ctx, ev.LongExchange, ev.Symbol)
	if err != nil {
		s.logger.WarnContext(ctx, "long leg liquidity fetch failed",
			slog.String("venue", ev.LongExchange),
			slog.String("symbol", ev.Symbol),
			slog.String("error", err.Error()),
		)
		return
	}

	r, err := s.eng.ScoreLiquidity(engine.LiquidityInput{
		Symbol:         ev.Symbol,
		ShortExchange:  ev.ShortExchange,
		LongExchange:   ev.LongExchange,
		AprGrossPct:    ev.AprGrossPct,
		Diff4h:         ev.Diff4h,
		IntervalHours:  ev.IntervalHours,
		VolumeShortUSD: shortLiq.Volume24hUSD,
		VolumeLongUSD:  longLiq.Volume24hUSD,
		DepthShortUSD:  math.Min(shortLiq.BestBidUSD, shortLiq.BestAskUSD),
		DepthLongUSD:   math.Min(longLiq.BestBidUSD, longLiq.BestAskUSD),
		ShortMark:      ev.ShortMark,
		LongMark:       ev.LongMark,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "liquidity scoring failed",
			slog.String("symbol", ev.Symbol),
			slog.String("error", err.Error()),
		)
		return
	}

	if _, err := s.recorder.RecordRank(ctx, r); err != nil {
		s.logger.WarnContext(ctx, "record rank failed",
			slog.String("symbol", ev.Symbol),
			slog.String("error", err.Error()),
		)
	}
}

// snapshot returns the venue's funding state for symbol, reading through the
// funding cache before falling back to REST.
func (s *Scanner) snapshot(ctx context.Context, venue exchange.MarketData, symbol string, now time.Time) (venueSnapshot, error) {
	name := venue.Name()

	if s.cache != nil && s.cfg.CacheMaxAge > 0 {
		tick, err := s.cache.GetTick(ctx, name, symbol)
		if err == nil && tick.MarkPrice > 0 && now.Sub(tick.At) <= s.cfg.CacheMaxAge {
			if m, ok := s.metaFor(name, symbol); ok {
				return venueSnapshot{
					rate4h:        tick.Rate4h,
					mark:          tick.MarkPrice,
					intervalHours: m.intervalHours,
					nextFundingAt: m.nextFundingAt,
					takerFee:      venue.TakerFeeRate(),
				}, nil
			}
		}
	}

	var fr exchange.FundingRate
	err := s.fetchWithRetry(ctx, name, func(ctx context.Context) error {
		var err error
		fr, err = venue.FundingRate(ctx, symbol)
		return err
	})
	if err != nil {
		return venueSnapshot{}, fmt.Errorf("scanner: funding rate %s/%s: %w", name, symbol, err)
	}

	var mark float64
	err = s.fetchWithRetry(ctx, name, func(ctx context.Context) error {
		var err error
		mark, err = venue.MarkPrice(ctx, symbol)
		return err
	})
	if err != nil {
		return venueSnapshot{}, fmt.Errorf("scanner: mark price %s/%s: %w", name, symbol, err)
	}

	s.setMeta(name, symbol, fundingMeta{
		intervalHours: fr.IntervalHours,
		nextFundingAt: fr.NextFundingAt,
	})

	if s.cache != nil {
		if err := s.cache.SetTick(ctx, domain.FundingTick{
			Exchange:  name,
			Symbol:    symbol,
			Rate4h:    fr.Rate4h,
			MarkPrice: mark,
			At:        now,
		}); err != nil {
			s.logger.WarnContext(ctx, "funding cache write failed",
				slog.String("venue", name),
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
		}
	}

	return venueSnapshot{
		rate4h:        fr.Rate4h,
		mark:          mark,
		intervalHours: fr.IntervalHours,
		nextFundingAt: fr.NextFundingAt,
		takerFee:      venue.TakerFeeRate(),
	}, nil
}

func (s *Scanner) fetchLiquidity(ctx context.Context, venueName, symbol string) (exchange.Liquidity, error) {
	venue, err := s.venues.Get(venueName)
	if err != nil {
		return exchange.Liquidity{}, err
	}

	var liq exchange.Liquidity
	err = s.fetchWithRetry(ctx, venueName, func(ctx context.Context) error {
		var err error
		liq, err = venue.Liquidity(ctx, symbol)
		return err
	})
	return liq, err
}

// fetchWithRetry waits for the venue's rate limiter and retries with linear
// backoff up to the configured attempt count.
func (s *Scanner) fetchWithRetry(ctx context.Context, venueName string, fn func(ctx context.Context) error) error {
	limiter := s.limiters[venueName]

	var lastErr error
	for attempt := 1; attempt <= s.cfg.FetchRetries; attempt++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}

		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if attempt < s.cfg.FetchRetries {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}

func (s *Scanner) metaFor(venueName, symbol string) (fundingMeta, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meta[venueName+"/"+symbol]
	return m, ok
}

func (s *Scanner) setMeta(venueName, symbol string, m fundingMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta[venueName+"/"+symbol] = m
}
