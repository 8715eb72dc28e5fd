package scanner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hayatoko/frarb/internal/domain"
	"github.com/hayatoko/frarb/internal/engine"
	"github.com/hayatoko/frarb/internal/exchange"
)

type stubVenue struct {
	name string
	fee  float64
	fr   exchange.FundingRate
	mark float64
	liq  exchange.Liquidity
	err  error

	mu        sync.Mutex
	frCalls   int
	markCalls int
}

func (v *stubVenue) Name() string          { return v.name }
func (v *stubVenue) TakerFeeRate() float64 { return v.fee }

func (v *stubVenue) FundingRate(ctx context.Context, symbol string) (exchange.FundingRate, error) {
	v.mu.Lock()
	v.frCalls++
	v.mu.Unlock()
	if v.err != nil {
		return exchange.FundingRate{}, v.err
	}
	return v.fr, nil
}

func (v *stubVenue) MarkPrice(ctx context.Context, symbol string) (float64, error) {
	v.mu.Lock()
	v.markCalls++
	v.mu.Unlock()
	if v.err != nil {
		return 0, v.err
	}
	return v.mark, nil
}

func (v *stubVenue) Liquidity(ctx context.Context, symbol string) (exchange.Liquidity, error) {
	if v.err != nil {
		return exchange.Liquidity{}, v.err
	}
	return v.liq, nil
}

type memCache struct {
	mu    sync.Mutex
	ticks map[string]domain.FundingTick
}

func newMemCache() *memCache {
	return &memCache{ticks: make(map[string]domain.FundingTick)}
}

func (c *memCache) SetTick(ctx context.Context, tick domain.FundingTick) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks[tick.Exchange+"/"+tick.Symbol] = tick
	return nil
}

func (c *memCache) GetTick(ctx context.Context, venue, symbol string) (domain.FundingTick, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tick, ok := c.ticks[venue+"/"+symbol]
	if !ok {
		return domain.FundingTick{}, domain.ErrNotFound
	}
	return tick, nil
}

type fakeRecorder struct {
	mu    sync.Mutex
	evals []domain.EvalResult
	ranks []domain.RankResult
}

func (r *fakeRecorder) Record(ctx context.Context, ev domain.EvalResult) (domain.EvalResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.ID = "test-eval"
	r.evals = append(r.evals, ev)
	return ev, nil
}

func (r *fakeRecorder) RecordRank(ctx context.Context, rank domain.RankResult) (domain.RankResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ranks = append(r.ranks, rank)
	return rank, nil
}

type fakeSweeper struct {
	calls int
}

func (f *fakeSweeper) ReevaluateAll(ctx context.Context, now time.Time) ([]domain.PositionSnapshot, error) {
	f.calls++
	return nil, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testVenues(t *testing.T) (*stubVenue, *stubVenue, *exchange.Set) {
	t.Helper()

	high := &stubVenue{
		name: "bybit",
		fee:  0.00055,
		fr:   exchange.FundingRate{Rate4h: 0.004, IntervalHours: 4},
		mark: 30000,
		liq:  exchange.Liquidity{Volume24hUSD: 3e9, BestBidUSD: 2e6, BestAskUSD: 2e6},
	}
	low := &stubVenue{
		name: "bitget",
		fee:  0.00060,
		fr:   exchange.FundingRate{Rate4h: 0.0001, IntervalHours: 4},
		mark: 30003,
		liq:  exchange.Liquidity{Volume24hUSD: 2.5e9, BestBidUSD: 1.8e6, BestAskUSD: 1.9e6},
	}

	set, err := exchange.NewSet(high, low)
	require.NoError(t, err)
	return high, low, set
}

func testScanner(t *testing.T, set *exchange.Set, rec Recorder, sw PositionSweeper, cache domain.FundingCache) *Scanner {
	t.Helper()

	eng, err := engine.New(engine.Config{Exchanges: []string{"bybit", "bitget"}})
	require.NoError(t, err)

	return New(set, eng, rec, sw, cache, Config{
		Symbols:         []string{"BTCUSDT"},
		Interval:        time.Minute,
		SideNotionalUSD: 50,
		SlippageBps:     6,
		RequestsPerSec:  1000,
		FetchRetries:    3,
		CacheMaxAge:     30 * time.Second,
	}, testLogger())
}

func TestSweepRecordsKeepAndRank(t *testing.T) {
	_, _, set := testVenues(t)
	rec := &fakeRecorder{}
	sw := &fakeSweeper{}

	s := testScanner(t, set, rec, sw, newMemCache())
	s.sweep(context.Background(), time.Now().UTC())

	require.Len(t, rec.evals, 1)
	ev := rec.evals[0]
	require.Equal(t, "BTCUSDT", ev.Symbol)
	require.Equal(t, "bybit", ev.ShortExchange)
	require.Equal(t, "bitget", ev.LongExchange)
	require.Equal(t, domain.DecisionKeep, ev.Decision)
	require.InDelta(t, 0.0039, ev.Diff4h, 1e-12)

	require.Len(t, rec.ranks, 1)
	require.Equal(t, domain.RankS, rec.ranks[0].Rank)

	require.Equal(t, 1, sw.calls)
}

func TestSweepSkipsFailingVenue(t *testing.T) {
	high, _, set := testVenues(t)
	high.err = errors.New("boom")
	rec := &fakeRecorder{}

	s := testScanner(t, set, rec, nil, newMemCache())
	s.sweep(context.Background(), time.Now().UTC())

	require.Empty(t, rec.evals)
	require.Empty(t, rec.ranks)
}

func TestSnapshotReadsThroughCache(t *testing.T) {
	high, _, set := testVenues(t)
	cache := newMemCache()

	s := testScanner(t, set, &fakeRecorder{}, nil, cache)
	now := time.Now().UTC()

	venue, err := set.Get("bybit")
	require.NoError(t, err)

	// First snapshot hits REST and warms the cache.
	snap, err := s.snapshot(context.Background(), venue, "BTCUSDT", now)
	require.NoError(t, err)
	require.Equal(t, 30000.0, snap.mark)
	require.Equal(t, 1, high.frCalls)

	// Second snapshot within the freshness window is served from cache.
	snap, err = s.snapshot(context.Background(), venue, "BTCUSDT", now.Add(10*time.Second))
	require.NoError(t, err)
	require.Equal(t, 30000.0, snap.mark)
	require.Equal(t, 4.0, snap.intervalHours)
	require.Equal(t, 1, high.frCalls)

	// Past the freshness window the scanner falls back to REST.
	_, err = s.snapshot(context.Background(), venue, "BTCUSDT", now.Add(2*time.Minute))
	require.NoError(t, err)
	require.Equal(t, 2, high.frCalls)
}

func TestFetchWithRetryRecovers(t *testing.T) {
	_, _, set := testVenues(t)
	s := testScanner(t, set, &fakeRecorder{}, nil, nil)

	attempts := 0
	err := s.fetchWithRetry(context.Background(), "bybit", func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestFetchWithRetryExhausts(t *testing.T) {
	_, _, set := testVenues(t)
	s := testScanner(t, set, &fakeRecorder{}, nil, nil)

	err := s.fetchWithRetry(context.Background(), "bybit", func(ctx context.Context) error {
		return errors.New("permanent")
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "permanent")
}
