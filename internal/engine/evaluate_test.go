package engine

import (
	"testing"

	"github.com/hayatoko/frarb/internal/domain"
	"github.com/stretchr/testify/require"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(Config{Exchanges: []string{"bybit", "bitget", "mexc"}})
	require.NoError(t, err)
	return e
}

func btcCandidate() CandidateInput {
	return CandidateInput{
		Symbol:          "BTCUSDT",
		ExchangeA:       "bybit",
		ExchangeB:       "bitget",
		FundingA4h:      0.0006,
		FundingB4h:      0.0001,
		MarkA:           30000,
		MarkB:           30003,
		SideNotionalUSD: 50,
		TakerFeeA:       0.00055,
		TakerFeeB:       0.00060,
		SlippageBpsA:    6,
		SlippageBpsB:    6,
		IntervalHours:   4,
	}
}

func TestEvaluateCandidate(t *testing.T) {
	e := testEngine(t)

	ev, err := e.EvaluateCandidate(btcCandidate())
	require.NoError(t, err)

	require.Equal(t, "bybit", ev.ShortExchange)
	require.Equal(t, "bitget", ev.LongExchange)
	require.InDelta(t, 30000, ev.ShortMark, 1e-9)
	require.InDelta(t, 30003, ev.LongMark, 1e-9)

	require.InDelta(t, 0.0005, ev.Diff4h, 1e-12)
	require.InDelta(t, 0.0005, ev.DiffPerInterval, 1e-12)

	require.InDelta(t, 0.235, ev.FeeSlipCostUSD, 1e-9)
	require.InDelta(t, 0.0649965, ev.BasisCostUSD, 1e-6)
	require.InDelta(t, 100, ev.NotionalTotalUSD, 1e-9)

	require.InDelta(t, 0.00299997, ev.BreakEvenPerInterval, 1e-6)
	require.InDelta(t, 109.5, ev.AprGrossPct, 1e-9)
	require.InDelta(t, -547.49, ev.AprNetRawPct, 0.01)
	require.Zero(t, ev.AprNetPct)

	require.InDelta(t, -24.99965, ev.MarginBps, 1e-3)
	require.True(t, ev.MinIntervals.Finite())
	require.EqualValues(t, 6, ev.MinIntervals.Count())

	require.Equal(t, domain.DecisionClose, ev.Decision)
}

func TestEvaluateCandidateOrdersLegsByRate(t *testing.T) {
	e := testEngine(t)

	in := btcCandidate()
	in.FundingA4h, in.FundingB4h = in.FundingB4h, in.FundingA4h

	ev, err := e.EvaluateCandidate(in)
	require.NoError(t, err)
	require.Equal(t, "bitget", ev.ShortExchange)
	require.Equal(t, "bybit", ev.LongExchange)
	require.InDelta(t, 30003, ev.ShortMark, 1e-9)
	require.InDelta(t, 0.0005, ev.Diff4h, 1e-12)
}

func TestEvaluateCandidateKeep(t *testing.T) {
	e := testEngine(t)

	in := btcCandidate()
	in.FundingA4h = 0.004 // wide differential comfortably above break-even

	ev, err := e.EvaluateCandidate(in)
	require.NoError(t, err)
	require.Equal(t, domain.DecisionKeep, ev.Decision)
	require.Positive(t, ev.AprNetPct)
	require.Equal(t, ev.AprNetPct, ev.AprNetRawPct)
}

func TestEvaluateCandidateDefaultsNotional(t *testing.T) {
	e := testEngine(t)

	in := btcCandidate()
	in.SideNotionalUSD = 0

	ev, err := e.EvaluateCandidate(in)
	require.NoError(t, err)
	require.InDelta(t, 100, ev.NotionalTotalUSD, 1e-9)
}

func TestEvaluateCandidateZeroMark(t *testing.T) {
	e := testEngine(t)

	in := btcCandidate()
	in.MarkA = 0

	ev, err := e.EvaluateCandidate(in)
	require.NoError(t, err)
	require.Zero(t, ev.BasisCostUSD)
	require.InDelta(t, 0.235, ev.FeeSlipCostUSD, 1e-9)
}

func TestEvaluateCandidateErrors(t *testing.T) {
	e := testEngine(t)

	in := btcCandidate()
	in.ExchangeB = "binance"
	_, err := e.EvaluateCandidate(in)
	require.ErrorIs(t, err, domain.ErrUnknownExchange)

	in = btcCandidate()
	in.IntervalHours = 0
	_, err = e.EvaluateCandidate(in)
	require.ErrorIs(t, err, domain.ErrBadInterval)

	in = btcCandidate()
	in.IntervalHours = -8
	_, err = e.EvaluateCandidate(in)
	require.ErrorIs(t, err, domain.ErrBadInterval)

	in = btcCandidate()
	in.ExchangeB = in.ExchangeA
	_, err = e.EvaluateCandidate(in)
	require.Error(t, err)
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	_, err = New(Config{Exchanges: []string{"bybit", ""}})
	require.Error(t, err)

	_, err = New(Config{
		Exchanges: []string{"bybit"},
		Rank:      RankConfig{VolumeTiersUSD: []float64{1, 2}, DepthTiersUSD: []float64{2, 1}, CutoffS: 4, CutoffA: 3, CutoffB: 2, CutoffC: 1},
	})
	require.Error(t, err)
}
