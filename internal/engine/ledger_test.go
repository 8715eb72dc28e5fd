package engine

import (
	"testing"
	"time"

	"github.com/hayatoko/frarb/internal/domain"
	"github.com/stretchr/testify/require"
)

func openTestPosition(t *testing.T, e *Engine) domain.Position {
	t.Helper()
	in := btcCandidate()
	in.FundingA4h = 0.004
	ev, err := e.EvaluateCandidate(in)
	require.NoError(t, err)
	ev.ID = "pos-1"

	return e.OpenPosition(ev, OpenOptions{
		EntryAt:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		NextFundingAt: time.Date(2026, 3, 1, 16, 0, 0, 0, time.UTC),
		Leverage:      3,
	})
}

func TestOpenPositionFreezesEntry(t *testing.T) {
	e := testEngine(t)
	pos := openTestPosition(t, e)

	require.Equal(t, "pos-1", pos.ID)
	require.Equal(t, domain.PositionStateOpen, pos.State)
	require.Equal(t, "bybit", pos.ShortLeg.Exchange)
	require.Equal(t, domain.SideShort, pos.ShortLeg.Side)
	require.Equal(t, "bitget", pos.LongLeg.Exchange)
	require.Equal(t, domain.SideLong, pos.LongLeg.Side)

	require.InDelta(t, 50, pos.ShortLeg.NotionalUSD, 1e-9)
	require.InDelta(t, 50.0/30000, pos.ShortLeg.BaseQty, 1e-12)
	require.InDelta(t, 50.0/30003, pos.LongLeg.BaseQty, 1e-12)

	// Fallback fill parameters applied when no override is given.
	require.InDelta(t, DefaultTakerFeeShort, pos.ShortLeg.TakerFeeRate, 1e-12)
	require.InDelta(t, DefaultTakerFeeLong, pos.LongLeg.TakerFeeRate, 1e-12)
	require.InDelta(t, DefaultSlippageBps, pos.ShortLeg.SlippageBps, 1e-12)
	require.InDelta(t, 0.235, pos.FeeSlipCostUSD, 1e-9)

	require.InDelta(t, 0.0039, pos.EntryDiff4h, 1e-12)
	require.Equal(t, 3.0, pos.Leverage)
	require.True(t, pos.EntryMinIntervals.Finite())
}

func TestOpenPositionOverrides(t *testing.T) {
	e := testEngine(t)
	in := btcCandidate()
	ev, err := e.EvaluateCandidate(in)
	require.NoError(t, err)

	fee := 0.0002
	slip := 2.0
	pos := e.OpenPosition(ev, OpenOptions{
		Overrides: &CostOverrides{
			TakerFeeShort:    &fee,
			TakerFeeLong:     &fee,
			SlippageBpsShort: &slip,
			SlippageBpsLong:  &slip,
		},
	})

	require.InDelta(t, fee, pos.ShortLeg.TakerFeeRate, 1e-12)
	require.InDelta(t, fee, pos.LongLeg.TakerFeeRate, 1e-12)
	// fees: 2*50*0.0002*2 legs = 0.04; slip: 2*50*0.0002*2 legs = 0.04
	require.InDelta(t, 0.08, pos.FeeSlipCostUSD, 1e-9)
	// Entry basis carries over from the evaluation unchanged.
	require.InDelta(t, ev.BasisCostUSD, pos.BasisCostUSD, 1e-12)
}

func TestEvaluatePositionNowPnLStartsAtEntryCost(t *testing.T) {
	e := testEngine(t)
	pos := openTestPosition(t, e)

	live := LiveFunding{ShortLegRate4h: 0.004, LongLegRate4h: 0.0001}
	snap := e.EvaluatePositionNow(pos, live, pos.EntryAt, 0)

	require.Zero(t, snap.PeriodsElapsed)
	require.InDelta(t, -(pos.FeeSlipCostUSD + pos.BasisCostUSD), snap.EstimatedPnLUSD, 1e-9)
	require.False(t, snap.Flipped)
	require.Equal(t, "bybit", snap.ShortExchange)
	require.Equal(t, domain.DecisionKeep, snap.Decision)
}

func TestEvaluatePositionNowAccrual(t *testing.T) {
	e := testEngine(t)
	pos := openTestPosition(t, e)

	live := LiveFunding{ShortLegRate4h: 0.004, LongLegRate4h: 0.0001}
	now := pos.EntryAt.Add(24 * time.Hour)
	snap := e.EvaluatePositionNow(pos, live, now, 0)

	require.InDelta(t, 6, snap.PeriodsElapsed, 1e-9)
	want := pos.NotionalTotalUSD*0.0039*6 - (pos.FeeSlipCostUSD + pos.BasisCostUSD)
	require.InDelta(t, want, snap.EstimatedPnLUSD, 1e-9)
	require.Positive(t, snap.EstimatedPnLUSD)
}

func TestEvaluatePositionNowFlip(t *testing.T) {
	e := testEngine(t)
	pos := openTestPosition(t, e)

	// Live rates invert: the entry long leg now pays the higher rate. The
	// snapshot relabels the reported sides but the legs stay put.
	live := LiveFunding{ShortLegRate4h: 0.0001, LongLegRate4h: 0.004}
	snap := e.EvaluatePositionNow(pos, live, pos.EntryAt.Add(time.Hour), 0)

	require.True(t, snap.Flipped)
	require.Equal(t, "bitget", snap.ShortExchange)
	require.Equal(t, "bybit", snap.LongExchange)
	require.InDelta(t, 0.0039, snap.Diff4h, 1e-12)
	require.Equal(t, "bybit", pos.ShortLeg.Exchange)
}

func TestEvaluatePositionNowDecayedDifferential(t *testing.T) {
	e := testEngine(t)
	pos := openTestPosition(t, e)

	live := LiveFunding{ShortLegRate4h: 0.00012, LongLegRate4h: 0.0001}
	snap := e.EvaluatePositionNow(pos, live, pos.EntryAt.Add(8*time.Hour), 0)

	require.Equal(t, domain.DecisionClose, snap.Decision)
	require.Negative(t, snap.MarginBps)
	require.Negative(t, snap.DiffDelta)
	require.Negative(t, snap.AprDelta)
	require.False(t, snap.MinIntervals.Finite() && snap.MinIntervalsDelta == nil)
}

func TestEvaluatePositionNowMinIntervalsDelta(t *testing.T) {
	e := testEngine(t)
	pos := openTestPosition(t, e)

	// Same rates as entry: delta should be zero.
	live := LiveFunding{ShortLegRate4h: 0.004, LongLegRate4h: 0.0001}
	snap := e.EvaluatePositionNow(pos, live, pos.EntryAt.Add(time.Hour), 0)
	require.NotNil(t, snap.MinIntervalsDelta)
	require.EqualValues(t, 0, *snap.MinIntervalsDelta)

	// Differential gone negative: the live count is unreachable, delta nil.
	live = LiveFunding{ShortLegRate4h: 0.0001, LongLegRate4h: 0.0001}
	snap = e.EvaluatePositionNow(pos, live, pos.EntryAt.Add(time.Hour), 0)
	require.Nil(t, snap.MinIntervalsDelta)
	require.False(t, snap.MinIntervals.Finite())
}

func TestEvaluatePositionNowBeforeEntry(t *testing.T) {
	e := testEngine(t)
	pos := openTestPosition(t, e)

	live := LiveFunding{ShortLegRate4h: 0.004, LongLegRate4h: 0.0001}
	snap := e.EvaluatePositionNow(pos, live, pos.EntryAt.Add(-time.Hour), 0)
	require.Zero(t, snap.PeriodsElapsed)
}
