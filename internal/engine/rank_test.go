package engine

import (
	"testing"

	"github.com/hayatoko/frarb/internal/domain"
	"github.com/stretchr/testify/require"
)

func liquidBTC() LiquidityInput {
	return LiquidityInput{
		Symbol:         "BTCUSDT",
		ShortExchange:  "bybit",
		LongExchange:   "bitget",
		AprGrossPct:    250,
		Diff4h:         0.0005,
		IntervalHours:  4,
		VolumeShortUSD: 3e9,
		VolumeLongUSD:  2.5e9,
		DepthShortUSD:  2e6,
		DepthLongUSD:   1.5e6,
		ShortMark:      30000,
		LongMark:       30003,
	}
}

func TestScoreLiquidityTopTier(t *testing.T) {
	e := testEngine(t)

	res, err := e.ScoreLiquidity(liquidBTC())
	require.NoError(t, err)

	// volume 4 + depth 4 + high APR bonus 1, gap ~1bp carries no penalty
	require.Equal(t, 9, res.Score)
	require.Equal(t, domain.RankS, res.Rank)
	require.InDelta(t, 0.99990, res.Metrics.GapBps, 1e-3)
}

func TestScoreLiquidityWeakerLegGates(t *testing.T) {
	e := testEngine(t)

	in := liquidBTC()
	in.VolumeLongUSD = 5e7 // thin long leg drags the pair below every tier
	in.DepthLongUSD = 5e4

	res, err := e.ScoreLiquidity(in)
	require.NoError(t, err)
	// volume 0 + depth 0 + high APR bonus 1
	require.Equal(t, 1, res.Score)
	require.Equal(t, domain.RankC, res.Rank)
}

func TestScoreLiquidityGapPenalties(t *testing.T) {
	e := testEngine(t)

	in := liquidBTC()
	in.LongMark = 30000 * (1 + 0.0010) // 10 bps
	res, err := e.ScoreLiquidity(in)
	require.NoError(t, err)
	require.Equal(t, 8, res.Score)

	in.LongMark = 30000 * (1 + 0.0020) // 20 bps
	res, err = e.ScoreLiquidity(in)
	require.NoError(t, err)
	require.Equal(t, 7, res.Score)
	require.Equal(t, domain.RankS, res.Rank)
}

func TestScoreLiquidityAprAdjustments(t *testing.T) {
	e := testEngine(t)

	tests := []struct {
		apr  float64
		want int
	}{
		{250, 9}, // +1
		{150, 8}, // no adjustment
		{90, 7},  // -1
		{40, 6},  // -2
	}
	for _, tt := range tests {
		in := liquidBTC()
		in.AprGrossPct = tt.apr
		res, err := e.ScoreLiquidity(in)
		require.NoError(t, err)
		require.Equal(t, tt.want, res.Score, "apr %.0f", tt.apr)
	}
}

func TestScoreLiquidityGrades(t *testing.T) {
	e := testEngine(t)

	tests := []struct {
		name   string
		mutate func(*LiquidityInput)
		want   domain.Rank
	}{
		{"everything deep", func(in *LiquidityInput) {}, domain.RankS},
		{
			"mid volume mid depth",
			func(in *LiquidityInput) {
				in.VolumeShortUSD, in.VolumeLongUSD = 4e8, 4e8 // tier 2
				in.DepthShortUSD, in.DepthLongUSD = 3e5, 3e5   // tier 2
				in.AprGrossPct = 150                           // no adjustment
			},
			domain.RankB,
		},
		{
			"thin and unattractive",
			func(in *LiquidityInput) {
				in.VolumeShortUSD, in.VolumeLongUSD = 5e7, 5e7
				in.DepthShortUSD, in.DepthLongUSD = 5e4, 5e4
				in.AprGrossPct = 40
			},
			domain.RankD,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := liquidBTC()
			tt.mutate(&in)
			res, err := e.ScoreLiquidity(in)
			require.NoError(t, err)
			require.Equal(t, tt.want, res.Rank)
		})
	}
}

func TestScoreLiquidityErrors(t *testing.T) {
	e := testEngine(t)

	in := liquidBTC()
	in.ShortExchange = "okx"
	_, err := e.ScoreLiquidity(in)
	require.ErrorIs(t, err, domain.ErrUnknownExchange)

	in = liquidBTC()
	in.IntervalHours = 0
	_, err = e.ScoreLiquidity(in)
	require.ErrorIs(t, err, domain.ErrBadInterval)
}

func TestGapBps(t *testing.T) {
	require.InDelta(t, 0, GapBps(30000, 30000), 1e-12)
	// The gap divides by the larger price, so 30 over 30030.
	require.InDelta(t, 30.0/30030*1e4, GapBps(30000, 30030), 1e-9)
	require.InDelta(t, 30.0/30030*1e4, GapBps(30030, 30000), 1e-9)
	// Degenerate zero prices must not divide by zero.
	require.NotPanics(t, func() { GapBps(0, 0) })
}

func TestScoreLiquidityMonotonicInVolumeAndDepth(t *testing.T) {
	e := testEngine(t)

	base := liquidBTC()
	base.VolumeShortUSD, base.VolumeLongUSD = 5e7, 5e7
	base.DepthShortUSD, base.DepthLongUSD = 5e4, 5e4
	base.AprGrossPct = 150

	volumes := []float64{5e7, 2e8, 5e8, 1.5e9, 3e9}
	depths := []float64{5e4, 1.5e5, 3e5, 7e5, 2e6}

	// Walking both legs' volume up one tier at a time, everything else
	// fixed, must never lower the score or the rank.
	prev, err := e.ScoreLiquidity(base)
	require.NoError(t, err)
	for _, v := range volumes[1:] {
		in := base
		in.VolumeShortUSD, in.VolumeLongUSD = v, v
		res, err := e.ScoreLiquidity(in)
		require.NoError(t, err)
		require.GreaterOrEqual(t, res.Score, prev.Score, "volume %.0f", v)
		require.LessOrEqual(t, rankOrder(res.Rank), rankOrder(prev.Rank), "volume %.0f", v)
		prev = res
	}

	// Same walk over depth.
	prev, err = e.ScoreLiquidity(base)
	require.NoError(t, err)
	for _, d := range depths[1:] {
		in := base
		in.DepthShortUSD, in.DepthLongUSD = d, d
		res, err := e.ScoreLiquidity(in)
		require.NoError(t, err)
		require.GreaterOrEqual(t, res.Score, prev.Score, "depth %.0f", d)
		require.LessOrEqual(t, rankOrder(res.Rank), rankOrder(prev.Rank), "depth %.0f", d)
		prev = res
	}

	// Raising a single leg while the other stays thin must also never
	// lower anything, even though the thin leg keeps gating the tier.
	for _, v := range volumes[1:] {
		in := base
		in.VolumeShortUSD = v
		res, err := e.ScoreLiquidity(in)
		require.NoError(t, err)
		baseRes, err := e.ScoreLiquidity(base)
		require.NoError(t, err)
		require.GreaterOrEqual(t, res.Score, baseRes.Score, "short volume %.0f", v)
	}
}

// rankOrder maps grades to ordinals, best first.
func rankOrder(r domain.Rank) int {
	switch r {
	case domain.RankS:
		return 0
	case domain.RankA:
		return 1
	case domain.RankB:
		return 2
	case domain.RankC:
		return 3
	default:
		return 4
	}
}
