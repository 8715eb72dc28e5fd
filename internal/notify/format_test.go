package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hayatoko/frarb/internal/domain"
)

func TestFormatEvalResult(t *testing.T) {
	ev := domain.EvalResult{
		ID:               "eval-1",
		Symbol:           "BTCUSDT",
		ShortExchange:    "bybit",
		LongExchange:     "bitget",
		Diff4h:           0.0005,
		BreakEven4h:      0.003,
		AprGrossPct:      109.5,
		AprNetPct:        0,
		MarginBps:        -25,
		MinIntervals:     domain.FiniteIntervals(6),
		NotionalTotalUSD: 100,
		FeeSlipCostUSD:   0.235,
		BasisCostUSD:     0.065,
		Decision:         domain.DecisionClose,
	}

	title, msg := FormatEvalResult(ev)
	require.Contains(t, title, "CLOSE BTCUSDT")
	require.Contains(t, title, "short bybit / long bitget")
	require.Contains(t, msg, "APR gross: 109.5%")
	require.Contains(t, msg, "min hold: 6 intervals")
	require.Contains(t, msg, "$0.2350 fees+slip")
}

func TestFormatEvalResultUnreachable(t *testing.T) {
	ev := domain.EvalResult{
		Symbol:       "ETHUSDT",
		MinIntervals: domain.UnreachableIntervals(),
		Decision:     domain.DecisionClose,
	}

	_, msg := FormatEvalResult(ev)
	require.Contains(t, msg, "min hold: unreachable intervals")
}

func TestFormatPositionSnapshot(t *testing.T) {
	snap := domain.PositionSnapshot{
		PositionID:           "0c2f4a88-1111-2222-3333-444455556666",
		Symbol:               "BTCUSDT",
		ShortExchange:        "bitget",
		LongExchange:         "bybit",
		Flipped:              true,
		DiffPerInterval:      0.0002,
		EntryDiffPerInterval: 0.0005,
		AprGrossPct:          43.8,
		EntryAprGrossPct:     109.5,
		MarginBps:            -10,
		PeriodsElapsed:       3.5,
		EstimatedPnLUSD:      -0.08,
		Decision:             domain.DecisionClose,
	}

	title, msg := FormatPositionSnapshot(snap)
	require.Contains(t, title, "0c2f4a88")
	require.NotContains(t, title, "1111")
	require.Contains(t, msg, "flipped since entry")
	require.Contains(t, msg, "held 3.5 intervals")
	require.Contains(t, msg, "$-0.0800")
}

func TestFormatRankResult(t *testing.T) {
	r := domain.RankResult{
		Symbol:        "BTCUSDT",
		ShortExchange: "bybit",
		LongExchange:  "mexc",
		Rank:          domain.RankS,
		Score:         9,
		Metrics: domain.RankMetrics{
			AprPct:         250,
			GapBps:         1.2,
			VolumeShortUSD: 3e9,
			VolumeLongUSD:  2.5e9,
			DepthShortUSD:  2e6,
			DepthLongUSD:   1.5e6,
		},
	}

	title, msg := FormatRankResult(r)
	require.Contains(t, title, "Rank S BTCUSDT")
	require.Contains(t, msg, "score: 9")
	require.Contains(t, msg, "$3.0B / $2.5B")
	require.Contains(t, msg, "$2.0M / $1.5M")
}

func TestFormatAprDropAlert(t *testing.T) {
	snap := domain.PositionSnapshot{
		PositionID:       "0c2f4a88-1111-2222-3333-444455556666",
		Symbol:           "BTCUSDT",
		ShortExchange:    "bybit",
		LongExchange:     "bitget",
		AprGrossPct:      43.8,
		EntryAprGrossPct: 109.5,
		MarginBps:        -10,
	}

	title, msg := FormatAprDropAlert(snap, 100)
	require.Contains(t, title, "APR drop BTCUSDT")
	require.Contains(t, title, "43.8% gross")
	require.Contains(t, msg, "below 100% floor")
	require.Contains(t, msg, "entry 109.5%")
}

func TestFormatFundingSoon(t *testing.T) {
	pos := domain.Position{
		ID:       "pos-1",
		Symbol:   "BTCUSDT",
		ShortLeg: domain.Leg{Exchange: "bybit"},
		LongLeg:  domain.Leg{Exchange: "bitget"},
	}
	at := time.Date(2026, 3, 1, 16, 0, 0, 0, time.UTC)

	title, msg := FormatFundingSoon(pos, at)
	require.Contains(t, title, "Funding soon BTCUSDT")
	require.Contains(t, msg, "16:00")
}

func TestHumanUSD(t *testing.T) {
	require.Equal(t, "2.5B", humanUSD(2.5e9))
	require.Equal(t, "1.5M", humanUSD(1.5e6))
	require.Equal(t, "200.0K", humanUSD(2e5))
	require.Equal(t, "950", humanUSD(950))
}
