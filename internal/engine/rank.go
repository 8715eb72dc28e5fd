package engine

import (
	"fmt"
	"math"

	"github.com/hayatoko/frarb/internal/domain"
)

// RankConfig tunes the liquidity scorer. Tier slices run from the most to the
// least demanding threshold; a metric scores len(tiers) points at the first
// tier it clears, down to zero when it clears none.
type RankConfig struct {
	VolumeTiersUSD []float64
	DepthTiersUSD  []float64

	// Price-gap penalties: above WideGapBps the candidate loses
	// WideGapPenalty points, above ModerateGapBps it loses
	// ModerateGapPenalty points.
	WideGapBps         float64
	WideGapPenalty     int
	ModerateGapBps     float64
	ModerateGapPenalty int

	// APR adjustments keyed by gross APR percent.
	HighAprPct     float64
	HighAprBonus   int
	MidAprPct      float64
	LowAprPct      float64
	LowAprPenalty  int
	BaseAprPenalty int

	// Score cutoffs for the letter grades, checked from S downward.
	CutoffS int
	CutoffA int
	CutoffB int
	CutoffC int
}

// DefaultRankConfig returns the scorer tuning used when the config file does
// not override it.
func DefaultRankConfig() RankConfig {
	return RankConfig{
		VolumeTiersUSD:     []float64{2e9, 1e9, 3e8, 1e8},
		DepthTiersUSD:      []float64{1e6, 5e5, 2e5, 1e5},
		WideGapBps:         15,
		WideGapPenalty:     2,
		ModerateGapBps:     5,
		ModerateGapPenalty: 1,
		HighAprPct:         200,
		HighAprBonus:       1,
		MidAprPct:          100,
		LowAprPct:          80,
		LowAprPenalty:      1,
		BaseAprPenalty:     2,
		CutoffS:            7,
		CutoffA:            5,
		CutoffB:            3,
		CutoffC:            1,
	}
}

func (c RankConfig) isZero() bool {
	return len(c.VolumeTiersUSD) == 0 && len(c.DepthTiersUSD) == 0 &&
		c.CutoffS == 0 && c.CutoffA == 0 && c.CutoffB == 0 && c.CutoffC == 0
}

func (c RankConfig) validate() error {
	if len(c.VolumeTiersUSD) == 0 || len(c.DepthTiersUSD) == 0 {
		return fmt.Errorf("volume and depth tiers must be non-empty")
	}
	if err := descending("volume tiers", c.VolumeTiersUSD); err != nil {
		return err
	}
	if err := descending("depth tiers", c.DepthTiersUSD); err != nil {
		return err
	}
	if !(c.CutoffS > c.CutoffA && c.CutoffA > c.CutoffB && c.CutoffB > c.CutoffC) {
		return fmt.Errorf("grade cutoffs must be strictly descending")
	}
	return nil
}

func descending(name string, tiers []float64) error {
	for i := 1; i < len(tiers); i++ {
		if tiers[i] >= tiers[i-1] {
			return fmt.Errorf("%s must be strictly descending", name)
		}
	}
	return nil
}

// LiquidityInput is the market-quality snapshot of one candidate pair.
type LiquidityInput struct {
	Symbol        string
	ShortExchange string
	LongExchange  string

	AprGrossPct   float64
	Diff4h        float64
	IntervalHours float64

	VolumeShortUSD float64
	VolumeLongUSD  float64
	DepthShortUSD  float64
	DepthLongUSD   float64

	ShortMark float64
	LongMark  float64
}

// tierScore awards one point per tier the value clears, counting from the
// most demanding.
func tierScore(value float64, tiers []float64) int {
	for i, t := range tiers {
		if value >= t {
			return len(tiers) - i
		}
	}
	return 0
}

// GapBps is the mark price dispersion between the two legs in basis points,
// measured against the larger of the two prices.
func GapBps(markA, markB float64) float64 {
	ref := math.Max(math.Max(markA, markB), 1e-9)
	return math.Abs(markA-markB) / ref * 1e4
}

// ScoreLiquidity grades the tradability of a candidate pair. The weaker side
// of each metric gates the score: a pair is only as liquid as its thinner
// leg.
func (e *Engine) ScoreLiquidity(in LiquidityInput) (domain.RankResult, error) {
	if err := e.knownExchange(in.ShortExchange); err != nil {
		return domain.RankResult{}, err
	}
	if err := e.knownExchange(in.LongExchange); err != nil {
		return domain.RankResult{}, err
	}
	if err := checkInterval(in.IntervalHours); err != nil {
		return domain.RankResult{}, err
	}

	cfg := e.rank

	minVolume := math.Min(in.VolumeShortUSD, in.VolumeLongUSD)
	minDepth := math.Min(in.DepthShortUSD, in.DepthLongUSD)
	gap := GapBps(in.ShortMark, in.LongMark)

	score := tierScore(minVolume, cfg.VolumeTiersUSD)
	score += tierScore(minDepth, cfg.DepthTiersUSD)

	switch {
	case gap > cfg.WideGapBps:
		score -= cfg.WideGapPenalty
	case gap > cfg.ModerateGapBps:
		score -= cfg.ModerateGapPenalty
	}

	switch {
	case in.AprGrossPct >= cfg.HighAprPct:
		score += cfg.HighAprBonus
	case in.AprGrossPct >= cfg.MidAprPct:
		// no adjustment
	case in.AprGrossPct >= cfg.LowAprPct:
		score -= cfg.LowAprPenalty
	default:
		score -= cfg.BaseAprPenalty
	}

	var rank domain.Rank
	switch {
	case score >= cfg.CutoffS:
		rank = domain.RankS
	case score >= cfg.CutoffA:
		rank = domain.RankA
	case score >= cfg.CutoffB:
		rank = domain.RankB
	case score >= cfg.CutoffC:
		rank = domain.RankC
	default:
		rank = domain.RankD
	}

	return domain.RankResult{
		Symbol:        in.Symbol,
		ShortExchange: in.ShortExchange,
		LongExchange:  in.LongExchange,
		Rank:          rank,
		Score:         score,
		Metrics: domain.RankMetrics{
			AprPct:         in.AprGrossPct,
			Diff4h:         in.Diff4h,
			IntervalHours:  in.IntervalHours,
			VolumeShortUSD: in.VolumeShortUSD,
			VolumeLongUSD:  in.VolumeLongUSD,
			DepthShortUSD:  in.DepthShortUSD,
			DepthLongUSD:   in.DepthLongUSD,
			GapBps:         gap,
		},
	}, nil
}
