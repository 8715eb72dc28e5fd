package domain

import "time"

// Rank is the five-tier liquidity grade of a candidate pair.
type Rank string

const (
	RankS Rank = "S"
	RankA Rank = "A"
	RankB Rank = "B"
	RankC Rank = "C"
	RankD Rank = "D"
)

// RankMetrics are the inputs that produced a rank, kept for display.
type RankMetrics struct {
	AprPct         float64
	Diff4h         float64
	IntervalHours  float64
	VolumeShortUSD float64
	VolumeLongUSD  float64
	DepthShortUSD  float64 // min(best bid, best ask) notional on the short leg
	DepthLongUSD   float64
	GapBps         float64 // mark price dispersion between the two legs
}

// RankResult is the output of liquidity scoring for one candidate pair.
type RankResult struct {
	ID            string
	Symbol        string
	ShortExchange string
	LongExchange  string
	Rank          Rank
	Score         int
	Metrics       RankMetrics
	ScoredAt      time.Time
}
