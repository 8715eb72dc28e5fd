package domain

import "time"

// PositionState tracks whether a position is open or closed in the ledger
// store. The valuation core itself never transitions a position; closing is
// an operator action applied by the store layer.
type PositionState string

const (
	PositionStateOpen   PositionState = "open"
	PositionStateClosed PositionState = "closed"
)

// Position is the immutable entry-time snapshot of an accepted candidate.
// Every field is frozen at open time; later scans compare live conditions
// against this baseline and never write back into it.
type Position struct {
	ID       string
	Symbol   string
	ShortLeg Leg
	LongLeg  Leg
	Leverage float64

	IntervalHours float64
	EntryAt       time.Time
	NextFundingAt time.Time

	EntryDiff4h               float64
	EntryDiffPerInterval      float64
	EntryBreakEvenPerInterval float64
	EntryMinIntervals         Intervals

	// Entry costs are sunk: re-evaluation always charges these, never a
	// re-estimate from live conditions.
	FeeSlipCostUSD   float64
	BasisCostUSD     float64
	NotionalTotalUSD float64

	State    PositionState
	ClosedAt *time.Time
}

// PositionSnapshot is the result of re-evaluating an open Position against
// live funding rates at a single point in time. It is recomputed on every
// scan and never persisted.
type PositionSnapshot struct {
	PositionID string
	Symbol     string

	// Current logical labeling: the leg on the higher live funding rate is
	// reported as short. This can flip between scans when relative rates
	// invert; the underlying legs are not resized.
	ShortExchange string
	LongExchange  string
	Flipped       bool // true when labeling is inverted versus entry

	Diff4h               float64
	DiffPerInterval      float64
	BreakEvenPerInterval float64
	AprGrossPct          float64
	AprNetPct            float64
	AprGrossRawPct       float64
	AprNetRawPct         float64
	MarginBps            float64
	MinIntervals         Intervals

	EntryDiffPerInterval      float64
	EntryBreakEvenPerInterval float64
	EntryAprGrossPct          float64
	EntryMinIntervals         Intervals

	DiffDelta         float64 // per-interval, now minus entry
	AprDelta          float64 // gross APR pct, now minus entry
	MinIntervalsDelta *int64  // nil when either count is unreachable

	// PeriodsElapsed is fractional settlement intervals since entry.
	// EstimatedPnLUSD charges full entry cost from the first scan, so it
	// starts at -(fees+basis) and turns positive only after enough periods.
	PeriodsElapsed  float64
	EstimatedPnLUSD float64

	Decision Decision
	EntryAt  time.Time
	AsOf     time.Time
}
