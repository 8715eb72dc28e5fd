package domain

import "time"

// Decision is the keep/watch/close verdict for a candidate or open position.
type Decision string

const (
	DecisionKeep  Decision = "keep"
	DecisionWatch Decision = "watch"
	DecisionClose Decision = "close"
)

// EvalResult is the outcome of screening one (symbol, exchange pair)
// candidate. All yields are fractional per notional; APR figures are percent.
// An EvalResult is read-only once produced.
type EvalResult struct {
	ID            string
	Symbol        string
	ShortExchange string // high-funding side, sold short
	LongExchange  string // low-funding side, bought long
	ShortMark     float64
	LongMark      float64
	IntervalHours float64

	Diff4h          float64 // funding differential, 4h equivalent
	DiffPerInterval float64

	BreakEven4h          float64
	BreakEvenPerInterval float64

	// Clamped display values (never negative) and the raw signed values.
	// Sorting and ranking of unattractive candidates needs the sign.
	AprGrossPct    float64
	AprNetPct      float64
	AprGrossRawPct float64
	AprNetRawPct   float64

	MarginBps    float64 // (diff - break-even) per interval, in bps
	MinIntervals Intervals

	NotionalTotalUSD float64
	FeeSlipCostUSD   float64 // round-trip taker fees + slippage, both legs
	BasisCostUSD     float64 // one-sided entry price-gap cost

	Decision    Decision
	EvaluatedAt time.Time
}
