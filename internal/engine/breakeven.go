package engine

import (
	"math"

	"github.com/hayatoko/frarb/internal/domain"
)

// BreakEvenUnreachable is the sentinel break-even rate reported when the
// position notional is zero and no funding rate could ever recover the
// costs.
const BreakEvenUnreachable = 9e9

// breakEvenOutcome is the cost-recovery profile of a candidate.
type breakEvenOutcome struct {
	TotalCostUSD         float64
	BreakEven4h          float64
	BreakEvenPerInterval float64
	MinIntervals         domain.Intervals
	AprGrossPct          float64 // clamped at zero
	AprNetPct            float64
	AprGrossRawPct       float64 // signed
	AprNetRawPct         float64
	MarginBps            float64
}

// computeBreakEven derives the break-even funding differential, minimum
// holding intervals, and annualized returns for a candidate with the given
// total cost, total notional, and per-interval differential. intervalHours
// must already be validated positive.
func computeBreakEven(totalCostUSD, notionalTotalUSD, diffPerInterval, intervalHours float64) breakEvenOutcome {
	out := breakEvenOutcome{TotalCostUSD: totalCostUSD}

	aprMult := (24 / intervalHours) * 365 * 100

	if notionalTotalUSD <= 0 {
		out.BreakEvenPerInterval = BreakEvenUnreachable
		out.BreakEven4h = BreakEvenUnreachable
		out.MinIntervals = domain.UnreachableIntervals()
		out.AprGrossRawPct = diffPerInterval * aprMult
		out.AprGrossPct = math.Max(0, out.AprGrossRawPct)
		out.AprNetRawPct = -math.MaxFloat64
		out.MarginBps = -math.MaxFloat64
		return out
	}

	be4h := totalCostUSD / notionalTotalUSD
	out.BreakEven4h = be4h
	bePerInterval := be4h * intervalHours / 4
	out.BreakEvenPerInterval = bePerInterval

	out.AprGrossRawPct = diffPerInterval * aprMult
	out.AprNetRawPct = (diffPerInterval - bePerInterval) * aprMult
	out.AprGrossPct = math.Max(0, out.AprGrossRawPct)
	out.AprNetPct = math.Max(0, out.AprNetRawPct)

	out.MarginBps = (diffPerInterval - bePerInterval) * 1e4

	if diffPerInterval > 0 {
		perInterval := notionalTotalUSD * diffPerInterval
		n := int64(math.Ceil(totalCostUSD / perInterval))
		if n < 0 {
			n = 0
		}
		out.MinIntervals = domain.FiniteIntervals(n)
	} else {
		out.MinIntervals = domain.UnreachableIntervals()
	}
	return out
}
