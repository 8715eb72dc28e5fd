package engine

import (
	"math"
	"time"

	"github.com/hayatoko/frarb/internal/domain"
)

// CostOverrides replaces the engine fallback fill parameters when opening a
// position from an evaluation that was screened with different assumptions.
// Nil fields keep the fallback.
type CostOverrides struct {
	TakerFeeShort    *float64
	TakerFeeLong     *float64
	SlippageBpsShort *float64
	SlippageBpsLong  *float64
}

// OpenOptions parameterizes OpenPosition. EntryAt is required by callers that
// care about PnL accrual; a zero EntryAt simply accrues nothing until the
// clock passes it.
type OpenOptions struct {
	EntryAt       time.Time
	NextFundingAt time.Time
	Leverage      float64
	Overrides     *CostOverrides
}

// LiveFunding is the pair of current 4h-normalized funding rates for an open
// position, keyed by the entry-time leg assignment.
type LiveFunding struct {
	ShortLegRate4h float64
	LongLegRate4h  float64
}

// OpenPosition freezes an accepted evaluation into a ledger Position. The fee
// and slippage parameters are resolved from the overrides or the engine
// fallbacks, and the fee and slip cost is recomputed from them; the entry
// basis cost is carried over from the evaluation since it was priced off the
// same marks.
func (e *Engine) OpenPosition(ev domain.EvalResult, opts OpenOptions) domain.Position {
	feeShort := e.feeShort
	feeLong := e.feeLong
	slipShort := e.slipBps
	slipLong := e.slipBps
	if o := opts.Overrides; o != nil {
		if o.TakerFeeShort != nil {
			feeShort = *o.TakerFeeShort
		}
		if o.TakerFeeLong != nil {
			feeLong = *o.TakerFeeLong
		}
		if o.SlippageBpsShort != nil {
			slipShort = *o.SlippageBpsShort
		}
		if o.SlippageBpsLong != nil {
			slipLong = *o.SlippageBpsLong
		}
	}

	sideNotional := ev.NotionalTotalUSD / 2

	short := domain.Leg{
		Exchange:     ev.ShortExchange,
		Symbol:       ev.Symbol,
		Side:         domain.SideShort,
		NotionalUSD:  sideNotional,
		Price:        ev.ShortMark,
		TakerFeeRate: feeShort,
		SlippageBps:  slipShort,
	}
	long := domain.Leg{
		Exchange:     ev.LongExchange,
		Symbol:       ev.Symbol,
		Side:         domain.SideLong,
		NotionalUSD:  sideNotional,
		Price:        ev.LongMark,
		TakerFeeRate: feeLong,
		SlippageBps:  slipLong,
	}
	if short.Price > 0 {
		short.BaseQty = sideNotional / short.Price
	}
	if long.Price > 0 {
		long.BaseQty = sideNotional / long.Price
	}

	feeSlip := feeAndSlipCost(
		legParams{NotionalUSD: short.NotionalUSD, Price: short.Price, TakerFeeRate: feeShort, SlippageBps: slipShort},
		legParams{NotionalUSD: long.NotionalUSD, Price: long.Price, TakerFeeRate: feeLong, SlippageBps: slipLong},
	)

	return domain.Position{
		ID:                        ev.ID,
		Symbol:                    ev.Symbol,
		ShortLeg:                  short,
		LongLeg:                   long,
		Leverage:                  opts.Leverage,
		IntervalHours:             ev.IntervalHours,
		EntryAt:                   opts.EntryAt,
		NextFundingAt:             opts.NextFundingAt,
		EntryDiff4h:               ev.Diff4h,
		EntryDiffPerInterval:      ev.DiffPerInterval,
		EntryBreakEvenPerInterval: ev.BreakEvenPerInterval,
		EntryMinIntervals:         ev.MinIntervals,
		FeeSlipCostUSD:            feeSlip,
		BasisCostUSD:              ev.BasisCostUSD,
		NotionalTotalUSD:          ev.NotionalTotalUSD,
		State:                     domain.PositionStateOpen,
	}
}

// EvaluatePositionNow marks an open position against live funding rates.
// Entry costs are sunk: break-even and PnL always charge the frozen entry
// cost, never a live re-estimate. When the live rates invert relative to
// entry, the snapshot relabels which exchange is reported short without
// repositioning the legs.
func (e *Engine) EvaluatePositionNow(pos domain.Position, live LiveFunding, now time.Time, keepMarginBps float64) domain.PositionSnapshot {
	if keepMarginBps == 0 {
		keepMarginBps = e.keepMarginBps
	}

	diff := domain.NewFundingDifferential(
		pos.ShortLeg.Exchange, live.ShortLegRate4h,
		pos.LongLeg.Exchange, live.LongLegRate4h,
	)
	flipped := diff.HighExchange != pos.ShortLeg.Exchange

	interval := pos.IntervalHours
	if interval <= 0 {
		interval = 4
	}
	diffPerInterval := diff.Diff4h * interval / 4
	totalCost := pos.FeeSlipCostUSD + pos.BasisCostUSD

	be := computeBreakEven(totalCost, pos.NotionalTotalUSD, diffPerInterval, interval)

	periods := 0.0
	if now.After(pos.EntryAt) {
		periods = now.Sub(pos.EntryAt).Hours() / interval
	}

	grossProfit := pos.NotionalTotalUSD * diffPerInterval * periods
	pnl := grossProfit - totalCost

	entryAprGross := math.Max(0, pos.EntryDiffPerInterval*(24/interval)*365*100)

	return domain.PositionSnapshot{
		PositionID:                pos.ID,
		Symbol:                    pos.Symbol,
		ShortExchange:             diff.HighExchange,
		LongExchange:              diff.LowExchange,
		Flipped:                   flipped,
		Diff4h:                    diff.Diff4h,
		DiffPerInterval:           diffPerInterval,
		BreakEvenPerInterval:      be.BreakEvenPerInterval,
		AprGrossPct:               be.AprGrossPct,
		AprNetPct:                 be.AprNetPct,
		AprGrossRawPct:            be.AprGrossRawPct,
		AprNetRawPct:              be.AprNetRawPct,
		MarginBps:                 be.MarginBps,
		MinIntervals:              be.MinIntervals,
		EntryDiffPerInterval:      pos.EntryDiffPerInterval,
		EntryBreakEvenPerInterval: pos.EntryBreakEvenPerInterval,
		EntryAprGrossPct:          entryAprGross,
		EntryMinIntervals:         pos.EntryMinIntervals,
		DiffDelta:                 diffPerInterval - pos.EntryDiffPerInterval,
		AprDelta:                  be.AprGrossPct - entryAprGross,
		MinIntervalsDelta:         domain.DeltaIntervals(be.MinIntervals, pos.EntryMinIntervals),
		PeriodsElapsed:            periods,
		EstimatedPnLUSD:           pnl,
		Decision:                  Classify(be.MarginBps, keepMarginBps),
		EntryAt:                   pos.EntryAt,
		AsOf:                      now,
	}
}
