package engine

import (
	"fmt"

	"github.com/hayatoko/frarb/internal/domain"
)

// CandidateInput is the full market snapshot needed to screen one pair of
// perpetual listings for the same symbol. Funding rates must already be
// normalized to a 4-hour equivalent; IntervalHours is the settlement cadence
// the resulting position would accrue on.
type CandidateInput struct {
	Symbol    string
	ExchangeA string
	ExchangeB string

	FundingA4h float64
	FundingB4h float64
	MarkA      float64
	MarkB      float64

	SideNotionalUSD float64 // per leg; total exposure is twice this

	TakerFeeA    float64
	TakerFeeB    float64
	SlippageBpsA float64
	SlippageBpsB float64

	IntervalHours float64
	KeepMarginBps float64 // zero means use the engine default
}

// EvaluateCandidate screens one candidate pair. The higher-funding exchange
// becomes the short leg. The result carries both the clamped display APRs and
// the raw signed ones, plus the cost breakdown a position would be opened
// with.
func (e *Engine) EvaluateCandidate(in CandidateInput) (domain.EvalResult, error) {
	if err := e.knownExchange(in.ExchangeA); err != nil {
		return domain.EvalResult{}, err
	}
	if err := e.knownExchange(in.ExchangeB); err != nil {
		return domain.EvalResult{}, err
	}
	if in.ExchangeA == in.ExchangeB {
		return domain.EvalResult{}, fmt.Errorf("engine: candidate legs on the same exchange %q", in.ExchangeA)
	}
	if err := checkInterval(in.IntervalHours); err != nil {
		return domain.EvalResult{}, err
	}

	diff := domain.NewFundingDifferential(in.ExchangeA, in.FundingA4h, in.ExchangeB, in.FundingB4h)

	shortMark, longMark := in.MarkA, in.MarkB
	shortFee, longFee := in.TakerFeeA, in.TakerFeeB
	shortSlip, longSlip := in.SlippageBpsA, in.SlippageBpsB
	if diff.HighExchange == in.ExchangeB {
		shortMark, longMark = in.MarkB, in.MarkA
		shortFee, longFee = in.TakerFeeB, in.TakerFeeA
		shortSlip, longSlip = in.SlippageBpsB, in.SlippageBpsA
	}

	sideNotional := in.SideNotionalUSD
	if sideNotional == 0 {
		sideNotional = defaultSideNotionalUSD
	}

	short := legParams{NotionalUSD: sideNotional, Price: shortMark, TakerFeeRate: shortFee, SlippageBps: shortSlip}
	long := legParams{NotionalUSD: sideNotional, Price: longMark, TakerFeeRate: longFee, SlippageBps: longSlip}

	feeSlip := feeAndSlipCost(short, long)
	basis := entryBasisCost(short, long)
	notionalTotal := 2 * sideNotional

	diffPerInterval := diff.Diff4h * in.IntervalHours / 4

	be := computeBreakEven(feeSlip+basis, notionalTotal, diffPerInterval, in.IntervalHours)

	keep := in.KeepMarginBps
	if keep == 0 {
		keep = e.keepMarginBps
	}

	return domain.EvalResult{
		Symbol:               in.Symbol,
		ShortExchange:        diff.HighExchange,
		LongExchange:         diff.LowExchange,
		ShortMark:            shortMark,
		LongMark:             longMark,
		IntervalHours:        in.IntervalHours,
		Diff4h:               diff.Diff4h,
		DiffPerInterval:      diffPerInterval,
		BreakEven4h:          be.BreakEven4h,
		BreakEvenPerInterval: be.BreakEvenPerInterval,
		AprGrossPct:          be.AprGrossPct,
		AprNetPct:            be.AprNetPct,
		AprGrossRawPct:       be.AprGrossRawPct,
		AprNetRawPct:         be.AprNetRawPct,
		MarginBps:            be.MarginBps,
		MinIntervals:         be.MinIntervals,
		NotionalTotalUSD:     notionalTotal,
		FeeSlipCostUSD:       feeSlip,
		BasisCostUSD:         basis,
		Decision:             Classify(be.MarginBps, keep),
	}, nil
}
