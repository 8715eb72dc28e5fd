package domain

// Side is the direction of one leg of a delta-neutral pair.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Leg is one side of a two-leg funding arbitrage trade. A Leg is frozen from
// the market snapshot used to build it and is never mutated afterwards.
type Leg struct {
	Exchange     string
	Symbol       string
	Side         Side
	NotionalUSD  float64
	BaseQty      float64
	Price        float64 // reference (mark) price at snapshot time
	TakerFeeRate float64 // fractional, e.g. 0.00055
	SlippageBps  float64 // estimated VWAP slippage in basis points
}

// FundingDifferential is a pair of funding rates normalized to a 4-hour
// equivalent, with the higher-rate side identified. It is derived on the fly
// and never persisted on its own.
type FundingDifferential struct {
	HighExchange string
	LowExchange  string
	High4h       float64
	Low4h        float64
	Diff4h       float64 // absolute difference, always >= 0
}

// NewFundingDifferential orders the two rates so that the exchange paying the
// higher funding rate ends up on the High (short) side.
func NewFundingDifferential(exchangeA string, rateA4h float64, exchangeB string, rateB4h float64) FundingDifferential {
	d := FundingDifferential{
		HighExchange: exchangeA,
		LowExchange:  exchangeB,
		High4h:       rateA4h,
		Low4h:        rateB4h,
	}
	if rateB4h > rateA4h {
		d.HighExchange, d.LowExchange = exchangeB, exchangeA
		d.High4h, d.Low4h = rateB4h, rateA4h
	}
	d.Diff4h = d.High4h - d.Low4h
	return d
}
