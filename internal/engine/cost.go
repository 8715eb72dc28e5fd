package engine

// legParams are the fill assumptions for one leg of a candidate.
type legParams struct {
	NotionalUSD  float64
	Price        float64
	TakerFeeRate float64
	SlippageBps  float64
}

// feeAndSlipCost is the round-trip taker fee plus slippage cost across both
// legs in USD. Each leg pays its fee and its slippage twice, once on entry
// and once on exit.
func feeAndSlipCost(short, long legParams) float64 {
	fees := 2*short.NotionalUSD*short.TakerFeeRate + 2*long.NotionalUSD*long.TakerFeeRate
	slip := 2*short.NotionalUSD*short.SlippageBps/1e4 + 2*long.NotionalUSD*long.SlippageBps/1e4
	return fees + slip
}

// entryBasisCost estimates the one-off loss from entering the two legs at
// different prices. The short leg sells below its mark and the long leg buys
// above its mark by their slippage allowances; if the expected buy still sits
// above the expected sell, the matched quantity pays that gap once. A
// favorable gap is not booked as a credit.
func entryBasisCost(short, long legParams) float64 {
	if short.Price <= 0 || long.Price <= 0 {
		return 0
	}
	expSell := short.Price * (1 - short.SlippageBps/1e4)
	expBuy := long.Price * (1 + long.SlippageBps/1e4)
	gap := expBuy - expSell
	if gap <= 0 {
		return 0
	}
	qtyShort := short.NotionalUSD / short.Price
	qtyLong := long.NotionalUSD / long.Price
	matched := qtyShort
	if qtyLong < matched {
		matched = qtyLong
	}
	if matched <= 0 {
		return 0
	}
	return gap * matched
}
