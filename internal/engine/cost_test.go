package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeeAndSlipCostRoundTrip(t *testing.T) {
	short := legParams{NotionalUSD: 50, Price: 30000, TakerFeeRate: 0.00055, SlippageBps: 6}
	long := legParams{NotionalUSD: 50, Price: 30003, TakerFeeRate: 0.00060, SlippageBps: 6}

	// fees: 2*50*0.00055 + 2*50*0.00060 = 0.115
	// slip: 2*50*0.0006 + 2*50*0.0006 = 0.120
	require.InDelta(t, 0.235, feeAndSlipCost(short, long), 1e-9)
}

func TestFeeAndSlipCostZeroNotional(t *testing.T) {
	require.Zero(t, feeAndSlipCost(legParams{}, legParams{}))
}

func TestEntryBasisCost(t *testing.T) {
	tests := []struct {
		name  string
		short legParams
		long  legParams
		want  float64
	}{
		{
			name:  "adverse gap pays matched quantity",
			short: legParams{NotionalUSD: 50, Price: 30000, SlippageBps: 6},
			long:  legParams{NotionalUSD: 50, Price: 30003, SlippageBps: 6},
			// expSell=29982, expBuy=30021.0018, gap=39.0018, matched=50/30003
			want: 39.0018 * (50.0 / 30003.0),
		},
		{
			name:  "favorable gap is not a credit",
			short: legParams{NotionalUSD: 50, Price: 30100, SlippageBps: 1},
			long:  legParams{NotionalUSD: 50, Price: 30000, SlippageBps: 1},
			want:  0,
		},
		{
			name:  "zero short price",
			short: legParams{NotionalUSD: 50, Price: 0, SlippageBps: 6},
			long:  legParams{NotionalUSD: 50, Price: 30000, SlippageBps: 6},
			want:  0,
		},
		{
			name:  "zero long notional means nothing matched",
			short: legParams{NotionalUSD: 50, Price: 30000, SlippageBps: 6},
			long:  legParams{NotionalUSD: 0, Price: 30003, SlippageBps: 6},
			want:  0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.InDelta(t, tt.want, entryBasisCost(tt.short, tt.long), 1e-9)
		})
	}
}
