package mexc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContractSymbol(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"BTCUSDT", "BTC_USDT"},
		{"ETHUSDC", "ETH_USDC"},
		{"BTC_USDT", "BTC_USDT"},
		{"WEIRD", "WEIRD"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, ContractSymbol(tt.in), tt.in)
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/contract/ticker", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "BTC_USDT", r.URL.Query().Get("symbol"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"code":    0,
			"data": map[string]any{
				"symbol":    "BTC_USDT",
				"fairPrice": 29998.5,
				"amount24":  450000000.0,
				"bid1":      29998.0,
				"ask1":      29999.0,
			},
		})
	})
	mux.HandleFunc("/api/v1/contract/funding_rate/BTC_USDT", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"code":    0,
			"data": map[string]any{
				"symbol":         "BTC_USDT",
				"fundingRate":    0.0004,
				"collectCycle":   8,
				"nextSettleTime": 1767225600000,
			},
		})
	})
	mux.HandleFunc("/api/v1/contract/depth/BTC_USDT", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"code":    0,
			"data": map[string]any{
				"bids": [][]float64{{29998, 10, 3}},
				"asks": [][]float64{{29999, 8, 2}},
			},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFundingRate(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL)

	fr, err := c.FundingRate(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.InDelta(t, 0.0004, fr.Rate, 1e-12)
	require.InDelta(t, 8, fr.IntervalHours, 1e-9)
	require.InDelta(t, 0.0002, fr.Rate4h, 1e-12)
	require.False(t, fr.NextFundingAt.IsZero())
}

func TestMarkPriceUsesFairPrice(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL)

	price, err := c.MarkPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.InDelta(t, 29998.5, price, 1e-9)
}

func TestLiquidityFromDepth(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL)

	liq, err := c.Liquidity(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.InDelta(t, 4.5e8, liq.Volume24hUSD, 1e-3)
	require.InDelta(t, 299980, liq.BestBidUSD, 1e-6)
	require.InDelta(t, 239992, liq.BestAskUSD, 1e-6)
}

func TestEnvelopeFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "code": 1002, "message": "contract not exists"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.MarkPrice(context.Background(), "NOPEUSDT")
	require.Error(t, err)
	require.Contains(t, err.Error(), "1002")
}
