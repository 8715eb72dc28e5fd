package bitget

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/mix/market/ticker", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "USDT-FUTURES", r.URL.Query().Get("productType"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": "00000",
			"msg":  "success",
			"data": []map[string]any{{
				"symbol":          "BTCUSDT",
				"markPrice":       "30003",
				"fundingRate":     "0.0002",
				"nextFundingTime": "1767225600000",
				"usdtVolume":      "1200000000",
				"bidPr":           "30002",
				"bidSz":           "5",
				"askPr":           "30004",
				"askSz":           "4",
			}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFundingRateNormalizes8h(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL)

	fr, err := c.FundingRate(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.InDelta(t, 0.0002, fr.Rate, 1e-12)
	require.InDelta(t, 8, fr.IntervalHours, 1e-9)
	require.InDelta(t, 0.0001, fr.Rate4h, 1e-12)
}

func TestFundingRateCustomInterval(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL, WithIntervalHours(4))

	fr, err := c.FundingRate(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.InDelta(t, 0.0002, fr.Rate4h, 1e-12)
}

func TestMarkPriceAndLiquidity(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL)

	price, err := c.MarkPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.InDelta(t, 30003, price, 1e-9)

	liq, err := c.Liquidity(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.InDelta(t, 1.2e9, liq.Volume24hUSD, 1e-3)
	require.InDelta(t, 150010, liq.BestBidUSD, 1e-6)
	require.InDelta(t, 120016, liq.BestAskUSD, 1e-6)
}

func TestAPIErrorCode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/mix/market/ticker", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"code": "40034", "msg": "symbol not exist", "data": []any{}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.MarkPrice(context.Background(), "NOPEUSDT")
	require.Error(t, err)
	require.Contains(t, err.Error(), "40034")
}
