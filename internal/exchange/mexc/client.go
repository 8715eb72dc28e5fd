// Package mexc adapts the MEXC contract (perpetual futures) market API.
package mexc

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hayatoko/frarb/internal/domain"
	"github.com/hayatoko/frarb/internal/exchange"
)

const (
	defaultBaseURL       = "https://contract.mexc.com"
	defaultTakerFee      = 0.00060
	defaultIntervalHours = 8
)

// Client is the REST client for MEXC contract market data. MEXC spells
// perpetual symbols with an underscore, so "BTCUSDT" maps to "BTC_USDT".
type Client struct {
	baseURL       string
	httpClient    *http.Client
	takerFee      float64
	intervalHours float64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTakerFee overrides the assumed taker fee rate.
func WithTakerFee(fee float64) Option {
	return func(c *Client) { c.takerFee = fee }
}

// New creates a MEXC client. An empty baseURL selects the production API.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		baseURL:       baseURL,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		takerFee:      defaultTakerFee,
		intervalHours: defaultIntervalHours,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements exchange.MarketData.
func (c *Client) Name() string { return "mexc" }

// TakerFeeRate implements exchange.MarketData.
func (c *Client) TakerFeeRate() float64 { return c.takerFee }

// ContractSymbol converts a canonical symbol like "BTCUSDT" to MEXC's
// underscore spelling. Already-underscored symbols pass through.
func ContractSymbol(symbol string) string {
	if strings.Contains(symbol, "_") {
		return symbol
	}
	for _, quote := range []string{"USDT", "USDC", "USD"} {
		if base, ok := strings.CutSuffix(symbol, quote); ok && base != "" {
			return base + "_" + quote
		}
	}
	return symbol
}

type apiEnvelope[T any] struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type apiTicker struct {
	Symbol    string  `json:"symbol"`
	FairPrice float64 `json:"fairPrice"`
	Amount24  float64 `json:"amount24"`
	Bid1      float64 `json:"bid1"`
	Ask1      float64 `json:"ask1"`
}

type apiFunding struct {
	Symbol         string  `json:"symbol"`
	FundingRate    float64 `json:"fundingRate"`
	CollectCycle   float64 `json:"collectCycle"` // hours
	NextSettleTime int64   `json:"nextSettleTime"`
}

type apiDepth struct {
	Bids [][]float64 `json:"bids"` // [price, volume, orders]
	Asks [][]float64 `json:"asks"`
}

func getEnvelope[T any](ctx context.Context, c *Client, path string, out *apiEnvelope[T]) error {
	if err := exchange.DoGetJSON(ctx, c.httpClient, c.baseURL+path, out); err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("code %d: %s", out.Code, out.Message)
	}
	return nil
}

// FundingRate implements exchange.MarketData.
func (c *Client) FundingRate(ctx context.Context, symbol string) (exchange.FundingRate, error) {
	var resp apiEnvelope[apiFunding]
	path := "/api/v1/contract/funding_rate/" + ContractSymbol(symbol)
	if err := getEnvelope(ctx, c, path, &resp); err != nil {
		return exchange.FundingRate{}, fmt.Errorf("mexc: funding rate %s: %w", symbol, err)
	}

	hours := resp.Data.CollectCycle
	if hours <= 0 {
		hours = c.intervalHours
	}
	fr := exchange.FundingRate{
		Rate:          resp.Data.FundingRate,
		Rate4h:        exchange.Normalize4h(resp.Data.FundingRate, hours),
		IntervalHours: hours,
	}
	if resp.Data.NextSettleTime > 0 {
		fr.NextFundingAt = time.UnixMilli(resp.Data.NextSettleTime).UTC()
	}
	return fr, nil
}

// MarkPrice implements exchange.MarketData. MEXC reports the fair price on
// its ticker; that is the mark the funding settlement uses.
func (c *Client) MarkPrice(ctx context.Context, symbol string) (float64, error) {
	t, err := c.ticker(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return t.FairPrice, nil
}

// Liquidity implements exchange.MarketData. Top-of-book notional comes from
// the depth endpoint since the ticker carries prices but not sizes.
func (c *Client) Liquidity(ctx context.Context, symbol string) (exchange.Liquidity, error) {
	t, err := c.ticker(ctx, symbol)
	if err != nil {
		return exchange.Liquidity{}, err
	}

	liq := exchange.Liquidity{Volume24hUSD: t.Amount24}

	var depth apiEnvelope[apiDepth]
	path := "/api/v1/contract/depth/" + ContractSymbol(symbol)
	if err := getEnvelope(ctx, c, path, &depth); err != nil {
		return exchange.Liquidity{}, fmt.Errorf("mexc: depth %s: %w", symbol, err)
	}
	if len(depth.Data.Bids) > 0 && len(depth.Data.Bids[0]) >= 2 {
		liq.BestBidUSD = depth.Data.Bids[0][0] * depth.Data.Bids[0][1]
	}
	if len(depth.Data.Asks) > 0 && len(depth.Data.Asks[0]) >= 2 {
		liq.BestAskUSD = depth.Data.Asks[0][0] * depth.Data.Asks[0][1]
	}
	return liq, nil
}

func (c *Client) ticker(ctx context.Context, symbol string) (apiTicker, error) {
	var resp apiEnvelope[apiTicker]
	path := "/api/v1/contract/ticker?symbol=" + ContractSymbol(symbol)
	if err := getEnvelope(ctx, c, path, &resp); err != nil {
		return apiTicker{}, fmt.Errorf("mexc: ticker %s: %w", symbol, err)
	}
	if resp.Data.Symbol == "" {
		return apiTicker{}, fmt.Errorf("mexc: ticker %s: %w", symbol, domain.ErrNotFound)
	}
	return resp.Data, nil
}
