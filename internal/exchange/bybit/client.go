// Package bybit adapts the Bybit v5 linear perpetual market API.
package bybit

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/hayatoko/frarb/internal/domain"
	"github.com/hayatoko/frarb/internal/exchange"
)

const (
	defaultBaseURL         = "https://api.bybit.com"
	defaultTakerFee        = 0.00055
	defaultFundingInterval = 8 * time.Hour
)

// Client is the REST client for Bybit v5 linear perpetual market data.
type Client struct {
	baseURL    string
	httpClient *http.Client
	takerFee   float64

	mu        sync.Mutex
	intervals map[string]float64 // symbol -> funding interval hours
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

// New creates a Bybit client. An empty baseURL selects the production API.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		takerFee:   defaultTakerFee,
		intervals:  make(map[string]float64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements exchange.MarketData.
func (c *Client) Name() string { return "bybit" }

// TakerFeeRate implements exchange.MarketData.
func (c *Client) TakerFeeRate() float64 { return c.takerFee }

type apiResponse[T any] struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List []T `json:"list"`
	} `json:"result"`
}

type apiTicker struct {
	Symbol          string `json:"symbol"`
	FundingRate     string `json:"fundingRate"`
	MarkPrice       string `json:"markPrice"`
	NextFundingTime string `json:"nextFundingTime"`
	Turnover24h     string `json:"turnover24h"`
	Bid1Price       string `json:"bid1Price"`
	Bid1Size        string `json:"bid1Size"`
	Ask1Price       string `json:"ask1Price"`
	Ask1Size        string `json:"ask1Size"`
}

type apiInstrument struct {
	Symbol          string `json:"symbol"`
	FundingInterval int    `json:"fundingInterval"` // minutes
}

func (c *Client) ticker(ctx context.Context, symbol string) (apiTicker, error) {
	params := url.Values{}
	params.Set("category", "linear")
	params.Set("symbol", symbol)

	var resp apiResponse[apiTicker]
	u := c.baseURL + "/v5/market/tickers?" + params.Encode()
	if err := exchange.DoGetJSON(ctx, c.httpClient, u, &resp); err != nil {
		return apiTicker{}, fmt.Errorf("bybit: tickers %s: %w", symbol, err)
	}
	if resp.RetCode != 0 {
		return apiTicker{}, fmt.Errorf("bybit: tickers %s: retCode %d: %s", symbol, resp.RetCode, resp.RetMsg)
	}
	if len(resp.Result.List) == 0 {
		return apiTicker{}, fmt.Errorf("bybit: tickers %s: %w", symbol, domain.ErrNotFound)
	}
	return resp.Result.List[0], nil
}

// fundingIntervalHours looks up the funding cadence from instruments-info and
// caches it; the cadence of a listing changes rarely.
func (c *Client) fundingIntervalHours(ctx context.Context, symbol string) float64 {
	c.mu.Lock()
	if h, ok := c.intervals[symbol]; ok {
		c.mu.Unlock()
		return h
	}
	c.mu.Unlock()

	params := url.Values{}
	params.Set("category", "linear")
	params.Set("symbol", symbol)

	var resp apiResponse[apiInstrument]
	u := c.baseURL + "/v5/market/instruments-info?" + params.Encode()
	hours := defaultFundingInterval.Hours()
	if err := exchange.DoGetJSON(ctx, c.httpClient, u, &resp); err == nil &&
		resp.RetCode == 0 && len(resp.Result.List) > 0 && resp.Result.List[0].FundingInterval > 0 {
		hours = float64(resp.Result.List[0].FundingInterval) / 60
	}

	c.mu.Lock()
	c.intervals[symbol] = hours
	c.mu.Unlock()
	return hours
}

// FundingRate implements exchange.MarketData.
func (c *Client) FundingRate(ctx context.Context, symbol string) (exchange.FundingRate, error) {
	t, err := c.ticker(ctx, symbol)
	if err != nil {
		return exchange.FundingRate{}, err
	}
	rate, err := exchange.ParseDecimal(t.FundingRate)
	if err != nil {
		return exchange.FundingRate{}, fmt.Errorf("bybit: funding rate: %w", err)
	}

	hours := c.fundingIntervalHours(ctx, symbol)

	fr := exchange.FundingRate{
		Rate:          rate,
		Rate4h:        exchange.Normalize4h(rate, hours),
		IntervalHours: hours,
	}
	if ms, err := strconv.ParseInt(t.NextFundingTime, 10, 64); err == nil && ms > 0 {
		fr.NextFundingAt = time.UnixMilli(ms).UTC()
	}
	return fr, nil
}

// MarkPrice implements exchange.MarketData.
func (c *Client) MarkPrice(ctx context.Context, symbol string) (float64, error) {
	t, err := c.ticker(ctx, symbol)
	if err != nil {
		return 0, err
	}
	price, err := exchange.ParseDecimal(t.MarkPrice)
	if err != nil {
		return 0, fmt.Errorf("bybit: mark price: %w", err)
	}
	return price, nil
}

// Liquidity implements exchange.MarketData.
func (c *Client) Liquidity(ctx context.Context, symbol string) (exchange.Liquidity, error) {
	t, err := c.ticker(ctx, symbol)
	if err != nil {
		return exchange.Liquidity{}, err
	}

	turnover, err := exchange.ParseDecimal(t.Turnover24h)
	if err != nil {
		return exchange.Liquidity{}, fmt.Errorf("bybit: turnover: %w", err)
	}
	bidPx, _ := exchange.ParseDecimal(t.Bid1Price)
	bidSz, _ := exchange.ParseDecimal(t.Bid1Size)
	askPx, _ := exchange.ParseDecimal(t.Ask1Price)
	askSz, _ := exchange.ParseDecimal(t.Ask1Size)

	return exchange.Liquidity{
		Volume24hUSD: turnover,
		BestBidUSD:   bidPx * bidSz,
		BestAskUSD:   askPx * askSz,
	}, nil
}
