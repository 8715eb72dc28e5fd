// Package bitget adapts the Bitget v2 USDT-margined futures market API.
package bitget

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hayatoko/frarb/internal/domain"
	"github.com/hayatoko/frarb/internal/exchange"
)

const (
	defaultBaseURL       = "https://api.bitget.com"
	defaultTakerFee      = 0.00060
	defaultIntervalHours = 8
	okCode               = "00000"
)

// Client is the REST client for Bitget USDT-FUTURES market data. Bitget does
// not expose the funding cadence on its ticker, so the client carries an
// assumed interval used for 4h normalization.
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

// WithIntervalHours overrides the assumed funding cadence.
func WithIntervalHours(hours float64) Option {
	return func(c *Client) { c.intervalHours = hours }
}

// New creates a Bitget client. An empty baseURL selects the production API.
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
func (c *Client) Name() string { return "bitget" }

// TakerFeeRate implements exchange.MarketData.
func (c *Client) TakerFeeRate() float64 { return c.takerFee }

type apiResponse[T any] struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []T    `json:"data"`
}

type apiTicker struct {
	Symbol          string `json:"symbol"`
	MarkPrice       string `json:"markPrice"`
	FundingRate     string `json:"fundingRate"`
	NextFundingTime string `json:"nextFundingTime"`
	UsdtVolume      string `json:"usdtVolume"`
	BidPr           string `json:"bidPr"`
	BidSz           string `json:"bidSz"`
	AskPr           string `json:"askPr"`
	AskSz           string `json:"askSz"`
}

func (c *Client) ticker(ctx context.Context, symbol string) (apiTicker, error) {
	params := url.Values{}
	params.Set("productType", "USDT-FUTURES")
	params.Set("symbol", symbol)

	var resp apiResponse[apiTicker]
	u := c.baseURL + "/api/v2/mix/market/ticker?" + params.Encode()
	if err := exchange.DoGetJSON(ctx, c.httpClient, u, &resp); err != nil {
		return apiTicker{}, fmt.Errorf("bitget: ticker %s: %w", symbol, err)
	}
	if resp.Code != okCode {
		return apiTicker{}, fmt.Errorf("bitget: ticker %s: code %s: %s", symbol, resp.Code, resp.Msg)
	}
	if len(resp.Data) == 0 {
		return apiTicker{}, fmt.Errorf("bitget: ticker %s: %w", symbol, domain.ErrNotFound)
	}
	return resp.Data[0], nil
}

// FundingRate implements exchange.MarketData.
func (c *Client) FundingRate(ctx context.Context, symbol string) (exchange.FundingRate, error) {
	t, err := c.ticker(ctx, symbol)
	if err != nil {
		return exchange.FundingRate{}, err
	}
	rate, err := exchange.ParseDecimal(t.FundingRate)
	if err != nil {
		return exchange.FundingRate{}, fmt.Errorf("bitget: funding rate: %w", err)
	}

	fr := exchange.FundingRate{
		Rate:          rate,
		Rate4h:        exchange.Normalize4h(rate, c.intervalHours),
		IntervalHours: c.intervalHours,
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
		return 0, fmt.Errorf("bitget: mark price: %w", err)
	}
	return price, nil
}

// Liquidity implements exchange.MarketData.
func (c *Client) Liquidity(ctx context.Context, symbol string) (exchange.Liquidity, error) {
	t, err := c.ticker(ctx, symbol)
	if err != nil {
		return exchange.Liquidity{}, err
	}

	volume, err := exchange.ParseDecimal(t.UsdtVolume)
	if err != nil {
		return exchange.Liquidity{}, fmt.Errorf("bitget: volume: %w", err)
	}
	bidPx, _ := exchange.ParseDecimal(t.BidPr)
	bidSz, _ := exchange.ParseDecimal(t.BidSz)
	askPx, _ := exchange.ParseDecimal(t.AskPr)
	askSz, _ := exchange.ParseDecimal(t.AskSz)

	return exchange.Liquidity{
		Volume24hUSD: volume,
		BestBidUSD:   bidPx * bidSz,
		BestAskUSD:   askPx * askSz,
	}, nil
}
