// Package exchange defines the market data surface the screener needs from a
// perpetual futures venue, plus shared helpers for the per-venue adapters in
// the subpackages.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hayatoko/frarb/internal/domain"
)

// FundingRate is the current funding state of one perpetual listing.
type FundingRate struct {
	Rate          float64 // fractional, per settlement interval
	Rate4h        float64 // normalized to a 4-hour equivalent
	IntervalHours float64
	NextFundingAt time.Time
}

// Liquidity is the 24h turnover and top-of-book notional of one listing.
type Liquidity struct {
	Volume24hUSD float64
	BestBidUSD   float64
	BestAskUSD   float64
}

// MarketData is the read-only surface a venue adapter must provide. All
// methods take the venue's canonical symbol, e.g. "BTCUSDT"; adapters that
// need a different spelling translate internally.
type MarketData interface {
	Name() string
	TakerFeeRate() float64
	FundingRate(ctx context.Context, symbol string) (FundingRate, error)
	MarkPrice(ctx context.Context, symbol string) (float64, error)
	Liquidity(ctx context.Context, symbol string) (Liquidity, error)
}

// Set is a fixed collection of venue adapters keyed by name.
type Set struct {
	byName map[string]MarketData
	names  []string
}

// NewSet builds a Set. Duplicate names are an error.
func NewSet(adapters ...MarketData) (*Set, error) {
	s := &Set{byName: make(map[string]MarketData, len(adapters))}
	for _, a := range adapters {
		name := a.Name()
		if _, dup := s.byName[name]; dup {
			return nil, fmt.Errorf("exchange: duplicate adapter %q", name)
		}
		s.byName[name] = a
		s.names = append(s.names, name)
	}
	return s, nil
}

// Get returns the adapter for name.
func (s *Set) Get(name string) (MarketData, error) {
	a, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("exchange: %q: %w", name, domain.ErrUnknownExchange)
	}
	return a, nil
}

// Names returns the adapter names in registration order.
func (s *Set) Names() []string { return s.names }

// Normalize4h converts a per-interval funding rate to its 4-hour equivalent.
func Normalize4h(rate, intervalHours float64) float64 {
	if intervalHours <= 0 {
		return rate
	}
	return rate * 4 / intervalHours
}

// ParseDecimal parses the string-encoded numbers the venue APIs return.
// Empty strings decode to zero.
func ParseDecimal(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("exchange: parse number %q: %w", s, err)
	}
	f, _ := d.Float64()
	return f, nil
}

// DoGetJSON issues a GET with ctx against client and decodes the JSON body
// into target. Non-2xx statuses are returned as errors with a body excerpt.
func DoGetJSON(ctx context.Context, client *http.Client, url string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("exchange: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("exchange: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var excerpt [256]byte
		n, _ := resp.Body.Read(excerpt[:])
		return fmt.Errorf("exchange: %s: status %d: %s", url, resp.StatusCode, excerpt[:n])
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("exchange: decode response: %w", err)
	}
	return nil
}
