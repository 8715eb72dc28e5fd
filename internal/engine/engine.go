// Package engine is the pure valuation and decision core of the funding-rate
// arbitrage screener. It turns raw numeric market inputs into break-even
// thresholds, annualized returns, keep/watch/close verdicts, and liquidity
// ranks. The engine performs no I/O, reads no clock, and holds no mutable
// state, so a single Engine value is safe for concurrent use from any number
// of scanner workers.
package engine

import (
	"fmt"

	"github.com/hayatoko/frarb/internal/domain"
)

// Default fallback constants used when a caller does not supply per-leg fill
// parameters. These are provisional estimates, not authoritative costs.
const (
	DefaultKeepMarginBps   = 5.0
	DefaultTakerFeeShort   = 0.00055
	DefaultTakerFeeLong    = 0.00060
	DefaultSlippageBps     = 6.0
	defaultSideNotionalUSD = 50.0
)

// Config configures an Engine. Exchanges is the closed set of exchange
// identifiers the engine will accept; anything else is a caller error, not a
// degenerate market condition.
type Config struct {
	Exchanges     []string
	KeepMarginBps float64 // default DefaultKeepMarginBps when zero

	// Fallbacks applied by OpenPosition when no override is given.
	FallbackTakerFeeShort float64
	FallbackTakerFeeLong  float64
	FallbackSlippageBps   float64

	Rank RankConfig
}

// Engine evaluates candidates and open positions. Construct with New.
type Engine struct {
	exchanges     map[string]struct{}
	keepMarginBps float64
	feeShort      float64
	feeLong       float64
	slipBps       float64
	rank          RankConfig
}

// New builds an Engine from cfg, filling unset numeric fields with the
// package defaults. At least one exchange must be configured.
func New(cfg Config) (*Engine, error) {
	if len(cfg.Exchanges) == 0 {
		return nil, fmt.Errorf("engine: at least one exchange is required")
	}
	e := &Engine{
		exchanges:     make(map[string]struct{}, len(cfg.Exchanges)),
		keepMarginBps: cfg.KeepMarginBps,
		feeShort:      cfg.FallbackTakerFeeShort,
		feeLong:       cfg.FallbackTakerFeeLong,
		slipBps:       cfg.FallbackSlippageBps,
		rank:          cfg.Rank,
	}
	for _, ex := range cfg.Exchanges {
		if ex == "" {
			return nil, fmt.Errorf("engine: empty exchange identifier")
		}
		e.exchanges[ex] = struct{}{}
	}
	if e.keepMarginBps == 0 {
		e.keepMarginBps = DefaultKeepMarginBps
	}
	if e.feeShort == 0 {
		e.feeShort = DefaultTakerFeeShort
	}
	if e.feeLong == 0 {
		e.feeLong = DefaultTakerFeeLong
	}
	if e.slipBps == 0 {
		e.slipBps = DefaultSlippageBps
	}
	if e.rank.isZero() {
		e.rank = DefaultRankConfig()
	}
	if err := e.rank.validate(); err != nil {
		return nil, fmt.Errorf("engine: rank config: %w", err)
	}
	return e, nil
}

// KeepMarginBps returns the configured keep threshold in basis points.
func (e *Engine) KeepMarginBps() float64 { return e.keepMarginBps }

// knownExchange rejects identifiers outside the configured set.
func (e *Engine) knownExchange(name string) error {
	if _, ok := e.exchanges[name]; !ok {
		return fmt.Errorf("engine: %q: %w", name, domain.ErrUnknownExchange)
	}
	return nil
}

func checkInterval(intervalHours float64) error {
	if intervalHours <= 0 {
		return fmt.Errorf("engine: interval %.2fh: %w", intervalHours, domain.ErrBadInterval)
	}
	return nil
}
