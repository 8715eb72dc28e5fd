package domain

import (
	"context"
	"time"
)

// FundingTick is the latest known funding rate and mark price for one
// (exchange, symbol), 4h-normalized.
type FundingTick struct {
	Exchange  string
	Symbol    string
	Rate4h    float64
	MarkPrice float64
	At        time.Time
}

// FundingCache provides fast access to the latest funding ticks. The live
// websocket feed writes into it; the scanner reads through it before falling
// back to REST.
type FundingCache interface {
	SetTick(ctx context.Context, tick FundingTick) error
	GetTick(ctx context.Context, exchange, symbol string) (FundingTick, error)
}

// CooldownGuard suppresses repeated alerts. Allow returns true at most once
// per key per window.
type CooldownGuard interface {
	Allow(ctx context.Context, key string, window time.Duration) (bool, error)
}

// SignalBus provides pub/sub fan-out of screening and position events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
