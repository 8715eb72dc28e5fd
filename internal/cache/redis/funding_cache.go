package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hayatoko/frarb/internal/domain"
	"github.com/redis/go-redis/v9"
)

// FundingCache implements domain.FundingCache using Redis hashes. Each
// listing's latest tick is stored at "funding:{exchange}:{symbol}" with
// fields "rate4h", "mark", and "ts" (Unix nanosecond timestamp).
type FundingCache struct {
	rdb *redis.Client
}

// NewFundingCache creates a FundingCache backed by the given Client.
func NewFundingCache(c *Client) *FundingCache {
	return &FundingCache{rdb: c.Underlying()}
}

func fundingKey(exchange, symbol string) string {
	return "funding:" + exchange + ":" + symbol
}

// SetTick stores the latest funding tick for one listing.
func (fc *FundingCache) SetTick(ctx context.Context, tick domain.FundingTick) error {
	key := fundingKey(tick.Exchange, tick.Symbol)
	fields := map[string]interface{}{
		"rate4h": strconv.FormatFloat(tick.Rate4h, 'f', -1, 64),
		"mark":   strconv.FormatFloat(tick.MarkPrice, 'f', -1, 64),
		"ts":     strconv.FormatInt(tick.At.UnixNano(), 10),
	}
	if err := fc.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("redis: set funding tick %s: %w", key, err)
	}
	return nil
}

// GetTick retrieves the latest funding tick for one listing. It returns
// domain.ErrNotFound when nothing has been stored for the key.
func (fc *FundingCache) GetTick(ctx context.Context, exchange, symbol string) (domain.FundingTick, error) {
	key := fundingKey(exchange, symbol)
	vals, err := fc.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return domain.FundingTick{}, fmt.Errorf("redis: get funding tick %s: %w", key, err)
	}
	if len(vals) == 0 {
		return domain.FundingTick{}, domain.ErrNotFound
	}

	tick := domain.FundingTick{Exchange: exchange, Symbol: symbol}

	rateStr, ok := vals["rate4h"]
	if !ok {
		return domain.FundingTick{}, domain.ErrNotFound
	}
	if tick.Rate4h, err = strconv.ParseFloat(rateStr, 64); err != nil {
		return domain.FundingTick{}, fmt.Errorf("redis: parse rate4h %s: %w", key, err)
	}

	if markStr, ok := vals["mark"]; ok {
		if tick.MarkPrice, err = strconv.ParseFloat(markStr, 64); err != nil {
			return domain.FundingTick{}, fmt.Errorf("redis: parse mark %s: %w", key, err)
		}
	}

	if tsStr, ok := vals["ts"]; ok {
		tsNano, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			return domain.FundingTick{}, fmt.Errorf("redis: parse ts %s: %w", key, err)
		}
		tick.At = time.Unix(0, tsNano).UTC()
	}

	return tick, nil
}
