package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CooldownGuard implements domain.CooldownGuard using SET NX with a TTL. The
// first caller for a key wins the window; everyone else is suppressed until
// the key expires.
type CooldownGuard struct {
	rdb *redis.Client
}

// NewCooldownGuard creates a CooldownGuard backed by the given Client.
func NewCooldownGuard(c *Client) *CooldownGuard {
	return &CooldownGuard{rdb: c.Underlying()}
}

func cooldownKey(key string) string {
	return "cooldown:" + key
}

// Allow returns true at most once per key per window.
func (cg *CooldownGuard) Allow(ctx context.Context, key string, window time.Duration) (bool, error) {
	ok, err := cg.rdb.SetNX(ctx, cooldownKey(key), "1", window).Result()
	if err != nil {
		return false, fmt.Errorf("redis: cooldown %s: %w", key, err)
	}
	return ok, nil
}
