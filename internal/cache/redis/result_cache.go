package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/polyrank/internal/domain"
)

// ResultCache implements domain.ResultCache by storing each wallet's computed
// result as JSON at "<prefix>:pnl:<wallet>".
type ResultCache struct {
	c *Client
}

var _ domain.ResultCache = (*ResultCache)(nil)

// NewResultCache creates a ResultCache backed by the given Client.
func NewResultCache(c *Client) *ResultCache {
	return &ResultCache{c: c}
}

func (rc *ResultCache) resultKey(wallet string) string {
	return rc.c.key("pnl", wallet)
}

// Set stores r under its wallet. A non-positive ttl keeps the entry until it
// is invalidated.
func (rc *ResultCache) Set(ctx context.Context, r domain.PnLResult, ttl time.Duration) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("redis: marshal result %s: %w", r.Wallet, err)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := rc.c.rdb.Set(ctx, rc.resultKey(r.Wallet), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set result %s: %w", r.Wallet, err)
	}
	return nil
}

// Get returns the cached result for wallet or domain.ErrNotFound.
func (rc *ResultCache) Get(ctx context.Context, wallet string) (domain.PnLResult, error) {
	data, err := rc.c.rdb.Get(ctx, rc.resultKey(wallet)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.PnLResult{}, domain.ErrNotFound
		}
		return domain.PnLResult{}, fmt.Errorf("redis: get result %s: %w", wallet, err)
	}

	var r domain.PnLResult
	if err := json.Unmarshal(data, &r); err != nil {
		return domain.PnLResult{}, fmt.Errorf("redis: unmarshal result %s: %w", wallet, err)
	}
	return r, nil
}

// Invalidate drops the cached result for wallet. Missing keys are not an
// error.
func (rc *ResultCache) Invalidate(ctx context.Context, wallet string) error {
	if err := rc.c.rdb.Del(ctx, rc.resultKey(wallet)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate result %s: %w", wallet, err)
	}
	return nil
}
