package domain

import (
	"context"
	"time"
)

// ResultCache holds recently computed wallet results so repeated lookups do
// not re-page the upstream feed.
type ResultCache interface {
	Set(ctx context.Context, r PnLResult, ttl time.Duration) error
	Get(ctx context.Context, wallet string) (PnLResult, error)
	Invalidate(ctx context.Context, wallet string) error
}

// PriceCache stores the latest POL quote.
type PriceCache interface {
	SetPOL(ctx context.Context, p POLPrice, ttl time.Duration) error
	GetPOL(ctx context.Context) (POLPrice, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub fan-out.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
