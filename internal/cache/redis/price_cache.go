package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/polyrank/internal/domain"
)

// PriceCache implements domain.PriceCache. The POL quote is stored as a hash
// with fields "usd", "change", "source", "error" and "ts" (Unix nanoseconds).
type PriceCache struct {
	c *Client
}

var _ domain.PriceCache = (*PriceCache)(nil)

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{c: c}
}

func (pc *PriceCache) polKey() string {
	return pc.c.key("price", "pol")
}

// SetPOL stores p and expires it after ttl.
func (pc *PriceCache) SetPOL(ctx context.Context, p domain.POLPrice, ttl time.Duration) error {
	key := pc.polKey()
	fields := map[string]interface{}{
		"usd":    strconv.FormatFloat(p.USD, 'f', -1, 64),
		"change": strconv.FormatFloat(p.Change24h, 'f', -1, 64),
		"source": p.Source,
		"error":  p.Error,
		"ts":     strconv.FormatInt(p.FetchedAt.UnixNano(), 10),
	}

	pipe := pc.c.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set pol price: %w", err)
	}
	return nil
}

// GetPOL returns the cached quote, or domain.ErrNotFound when nothing is
// cached or the entry has expired.
func (pc *PriceCache) GetPOL(ctx context.Context) (domain.POLPrice, error) {
	vals, err := pc.c.rdb.HGetAll(ctx, pc.polKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.POLPrice{}, domain.ErrNotFound
		}
		return domain.POLPrice{}, fmt.Errorf("redis: get pol price: %w", err)
	}
	if len(vals) == 0 {
		return domain.POLPrice{}, domain.ErrNotFound
	}
	return decodePOL(vals)
}

func decodePOL(vals map[string]string) (domain.POLPrice, error) {
	usdStr, ok := vals["usd"]
	if !ok {
		return domain.POLPrice{}, domain.ErrNotFound
	}
	usd, err := strconv.ParseFloat(usdStr, 64)
	if err != nil {
		return domain.POLPrice{}, fmt.Errorf("redis: parse pol usd: %w", err)
	}

	var change float64
	if s := vals["change"]; s != "" {
		if change, err = strconv.ParseFloat(s, 64); err != nil {
			return domain.POLPrice{}, fmt.Errorf("redis: parse pol change: %w", err)
		}
	}

	var fetched time.Time
	if s := vals["ts"]; s != "" {
		ns, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return domain.POLPrice{}, fmt.Errorf("redis: parse pol ts: %w", err)
		}
		fetched = time.Unix(0, ns).UTC()
	}

	return domain.POLPrice{
		USD:       usd,
		Change24h: change,
		Source:    vals["source"],
		Error:     vals["error"],
		FetchedAt: fetched,
	}, nil
}
