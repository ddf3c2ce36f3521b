package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/alanyoungcy/polyrank/internal/domain"
)

// setupTestRedis starts a throwaway Redis container and returns a connected
// Client. The container is terminated via t.Cleanup.
func setupTestRedis(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis integration test in -short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start redis container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	addr, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client, err := New(ctx, ClientConfig{Addr: addr, PoolSize: 4, KeyPrefix: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestKeyPrefix(t *testing.T) {
	c := Wrap(nil, "")
	assert.Equal(t, "polyrank:lock:refresh:leaderboard", c.key("lock", "refresh:leaderboard"))

	c = Wrap(nil, "staging")
	assert.Equal(t, "staging:pnl:0xabc", NewResultCache(c).resultKey("0xabc"))
	assert.Equal(t, "staging:price:pol", NewPriceCache(c).polKey())
}

func TestDecodePOL(t *testing.T) {
	p, err := decodePOL(map[string]string{
		"usd":    "0.4234",
		"change": "-1.23",
		"source": "coingecko",
		"ts":     "1700000000000000000",
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.4234, p.USD, 1e-12)
	assert.InDelta(t, -1.23, p.Change24h, 1e-12)
	assert.Equal(t, "coingecko", p.Source)
	assert.Empty(t, p.Error)
	assert.Equal(t, int64(1700000000), p.FetchedAt.Unix())

	_, err = decodePOL(map[string]string{"source": "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = decodePOL(map[string]string{"usd": "abc"})
	assert.Error(t, err)
}

func TestHasPattern(t *testing.T) {
	assert.False(t, hasPattern("leaderboard"))
	assert.True(t, hasPattern("leaderboard:*"))
}

func TestResultCacheIntegration(t *testing.T) {
	c := setupTestRedis(t)
	ctx := context.Background()
	rc := NewResultCache(c)

	_, err := rc.Get(ctx, "0xabc")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	in := domain.PnLResult{
		Wallet:       "0xabc",
		DailyPnL:     1.5,
		TotalPnL:     12.25,
		TradeCount:   4,
		CalculatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, rc.Set(ctx, in, time.Minute))

	out, err := rc.Get(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, in, out)

	ttl, err := c.rdb.TTL(ctx, rc.resultKey("0xabc")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, rc.Invalidate(ctx, "0xabc"))
	_, err = rc.Get(ctx, "0xabc")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	// invalidating again is harmless
	require.NoError(t, rc.Invalidate(ctx, "0xabc"))
}

func TestPriceCacheIntegration(t *testing.T) {
	c := setupTestRedis(t)
	ctx := context.Background()
	pc := NewPriceCache(c)

	_, err := pc.GetPOL(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	in := domain.POLPrice{
		USD:       0.51,
		Change24h: 2.5,
		Source:    "coingecko",
		FetchedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, pc.SetPOL(ctx, in, time.Minute))

	out, err := pc.GetPOL(ctx)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestLockManagerIntegration(t *testing.T) {
	c := setupTestRedis(t)
	ctx := context.Background()
	lm := NewLockManager(c)

	unlock, err := lm.Acquire(ctx, "refresh:leaderboard", time.Minute)
	require.NoError(t, err)

	_, err = lm.Acquire(ctx, "refresh:leaderboard", time.Minute)
	assert.True(t, errors.Is(err, domain.ErrLockHeld))

	unlock()
	unlock()

	unlock2, err := lm.Acquire(ctx, "refresh:leaderboard", time.Minute)
	require.NoError(t, err)
	unlock2()
}

func TestRateLimiterIntegration(t *testing.T) {
	c := setupTestRedis(t)
	ctx := context.Background()
	rl := NewRateLimiter(c)

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "client-a", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i)
	}
	ok, err := rl.Allow(ctx, "client-a", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// separate key has its own budget
	ok, err = rl.Allow(ctx, "client-b", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rl.Allow(ctx, "client-a", 0, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSignalBusIntegration(t *testing.T) {
	c := setupTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sb := NewSignalBus(c)

	ch, err := sb.Subscribe(ctx, "leaderboard")
	require.NoError(t, err)

	require.NoError(t, sb.Publish(ctx, "leaderboard", []byte(`{"type":"refresh"}`)))

	select {
	case msg := <-ch:
		assert.JSONEq(t, `{"type":"refresh"}`, string(msg))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for published message")
	}

	cancel()
	for range ch {
	}
}
