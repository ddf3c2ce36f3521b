package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/polyrank/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memTraders struct {
	mu      sync.Mutex
	byID    map[string]domain.Trader
	order   []string
	touched map[string]time.Time
}

func newMemTraders() *memTraders {
	return &memTraders{byID: map[string]domain.Trader{}, touched: map[string]time.Time{}}
}

func (m *memTraders) Create(_ context.Context, t domain.Trader) (domain.Trader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.WalletAddress == t.WalletAddress {
			return domain.Trader{}, domain.ErrAlreadyExists
		}
	}
	if t.ID == "" {
		t.ID = fmt.Sprintf("t%d", len(m.order)+1)
	}
	t.IsActive = true
	m.byID[t.ID] = t
	m.order = append(m.order, t.ID)
	return t, nil
}

func (m *memTraders) GetByID(_ context.Context, id string) (domain.Trader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return domain.Trader{}, domain.ErrNotFound
	}
	return t, nil
}

func (m *memTraders) GetByWallet(_ context.Context, wallet string) (domain.Trader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.byID {
		if t.WalletAddress == wallet {
			return t, nil
		}
	}
	return domain.Trader{}, domain.ErrNotFound
}

func (m *memTraders) ListActive(context.Context) ([]domain.Trader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Trader
	for _, id := range m.order {
		if t := m.byID[id]; t.IsActive {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTraders) Deactivate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.IsActive = false
	m.byID[id] = t
	return nil
}

func (m *memTraders) Touch(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return domain.ErrNotFound
	}
	m.touched[id] = at
	return nil
}

type memSnapshots struct {
	mu   sync.Mutex
	rows []domain.PnLSnapshot
}

func (m *memSnapshots) Insert(_ context.Context, s domain.PnLSnapshot) (domain.PnLSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = int64(len(m.rows) + 1)
	m.rows = append(m.rows, s)
	return s, nil
}

func (m *memSnapshots) InsertBatch(ctx context.Context, snaps []domain.PnLSnapshot) error {
	for _, s := range snaps {
		if _, err := m.Insert(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (m *memSnapshots) Latest(_ context.Context, ids []string) (map[string]domain.PnLSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := map[string]domain.PnLSnapshot{}
	for _, s := range m.rows {
		if want[s.TraderID] {
			out[s.TraderID] = s
		}
	}
	return out, nil
}

func (m *memSnapshots) History(_ context.Context, traderID string, limit int) ([]domain.PnLSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PnLSnapshot
	for i := len(m.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if m.rows[i].TraderID == traderID {
			out = append(out, m.rows[i])
		}
	}
	return out, nil
}

func (m *memSnapshots) ListBefore(_ context.Context, before time.Time, limit int) ([]domain.PnLSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PnLSnapshot
	for _, s := range m.rows {
		if s.Timestamp.Before(before) && len(out) < limit {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memSnapshots) DeleteBefore(context.Context, time.Time, int64) (int64, error) {
	return 0, nil
}

func (m *memSnapshots) forTrader(id string) []domain.PnLSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PnLSnapshot
	for _, s := range m.rows {
		if s.TraderID == id {
			out = append(out, s)
		}
	}
	return out
}

type memAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (m *memAudit) Log(_ context.Context, event string, detail map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, domain.AuditEntry{ID: int64(len(m.entries) + 1), Event: event, Detail: detail})
	return nil
}

func (m *memAudit) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AuditEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
		out = append(out, m.entries[i])
	}
	return out, nil
}

func (m *memAudit) events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Event
	}
	return out
}

type memBus struct {
	mu        sync.Mutex
	published map[string][][]byte
}

func newMemBus() *memBus { return &memBus{published: map[string][][]byte{}} }

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *memBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return make(chan []byte), nil
}

func (b *memBus) count(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published[channel])
}

type memResultCache struct {
	mu   sync.Mutex
	data map[string]domain.PnLResult
	ttls map[string]time.Duration
}

func newMemResultCache() *memResultCache {
	return &memResultCache{data: map[string]domain.PnLResult{}, ttls: map[string]time.Duration{}}
}

func (c *memResultCache) Set(_ context.Context, r domain.PnLResult, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[r.Wallet] = r
	c.ttls[r.Wallet] = ttl
	return nil
}

func (c *memResultCache) Get(_ context.Context, wallet string) (domain.PnLResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.data[wallet]
	if !ok {
		return domain.PnLResult{}, domain.ErrNotFound
	}
	return r, nil
}

func (c *memResultCache) Invalidate(_ context.Context, wallet string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, wallet)
	return nil
}

type memPriceCache struct {
	p   *domain.POLPrice
	ttl time.Duration
}

func (c *memPriceCache) SetPOL(_ context.Context, p domain.POLPrice, ttl time.Duration) error {
	c.p = &p
	c.ttl = ttl
	return nil
}

func (c *memPriceCache) GetPOL(context.Context) (domain.POLPrice, error) {
	if c.p == nil {
		return domain.POLPrice{}, domain.ErrNotFound
	}
	return *c.p, nil
}
