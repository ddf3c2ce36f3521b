package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// TraderStore persists leaderboard traders.
type TraderStore interface {
	// Create inserts a trader and returns ErrAlreadyExists when the wallet is
	// already tracked.
	Create(ctx context.Context, t Trader) (Trader, error)
	GetByID(ctx context.Context, id string) (Trader, error)
	GetByWallet(ctx context.Context, wallet string) (Trader, error)
	ListActive(ctx context.Context) ([]Trader, error)
	Deactivate(ctx context.Context, id string) error
	Touch(ctx context.Context, id string, at time.Time) error
}

// SnapshotStore persists PnL snapshots.
type SnapshotStore interface {
	Insert(ctx context.Context, s PnLSnapshot) (PnLSnapshot, error)
	InsertBatch(ctx context.Context, snaps []PnLSnapshot) error
	Latest(ctx context.Context, traderIDs []string) (map[string]PnLSnapshot, error)
	History(ctx context.Context, traderID string, limit int) ([]PnLSnapshot, error)
	ListBefore(ctx context.Context, before time.Time, limit int) ([]PnLSnapshot, error)
	DeleteBefore(ctx context.Context, before time.Time, maxID int64) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
