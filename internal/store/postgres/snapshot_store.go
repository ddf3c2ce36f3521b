package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyrank/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)

// NewSnapshotStore creates a new SnapshotStore backed by the given connection pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

const snapshotSelectCols = `id, trader_id, daily_pnl, weekly_pnl, monthly_pnl, total_pnl,
	total_volume, trade_count, win_rate, avg_trade_size, timestamp`

const insertSnapshot = `
	INSERT INTO pnl_snapshots (
		trader_id, daily_pnl, weekly_pnl, monthly_pnl, total_pnl,
		total_volume, trade_count, win_rate, avg_trade_size, timestamp
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

func snapshotArgs(s domain.PnLSnapshot) []any {
	ts := s.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return []any{
		s.TraderID, s.DailyPnL, s.WeeklyPnL, s.MonthlyPnL, s.TotalPnL,
		s.TotalVolume, s.TradeCount, s.WinRate, s.AvgTradeSize, ts,
	}
}

// Insert appends a snapshot and returns it with its ID and timestamp set.
func (s *SnapshotStore) Insert(ctx context.Context, snap domain.PnLSnapshot) (domain.PnLSnapshot, error) {
	out, err := scanSnapshot(s.pool.QueryRow(ctx,
		insertSnapshot+` RETURNING `+snapshotSelectCols, snapshotArgs(snap)...))
	if err != nil {
		return domain.PnLSnapshot{}, fmt.Errorf("postgres: insert snapshot for %s: %w", snap.TraderID, err)
	}
	return out, nil
}

// InsertBatch appends snapshots in a single round trip.
func (s *SnapshotStore) InsertBatch(ctx context.Context, snaps []domain.PnLSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, snap := range snaps {
		batch.Queue(insertSnapshot, snapshotArgs(snap)...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range snaps {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert snapshot batch item %d (%s): %w", i, snaps[i].TraderID, err)
		}
	}
	return nil
}

// Latest returns the most recent snapshot of each trader in traderIDs that
// has one.
func (s *SnapshotStore) Latest(ctx context.Context, traderIDs []string) (map[string]domain.PnLSnapshot, error) {
	out := make(map[string]domain.PnLSnapshot, len(traderIDs))
	if len(traderIDs) == 0 {
		return out, nil
	}

	query := `
		SELECT DISTINCT ON (trader_id) ` + snapshotSelectCols + `
		FROM pnl_snapshots
		WHERE trader_id = ANY($1)
		ORDER BY trader_id, timestamp DESC, id DESC`

	rows, err := s.pool.Query(ctx, query, traderIDs)
	if err != nil {
		return nil, fmt.Errorf("postgres: latest snapshots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan snapshot: %w", err)
		}
		out[snap.TraderID] = snap
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: latest snapshots rows: %w", err)
	}
	return out, nil
}

// History returns up to limit snapshots of a trader, newest first.
func (s *SnapshotStore) History(ctx context.Context, traderID string, limit int) ([]domain.PnLSnapshot, error) {
	query := `SELECT ` + snapshotSelectCols + `
		FROM pnl_snapshots
		WHERE trader_id = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2`
	return s.list(ctx, "history", query, traderID, limit)
}

// ListBefore returns up to limit snapshots older than before, oldest first.
func (s *SnapshotStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.PnLSnapshot, error) {
	query := `SELECT ` + snapshotSelectCols + `
		FROM pnl_snapshots
		WHERE timestamp < $1
		ORDER BY id
		LIMIT $2`
	return s.list(ctx, "list before", query, before, limit)
}

// DeleteBefore removes snapshots older than before whose ID is at most maxID,
// so rows written after an archive read are never lost.
func (s *SnapshotStore) DeleteBefore(ctx context.Context, before time.Time, maxID int64) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM pnl_snapshots WHERE timestamp < $1 AND id <= $2`, before, maxID)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete snapshots before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

func (s *SnapshotStore) list(ctx context.Context, op, query string, args ...any) ([]domain.PnLSnapshot, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: snapshot %s: %w", op, err)
	}
	defer rows.Close()

	var out []domain.PnLSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: snapshot %s rows: %w", op, err)
	}
	return out, nil
}

// scanSnapshot scans a single pnl_snapshots row.
func scanSnapshot(row pgx.Row) (domain.PnLSnapshot, error) {
	var snap domain.PnLSnapshot
	err := row.Scan(
		&snap.ID, &snap.TraderID, &snap.DailyPnL, &snap.WeeklyPnL, &snap.MonthlyPnL, &snap.TotalPnL,
		&snap.TotalVolume, &snap.TradeCount, &snap.WinRate, &snap.AvgTradeSize, &snap.Timestamp,
	)
	return snap, err
}
