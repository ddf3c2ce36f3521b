package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyrank/internal/domain"
)

// TraderStore implements domain.TraderStore using PostgreSQL.
type TraderStore struct {
	pool *pgxpool.Pool
}

var _ domain.TraderStore = (*TraderStore)(nil)

// NewTraderStore creates a new TraderStore backed by the given connection pool.
func NewTraderStore(pool *pgxpool.Pool) *TraderStore {
	return &TraderStore{pool: pool}
}

const traderSelectCols = `id, wallet_address, name, x_profile, avatar, is_active, created_at, updated_at`

// Create inserts t, assigning an ID when t.ID is empty. A wallet that is
// already tracked, active or not, yields domain.ErrAlreadyExists.
func (s *TraderStore) Create(ctx context.Context, t domain.Trader) (domain.Trader, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	query := `
		INSERT INTO traders (id, wallet_address, name, x_profile, avatar, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING ` + traderSelectCols

	out, err := scanTrader(s.pool.QueryRow(ctx, query, t.ID, t.WalletAddress, t.Name, t.XProfile, t.Avatar))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Trader{}, fmt.Errorf("postgres: create trader %s: %w", t.WalletAddress, domain.ErrAlreadyExists)
		}
		return domain.Trader{}, fmt.Errorf("postgres: create trader %s: %w", t.WalletAddress, err)
	}
	return out, nil
}

// GetByID returns the trader with the given ID.
func (s *TraderStore) GetByID(ctx context.Context, id string) (domain.Trader, error) {
	query := `SELECT ` + traderSelectCols + ` FROM traders WHERE id = $1`
	t, err := scanTrader(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Trader{}, fmt.Errorf("postgres: get trader %s: %w", id, notFound(err))
	}
	return t, nil
}

// GetByWallet returns the trader tracking wallet (lower-case).
func (s *TraderStore) GetByWallet(ctx context.Context, wallet string) (domain.Trader, error) {
	query := `SELECT ` + traderSelectCols + ` FROM traders WHERE wallet_address = $1`
	t, err := scanTrader(s.pool.QueryRow(ctx, query, wallet))
	if err != nil {
		return domain.Trader{}, fmt.Errorf("postgres: get trader by wallet %s: %w", wallet, notFound(err))
	}
	return t, nil
}

// ListActive returns every active trader, oldest first.
func (s *TraderStore) ListActive(ctx context.Context) ([]domain.Trader, error) {
	query := `SELECT ` + traderSelectCols + ` FROM traders WHERE is_active ORDER BY created_at, id`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active traders: %w", err)
	}
	defer rows.Close()

	var out []domain.Trader
	for rows.Next() {
		t, err := scanTrader(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan trader: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list active traders rows: %w", err)
	}
	return out, nil
}

// Deactivate soft-deletes a trader. Its snapshots are kept.
func (s *TraderStore) Deactivate(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE traders SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: deactivate trader %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: deactivate trader %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Touch bumps updated_at after a snapshot is written.
func (s *TraderStore) Touch(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE traders SET updated_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("postgres: touch trader %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: touch trader %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// scanTrader scans a single trader row.
func scanTrader(row pgx.Row) (domain.Trader, error) {
	var t domain.Trader
	err := row.Scan(
		&t.ID, &t.WalletAddress, &t.Name, &t.XProfile, &t.Avatar,
		&t.IsActive, &t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}
