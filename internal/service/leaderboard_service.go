// Package service holds the leaderboard business logic shared by the HTTP
// server and the refresh worker.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/polyrank/internal/crypto"
	"github.com/alanyoungcy/polyrank/internal/domain"
)

// Snapshot history limits.
const (
	DefaultHistoryLimit = 30
	MaxHistoryLimit     = 500
)

// LeaderboardChannel is the signal bus channel carrying leaderboard changes.
const LeaderboardChannel = "leaderboard"

// LeaderboardEvent is published on LeaderboardChannel.
type LeaderboardEvent struct {
	Type      string    `json:"type"`
	TraderIDs []string  `json:"traderIds,omitempty"`
	At        time.Time `json:"at"`
}

// Leaderboard event types.
const (
	EventTraderAdded   = "trader_added"
	EventTraderRemoved = "trader_removed"
	EventSnapshots     = "snapshots_updated"
)

// NewTrader is the input for CreateTrader.
type NewTrader struct {
	WalletAddress string `json:"walletAddress"`
	Name          string `json:"name"`
	XProfile      string `json:"xProfile"`
	Avatar        string `json:"avatar"`
}

// SnapshotUpdate carries externally computed figures for one trader.
type SnapshotUpdate struct {
	TraderID     string  `json:"id"`
	DailyPnL     float64 `json:"dailyPnL"`
	WeeklyPnL    float64 `json:"weeklyPnL"`
	MonthlyPnL   float64 `json:"monthlyPnL"`
	TotalPnL     float64 `json:"totalPnL"`
	TotalVolume  float64 `json:"totalVolume"`
	TradeCount   int     `json:"tradeCount"`
	WinRate      float64 `json:"winRate"`
	AvgTradeSize float64 `json:"avgTradeSize"`
}

// LeaderboardService manages tracked traders and their PnL snapshots.
type LeaderboardService struct {
	traders   domain.TraderStore
	snapshots domain.SnapshotStore
	audit     domain.AuditStore
	bus       domain.SignalBus
	now       func() time.Time
	logger    *slog.Logger
}

// NewLeaderboardService creates a LeaderboardService. bus may be nil.
func NewLeaderboardService(
	traders domain.TraderStore,
	snapshots domain.SnapshotStore,
	audit domain.AuditStore,
	bus domain.SignalBus,
	logger *slog.Logger,
) *LeaderboardService {
	return &LeaderboardService{
		traders:   traders,
		snapshots: snapshots,
		audit:     audit,
		bus:       bus,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "leaderboard_service")),
	}
}

// CreateTrader starts tracking a wallet and records an all-zero snapshot for
// it. An invalid wallet yields domain.ErrInvalidWallet, a missing name
// domain.ErrInvalidInput, and an already tracked wallet
// domain.ErrAlreadyExists.
func (s *LeaderboardService) CreateTrader(ctx context.Context, in NewTrader) (domain.Trader, error) {
	wallet, err := crypto.NormalizeWallet(strings.TrimSpace(in.WalletAddress))
	if err != nil {
		return domain.Trader{}, fmt.Errorf("leaderboard: create trader: %w", err)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Trader{}, fmt.Errorf("leaderboard: create trader: %w: name is required", domain.ErrInvalidInput)
	}

	if _, err := s.traders.GetByWallet(ctx, wallet); err == nil {
		return domain.Trader{}, fmt.Errorf("leaderboard: create trader %s: %w", wallet, domain.ErrAlreadyExists)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Trader{}, fmt.Errorf("leaderboard: create trader %s: %w", wallet, err)
	}

	t, err := s.traders.Create(ctx, domain.Trader{
		WalletAddress: wallet,
		Name:          name,
		XProfile:      strings.TrimSpace(in.XProfile),
		Avatar:        strings.TrimSpace(in.Avatar),
	})
	if err != nil {
		return domain.Trader{}, fmt.Errorf("leaderboard: create trader %s: %w", wallet, err)
	}

	if _, err := s.snapshots.Insert(ctx, domain.PnLSnapshot{
		TraderID:  t.ID,
		Timestamp: s.now().UTC(),
	}); err != nil {
		return t, fmt.Errorf("leaderboard: initial snapshot for %s: %w", t.ID, err)
	}

	s.auditLog(ctx, "trader.create", map[string]any{"trader_id": t.ID, "wallet": wallet})
	s.publish(ctx, EventTraderAdded, []string{t.ID})

	s.logger.InfoContext(ctx, "trader created",
		slog.String("trader_id", t.ID),
		slog.String("wallet", crypto.ChecksumWallet(wallet)),
	)
	return t, nil
}

// Leaderboard returns every active trader with its latest snapshot.
func (s *LeaderboardService) Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	traders, err := s.traders.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: list traders: %w", err)
	}
	if len(traders) == 0 {
		return []domain.LeaderboardEntry{}, nil
	}

	ids := make([]string, len(traders))
	for i, t := range traders {
		ids[i] = t.ID
	}
	latest, err := s.snapshots.Latest(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: latest snapshots: %w", err)
	}

	out := make([]domain.LeaderboardEntry, len(traders))
	for i, t := range traders {
		out[i] = domain.LeaderboardEntry{Trader: t}
		if snap, ok := latest[t.ID]; ok {
			out[i].Latest = &snap
		}
	}
	return out, nil
}

// ActiveTraders lists the traders the refresh worker recomputes.
func (s *LeaderboardService) ActiveTraders(ctx context.Context) ([]domain.Trader, error) {
	traders, err := s.traders.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: list traders: %w", err)
	}
	return traders, nil
}

// DeactivateTrader soft-deletes a trader. Its snapshots are kept.
func (s *LeaderboardService) DeactivateTrader(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("leaderboard: deactivate: %w: trader id required", domain.ErrInvalidInput)
	}
	if err := s.traders.Deactivate(ctx, id); err != nil {
		return fmt.Errorf("leaderboard: deactivate %s: %w", id, err)
	}

	s.auditLog(ctx, "trader.deactivate", map[string]any{"trader_id": id})
	s.publish(ctx, EventTraderRemoved, []string{id})
	return nil
}

// UpdateSnapshots appends one snapshot per update, all stamped with the same
// time, and marks each trader as updated. Unknown trader IDs fail the whole
// batch before anything is written.
func (s *LeaderboardService) UpdateSnapshots(ctx context.Context, updates []SnapshotUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}

	for _, u := range updates {
		if _, err := s.traders.GetByID(ctx, u.TraderID); err != nil {
			return 0, fmt.Errorf("leaderboard: update snapshots: trader %q: %w", u.TraderID, err)
		}
	}

	now := s.now().UTC()
	snaps := make([]domain.PnLSnapshot, len(updates))
	ids := make([]string, len(updates))
	for i, u := range updates {
		snaps[i] = domain.PnLSnapshot{
			TraderID:     u.TraderID,
			DailyPnL:     u.DailyPnL,
			WeeklyPnL:    u.WeeklyPnL,
			MonthlyPnL:   u.MonthlyPnL,
			TotalPnL:     u.TotalPnL,
			TotalVolume:  u.TotalVolume,
			TradeCount:   u.TradeCount,
			WinRate:      u.WinRate,
			AvgTradeSize: u.AvgTradeSize,
			Timestamp:    now,
		}
		ids[i] = u.TraderID
	}

	if err := s.snapshots.InsertBatch(ctx, snaps); err != nil {
		return 0, fmt.Errorf("leaderboard: update snapshots: %w", err)
	}
	for _, id := range ids {
		if err := s.traders.Touch(ctx, id, now); err != nil {
			return len(snaps), fmt.Errorf("leaderboard: touch %s: %w", id, err)
		}
	}

	s.auditLog(ctx, "snapshots.bulk_update", map[string]any{"count": len(snaps)})
	s.publish(ctx, EventSnapshots, ids)
	return len(snaps), nil
}

// RecordResult appends a snapshot built from a freshly computed result. It
// does not publish; the refresh worker announces a whole run at once.
func (s *LeaderboardService) RecordResult(ctx context.Context, traderID string, r domain.PnLResult) (domain.PnLSnapshot, error) {
	snap, err := s.snapshots.Insert(ctx, domain.SnapshotFromResult(traderID, r))
	if err != nil {
		return domain.PnLSnapshot{}, fmt.Errorf("leaderboard: record result for %s: %w", traderID, err)
	}
	if err := s.traders.Touch(ctx, traderID, snap.Timestamp); err != nil {
		return snap, fmt.Errorf("leaderboard: touch %s: %w", traderID, err)
	}
	return snap, nil
}

// AnnounceRefresh publishes that the given traders have new snapshots.
func (s *LeaderboardService) AnnounceRefresh(ctx context.Context, traderIDs []string) {
	s.publish(ctx, EventSnapshots, traderIDs)
}

// History returns a trader's snapshots newest first. A non-positive limit
// means DefaultHistoryLimit; limits above MaxHistoryLimit are clamped.
func (s *LeaderboardService) History(ctx context.Context, traderID string, limit int) ([]domain.PnLSnapshot, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	if _, err := s.traders.GetByID(ctx, traderID); err != nil {
		return nil, fmt.Errorf("leaderboard: history %s: %w", traderID, err)
	}
	snaps, err := s.snapshots.History(ctx, traderID, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: history %s: %w", traderID, err)
	}
	if snaps == nil {
		snaps = []domain.PnLSnapshot{}
	}
	return snaps, nil
}

// AuditTrail lists recent audit entries, newest first.
func (s *LeaderboardService) AuditTrail(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	entries, err := s.audit.List(ctx, domain.ListOpts{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("leaderboard: audit trail: %w", err)
	}
	return entries, nil
}

func (s *LeaderboardService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *LeaderboardService) publish(ctx context.Context, typ string, ids []string) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(LeaderboardEvent{Type: typ, TraderIDs: ids, At: s.now().UTC()})
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, LeaderboardChannel, payload); err != nil {
		s.logger.WarnContext(ctx, "publish leaderboard event failed",
			slog.String("type", typ),
			slog.String("error", err.Error()),
		)
	}
}
