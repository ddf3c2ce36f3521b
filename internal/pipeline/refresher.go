// Package pipeline runs the background leaderboard work: periodic PnL
// refreshes of every tracked trader and the snapshot archive.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polyrank/internal/domain"
	"github.com/alanyoungcy/polyrank/internal/metrics"
	"github.com/alanyoungcy/polyrank/internal/notify"
)

// RefreshLockKey serializes refresh passes across replicas.
const RefreshLockKey = "refresh:leaderboard"

// Board is the part of the leaderboard service the refresher drives.
type Board interface {
	ActiveTraders(ctx context.Context) ([]domain.Trader, error)
	RecordResult(ctx context.Context, traderID string, r domain.PnLResult) (domain.PnLSnapshot, error)
	AnnounceRefresh(ctx context.Context, traderIDs []string)
}

// WalletPnL computes one wallet, bypassing any result cache.
type WalletPnL interface {
	Wallet(ctx context.Context, wallet string, fresh bool) (domain.PnLResult, error)
}

// RefreshReport summarizes one refresh pass.
type RefreshReport struct {
	Traders   int
	Succeeded int
	Failed    int
	// Skipped is set when another replica held the refresh lock.
	Skipped bool
	Elapsed time.Duration
}

// Refresher recomputes every active trader and appends a snapshot for each.
// Wallets are computed one after another so the upstream pacing holds across
// the whole pass; a failing wallet is reported and skipped.
type Refresher struct {
	board    Board
	pnl      WalletPnL
	locks    domain.LockManager
	lockTTL  time.Duration
	notifier *notify.Notifier
	logger   *slog.Logger
}

// NewRefresher creates a Refresher. locks and notifier may be nil.
func NewRefresher(
	board Board,
	pnl WalletPnL,
	locks domain.LockManager,
	lockTTL time.Duration,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *Refresher {
	return &Refresher{
		board:    board,
		pnl:      pnl,
		locks:    locks,
		lockTTL:  lockTTL,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "refresher")),
	}
}

// Run executes a single refresh pass.
func (r *Refresher) Run(ctx context.Context) (RefreshReport, error) {
	start := time.Now()
	var report RefreshReport

	if r.locks != nil {
		unlock, err := r.locks.Acquire(ctx, RefreshLockKey, r.lockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				r.logger.InfoContext(ctx, "refresh already running elsewhere, skipping")
				report.Skipped = true
				return report, nil
			}
			metrics.RefreshRuns.WithLabelValues(metrics.OutcomeError).Inc()
			return report, fmt.Errorf("refresh: acquire lock: %w", err)
		}
		defer unlock()
	}

	traders, err := r.board.ActiveTraders(ctx)
	if err != nil {
		metrics.RefreshRuns.WithLabelValues(metrics.OutcomeError).Inc()
		r.alert(ctx, notify.EventRefreshFailed, "Leaderboard refresh failed", err.Error())
		return report, fmt.Errorf("refresh: %w", err)
	}
	report.Traders = len(traders)
	metrics.TrackedTraders.Set(float64(len(traders)))

	var refreshed []string
	for _, t := range traders {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("refresh: %w", err)
		}

		if err := r.refreshOne(ctx, t); err != nil {
			report.Failed++
			r.logger.WarnContext(ctx, "trader refresh failed",
				slog.String("trader_id", t.ID),
				slog.String("wallet", t.WalletAddress),
				slog.String("error", err.Error()),
			)
			r.alert(ctx, notify.EventWalletFailed, "Wallet refresh failed",
				fmt.Sprintf("%s (%s): %v", t.Name, t.WalletAddress, err))
			continue
		}
		report.Succeeded++
		refreshed = append(refreshed, t.ID)
	}

	if len(refreshed) > 0 {
		r.board.AnnounceRefresh(ctx, refreshed)
	}

	report.Elapsed = time.Since(start)
	switch {
	case report.Traders == 0:
		metrics.RefreshRuns.WithLabelValues(metrics.OutcomeEmpty).Inc()
	case report.Succeeded == 0:
		metrics.RefreshRuns.WithLabelValues(metrics.OutcomeError).Inc()
		r.alert(ctx, notify.EventRefreshFailed, "Leaderboard refresh failed",
			fmt.Sprintf("all %d traders failed", report.Traders))
	default:
		metrics.RefreshRuns.WithLabelValues(metrics.OutcomeOK).Inc()
		r.alert(ctx, notify.EventRefreshComplete, "Leaderboard refreshed",
			fmt.Sprintf("%d/%d traders updated in %s", report.Succeeded, report.Traders, report.Elapsed.Round(time.Second)))
	}

	r.logger.InfoContext(ctx, "refresh complete",
		slog.Int("traders", report.Traders),
		slog.Int("succeeded", report.Succeeded),
		slog.Int("failed", report.Failed),
		slog.Duration("elapsed", report.Elapsed),
	)
	return report, nil
}

func (r *Refresher) refreshOne(ctx context.Context, t domain.Trader) error {
	result, err := r.pnl.Wallet(ctx, t.WalletAddress, true)
	if err != nil {
		return err
	}
	if _, err := r.board.RecordResult(ctx, t.ID, result); err != nil {
		return err
	}
	return nil
}

// RunLoop runs a pass immediately and then every interval until ctx is
// cancelled.
func (r *Refresher) RunLoop(ctx context.Context, interval time.Duration) error {
	if _, err := r.Run(ctx); err != nil && ctx.Err() == nil {
		r.logger.ErrorContext(ctx, "refresh failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresh loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Run(ctx); err != nil && ctx.Err() == nil {
				r.logger.ErrorContext(ctx, "refresh failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (r *Refresher) alert(ctx context.Context, event, title, message string) {
	if err := r.notifier.Notify(ctx, event, title, message); err != nil {
		r.logger.WarnContext(ctx, "notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
