package pnl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polyrank/internal/crypto"
	"github.com/alanyoungcy/polyrank/internal/domain"
	"github.com/alanyoungcy/polyrank/internal/metrics"
)

// ActivitySource returns a wallet's full activity history.
type ActivitySource interface {
	Fetch(ctx context.Context, wallet string) ([]domain.Activity, error)
}

// Engine computes realized PnL for one wallet at a time. It holds no state
// between calls, so one Engine may serve concurrent callers as long as the
// ActivitySource can.
type Engine struct {
	source ActivitySource
	now    func() time.Time
	logger *slog.Logger
}

// NewEngine creates an Engine reading activity from source.
func NewEngine(source ActivitySource, logger *slog.Logger) *Engine {
	return &Engine{
		source: source,
		now:    time.Now,
		logger: logger.With(slog.String("component", "pnl_engine")),
	}
}

// ComputeForWallet fetches the wallet's history and returns its PnL summary.
//
// An invalid wallet fails with domain.ErrInvalidWallet before any request is
// made. A fetch failure fails the whole computation with
// domain.ErrFetchFailed in the chain; no partial result is returned. The
// engine imposes no deadline of its own; ctx is the caller's.
func (e *Engine) ComputeForWallet(ctx context.Context, wallet string) (domain.PnLResult, error) {
	if err := crypto.CheckWallet(wallet); err != nil {
		metrics.Computations.WithLabelValues("invalid").Inc()
		return domain.PnLResult{}, fmt.Errorf("pnl: compute: %w", err)
	}

	start := time.Now()
	activities, err := e.source.Fetch(ctx, wallet)
	if err != nil {
		metrics.Computations.WithLabelValues(metrics.OutcomeError).Inc()
		return domain.PnLResult{}, fmt.Errorf("pnl: failed to fetch P&L data for %s: %w", wallet, err)
	}

	result := Compute(wallet, activities, e.now())
	metrics.ComputeDuration.Observe(time.Since(start).Seconds())
	metrics.Computations.WithLabelValues(metrics.OutcomeOK).Inc()

	e.logger.InfoContext(ctx, "wallet pnl computed",
		slog.String("wallet", wallet),
		slog.Int("activities", len(activities)),
		slog.Int("trades", result.TradeCount),
		slog.Float64("total_pnl", result.TotalPnL),
		slog.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// Compute builds the PnL summary of activities as of now. It performs no I/O.
func Compute(wallet string, activities []domain.Activity, now time.Time) domain.PnLResult {
	if len(activities) == 0 {
		return domain.EmptyPnLResult(wallet, now)
	}

	events := Flatten(NewLedger().Apply(activities))
	w := Classify(events, now)
	m := ComputeMetrics(activities)

	return domain.PnLResult{
		Wallet:        wallet,
		DailyPnL:      w.Daily,
		WeeklyPnL:     w.Weekly,
		MonthlyPnL:    w.Monthly,
		TotalPnL:      w.Total,
		TotalVolume:   m.TotalVolume,
		TradeCount:    m.TradeCount,
		WinRate:       m.WinRate,
		AvgTradeSize:  m.AvgTradeSize,
		UnrealizedPnL: 0,
		RealizedPnL:   w.Total,
		ActivityCount: len(activities),
		CalculatedAt:  now.UTC(),
	}
}
