package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polyrank/internal/crypto"
	"github.com/alanyoungcy/polyrank/internal/domain"
)

// WalletComputer computes a wallet's PnL; *pnl.Engine satisfies it.
type WalletComputer interface {
	ComputeForWallet(ctx context.Context, wallet string) (domain.PnLResult, error)
}

// PnLService serves wallet computations through a short-lived result cache
// so repeated lookups do not re-page the upstream activity feed.
type PnLService struct {
	engine WalletComputer
	cache  domain.ResultCache
	ttl    time.Duration
	logger *slog.Logger
}

// NewPnLService creates a PnLService. cache may be nil to disable caching.
func NewPnLService(engine WalletComputer, cache domain.ResultCache, ttl time.Duration, logger *slog.Logger) *PnLService {
	return &PnLService{
		engine: engine,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "pnl_service")),
	}
}

// Wallet returns the PnL of wallet. A cached result is returned unless fresh
// is set; a newly computed result replaces the cached one, and a failed fresh
// computation drops it. Engine errors are returned unchanged in the chain,
// so callers can still match domain.ErrInvalidWallet and
// domain.ErrFetchFailed.
func (s *PnLService) Wallet(ctx context.Context, wallet string, fresh bool) (domain.PnLResult, error) {
	if err := crypto.CheckWallet(wallet); err != nil {
		return domain.PnLResult{}, fmt.Errorf("pnl_service: %w", err)
	}
	key, _ := crypto.NormalizeWallet(wallet)

	if s.cache != nil && !fresh {
		if r, err := s.cache.Get(ctx, key); err == nil {
			return r, nil
		}
	}

	r, err := s.engine.ComputeForWallet(ctx, wallet)
	if err != nil {
		// a failed forced recompute means the cached copy is known stale
		if fresh && s.cache != nil {
			if invErr := s.cache.Invalidate(ctx, key); invErr != nil {
				s.logger.WarnContext(ctx, "result cache invalidate failed",
					slog.String("wallet", key),
					slog.String("error", invErr.Error()),
				)
			}
		}
		return domain.PnLResult{}, err
	}

	if s.cache != nil {
		cached := r
		cached.Wallet = key
		if err := s.cache.Set(ctx, cached, s.ttl); err != nil {
			s.logger.WarnContext(ctx, "result cache set failed",
				slog.String("wallet", key),
				slog.String("error", err.Error()),
			)
		}
	}
	return r, nil
}
