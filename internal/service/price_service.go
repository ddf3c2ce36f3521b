package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polyrank/internal/domain"
)

// Static quote served when every upstream source fails.
const (
	StaticPOLPrice     = 0.4234
	StaticPOLChange24h = -1.23
	StaticPOLSource    = "static-fallback"
	StaticPOLError     = "Using static fallback data - API unavailable"
)

// POLQuoter fetches a live POL quote; *coingecko.Client satisfies it.
type POLQuoter interface {
	POLPrice(ctx context.Context) (domain.POLPrice, error)
}

// PriceService serves the POL/USD quote, caching live quotes and degrading to
// a static quote rather than failing.
type PriceService struct {
	quoter POLQuoter
	cache  domain.PriceCache
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewPriceService creates a PriceService. cache may be nil.
func NewPriceService(quoter POLQuoter, cache domain.PriceCache, ttl time.Duration, logger *slog.Logger) *PriceService {
	return &PriceService{
		quoter: quoter,
		cache:  cache,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With(slog.String("component", "price_service")),
	}
}

// POLPrice returns the cached quote if present, otherwise a live one. When
// the live lookup fails the static quote is returned with Error set; it is
// never cached.
func (s *PriceService) POLPrice(ctx context.Context) domain.POLPrice {
	if s.cache != nil {
		if p, err := s.cache.GetPOL(ctx); err == nil {
			return p
		}
	}

	p, err := s.quoter.POLPrice(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "pol price unavailable, serving static quote",
			slog.String("error", err.Error()),
		)
		return domain.POLPrice{
			USD:       StaticPOLPrice,
			Change24h: StaticPOLChange24h,
			Source:    StaticPOLSource,
			Error:     StaticPOLError,
			FetchedAt: s.now().UTC(),
		}
	}

	if s.cache != nil {
		if err := s.cache.SetPOL(ctx, p, s.ttl); err != nil {
			s.logger.WarnContext(ctx, "pol price cache set failed",
				slog.String("error", err.Error()),
			)
		}
	}
	return p
}
