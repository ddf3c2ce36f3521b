// Package ingest pages through a wallet's activity history under a request
// pacing policy and a record cap.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polyrank/internal/domain"
	"github.com/alanyoungcy/polyrank/internal/metrics"
)

// Default paging budget.
const (
	DefaultPageSize   = 500
	DefaultMaxRecords = 5000
	DefaultDelay      = time.Second
)

// ActivityFetcher retrieves one page of a wallet's activity.
type ActivityFetcher interface {
	GetActivity(ctx context.Context, wallet string, limit, offset int) ([]domain.Activity, error)
}

// Options configures an Ingester. A zero PageSize or MaxRecords falls back to
// the default; Delay is used as given, with negatives treated as zero.
type Options struct {
	PageSize   int
	MaxRecords int
	Delay      time.Duration
}

// Ingester fetches a wallet's full activity history.
type Ingester struct {
	fetcher    ActivityFetcher
	pageSize   int
	maxRecords int
	newPacer   func() *Pacer
	logger     *slog.Logger
}

// NewIngester creates an Ingester backed by fetcher.
func NewIngester(fetcher ActivityFetcher, opts Options, logger *slog.Logger) *Ingester {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.MaxRecords <= 0 {
		opts.MaxRecords = DefaultMaxRecords
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	delay := opts.Delay
	return &Ingester{
		fetcher:    fetcher,
		pageSize:   opts.PageSize,
		maxRecords: opts.MaxRecords,
		newPacer:   func() *Pacer { return NewPacer(delay) },
		logger:     logger.With(slog.String("component", "ingester")),
	}
}

// Fetch returns the wallet's activity in source order (newest first).
//
// Paging stops on an empty page, on a page shorter than the page size, or once
// the cumulative count exceeds MaxRecords. The cap is checked after a full
// page is kept, so a busy wallet yields up to MaxRecords+PageSize records and
// its oldest history is dropped. Any request failure aborts the whole fetch
// with domain.ErrFetchFailed; nothing partial is returned.
func (in *Ingester) Fetch(ctx context.Context, wallet string) ([]domain.Activity, error) {
	pacer := in.newPacer()
	var all []domain.Activity
	offset := 0
	requests := 0

	for {
		if err := pacer.Wait(ctx); err != nil {
			return nil, fmt.Errorf("ingest: wait before offset %d: %w: %w", offset, domain.ErrFetchFailed, err)
		}

		page, err := in.fetcher.GetActivity(ctx, wallet, in.pageSize, offset)
		pacer.Done()
		requests++
		if err != nil {
			metrics.ActivityRequests.WithLabelValues(metrics.OutcomeError).Inc()
			return nil, fmt.Errorf("ingest: fetch offset %d: %w: %w", offset, domain.ErrFetchFailed, err)
		}

		if len(page) == 0 {
			metrics.ActivityRequests.WithLabelValues(metrics.OutcomeEmpty).Inc()
			break
		}
		metrics.ActivityRequests.WithLabelValues(metrics.OutcomeOK).Inc()
		metrics.ActivityRecords.Add(float64(len(page)))

		all = append(all, page...)

		if len(page) < in.pageSize {
			break
		}

		offset += in.pageSize

		if len(all) > in.maxRecords {
			metrics.IngestTruncated.Inc()
			in.logger.WarnContext(ctx, "activity history truncated at record cap",
				slog.String("wallet", wallet),
				slog.Int("records", len(all)),
				slog.Int("max_records", in.maxRecords),
			)
			break
		}
	}

	in.logger.DebugContext(ctx, "activity fetched",
		slog.String("wallet", wallet),
		slog.Int("records", len(all)),
		slog.Int("requests", requests),
	)
	return all, nil
}
