package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Orchestrator runs the refresh loop and the archive cron side by side.
type Orchestrator struct {
	refresher   *Refresher
	archiver    *Archiver
	interval    time.Duration
	archiveCron string
	logger      *slog.Logger
}

// NewOrchestrator creates an Orchestrator. archiver may be nil to run the
// refresh loop alone.
func NewOrchestrator(
	refresher *Refresher,
	archiver *Archiver,
	interval time.Duration,
	archiveCron string,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		refresher:   refresher,
		archiver:    archiver,
		interval:    interval,
		archiveCron: archiveCron,
		logger:      logger.With(slog.String("component", "orchestrator")),
	}
}

// Run blocks until ctx is cancelled or a loop fails. Cancellation is a clean
// shutdown and returns nil.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline orchestrator starting",
		slog.Duration("refresh_interval", o.interval),
		slog.String("archive_cron", o.archiveCron),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := o.refresher.RunLoop(ctx, o.interval)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("refresher: %w", err)
	})

	if o.archiver != nil {
		g.Go(func() error {
			err := o.archiver.RunCron(ctx, o.archiveCron)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("archiver: %w", err)
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.Error("pipeline orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}
	o.logger.Info("pipeline orchestrator stopped cleanly")
	return nil
}
