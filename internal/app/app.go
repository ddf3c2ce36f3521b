// Package app wires the leaderboard backend together and runs it in the
// configured mode.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alanyoungcy/polyrank/internal/config"
)

// Options carries per-invocation inputs that do not belong in the config
// file.
type Options struct {
	// Wallet is the address computed by compute mode.
	Wallet string
	// Out receives compute mode's JSON result. Defaults to os.Stdout.
	Out io.Writer
}

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	opts    Options
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger, opts Options) *App {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return &App{
		cfg:    cfg,
		opts:   opts,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires the dependencies the mode needs and blocks until ctx is cancelled
// or the mode finishes.
func (a *App) Run(ctx context.Context) error {
	mode := strings.ToLower(a.cfg.Mode)
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	switch mode {
	case "compute":
		return a.ComputeMode(ctx, a.opts.Wallet)
	case "server", "refresh", "full":
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch mode {
	case "server":
		return a.ServerMode(ctx, deps)
	case "refresh":
		return a.RefreshMode(ctx, deps)
	default:
		return a.FullMode(ctx, deps)
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
