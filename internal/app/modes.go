package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyrank/internal/pipeline"
	"github.com/alanyoungcy/polyrank/internal/platform/coingecko"
	"github.com/alanyoungcy/polyrank/internal/server"
	"github.com/alanyoungcy/polyrank/internal/server/handler"
	"github.com/alanyoungcy/polyrank/internal/server/ws"
	"github.com/alanyoungcy/polyrank/internal/service"
)

// services are the domain services built on top of Dependencies.
type services struct {
	board *service.LeaderboardService
	pnl   *service.PnLService
	price *service.PriceService
}

func (a *App) buildServices(deps *Dependencies) services {
	quoter := coingecko.NewClient(a.cfg.Pricing.CoinGeckoURL, a.cfg.Pricing.CoinbaseURL, a.cfg.Polymarket.HTTPTimeout.Duration)
	return services{
		board: service.NewLeaderboardService(deps.Traders, deps.Snapshots, deps.Audit, deps.Bus, a.logger),
		pnl:   service.NewPnLService(newEngine(a.cfg, a.logger), deps.Results, a.cfg.Refresh.ResultTTL.Duration, a.logger),
		price: service.NewPriceService(quoter, deps.Prices, a.cfg.Pricing.CacheTTL.Duration, a.logger),
	}
}

// ServerMode serves the HTTP API and WebSocket hub only.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	if err := a.startHTTPServer(ctx, g, deps, a.buildServices(deps)); err != nil {
		return err
	}
	return g.Wait()
}

// RefreshMode runs the periodic leaderboard refresh and the snapshot
// archive without serving HTTP.
func (a *App) RefreshMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting refresh mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startRefresh(ctx, g, deps, a.buildServices(deps))
	return g.Wait()
}

// FullMode runs the refresh loop and the HTTP API in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode",
		slog.Bool("refresh", a.cfg.Refresh.Enabled),
		slog.Bool("server", a.cfg.Server.Enabled),
	)

	svcs := a.buildServices(deps)
	var adminHash string
	if a.cfg.Server.Enabled {
		var err error
		if adminHash, err = adminPasswordHash(a.cfg.Server); err != nil {
			return err
		}
	}
	g, ctx := errgroup.WithContext(ctx)
	if a.cfg.Refresh.Enabled {
		a.startRefresh(ctx, g, deps, svcs)
	}
	if a.cfg.Server.Enabled {
		a.serveHTTP(ctx, g, deps, svcs, adminHash)
	}
	return g.Wait()
}

// ComputeMode computes a single wallet against the live data API and writes
// the result as indented JSON. It touches no storage.
func (a *App) ComputeMode(ctx context.Context, wallet string) error {
	if wallet == "" {
		return fmt.Errorf("compute mode: a wallet address is required")
	}

	engine := newEngine(a.cfg, a.logger)
	res, err := engine.ComputeForWallet(ctx, wallet)
	if err != nil {
		return fmt.Errorf("compute mode: %w", err)
	}

	enc := json.NewEncoder(a.opts.Out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("compute mode: encode result: %w", err)
	}
	return nil
}

func (a *App) startRefresh(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs services) {
	refresher := pipeline.NewRefresher(svcs.board, svcs.pnl, deps.Locks, a.cfg.Refresh.LockTTL.Duration, deps.Notifier, a.logger)

	var archiver *pipeline.Archiver
	if deps.Archiver != nil {
		archiver = pipeline.NewArchiver(deps.Archiver, a.cfg.Refresh.ArchiveRetentionDays, deps.Notifier, a.logger)
	}

	orch := pipeline.NewOrchestrator(refresher, archiver, a.cfg.Refresh.Interval.Duration, a.cfg.Refresh.ArchiveCron, a.logger)
	g.Go(func() error {
		return orch.Run(ctx)
	})
}

// startHTTPServer adds the API server and the WebSocket hub to g. The server
// shuts down gracefully when ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs services) error {
	adminHash, err := adminPasswordHash(a.cfg.Server)
	if err != nil {
		return err
	}
	a.serveHTTP(ctx, g, deps, svcs, adminHash)
	return nil
}

func (a *App) serveHTTP(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs services, adminHash string) {
	hub := ws.NewHub(deps.Bus, service.LeaderboardChannel, a.cfg.Server.CORSOrigins, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	health := map[string]handler.Pinger{
		"postgres": deps.Postgres,
		"redis":    deps.Redis,
	}
	if deps.S3 != nil {
		health["s3"] = pingFunc(deps.S3.Health)
	}

	srv := server.NewServer(
		server.Config{
			Port:               a.cfg.Server.Port,
			CORSOrigins:        a.cfg.Server.CORSOrigins,
			APIKey:             a.cfg.Server.APIKey,
			RateLimitPerMinute: a.cfg.Server.RateLimitPerMinute,
		},
		server.Handlers{
			Health:  handler.NewHealthHandler(health, a.logger),
			Traders: handler.NewTraderHandler(svcs.board, a.logger),
			PnL:     handler.NewPnLHandler(svcs.pnl, a.logger),
			Price:   handler.NewPriceHandler(svcs.price),
			Admin:   handler.NewAdminHandler(adminHash, svcs.board, deps.BlobReader, a.logger),
		},
		hub,
		deps.RateLimiter,
		a.logger,
	)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
