// Package server is the HTTP and WebSocket API of the leaderboard.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/polyrank/internal/domain"
	"github.com/alanyoungcy/polyrank/internal/metrics"
	"github.com/alanyoungcy/polyrank/internal/server/handler"
	"github.com/alanyoungcy/polyrank/internal/server/middleware"
	"github.com/alanyoungcy/polyrank/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// APIKey guards the mutating and admin routes. Empty disables the check.
	APIKey string
	// RateLimitPerMinute is the per-IP budget; 0 disables limiting.
	RateLimitPerMinute int
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health  *handler.HealthHandler
	Traders *handler.TraderHandler
	PnL     *handler.PnLHandler
	Price   *handler.PriceHandler
	Admin   *handler.AdminHandler
}

// Server is the leaderboard HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in the middleware chain.
// wsHub and limiter may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	auth := middleware.Auth(cfg.APIKey)
	guarded := func(fn http.HandlerFunc) http.Handler { return auth(fn) }

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/traders", handlers.Traders.List)
	mux.Handle("POST /api/traders", guarded(handlers.Traders.Create))
	mux.Handle("PUT /api/traders", guarded(handlers.Traders.BulkUpdate))
	mux.Handle("DELETE /api/traders/{id}", guarded(handlers.Traders.Delete))
	mux.HandleFunc("GET /api/traders/{id}/snapshots", handlers.Traders.History)

	mux.HandleFunc("GET /api/pnl/{wallet}", handlers.PnL.Wallet)
	mux.HandleFunc("GET /api/pol-price", handlers.Price.POL)

	mux.HandleFunc("POST /api/admin/login", handlers.Admin.Login)
	mux.Handle("GET /api/admin/audit", guarded(handlers.Admin.Audit))
	mux.Handle("GET /api/admin/archives", guarded(handlers.Admin.Archives))

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// metrics.Middleware reads r.Pattern, which the mux sets on the same
	// request, so it has to sit directly outside the mux.
	var h http.Handler = metrics.Middleware(mux)
	h = middleware.RateLimit(limiter, cfg.RateLimitPerMinute, time.Minute, logger)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			// PnL lookups page the upstream feed with a pause per page.
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
