// Package metrics provides Prometheus instrumentation for polyrank.
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActivityRequests counts upstream activity page requests by outcome.
	ActivityRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyrank_activity_requests_total",
		Help: "Activity page requests sent to the data API",
	}, []string{"outcome"})

	// ActivityRecords counts activity records received from the data API.
	ActivityRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyrank_activity_records_total",
		Help: "Activity records received from the data API",
	})

	// IngestTruncated counts wallets whose history hit the record cap.
	IngestTruncated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyrank_ingest_truncated_total",
		Help: "Wallet ingestions stopped by the record cap",
	})

	// Computations counts wallet PnL computations by outcome.
	Computations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyrank_pnl_computations_total",
		Help: "Wallet PnL computations",
	}, []string{"outcome"})

	// ComputeDuration tracks end-to-end wallet computation time, dominated by
	// the paced page requests.
	ComputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyrank_pnl_compute_duration_seconds",
		Help:    "Wallet PnL computation duration in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 15, 30, 60},
	})

	// RefreshRuns counts leaderboard refresh passes by outcome.
	RefreshRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyrank_refresh_runs_total",
		Help: "Leaderboard refresh passes",
	}, []string{"outcome"})

	// TrackedTraders is the number of active traders seen by the last refresh.
	TrackedTraders = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyrank_tracked_traders",
		Help: "Active traders on the leaderboard",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyrank_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyrank_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "polyrank_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30},
	}, []string{"method", "route"})
)

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
	OutcomeEmpty = "empty"
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics. The
// route label is the matched ServeMux pattern, which keeps wallet addresses
// and trader IDs out of the label set.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("metrics: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
