package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polyrank/internal/domain"
	"github.com/alanyoungcy/polyrank/internal/service"
)

// TraderService is the leaderboard surface the trader routes need.
type TraderService interface {
	Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error)
	CreateTrader(ctx context.Context, in service.NewTrader) (domain.Trader, error)
	DeactivateTrader(ctx context.Context, id string) error
	UpdateSnapshots(ctx context.Context, updates []service.SnapshotUpdate) (int, error)
	History(ctx context.Context, traderID string, limit int) ([]domain.PnLSnapshot, error)
}

// TraderHandler serves the tracked-trader endpoints.
type TraderHandler struct {
	svc    TraderService
	logger *slog.Logger
}

// NewTraderHandler creates a TraderHandler.
func NewTraderHandler(svc TraderService, logger *slog.Logger) *TraderHandler {
	return &TraderHandler{svc: svc, logger: logHandler(logger, "trader")}
}

// List returns the active traders with their latest snapshot.
// GET /api/traders
func (h *TraderHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Leaderboard(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Create starts tracking a wallet.
// POST /api/traders
func (h *TraderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.NewTrader
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	t, err := h.svc.CreateTrader(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// traderUpdate is one element of a bulk update. The dashboard sends the
// window sums nested under currentPnL; flat fields are accepted too and the
// nested values win.
type traderUpdate struct {
	service.SnapshotUpdate
	CurrentPnL *struct {
		DailyPnL   float64 `json:"dailyPnL"`
		WeeklyPnL  float64 `json:"weeklyPnL"`
		MonthlyPnL float64 `json:"monthlyPnL"`
	} `json:"currentPnL"`
}

// bulkUpdateRequest is either a bare array of updates or {"traders": [...]}.
type bulkUpdateRequest struct {
	Traders []traderUpdate `json:"traders"`
}

func (b *bulkUpdateRequest) UnmarshalJSON(data []byte) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &b.Traders)
	}
	type plain bulkUpdateRequest
	return json.Unmarshal(data, (*plain)(b))
}

func (b bulkUpdateRequest) updates() []service.SnapshotUpdate {
	out := make([]service.SnapshotUpdate, 0, len(b.Traders))
	for _, t := range b.Traders {
		u := t.SnapshotUpdate
		if t.CurrentPnL != nil {
			u.DailyPnL = t.CurrentPnL.DailyPnL
			u.WeeklyPnL = t.CurrentPnL.WeeklyPnL
			u.MonthlyPnL = t.CurrentPnL.MonthlyPnL
		}
		out = append(out, u)
	}
	return out
}

// BulkUpdate records externally computed snapshots for several traders.
// PUT /api/traders
func (h *TraderHandler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	var req bulkUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	n, err := h.svc.UpdateSnapshots(r.Context(), req.updates())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": n})
}

// Delete stops tracking a trader. The history is kept.
// DELETE /api/traders/{id}
func (h *TraderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeactivateTrader(r.Context(), pathParam(r, "id")); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// History returns a trader's snapshots, newest first.
// GET /api/traders/{id}/snapshots?limit=N
func (h *TraderHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", service.DefaultHistoryLimit)
	snaps, err := h.svc.History(r.Context(), pathParam(r, "id"), limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, snaps)
}
