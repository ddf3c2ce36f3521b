package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polyrank/internal/domain"
)

// WalletPnL computes or looks up a wallet's realized PnL.
type WalletPnL interface {
	Wallet(ctx context.Context, wallet string, fresh bool) (domain.PnLResult, error)
}

// PnLHandler serves on-demand wallet PnL.
type PnLHandler struct {
	svc    WalletPnL
	logger *slog.Logger
}

// NewPnLHandler creates a PnLHandler.
func NewPnLHandler(svc WalletPnL, logger *slog.Logger) *PnLHandler {
	return &PnLHandler{svc: svc, logger: logHandler(logger, "pnl")}
}

// Wallet returns the realized PnL of a wallet. fresh=true bypasses the
// result cache.
// GET /api/pnl/{wallet}
func (h *PnLHandler) Wallet(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Wallet(r.Context(), pathParam(r, "wallet"), queryBool(r, "fresh"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, domain.ErrInvalidWallet):
		writeError(w, http.StatusBadRequest, "Invalid wallet address format")
	case errors.Is(err, domain.ErrFetchFailed):
		h.logger.WarnContext(r.Context(), "wallet computation failed",
			slog.String("wallet", pathParam(r, "wallet")),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "Failed to fetch P&L data")
	default:
		writeServiceError(w, r, h.logger, err)
	}
}
