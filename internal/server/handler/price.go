package handler

import (
	"context"
	"net/http"

	"github.com/alanyoungcy/polyrank/internal/domain"
)

// POLPricer always yields a quote, falling back to static data.
type POLPricer interface {
	POLPrice(ctx context.Context) domain.POLPrice
}

// PriceHandler serves the POL/USD quote.
type PriceHandler struct {
	svc POLPricer
}

// NewPriceHandler creates a PriceHandler.
func NewPriceHandler(svc POLPricer) *PriceHandler {
	return &PriceHandler{svc: svc}
}

// POL returns the current POL quote.
// GET /api/pol-price
func (h *PriceHandler) POL(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=60")
	writeJSON(w, http.StatusOK, h.svc.POLPrice(r.Context()))
}
