package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/polyrank/internal/crypto"
	"github.com/alanyoungcy/polyrank/internal/domain"
)

// archivePrefix is where the snapshot archiver writes its objects.
const archivePrefix = "archive/"

// AuditLister returns recent audit log entries.
type AuditLister interface {
	AuditTrail(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}

// BlobLister lists objects under a prefix.
type BlobLister interface {
	List(ctx context.Context, prefix string) ([]domain.BlobInfo, error)
}

// AdminHandler serves the admin endpoints.
type AdminHandler struct {
	passwordHash string
	audit    AuditLister
	blobs    BlobLister
	logger   *slog.Logger
}

// NewAdminHandler creates an AdminHandler. passwordHash is a
// crypto.HashPassword digest; empty disables login. blobs may be nil, in
// which case the archive listing is empty.
func NewAdminHandler(passwordHash string, audit AuditLister, blobs BlobLister, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{passwordHash: passwordHash, audit: audit, blobs: blobs, logger: logHandler(logger, "admin")}
}

type loginRequest struct {
	Password string `json:"password"`
}

// Login checks the admin password against the stored hash.
// POST /api/admin/login
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.passwordHash == "" {
		writeError(w, http.StatusServiceUnavailable, "admin login is not configured")
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if !crypto.CheckPassword(h.passwordHash, req.Password) {
		h.logger.WarnContext(r.Context(), "admin login rejected")
		writeError(w, http.StatusUnauthorized, "Invalid password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Audit returns the most recent audit entries.
// GET /api/admin/audit?limit=N
func (h *AdminHandler) Audit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.audit.AuditTrail(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type archiveObject struct {
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	LastModified string `json:"lastModified,omitempty"`
}

// Archives lists the archived snapshot objects.
// GET /api/admin/archives
func (h *AdminHandler) Archives(w http.ResponseWriter, r *http.Request) {
	out := []archiveObject{}
	if h.blobs == nil {
		writeJSON(w, http.StatusOK, out)
		return
	}
	prefix := archivePrefix + strings.Trim(r.URL.Query().Get("kind"), "/")
	infos, err := h.blobs.List(r.Context(), prefix)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	for _, info := range infos {
		obj := archiveObject{Path: info.Path, Size: info.Size}
		if !info.LastModified.IsZero() {
			obj.LastModified = info.LastModified.UTC().Format("2006-01-02T15:04:05Z")
		}
		out = append(out, obj)
	}
	writeJSON(w, http.StatusOK, out)
}
