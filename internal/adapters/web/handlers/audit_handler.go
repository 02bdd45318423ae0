package handlers

import (
	"net/http"
	"time"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
	"github.com/lcalzada-xor/cvewatch/internal/core/ports"
	"github.com/lcalzada-xor/cvewatch/internal/logger"
)

// AuditHandler serves the audit trail.
type AuditHandler struct {
	Service ports.AuditService
	log     *logger.Logger
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(service ports.AuditService, log *logger.Logger) *AuditHandler {
	return &AuditHandler{Service: service, log: log}
}

// HandleGetLogs serves GET /api/audit-logs?action=&user_id=&target=&since=&limit=.
func (h *AuditHandler) HandleGetLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.AuditFilter{
		UserID:       q.Get("user_id"),
		TargetPrefix: q.Get("target"),
		Limit:        queryLimit(r, 100),
	}
	if raw := q.Get("action"); raw != "" {
		action, err := domain.ParseAuditAction(raw)
		if err != nil {
			http.Error(w, "Unknown action", http.StatusBadRequest)
			return
		}
		filter.Action = action
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "since must be RFC 3339", http.StatusBadRequest)
			return
		}
		filter.Since = since
	}

	logs, err := h.Service.GetLogs(r.Context(), filter)
	if err != nil {
		h.log.Error("failed to fetch audit logs", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}
