package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
	"github.com/lcalzada-xor/cvewatch/internal/core/ports"
	"github.com/lcalzada-xor/cvewatch/internal/logger"
)

// CycleRunner runs one notification cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) (*domain.CycleReport, error)
}

// ReportLister reads the cycle journal.
type ReportLister interface {
	ListReports(ctx context.Context, limit int) ([]domain.Report, error)
}

type CycleHandler struct {
	Runner  CycleRunner
	Reports ReportLister
	Audit   ports.AuditService
	log     *logger.Logger
}

// NewCycleHandler creates a new CycleHandler
func NewCycleHandler(runner CycleRunner, reports ReportLister, audit ports.AuditService, log *logger.Logger) *CycleHandler {
	return &CycleHandler{Runner: runner, Reports: reports, Audit: audit, log: log}
}

// HandleRun serves POST /api/cycles and blocks until the cycle ends.
func (h *CycleHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	if err := h.Audit.Log(r.Context(), domain.ActionCycleTriggered, "cycle", "api"); err != nil {
		h.log.Warn("audit log failed", "action", domain.ActionCycleTriggered, "error", err)
	}

	report, err := h.Runner.RunCycle(r.Context())
	if err != nil {
		h.log.Error("manual cycle failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleList serves GET /api/reports?limit=n.
func (h *CycleHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 20)
	reports, err := h.Reports.ListReports(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func queryLimit(r *http.Request, fallback int) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			return n
		}
	}
	return fallback
}
