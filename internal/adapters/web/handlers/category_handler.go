package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
)

// DefaultPeriod is the look-back used when no period is given.
const DefaultPeriod = 7 * 24 * time.Hour

// CategoryService lists the CVEs matching a category.
type CategoryService interface {
	CategoryCVEs(ctx context.Context, name string, period time.Duration, minScore *float64) ([]domain.CVE, error)
}

type CategoryHandler struct {
	Service CategoryService
}

// NewCategoryHandler creates a new CategoryHandler
func NewCategoryHandler(service CategoryService) *CategoryHandler {
	return &CategoryHandler{Service: service}
}

type categoryCVE struct {
	ID        string    `json:"id"`
	Summary   string    `json:"summary"`
	CVSS2     *float64  `json:"cvss2,omitempty"`
	CVSS3     *float64  `json:"cvss3,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HandleCVEs returns GET /api/categories/{name}/cves?period=72h&min_score=7.
func (h *CategoryHandler) HandleCVEs(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	period := DefaultPeriod
	if raw := r.URL.Query().Get("period"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			http.Error(w, "Invalid period", http.StatusBadRequest)
			return
		}
		period = d
	}

	var minScore *float64
	if raw := r.URL.Query().Get("min_score"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 10 {
			http.Error(w, "Invalid min_score", http.StatusBadRequest)
			return
		}
		minScore = &v
	}

	cves, err := h.Service.CategoryCVEs(r.Context(), name, period, minScore)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]categoryCVE, len(cves))
	for i, c := range cves {
		out[i] = categoryCVE{ID: c.ID, Summary: c.Summary, CVSS2: c.CVSS2, CVSS3: c.CVSS3, UpdatedAt: c.UpdatedAt}
	}
	writeJSON(w, http.StatusOK, map[string]any{"category": name, "cves": out})
}
