package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lcalzada-xor/cvewatch/internal/adapters/web/middleware"
	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
)

// CycleRateLimit bounds manual cycle triggers per client.
const CycleRateLimit = 5

func SetupRoutes(s *Server) http.Handler {
	r := mux.NewRouter().StrictSlash(true)
	r.Use(middleware.LoggingMiddleware(s.log))

	r.HandleFunc("/healthz", s.HealthHandler.HandleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.AuditSourceMiddleware(domain.SourceAPI))

	// Match-key inspection
	api.HandleFunc("/users/{id}/keys", s.KeysHandler.HandleUserKeys).Methods(http.MethodGet)
	api.HandleFunc("/categories/{name}/keys", s.KeysHandler.HandleCategoryKeys).Methods(http.MethodGet)
	api.HandleFunc("/categories/{name}/cves", s.CategoryHandler.HandleCVEs).Methods(http.MethodGet)

	api.HandleFunc("/subscriptions", s.SubscriptionHandler.HandleEdit).Methods(http.MethodPost)

	// Cycles (rate limited, each call runs a full cycle)
	cycleLimiter := middleware.NewRateLimiter(CycleRateLimit, 1*time.Minute)
	api.Handle("/cycles", middleware.RateLimitMiddleware(cycleLimiter)(http.HandlerFunc(s.CycleHandler.HandleRun))).Methods(http.MethodPost)
	api.HandleFunc("/reports", s.CycleHandler.HandleList).Methods(http.MethodGet)

	// Audit Logs
	api.HandleFunc("/audit-logs", s.AuditHandler.HandleGetLogs).Methods(http.MethodGet)

	return r
}
