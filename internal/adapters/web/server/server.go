package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lcalzada-xor/cvewatch/internal/adapters/web/handlers"
	"github.com/lcalzada-xor/cvewatch/internal/core/ports"
	"github.com/lcalzada-xor/cvewatch/internal/logger"
)

// SubscriptionService is everything the API needs from the subscription layer.
type SubscriptionService interface {
	handlers.KeyService
	handlers.CategoryService
	handlers.SubscriptionService
}

// Deps are the services the HTTP API is served from.
type Deps struct {
	Subscriptions SubscriptionService
	Cycles        handlers.CycleRunner
	Reports       handlers.ReportLister
	Audit         ports.AuditService
	DB            handlers.Pinger
}

// Server handles the HTTP API.
type Server struct {
	Addr string

	HealthHandler       *handlers.HealthHandler
	KeysHandler         *handlers.KeysHandler
	CategoryHandler     *handlers.CategoryHandler
	SubscriptionHandler *handlers.SubscriptionHandler
	CycleHandler        *handlers.CycleHandler
	AuditHandler        *handlers.AuditHandler

	log *logger.Logger
	srv *http.Server
}

// NewServer creates a new web server.
func NewServer(addr string, deps Deps, log *logger.Logger) *Server {
	log = log.Named("web")
	return &Server{
		Addr:                addr,
		HealthHandler:       handlers.NewHealthHandler(deps.DB),
		KeysHandler:         handlers.NewKeysHandler(deps.Subscriptions),
		CategoryHandler:     handlers.NewCategoryHandler(deps.Subscriptions),
		SubscriptionHandler: handlers.NewSubscriptionHandler(deps.Subscriptions),
		CycleHandler:        handlers.NewCycleHandler(deps.Cycles, deps.Reports, deps.Audit, log),
		AuditHandler:        handlers.NewAuditHandler(deps.Audit, log),
		log:                 log,
	}
}

// Handler returns the routed, instrumented API handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(SetupRoutes(s), "cvewatch-api")
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.log.Info("web server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("web server shutdown error", "error", err)
		}
	}()

	s.log.Info("web server listening", "addr", s.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
