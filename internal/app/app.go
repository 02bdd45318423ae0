package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lcalzada-xor/cvewatch/internal/adapters/nvd"
	"github.com/lcalzada-xor/cvewatch/internal/adapters/notify"
	"github.com/lcalzada-xor/cvewatch/internal/adapters/storage"
	webserver "github.com/lcalzada-xor/cvewatch/internal/adapters/web/server"
	"github.com/lcalzada-xor/cvewatch/internal/config"
	"github.com/lcalzada-xor/cvewatch/internal/core/ports"
	"github.com/lcalzada-xor/cvewatch/internal/core/services/alerts"
	"github.com/lcalzada-xor/cvewatch/internal/core/services/audit"
	"github.com/lcalzada-xor/cvewatch/internal/core/services/catalog"
	"github.com/lcalzada-xor/cvewatch/internal/core/services/changes"
	"github.com/lcalzada-xor/cvewatch/internal/core/services/cpematch"
	"github.com/lcalzada-xor/cvewatch/internal/core/services/pipeline"
	"github.com/lcalzada-xor/cvewatch/internal/core/services/subscription"
	"github.com/lcalzada-xor/cvewatch/internal/logger"
	"github.com/lcalzada-xor/cvewatch/internal/mock"
	"github.com/lcalzada-xor/cvewatch/internal/telemetry"
)

// Application holds the core components of the application.
// It acts as the Facade for the entire system, orchestrating services and infrastructure.
type Application struct {
	Config *config.Config
	Log    *logger.Logger

	Store         ports.Store
	Audit         *audit.AuditService
	Matcher       *cpematch.Matcher
	Expander      *subscription.Expander
	Subscriptions *subscription.Service
	Importer      *catalog.Importer
	Orchestrator  *pipeline.Orchestrator
	Scheduler     *pipeline.Scheduler
	WebServer     *webserver.Server

	closers []func() error
}

// New creates a new Application instance and bootstraps its components.
func New(cfg *config.Config, log *logger.Logger) (*Application, error) {
	app := &Application{Config: cfg, Log: log}
	if err := app.bootstrap(); err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("application bootstrap failed: %w", err)
	}
	return app, nil
}

// NewWithStore bootstraps the application on an existing store. Used by
// tests and tools that manage their own persistence.
func NewWithStore(cfg *config.Config, store ports.Store, log *logger.Logger) (*Application, error) {
	app := &Application{Config: cfg, Log: log, Store: store}
	if err := app.bootstrap(); err != nil {
		return nil, fmt.Errorf("application bootstrap failed: %w", err)
	}
	return app, nil
}

// bootstrap orchestrates the initialization sequence.
func (app *Application) bootstrap() error {
	// 1. Foundation & Infrastructure
	telemetry.InitMetrics()

	if app.Store == nil {
		if err := app.initStorage(); err != nil {
			return err
		}
	}

	// 2. Domain Services
	app.initServices()

	// 3. Pipeline
	feed, err := app.initFeed()
	if err != nil {
		return err
	}
	app.initPipeline(feed, app.initNotifier())

	// 4. Servers
	app.initServer()
	return nil
}

func (app *Application) initStorage() error {
	store, err := storage.Open(app.Config.DBDriver, app.Config.DBDSN)
	if err != nil {
		return fmt.Errorf("failed to init storage: %w", err)
	}
	app.Store = store
	app.closers = append(app.closers, store.Close)
	app.Log.Info("storage ready", "driver", app.Config.DBDriver)
	return nil
}

func (app *Application) initServices() {
	app.Audit = audit.NewAuditService(app.Store)
	app.Matcher = cpematch.NewMatcher(app.Store, app.Config.ProductPageSize, app.Log)
	app.Expander = subscription.NewExpander(app.Store, app.Matcher, app.Log)
	app.Subscriptions = subscription.NewService(app.Store, app.Store, app.Store, app.Expander, app.Audit, app.Log)
	app.Importer = catalog.NewImporter(app.Store, app.Store, app.Matcher, app.Audit, app.Log)
}

// initFeed picks the CVE source: synthetic data, a local NVD export or the
// NVD API, in that order of precedence.
func (app *Application) initFeed() (ports.FeedProvider, error) {
	cfg := app.Config
	switch {
	case cfg.MockMode:
		gen := mock.NewDataGenerator(cfg.MockSeed)
		if _, err := app.Importer.ImportCatalog(context.Background(), gen.CatalogNames()); err != nil {
			return nil, fmt.Errorf("seed synthetic catalog: %w", err)
		}
		app.Log.Info("mock mode active: using synthetic CVE feed", "scenario", cfg.MockScenario, "seed", cfg.MockSeed)
		return mock.NewFeed(gen, cfg.MockScenario), nil
	case cfg.FeedFile != "":
		app.Log.Info("reading CVEs from file", "path", cfg.FeedFile)
		return nvd.NewFileFeed(cfg.FeedFile, app.Log), nil
	default:
		return nvd.NewClient(cfg.FeedURL, cfg.FeedAPIKey, cfg.FeedTimeout, app.Log), nil
	}
}

func (app *Application) initNotifier() ports.Notifier {
	if app.Config.WebhookURL != "" {
		return notify.NewWebhookNotifier(app.Config.WebhookURL, 30*time.Second, app.Log)
	}
	return notify.NewLogNotifier(app.Log)
}

func (app *Application) initPipeline(feed ports.FeedProvider, notifier ports.Notifier) {
	cfg := app.Config
	app.Orchestrator = pipeline.NewOrchestrator(
		app.Store,
		feed,
		changes.NewDetector(app.Store, app.Store, app.Log),
		alerts.NewDispatcher(app.Store, app.Store, app.Store, app.Expander, cfg.DispatchWorkers, cfg.UserPageSize, app.Log),
		alerts.NewDeliverer(app.Store, app.Store, app.Store, notifier, app.Log),
		pipeline.Options{FeedTimeout: cfg.FeedTimeout, Lookback: cfg.FeedLookback},
		app.Log,
	)
	app.Scheduler = pipeline.NewScheduler(app.Orchestrator, cfg.Interval, app.Log)
}

func (app *Application) initServer() {
	deps := webserver.Deps{
		Subscriptions: app.Subscriptions,
		Cycles:        app.Orchestrator,
		Reports:       app.Store,
		Audit:         app.Audit,
	}
	if p, ok := app.Store.(interface{ Ping() error }); ok {
		deps.DB = p
	}
	app.WebServer = webserver.NewServer(app.Config.Addr, deps, app.Log)
}

// Run starts the scheduler and the HTTP server and blocks until ctx is
// cancelled or the server fails.
func (app *Application) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.Scheduler.Start(ctx)
		return nil
	})
	g.Go(func() error {
		return app.WebServer.Run(ctx)
	})

	return g.Wait()
}

// Close releases storage handles.
func (app *Application) Close() error {
	var firstErr error
	for _, c := range app.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	app.closers = nil
	return firstErr
}
