package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/cvewatch/internal/config"
	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
	"github.com/lcalzada-xor/cvewatch/internal/logger"
	"github.com/lcalzada-xor/cvewatch/internal/mock"
)

func mockConfig() *config.Config {
	cfg := config.Load()
	cfg.MockMode = true
	cfg.MockScenario = "default"
	cfg.MockSeed = 42
	cfg.WebhookURL = ""
	return cfg
}

// followEverything subscribes a new user to every catalog vendor.
func followEverything(t *testing.T, app *Application) *domain.User {
	t.Helper()
	ctx := context.Background()
	u, err := app.Subscriptions.CreateUser(ctx, "watcher", "watcher@example.com")
	require.NoError(t, err)

	names, err := app.Store.ListVendorNames(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, names)
	for _, name := range names {
		v, err := app.Store.GetVendorByName(ctx, name)
		require.NoError(t, err)
		require.NoError(t, app.Subscriptions.Subscribe(ctx, u.ID, domain.VendorTarget{VendorID: v.ID}))
	}
	return u
}

func TestApplication_MockCycle(t *testing.T) {
	app, err := NewWithStore(mockConfig(), mock.NewStore(), logger.Nop())
	require.NoError(t, err)
	followEverything(t, app)

	report, err := app.Orchestrator.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, report.Status)
	assert.Equal(t, 25, report.ChangesDetected)
	assert.Equal(t, 25, report.AlertsCreated)
	assert.Equal(t, 25, report.AlertsDelivered)
}

func TestApplication_SQLiteBootstrap(t *testing.T) {
	cfg := mockConfig()
	cfg.DBDriver = "sqlite"
	cfg.DBDSN = ":memory:"

	app, err := New(cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, app.Close()) })
	followEverything(t, app)

	report, err := app.Orchestrator.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, report.Status)
	assert.Equal(t, report.ChangesDetected, report.AlertsCreated)

	rr := httptest.NewRecorder()
	app.WebServer.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestApplication_FeedSelection(t *testing.T) {
	cfg := config.Load()
	cfg.FeedFile = "testdata/none.json"

	app, err := NewWithStore(cfg, mock.NewStore(), logger.Nop())
	require.NoError(t, err)

	// A missing export fails the cycle at refresh.
	report, err := app.Orchestrator.RunCycle(context.Background())
	require.ErrorIs(t, err, domain.ErrFeedUnavailable)
	require.NotNil(t, report)
	assert.Equal(t, domain.StatusFailed, report.Status)
}
