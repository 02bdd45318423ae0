package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
)

// setupInMemoryDB creates a migrated adapter on a private SQLite database.
func setupInMemoryDB(t *testing.T) *Adapter {
	t.Helper()
	adapter, err := Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Close() })
	return adapter
}

func score(v float64) *float64 { return &v }

func TestOpen_RejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "dsn")
	assert.Error(t, err)
}

func TestNewAdapter_IndexFailure(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "clash.db")), &gorm.Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	// Indexes and tables share one namespace in SQLite.
	require.NoError(t, db.Exec("CREATE TABLE idx_changes_pending (id INTEGER)").Error)

	_, err = NewAdapter(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create index")
}

func TestUpsertProduct_Idempotent(t *testing.T) {
	a := setupInMemoryDB(t)
	ctx := context.Background()

	first, err := a.UpsertProduct(ctx, "Acme", "cpe:2.3:a:acme:widget:1.0:*:*:*:*:*:*:*")
	require.NoError(t, err)
	assert.Equal(t, "acme", first.Vendor)
	assert.True(t, first.IsDirty())

	second, err := a.UpsertProduct(ctx, "acme", "cpe:2.3:a:acme:widget:1.0:*:*:*:*:*:*:*")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.VendorID, second.VendorID)

	names, err := a.ListVendorNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme"}, names)

	_, err = a.UpsertProduct(ctx, " ", "x")
	assert.ErrorIs(t, err, domain.ErrEmptyName)
}

func TestProductRepair_Lifecycle(t *testing.T) {
	a := setupInMemoryDB(t)
	ctx := context.Background()

	p1, err := a.UpsertProduct(ctx, "acme", "cpe:2.3:a:acme:widget:1.0:*:*:*:*:*:*:*")
	require.NoError(t, err)
	p2, err := a.UpsertProduct(ctx, "acme", "cpe:2.3:a:acme:Widget:2.0:*:*:*:*:*:*:*")
	require.NoError(t, err)
	bad, err := a.UpsertProduct(ctx, "acme", "garbage")
	require.NoError(t, err)

	dirty, err := a.ListDirtyProducts(ctx, p1.VendorID, "", 10)
	require.NoError(t, err)
	assert.Len(t, dirty, 3)

	for _, p := range []*domain.Product{p1, p2} {
		fields, err := domain.ParseCPE(p.Name)
		require.NoError(t, err)
		require.NoError(t, a.SaveProductFields(ctx, p.ID, fields))
	}
	require.NoError(t, a.MarkProductMalformed(ctx, bad.ID))

	dirty, err = a.ListDirtyProducts(ctx, "", "", 10)
	require.NoError(t, err)
	assert.Empty(t, dirty)

	family, err := a.ListProductFamily(ctx, p1.VendorID, "WIDGET", "", 10)
	require.NoError(t, err)
	require.Len(t, family, 2)
	for _, p := range family {
		require.NotNil(t, p.Fields)
		assert.Equal(t, "acme", p.Vendor)
	}

	page, err := a.ListProductFamily(ctx, p1.VendorID, "widget", family[0].ID, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, family[1].ID, page[0].ID)

	stored, err := a.GetProduct(ctx, bad.ID)
	require.NoError(t, err)
	assert.True(t, stored.Malformed)
	assert.Nil(t, stored.Fields)

	names, err := a.ListProductNames(ctx, p1.VendorID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"widget", "Widget"}, names)

	assert.ErrorIs(t, a.SaveProductFields(ctx, "missing", domain.ProductFields{}), domain.ErrNotFound)
}

func TestSubscriptions_EdgesAndPaging(t *testing.T) {
	a := setupInMemoryDB(t)
	ctx := context.Background()

	p, err := a.UpsertProduct(ctx, "acme", "cpe:2.3:a:acme:widget:1.0:*:*:*:*:*:*:*")
	require.NoError(t, err)

	for _, id := range []string{"u1", "u2", "u3"} {
		require.NoError(t, a.CreateUser(ctx, domain.User{ID: id, Username: "name-" + id, CreatedAt: time.Now().UTC()}))
	}
	assert.ErrorIs(t, a.CreateUser(ctx, domain.User{ID: "u4", Username: "name-u1"}), domain.ErrUserExists)

	require.NoError(t, a.CreateCategory(ctx, domain.Category{ID: "c1", Name: "web"}))
	require.NoError(t, a.AddCategoryProduct(ctx, "c1", p.ID))

	require.NoError(t, a.FollowVendor(ctx, "u1", p.VendorID))
	require.NoError(t, a.FollowVendor(ctx, "u1", p.VendorID))
	require.NoError(t, a.FollowProduct(ctx, "u2", p.ID))
	require.NoError(t, a.FollowCategory(ctx, "u3", "c1"))
	assert.ErrorIs(t, a.FollowVendor(ctx, "ghost", p.VendorID), domain.ErrNotFound)

	u1, err := a.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, u1.Vendors, 1)
	assert.Equal(t, "acme", u1.Vendors[0].Name)

	u2, err := a.GetUserByName(ctx, "name-u2")
	require.NoError(t, err)
	require.Len(t, u2.Products, 1)
	assert.Equal(t, "acme", u2.Products[0].Vendor)

	page, err := a.ListUsers(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	rest, err := a.ListUsers(ctx, page[1].ID, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.True(t, rest[0].FollowsCategory("c1"))

	require.NoError(t, a.UnfollowVendor(ctx, "u1", p.VendorID))
	u1, err = a.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, u1.Vendors)

	_, err = a.GetUser(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCategories_CRUD(t *testing.T) {
	a := setupInMemoryDB(t)
	ctx := context.Background()

	p, err := a.UpsertProduct(ctx, "globex", "cpe:2.3:o:globex:os:10:*:*:*:*:*:*:*")
	require.NoError(t, err)
	require.NoError(t, a.CreateUser(ctx, domain.User{ID: "u1", Username: "ops"}))

	require.NoError(t, a.CreateCategory(ctx, domain.Category{ID: "c1", Name: "servers"}))
	require.NoError(t, a.CreateCategory(ctx, domain.Category{ID: "c2", Name: "desktops"}))
	assert.ErrorIs(t, a.CreateCategory(ctx, domain.Category{ID: "c3", Name: "servers"}), domain.ErrCategoryExists)

	require.NoError(t, a.AddCategoryVendor(ctx, "c1", p.VendorID))
	require.NoError(t, a.AddCategoryProduct(ctx, "c1", p.ID))
	require.NoError(t, a.FollowCategory(ctx, "u1", "c1"))

	cat, err := a.GetCategoryByName(ctx, "Servers")
	require.NoError(t, err)
	require.Len(t, cat.Vendors, 1)
	require.Len(t, cat.Products, 1)
	assert.Equal(t, "globex", cat.Products[0].Vendor)

	assert.ErrorIs(t, a.RenameCategory(ctx, "c1", "desktops"), domain.ErrCategoryExists)
	require.NoError(t, a.RenameCategory(ctx, "c1", "infra"))

	list, err := a.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "desktops", list[0].Name)
	assert.Equal(t, "infra", list[1].Name)

	require.NoError(t, a.RemoveCategoryVendor(ctx, "c1", p.VendorID))
	require.NoError(t, a.DeleteCategory(ctx, "c1"))
	_, err = a.GetCategory(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	u, err := a.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, u.Categories)
	assert.ErrorIs(t, a.DeleteCategory(ctx, "c1"), domain.ErrNotFound)
}

func TestCycleJournal_RefreshDetectDispatch(t *testing.T) {
	a := setupInMemoryDB(t)
	ctx := context.Background()

	mark, err := a.FeedWatermark(ctx)
	require.NoError(t, err)
	assert.True(t, mark.IsZero())

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	report := domain.Report{ID: "r1", Stage: domain.StageRefresh, Status: domain.StatusRunning, StartedAt: start}
	require.NoError(t, a.CreateReport(ctx, report))

	running, err := a.LatestRunningReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r1", running.ID)

	snap := domain.CveSnapshot{
		ID:      "CVE-2024-0001",
		Summary: "overflow",
		CVSS3:   score(9.8),
		CWEs:    []string{"CWE-787"},
		CPEs:    []string{"cpe:2.3:a:acme:widget:1.0:*:*:*:*:*:*:*"},
	}
	report.Stage = domain.StageDetect
	report.FeedSince = start.Add(-time.Hour)
	report.FeedUntil = start
	report.RecordsFetched = 1
	require.NoError(t, a.CommitRefresh(ctx, report, []domain.CveSnapshot{snap}))

	mark, err = a.FeedWatermark(ctx)
	require.NoError(t, err)
	assert.True(t, mark.Equal(start))

	pending, err := a.ListPendingRecords(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "CVE-2024-0001", pending[0].Snapshot.ID)

	change := &domain.Change{
		ID:       "ch1",
		ReportID: "r1",
		CVEID:    snap.ID,
		Events:   []domain.Event{{Type: domain.EventNewCVE, Field: "cve"}},
	}
	require.NoError(t, a.ApplySnapshot(ctx, pending[0], change))

	pending, err = a.ListPendingRecords(ctx, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	cve, err := a.GetCVE(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, "overflow", cve.Summary)
	assert.Equal(t, []string{"CWE-787"}, cve.CWEs)
	assert.ElementsMatch(t, []string{"acme", "acme$PRODUCT$cpe:2.3:a:acme:widget:1.0:*:*:*:*:*:*:*"}, cve.MatchKeys)
	firstUpdate := cve.UpdatedAt

	// Re-applying an unchanged snapshot keeps the update time.
	require.NoError(t, a.ApplySnapshot(ctx, domain.FeedRecord{Snapshot: snap}, nil))
	cve, err = a.GetCVE(ctx, snap.ID)
	require.NoError(t, err)
	assert.True(t, cve.UpdatedAt.Equal(firstUpdate))

	changes, err := a.ListUndispatchedChanges(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, domain.EventNewCVE, changes[0].Events[0].Type)

	alert := domain.Alert{ID: "a1", ReportID: "r1", UserID: "u1", CVEID: snap.ID, ChangeID: "ch1"}
	created, err := a.CreateAlert(ctx, alert)
	require.NoError(t, err)
	assert.True(t, created)
	alert.ID = "a2"
	created, err = a.CreateAlert(ctx, alert)
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, a.MarkChangeDispatched(ctx, "ch1"))
	changes, err = a.ListUndispatchedChanges(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, changes)

	users, err := a.ListUsersWithUndeliveredAlerts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, users)

	alerts, err := a.ListUndeliveredAlerts(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.NoError(t, a.MarkAlertsDelivered(ctx, []string{alerts[0].ID}, time.Now()))

	users, err = a.ListUsersWithUndeliveredAlerts(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	finished := start.Add(time.Minute)
	report.Stage = domain.StageDone
	report.Status = domain.StatusCompleted
	report.FinishedAt = &finished
	report.Errors = []string{"one warning"}
	require.NoError(t, a.UpdateReport(ctx, report))

	_, err = a.LatestRunningReport(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	stored, err := a.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
	assert.Equal(t, []string{"one warning"}, stored.Errors)

	reports, err := a.ListReports(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestCycleJournal_PendingRecordsSurviveTheirCycle(t *testing.T) {
	a := setupInMemoryDB(t)
	ctx := context.Background()

	first := domain.Report{ID: "r1", Stage: domain.StageDetect, Status: domain.StatusRunning}
	require.NoError(t, a.CreateReport(ctx, first))
	require.NoError(t, a.CommitRefresh(ctx, first, []domain.CveSnapshot{{ID: "CVE-A"}, {ID: "CVE-B"}}))

	first.Stage = domain.StageDone
	first.Status = domain.StatusPartial
	require.NoError(t, a.UpdateReport(ctx, first))

	second := domain.Report{ID: "r2", Stage: domain.StageDetect, Status: domain.StatusRunning}
	require.NoError(t, a.CreateReport(ctx, second))
	require.NoError(t, a.CommitRefresh(ctx, second, []domain.CveSnapshot{{ID: "CVE-C"}}))

	pending, err := a.ListPendingRecords(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, "r1", pending[0].ReportID)
	assert.Equal(t, "r2", pending[2].ReportID)

	require.NoError(t, a.MarkRecordProcessed(ctx, pending[0].ID))
	assert.ErrorIs(t, a.MarkRecordProcessed(ctx, 999), domain.ErrNotFound)

	page, err := a.ListPendingRecords(ctx, pending[1].ID, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "CVE-C", page[0].Snapshot.ID)

	rest, err := a.ListPendingRecords(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, rest, 2)
}

func TestApplySnapshot_RegistersCPEs(t *testing.T) {
	a := setupInMemoryDB(t)
	ctx := context.Background()

	existing, err := a.UpsertProduct(ctx, "acme", "cpe:2.3:a:acme:widget:1.0:*:*:*:*:*:*:*")
	require.NoError(t, err)

	snap := domain.CveSnapshot{
		ID: "CVE-2024-0042",
		CPEs: []string{
			"cpe:2.3:a:acme:widget:1.0:*:*:*:*:*:*:*",
			"cpe:2.3:a:acme:widget:2.3:beta:*:*:*:*:*:*",
			"cpe:2.3:o:globex:os:10:*:*:*:*:*:*:*",
			"not a cpe",
		},
	}
	require.NoError(t, a.ApplySnapshot(ctx, domain.FeedRecord{Snapshot: snap}, nil))
	require.NoError(t, a.ApplySnapshot(ctx, domain.FeedRecord{Snapshot: snap}, nil))

	same, err := a.GetProductByName(ctx, "cpe:2.3:a:acme:widget:1.0:*:*:*:*:*:*:*")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, same.ID)

	beta, err := a.GetProductByName(ctx, "cpe:2.3:a:acme:widget:2.3:beta:*:*:*:*:*:*")
	require.NoError(t, err)
	assert.Equal(t, "acme", beta.Vendor)
	assert.True(t, beta.IsDirty())

	vendors, err := a.ListVendorNames(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"acme", "globex"}, vendors)
}

func TestFindCVEs(t *testing.T) {
	a := setupInMemoryDB(t)
	ctx := context.Background()

	put := func(id string, cvss *float64, cpes ...string) {
		t.Helper()
		snap := domain.CveSnapshot{ID: id, CVSS3: cvss, CPEs: cpes}
		require.NoError(t, a.ApplySnapshot(ctx, domain.FeedRecord{Snapshot: snap}, &domain.Change{ID: "ch-" + id, CVEID: id}))
	}
	put("CVE-1", score(9.1), "cpe:2.3:a:acme:widget:1.0:*:*:*:*:*:*:*")
	put("CVE-2", score(4.0), "cpe:2.3:a:acme:gadget:1.0:*:*:*:*:*:*:*")
	put("CVE-3", nil, "cpe:2.3:o:globex:os:10:*:*:*:*:*:*:*")

	none, err := a.FindCVEs(ctx, domain.CVEQuery{})
	require.NoError(t, err)
	assert.Empty(t, none)

	byVendor, err := a.FindCVEs(ctx, domain.CVEQuery{Keys: []string{"acme"}})
	require.NoError(t, err)
	assert.Len(t, byVendor, 2)

	severe, err := a.FindCVEs(ctx, domain.CVEQuery{Keys: []string{"acme", "globex"}, MinScore: score(7)})
	require.NoError(t, err)
	require.Len(t, severe, 1)
	assert.Equal(t, "CVE-1", severe[0].ID)

	// More keys than fit in a single IN list.
	keys := make([]string, 0, inChunk+10)
	for i := 0; i < inChunk+9; i++ {
		keys = append(keys, fmt.Sprintf("filler-%d", i))
	}
	keys = append(keys, "globex")
	wide, err := a.FindCVEs(ctx, domain.CVEQuery{Keys: keys})
	require.NoError(t, err)
	require.Len(t, wide, 1)
	assert.Equal(t, "CVE-3", wide[0].ID)

	recent, err := a.FindCVEs(ctx, domain.CVEQuery{Keys: []string{"acme"}, UpdatedAfter: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestAuditLogs(t *testing.T) {
	a := setupInMemoryDB(t)
	ctx := context.Background()

	entries := []struct {
		user   string
		action domain.AuditAction
		target string
	}{
		{"u1", domain.ActionSubscribe, "vendor:1"},
		{"u1", domain.ActionSubscribe, "product:2"},
		{"u2", domain.ActionCategoryCreate, "category:c_1"},
		{"u2", domain.ActionCategoryRename, "category:cx1"},
	}
	for _, e := range entries {
		log, err := domain.NewAuditLog(e.user, e.user, e.action, e.target, "", domain.SourceAPI)
		require.NoError(t, err)
		require.NoError(t, a.SaveAuditLog(ctx, *log))
	}

	latest, err := a.ListAuditLogs(ctx, domain.AuditFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "category:cx1", latest[0].Target)
	assert.Equal(t, domain.SourceAPI, latest[0].Source)

	subs, err := a.ListAuditLogs(ctx, domain.AuditFilter{Action: domain.ActionSubscribe})
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	byUser, err := a.ListAuditLogs(ctx, domain.AuditFilter{UserID: "u2"})
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	// "_" is literal, so "category:c_" does not match "category:cx1".
	exact, err := a.ListAuditLogs(ctx, domain.AuditFilter{TargetPrefix: "category:c_"})
	require.NoError(t, err)
	require.Len(t, exact, 1)
	assert.Equal(t, "category:c_1", exact[0].Target)

	future, err := a.ListAuditLogs(ctx, domain.AuditFilter{Since: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, future)
}
