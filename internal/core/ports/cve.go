package ports

import (
	"context"
	"time"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
)

// CVERepository defines the read side of stored CVEs.
type CVERepository interface {
	// GetCVE returns domain.ErrNotFound when the CVE has never been stored.
	GetCVE(ctx context.Context, id string) (*domain.CVE, error)
	GetCVEs(ctx context.Context, ids []string) ([]domain.CVE, error)

	// FindCVEs returns CVEs whose match-keys intersect q.Keys. An empty key
	// list returns no CVEs.
	FindCVEs(ctx context.Context, q domain.CVEQuery) ([]domain.CVE, error)
}

// CycleStore is the durable journal of pipeline cycles and the staging
// area each stage reads its input from.
type CycleStore interface {
	CreateReport(ctx context.Context, report domain.Report) error
	UpdateReport(ctx context.Context, report domain.Report) error
	GetReport(ctx context.Context, id string) (*domain.Report, error)
	// LatestRunningReport returns domain.ErrNotFound when no cycle is in flight.
	LatestRunningReport(ctx context.Context) (*domain.Report, error)
	ListReports(ctx context.Context, limit int) ([]domain.Report, error)
	// FeedWatermark is the end of the last feed window that was committed.
	FeedWatermark(ctx context.Context) (time.Time, error)

	// CommitRefresh stages the fetched snapshots and advances the report to
	// the detect stage in a single transaction.
	CommitRefresh(ctx context.Context, report domain.Report, snapshots []domain.CveSnapshot) error
	// ListPendingRecords pages through unprocessed records of every report,
	// ordered by ID, so records left over by an earlier cycle are retried.
	ListPendingRecords(ctx context.Context, afterID uint, limit int) ([]domain.FeedRecord, error)
	// MarkRecordProcessed consumes a record without applying it.
	MarkRecordProcessed(ctx context.Context, recordID uint) error

	// ApplySnapshot creates change (when not nil), upserts the CVE from the
	// record's snapshot, registers its CPEs in the catalog as dirty products
	// and marks the record processed, atomically.
	ApplySnapshot(ctx context.Context, record domain.FeedRecord, change *domain.Change) error

	ListUndispatchedChanges(ctx context.Context, afterID string, limit int) ([]domain.Change, error)
	MarkChangeDispatched(ctx context.Context, changeID string) error

	// CreateAlert inserts the alert unless one exists for the same user,
	// CVE and report. created is false for the duplicate case.
	CreateAlert(ctx context.Context, alert domain.Alert) (created bool, err error)
	ListUsersWithUndeliveredAlerts(ctx context.Context) ([]string, error)
	ListUndeliveredAlerts(ctx context.Context, userID string) ([]domain.Alert, error)
	GetChanges(ctx context.Context, ids []string) ([]domain.Change, error)
	MarkAlertsDelivered(ctx context.Context, alertIDs []string, at time.Time) error
}

// FeedProvider yields CVE snapshots modified within [since, until).
type FeedProvider interface {
	Fetch(ctx context.Context, since, until time.Time) ([]domain.CveSnapshot, error)
}
