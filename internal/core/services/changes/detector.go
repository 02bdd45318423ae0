package changes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
	"github.com/lcalzada-xor/cvewatch/internal/core/ports"
	"github.com/lcalzada-xor/cvewatch/internal/logger"
	"github.com/lcalzada-xor/cvewatch/internal/telemetry"
)

const recordPageSize = 200

// StageResult is the outcome of one detect stage.
type StageResult struct {
	Processed int
	Changes   int
	Errors    []string
}

// Detector runs the detect stage over the staged feed records.
type Detector struct {
	cves  ports.CVERepository
	store ports.CycleStore
	log   *logger.Logger
	now   func() time.Time
}

// NewDetector creates a detector reading staged records from store.
func NewDetector(cves ports.CVERepository, store ports.CycleStore, log *logger.Logger) *Detector {
	return &Detector{
		cves:  cves,
		store: store,
		log:   log.Named("detector"),
		now:   time.Now,
	}
}

// Run diffs every unprocessed record against the stored CVE and attributes
// the resulting Changes to reportID. Records left pending by earlier cycles
// are included, oldest first. Each record is committed on its own together
// with its Change, so a restart skips what was already applied. A record
// that fails is logged and left pending for the next cycle.
func (d *Detector) Run(ctx context.Context, reportID string) (StageResult, error) {
	var res StageResult
	var afterID uint
	for {
		records, err := d.store.ListPendingRecords(ctx, afterID, recordPageSize)
		if err != nil {
			return res, fmt.Errorf("list pending records: %w", err)
		}
		for _, rec := range records {
			change, err := d.apply(ctx, reportID, rec)
			if err != nil {
				d.log.Error("detect failed", "report_id", reportID, "cve_id", rec.Snapshot.ID, "error", err)
				res.Errors = append(res.Errors, fmt.Sprintf("detect %s: %v", rec.Snapshot.ID, err))
				continue
			}
			res.Processed++
			if change != nil {
				res.Changes++
			}
		}
		if len(records) < recordPageSize {
			break
		}
		afterID = records[len(records)-1].ID
	}
	return res, nil
}

func (d *Detector) apply(ctx context.Context, reportID string, rec domain.FeedRecord) (*domain.Change, error) {
	var old *domain.CveSnapshot
	stored, err := d.cves.GetCVE(ctx, rec.Snapshot.ID)
	switch {
	case err == nil:
		old = &stored.CveSnapshot
	case errors.Is(err, domain.ErrNotFound):
	default:
		return nil, fmt.Errorf("load stored cve: %w", err)
	}

	// A retried record may be older than what a later cycle already stored.
	if old != nil && !rec.Snapshot.LastModified.IsZero() && old.LastModified.After(rec.Snapshot.LastModified) {
		if err := d.store.MarkRecordProcessed(ctx, rec.ID); err != nil {
			return nil, fmt.Errorf("skip stale record: %w", err)
		}
		d.log.Debug("stale record skipped", "cve_id", rec.Snapshot.ID, "record_id", rec.ID)
		return nil, nil
	}

	events := Detect(old, rec.Snapshot)

	var change *domain.Change
	if len(events) > 0 {
		change = &domain.Change{
			ID:        uuid.NewString(),
			ReportID:  reportID,
			CVEID:     rec.Snapshot.ID,
			Events:    events,
			CreatedAt: d.now().UTC(),
		}
		for i := range change.Events {
			change.Events[i].ID = uuid.NewString()
		}
	}

	if err := d.store.ApplySnapshot(ctx, rec, change); err != nil {
		return nil, fmt.Errorf("apply snapshot: %w", err)
	}

	if change != nil {
		telemetry.ChangesDetected.Inc()
		for _, ev := range change.Events {
			telemetry.EventsDetected.WithLabelValues(string(ev.Type)).Inc()
		}
		d.log.Debug("change detected", "cve_id", change.CVEID, "events", len(change.Events))
	}
	return change, nil
}
