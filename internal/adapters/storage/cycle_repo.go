package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
)

func (a *Adapter) CreateReport(ctx context.Context, report domain.Report) error {
	m := reportToModel(report)
	return a.db.WithContext(ctx).Create(&m).Error
}

func (a *Adapter) UpdateReport(ctx context.Context, report domain.Report) error {
	return updateReport(a.db.WithContext(ctx), report)
}

func updateReport(tx *gorm.DB, report domain.Report) error {
	m := reportToModel(report)
	res := tx.Model(&ReportModel{ID: m.ID}).Select("*").Omit("ID").Updates(m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (a *Adapter) GetReport(ctx context.Context, id string) (*domain.Report, error) {
	var m ReportModel
	if err := a.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	r := reportToDomain(m)
	return &r, nil
}

func (a *Adapter) LatestRunningReport(ctx context.Context) (*domain.Report, error) {
	var m ReportModel
	err := a.db.WithContext(ctx).
		Where("status = ? AND stage <> ?", domain.StatusRunning, domain.StageDone).
		Order("started_at desc").
		First(&m).Error
	if err != nil {
		return nil, translate(err)
	}
	r := reportToDomain(m)
	return &r, nil
}

func (a *Adapter) ListReports(ctx context.Context, limit int) ([]domain.Report, error) {
	q := a.db.WithContext(ctx).Order("started_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var models []ReportModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Report, len(models))
	for i, m := range models {
		out[i] = reportToDomain(m)
	}
	return out, nil
}

// FeedWatermark returns the end of the newest committed feed window, or
// the zero time before the first refresh.
func (a *Adapter) FeedWatermark(ctx context.Context) (time.Time, error) {
	var m ReportModel
	err := a.db.WithContext(ctx).
		Where("stage <> ?", domain.StageRefresh).
		Order("feed_until desc").
		Limit(1).
		Find(&m).Error
	if err != nil {
		return time.Time{}, err
	}
	return m.FeedUntil, nil
}

func (a *Adapter) CommitRefresh(ctx context.Context, report domain.Report, snapshots []domain.CveSnapshot) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(snapshots) > 0 {
			records := make([]FeedRecordModel, len(snapshots))
			for i, snap := range snapshots {
				records[i] = FeedRecordModel{ReportID: report.ID, CVEID: snap.ID, Snapshot: toJSON(snap)}
			}
			if err := tx.CreateInBatches(records, 100).Error; err != nil {
				return err
			}
		}
		return updateReport(tx, report)
	})
}

func (a *Adapter) ListPendingRecords(ctx context.Context, afterID uint, limit int) ([]domain.FeedRecord, error) {
	q := a.db.WithContext(ctx).
		Where("processed = ? AND id > ?", false, afterID).
		Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var models []FeedRecordModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.FeedRecord, len(models))
	for i, m := range models {
		out[i] = recordToDomain(m)
	}
	return out, nil
}

func (a *Adapter) MarkRecordProcessed(ctx context.Context, recordID uint) error {
	res := a.db.WithContext(ctx).Model(&FeedRecordModel{}).Where("id = ?", recordID).Update("processed", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ApplySnapshot records the change, stores the snapshot as the CVE's
// current state, adds its CPEs to the catalog and consumes the feed record
// in one transaction. An unchanged CVE keeps its UpdatedAt.
func (a *Adapter) ApplySnapshot(ctx context.Context, record domain.FeedRecord, change *domain.Change) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		if change != nil {
			cm := changeToModel(*change)
			if cm.CreatedAt.IsZero() {
				cm.CreatedAt = now
			}
			if err := tx.Create(&cm).Error; err != nil {
				return err
			}
		}

		snap := record.Snapshot
		cve := domain.CVE{CveSnapshot: snap, MatchKeys: snap.MatchKeys(), CreatedAt: now, UpdatedAt: now}
		var existing CVEModel
		err := tx.Select("id", "created_at", "updated_at").Where("id = ?", snap.ID).Limit(1).Find(&existing).Error
		if err != nil {
			return err
		}
		if existing.ID != "" {
			cve.CreatedAt = existing.CreatedAt
			if change == nil {
				cve.UpdatedAt = existing.UpdatedAt
			}
		}

		m := cveToModel(cve)
		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error; err != nil {
			return err
		}
		if err := tx.Where("cve_id = ?", snap.ID).Delete(&CVEMatchKeyModel{}).Error; err != nil {
			return err
		}
		if len(cve.MatchKeys) > 0 {
			keys := make([]CVEMatchKeyModel, len(cve.MatchKeys))
			for i, k := range cve.MatchKeys {
				keys[i] = CVEMatchKeyModel{CVEID: snap.ID, MatchKey: k}
			}
			if err := tx.CreateInBatches(keys, 200).Error; err != nil {
				return err
			}
		}

		for _, uri := range snap.CPEs {
			vendor := domain.NormalizeName(domain.VendorOfCPE(uri))
			name := strings.TrimSpace(uri)
			if vendor == "" || name == "" {
				continue
			}
			if _, err := upsertProduct(tx, vendor, name); err != nil {
				return fmt.Errorf("register cpe %s: %w", name, err)
			}
		}

		if record.ID == 0 {
			return nil
		}
		return tx.Model(&FeedRecordModel{}).Where("id = ?", record.ID).Update("processed", true).Error
	})
}

func (a *Adapter) ListUndispatchedChanges(ctx context.Context, afterID string, limit int) ([]domain.Change, error) {
	q := a.db.WithContext(ctx).Where("dispatched = ? AND id > ?", false, afterID).Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var models []ChangeModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Change, len(models))
	for i, m := range models {
		out[i] = changeToDomain(m)
	}
	return out, nil
}

func (a *Adapter) MarkChangeDispatched(ctx context.Context, changeID string) error {
	res := a.db.WithContext(ctx).Model(&ChangeModel{}).Where("id = ?", changeID).Update("dispatched", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (a *Adapter) GetChanges(ctx context.Context, ids []string) ([]domain.Change, error) {
	var out []domain.Change
	for _, chunk := range chunks(ids, inChunk) {
		var models []ChangeModel
		if err := a.db.WithContext(ctx).Where("id IN ?", chunk).Order("id").Find(&models).Error; err != nil {
			return nil, err
		}
		for _, m := range models {
			out = append(out, changeToDomain(m))
		}
	}
	return out, nil
}

// CreateAlert relies on the (report, user, cve) unique index: a duplicate
// insert affects no rows and reports created=false.
func (a *Adapter) CreateAlert(ctx context.Context, alert domain.Alert) (bool, error) {
	m := alertToModel(alert)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	res := a.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&m)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (a *Adapter) ListUsersWithUndeliveredAlerts(ctx context.Context) ([]string, error) {
	var ids []string
	err := a.db.WithContext(ctx).
		Model(&AlertModel{}).
		Where("delivered_at IS NULL").
		Distinct("user_id").
		Order("user_id").
		Pluck("user_id", &ids).Error
	return ids, err
}

func (a *Adapter) ListUndeliveredAlerts(ctx context.Context, userID string) ([]domain.Alert, error) {
	var models []AlertModel
	err := a.db.WithContext(ctx).
		Where("user_id = ? AND delivered_at IS NULL", userID).
		Order("cve_id").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Alert, len(models))
	for i, m := range models {
		out[i] = alertToDomain(m)
	}
	return out, nil
}

func (a *Adapter) MarkAlertsDelivered(ctx context.Context, alertIDs []string, at time.Time) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, chunk := range chunks(alertIDs, inChunk) {
			if err := tx.Model(&AlertModel{}).Where("id IN ?", chunk).Update("delivered_at", at.UTC()).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
