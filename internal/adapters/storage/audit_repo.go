package storage

import (
	"context"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
)

func (a *Adapter) SaveAuditLog(ctx context.Context, log domain.AuditLog) error {
	m := auditLogToModel(log)
	return a.db.WithContext(ctx).Create(&m).Error
}

func (a *Adapter) ListAuditLogs(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditLog, error) {
	q := a.db.WithContext(ctx).Model(&AuditLogModel{})
	if filter.Action != "" {
		q = q.Where("action = ?", string(filter.Action))
	}
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.TargetPrefix != "" {
		q = q.Where("target LIKE ? ESCAPE '\\'", escapeLike(filter.TargetPrefix)+"%")
	}
	if !filter.Since.IsZero() {
		q = q.Where("timestamp >= ?", filter.Since)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var models []AuditLogModel
	if err := q.Order("timestamp desc, id desc").Find(&models).Error; err != nil {
		return nil, err
	}
	logs := make([]domain.AuditLog, len(models))
	for i, m := range models {
		logs[i] = auditLogToDomain(m)
	}
	return logs, nil
}
