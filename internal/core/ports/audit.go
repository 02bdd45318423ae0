package ports

import (
	"context"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
)

// AuditService records operator-visible changes. The actor and the source
// surface travel in ctx.
type AuditService interface {
	Log(ctx context.Context, action domain.AuditAction, target, details string) error
	GetLogs(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditLog, error)
}

// AuditRepository is append-only.
type AuditRepository interface {
	SaveAuditLog(ctx context.Context, log domain.AuditLog) error
	ListAuditLogs(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditLog, error)
}
