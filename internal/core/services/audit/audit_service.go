package audit

import (
	"context"
	"fmt"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
	"github.com/lcalzada-xor/cvewatch/internal/core/ports"
)

// MaxLogs caps a single audit query.
const MaxLogs = 1000

type actorKey struct{}
type sourceKey struct{}

// WithActor attaches the acting user to ctx for audit records.
func WithActor(ctx context.Context, user domain.User) context.Context {
	return context.WithValue(ctx, actorKey{}, user)
}

// WithSource tags ctx with the surface (api, cli, scheduler) acting.
func WithSource(ctx context.Context, source domain.AuditSource) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

type AuditService struct {
	repo ports.AuditRepository
}

var _ ports.AuditService = (*AuditService)(nil)

// NewAuditService creates a new audit service.
func NewAuditService(repo ports.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

// Log stores an entry. Without an actor in ctx the entry is attributed to
// the system user.
func (s *AuditService) Log(ctx context.Context, action domain.AuditAction, target, details string) error {
	userID, username := "system", "system"
	if u, ok := ctx.Value(actorKey{}).(domain.User); ok {
		userID, username = u.ID, u.Username
	}
	source, _ := ctx.Value(sourceKey{}).(domain.AuditSource)

	entry, err := domain.NewAuditLog(userID, username, action, target, details, source)
	if err != nil {
		return fmt.Errorf("audit %s: %w", action, err)
	}
	return s.repo.SaveAuditLog(ctx, *entry)
}

func (s *AuditService) GetLogs(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditLog, error) {
	if filter.Action != "" && !filter.Action.Valid() {
		return nil, domain.ErrInvalidAction
	}
	if filter.Limit <= 0 || filter.Limit > MaxLogs {
		filter.Limit = MaxLogs
	}
	return s.repo.ListAuditLogs(ctx, filter)
}
