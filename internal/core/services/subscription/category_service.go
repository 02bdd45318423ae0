package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
)

// CreateCategory stores a new category. Names are lower-cased and unique.
func (s *Service) CreateCategory(ctx context.Context, name string) (*domain.Category, error) {
	name = domain.NormalizeName(name)
	if name == "" {
		return nil, domain.ErrEmptyName
	}
	category := domain.Category{ID: uuid.NewString(), Name: name, CreatedAt: s.now().UTC()}
	if err := s.subs.CreateCategory(ctx, category); err != nil {
		return nil, err
	}
	s.logCategory(ctx, domain.ActionCategoryCreate, category.ID, name)
	return &category, nil
}

// RenameCategory changes the name of a category, rejecting duplicates.
func (s *Service) RenameCategory(ctx context.Context, oldName, newName string) error {
	newName = domain.NormalizeName(newName)
	if newName == "" {
		return domain.ErrEmptyName
	}
	category, err := s.subs.GetCategoryByName(ctx, domain.NormalizeName(oldName))
	if err != nil {
		return fmt.Errorf("category %q: %w", oldName, err)
	}
	if err := s.subs.RenameCategory(ctx, category.ID, newName); err != nil {
		return err
	}
	s.logCategory(ctx, domain.ActionCategoryRename, category.ID, category.Name+" -> "+newName)
	return nil
}

// DeleteCategory removes a category and every edge pointing to it.
func (s *Service) DeleteCategory(ctx context.Context, name string) error {
	category, err := s.subs.GetCategoryByName(ctx, domain.NormalizeName(name))
	if err != nil {
		return fmt.Errorf("category %q: %w", name, err)
	}
	if err := s.subs.DeleteCategory(ctx, category.ID); err != nil {
		return err
	}
	s.logCategory(ctx, domain.ActionCategoryDelete, category.ID, category.Name)
	return nil
}

// ListCategories returns every category without members.
func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.subs.ListCategories(ctx)
}

// CategoryCVEs lists CVEs affecting the category's members, updated within
// period (zero means any time) and scoring at least minScore on CVSS v2 or
// v3 when minScore is set. A category without members yields no CVEs.
func (s *Service) CategoryCVEs(ctx context.Context, name string, period time.Duration, minScore *float64) ([]domain.CVE, error) {
	keys, err := s.CategoryKeys(ctx, name)
	if err != nil {
		return nil, err
	}
	if keys.Cardinality() == 0 {
		return nil, nil
	}

	q := domain.CVEQuery{Keys: keys.ToSlice(), MinScore: minScore}
	if period > 0 {
		q.UpdatedAfter = s.now().Add(-period)
	}
	return s.cves.FindCVEs(ctx, q)
}

func (s *Service) logCategory(ctx context.Context, action domain.AuditAction, id, details string) {
	if err := s.audit.Log(ctx, action, "category:"+id, details); err != nil {
		s.log.Warn("audit log failed", "action", action, "category_id", id, "error", err)
	}
	s.log.Info("category updated", "action", action, "category_id", id, "details", details)
}
