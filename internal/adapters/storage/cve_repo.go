package storage

import (
	"context"
	"sort"

	"gorm.io/gorm"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
)

func (a *Adapter) GetCVE(ctx context.Context, id string) (*domain.CVE, error) {
	var m CVEModel
	if err := a.db.WithContext(ctx).Preload("MatchKeys").First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	c := cveToDomain(m)
	return &c, nil
}

func (a *Adapter) GetCVEs(ctx context.Context, ids []string) ([]domain.CVE, error) {
	var out []domain.CVE
	for _, chunk := range chunks(ids, inChunk) {
		var models []CVEModel
		if err := a.db.WithContext(ctx).Preload("MatchKeys").Where("id IN ?", chunk).Order("id").Find(&models).Error; err != nil {
			return nil, err
		}
		for _, m := range models {
			out = append(out, cveToDomain(m))
		}
	}
	return out, nil
}

// FindCVEs returns CVEs indexed under any of q.Keys, most recently updated
// first. Keys are sent in chunks so large subscriber sets stay within
// driver parameter limits.
func (a *Adapter) FindCVEs(ctx context.Context, q domain.CVEQuery) ([]domain.CVE, error) {
	if len(q.Keys) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{})
	var out []domain.CVE
	for _, chunk := range chunks(q.Keys, inChunk) {
		db := a.db.WithContext(ctx)
		sub := db.Model(&CVEMatchKeyModel{}).Select("cve_id").Where("match_key IN ?", chunk)
		query := db.Preload("MatchKeys").Where("id IN (?)", sub)
		query = applyCVEFilters(query, q)

		var models []CVEModel
		if err := query.Find(&models).Error; err != nil {
			return nil, err
		}
		for _, m := range models {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			out = append(out, cveToDomain(m))
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func applyCVEFilters(query *gorm.DB, q domain.CVEQuery) *gorm.DB {
	if !q.UpdatedAfter.IsZero() {
		query = query.Where("updated_at > ?", q.UpdatedAfter.UTC())
	}
	if q.MinScore != nil {
		query = query.Where("max_score >= ?", *q.MinScore)
	}
	return query
}
