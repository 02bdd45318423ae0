package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
)

func (a *Adapter) CreateCategory(ctx context.Context, category domain.Category) error {
	m := CategoryModel{ID: category.ID, Name: category.Name, CreatedAt: category.CreatedAt}
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := nameTaken(tx, "", category.Name); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Create(&m).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrCategoryExists
	}
	return err
}

func nameTaken(tx *gorm.DB, exceptID, name string) error {
	var n int64
	if err := tx.Model(&CategoryModel{}).Where("name = ? AND id <> ?", name, exceptID).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return domain.ErrCategoryExists
	}
	return nil
}

func withMembers(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Vendors", orderByID).
		Preload("Products", orderByID).
		Preload("Products.Vendor")
}

func (a *Adapter) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	var m CategoryModel
	if err := withMembers(a.db.WithContext(ctx)).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	c := categoryToDomain(m)
	return &c, nil
}

func (a *Adapter) GetCategoryByName(ctx context.Context, name string) (*domain.Category, error) {
	var m CategoryModel
	if err := withMembers(a.db.WithContext(ctx)).First(&m, "name = ?", domain.NormalizeName(name)).Error; err != nil {
		return nil, translate(err)
	}
	c := categoryToDomain(m)
	return &c, nil
}

func (a *Adapter) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var models []CategoryModel
	if err := a.db.WithContext(ctx).Order("name").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Category, len(models))
	for i, m := range models {
		out[i] = categoryToDomain(m)
	}
	return out, nil
}

func (a *Adapter) RenameCategory(ctx context.Context, id, name string) error {
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, &CategoryModel{}, id); err != nil {
			return err
		}
		if err := nameTaken(tx, id, name); err != nil {
			return err
		}
		return tx.Model(&CategoryModel{}).Where("id = ?", id).Update("name", name).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrCategoryExists
	}
	return err
}

// DeleteCategory removes the category, its members and every follow edge.
func (a *Adapter) DeleteCategory(ctx context.Context, id string) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, &CategoryModel{}, id); err != nil {
			return err
		}
		for _, row := range []any{&userCategory{}, &categoryVendor{}, &categoryProduct{}} {
			if err := tx.Where("category_id = ?", id).Delete(row).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&CategoryModel{}, "id = ?", id).Error
	})
}
