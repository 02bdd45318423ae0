package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
)

func (a *Adapter) CreateUser(ctx context.Context, user domain.User) error {
	m := UserModel{ID: user.ID, Username: user.Username, Email: user.Email, CreatedAt: user.CreatedAt}
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&UserModel{}).Where("username = ?", user.Username).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrUserExists
		}
		return tx.Omit(clause.Associations).Create(&m).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrUserExists
	}
	return err
}

// withEdges preloads everything the expander needs from a user.
func withEdges(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Vendors", orderByID).
		Preload("Products", orderByID).
		Preload("Products.Vendor").
		Preload("Categories", orderByID)
}

func orderByID(q *gorm.DB) *gorm.DB { return q.Order("id") }

func (a *Adapter) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var m UserModel
	if err := withEdges(a.db.WithContext(ctx)).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	u := userToDomain(m)
	return &u, nil
}

func (a *Adapter) GetUserByName(ctx context.Context, username string) (*domain.User, error) {
	var m UserModel
	if err := withEdges(a.db.WithContext(ctx)).First(&m, "username = ?", username).Error; err != nil {
		return nil, translate(err)
	}
	u := userToDomain(m)
	return &u, nil
}

// ListUsers pages through users by ID.
func (a *Adapter) ListUsers(ctx context.Context, afterID string, limit int) ([]domain.User, error) {
	q := withEdges(a.db.WithContext(ctx)).Where("id > ?", afterID).Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var models []UserModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.User, len(models))
	for i, m := range models {
		out[i] = userToDomain(m)
	}
	return out, nil
}

// link inserts a join row, ignoring duplicates, after checking the owner
// exists.
func (a *Adapter) link(ctx context.Context, owner any, ownerID string, row any) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, owner, ownerID); err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error
	})
}

func (a *Adapter) unlink(ctx context.Context, owner any, ownerID string, row any, where string, args ...any) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, owner, ownerID); err != nil {
			return err
		}
		return tx.Where(where, args...).Delete(row).Error
	})
}

func exists(tx *gorm.DB, model any, id string) error {
	var n int64
	if err := tx.Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (a *Adapter) FollowVendor(ctx context.Context, userID, vendorID string) error {
	return a.link(ctx, &UserModel{}, userID, &userVendor{UserID: userID, VendorID: vendorID})
}

func (a *Adapter) UnfollowVendor(ctx context.Context, userID, vendorID string) error {
	return a.unlink(ctx, &UserModel{}, userID, &userVendor{}, "user_id = ? AND vendor_id = ?", userID, vendorID)
}

func (a *Adapter) FollowProduct(ctx context.Context, userID, productID string) error {
	return a.link(ctx, &UserModel{}, userID, &userProduct{UserID: userID, ProductID: productID})
}

func (a *Adapter) UnfollowProduct(ctx context.Context, userID, productID string) error {
	return a.unlink(ctx, &UserModel{}, userID, &userProduct{}, "user_id = ? AND product_id = ?", userID, productID)
}

func (a *Adapter) FollowCategory(ctx context.Context, userID, categoryID string) error {
	return a.link(ctx, &UserModel{}, userID, &userCategory{UserID: userID, CategoryID: categoryID})
}

func (a *Adapter) UnfollowCategory(ctx context.Context, userID, categoryID string) error {
	return a.unlink(ctx, &UserModel{}, userID, &userCategory{}, "user_id = ? AND category_id = ?", userID, categoryID)
}

func (a *Adapter) AddCategoryVendor(ctx context.Context, categoryID, vendorID string) error {
	return a.link(ctx, &CategoryModel{}, categoryID, &categoryVendor{CategoryID: categoryID, VendorID: vendorID})
}

func (a *Adapter) RemoveCategoryVendor(ctx context.Context, categoryID, vendorID string) error {
	return a.unlink(ctx, &CategoryModel{}, categoryID, &categoryVendor{}, "category_id = ? AND vendor_id = ?", categoryID, vendorID)
}

func (a *Adapter) AddCategoryProduct(ctx context.Context, categoryID, productID string) error {
	return a.link(ctx, &CategoryModel{}, categoryID, &categoryProduct{CategoryID: categoryID, ProductID: productID})
}

func (a *Adapter) RemoveCategoryProduct(ctx context.Context, categoryID, productID string) error {
	return a.unlink(ctx, &CategoryModel{}, categoryID, &categoryProduct{}, "category_id = ? AND product_id = ?", categoryID, productID)
}
