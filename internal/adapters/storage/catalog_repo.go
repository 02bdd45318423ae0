package storage

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
)

// UpsertProduct creates the vendor and the product if missing.
func (a *Adapter) UpsertProduct(ctx context.Context, vendor, name string) (*domain.Product, error) {
	vendor = domain.NormalizeName(vendor)
	name = strings.TrimSpace(name)
	if vendor == "" || name == "" {
		return nil, domain.ErrEmptyName
	}

	var product ProductModel
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		vendorID, err := upsertProduct(tx, vendor, name)
		if err != nil {
			return err
		}
		return tx.Preload("Vendor").Where("vendor_id = ? AND name = ?", vendorID, name).First(&product).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	p := productToDomain(product)
	return &p, nil
}

// upsertProduct inserts the vendor and a dirty product unless they exist
// and returns the vendor ID. vendor must already be normalised.
func upsertProduct(tx *gorm.DB, vendor, name string) (string, error) {
	now := time.Now().UTC()
	fresh := VendorModel{ID: uuid.NewString(), Name: vendor, CreatedAt: now}
	if err := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).Create(&fresh).Error; err != nil {
		return "", err
	}
	var v VendorModel
	if err := tx.Where("name = ?", vendor).First(&v).Error; err != nil {
		return "", err
	}

	p := ProductModel{ID: uuid.NewString(), VendorID: v.ID, Name: name, Dirty: true, CreatedAt: now}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "vendor_id"}, {Name: "name"}},
		DoNothing: true,
	}).Create(&p).Error; err != nil {
		return "", err
	}
	return v.ID, nil
}

func (a *Adapter) GetVendor(ctx context.Context, id string) (*domain.Vendor, error) {
	var m VendorModel
	if err := a.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	v := vendorToDomain(m)
	return &v, nil
}

func (a *Adapter) GetVendorByName(ctx context.Context, name string) (*domain.Vendor, error) {
	var m VendorModel
	if err := a.db.WithContext(ctx).First(&m, "name = ?", domain.NormalizeName(name)).Error; err != nil {
		return nil, translate(err)
	}
	v := vendorToDomain(m)
	return &v, nil
}

func (a *Adapter) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var m ProductModel
	if err := a.db.WithContext(ctx).Preload("Vendor").First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	p := productToDomain(m)
	return &p, nil
}

func (a *Adapter) GetProductByName(ctx context.Context, name string) (*domain.Product, error) {
	var m ProductModel
	if err := a.db.WithContext(ctx).Preload("Vendor").Order("id").First(&m, "name = ?", name).Error; err != nil {
		return nil, translate(err)
	}
	p := productToDomain(m)
	return &p, nil
}

// ListProductFamily pages through decomposed products sharing a vendor and
// a product name.
func (a *Adapter) ListProductFamily(ctx context.Context, vendorID, productName, afterID string, limit int) ([]domain.Product, error) {
	return a.pageProducts(ctx, afterID, limit, func(q *gorm.DB) *gorm.DB {
		return q.Where("vendor_id = ? AND family = ? AND dirty = ? AND malformed = ?",
			vendorID, strings.ToLower(productName), false, false)
	})
}

func (a *Adapter) ListDirtyProducts(ctx context.Context, vendorID, afterID string, limit int) ([]domain.Product, error) {
	return a.pageProducts(ctx, afterID, limit, func(q *gorm.DB) *gorm.DB {
		q = q.Where("dirty = ? AND malformed = ?", true, false)
		if vendorID != "" {
			q = q.Where("vendor_id = ?", vendorID)
		}
		return q
	})
}

func (a *Adapter) pageProducts(ctx context.Context, afterID string, limit int, filter func(*gorm.DB) *gorm.DB) ([]domain.Product, error) {
	q := filter(a.db.WithContext(ctx).Preload("Vendor").Where("id > ?", afterID)).Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var models []ProductModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Product, len(models))
	for i, m := range models {
		out[i] = productToDomain(m)
	}
	return out, nil
}

func (a *Adapter) SaveProductFields(ctx context.Context, productID string, fields domain.ProductFields) error {
	res := a.db.WithContext(ctx).Model(&ProductModel{}).Where("id = ?", productID).Updates(map[string]any{
		"fields":    toJSON(fields),
		"family":    strings.ToLower(fields.ProductName),
		"dirty":     false,
		"malformed": false,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (a *Adapter) MarkProductMalformed(ctx context.Context, productID string) error {
	res := a.db.WithContext(ctx).Model(&ProductModel{}).Where("id = ?", productID).Updates(map[string]any{
		"dirty":     false,
		"malformed": true,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (a *Adapter) ListVendorNames(ctx context.Context) ([]string, error) {
	var names []string
	err := a.db.WithContext(ctx).Model(&VendorModel{}).Order("name").Pluck("name", &names).Error
	return names, err
}

// ListProductNames returns the distinct product names of a vendor's
// decomposed products.
func (a *Adapter) ListProductNames(ctx context.Context, vendorID string) ([]string, error) {
	var models []ProductModel
	err := a.db.WithContext(ctx).
		Select("fields").
		Where("vendor_id = ? AND dirty = ? AND malformed = ?", vendorID, false, false).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(models))
	names := make([]string, 0, len(models))
	for _, m := range models {
		name := fromJSON[domain.ProductFields](m.Fields).ProductName
		if _, ok := seen[name]; ok || name == "" {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
