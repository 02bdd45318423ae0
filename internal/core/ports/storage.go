package ports

import (
	"context"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
)

// CatalogRepository persists vendors and products.
type CatalogRepository interface {
	// UpsertProduct creates the vendor and the product if missing. New
	// products are stored dirty (no decomposition).
	UpsertProduct(ctx context.Context, vendor, name string) (*domain.Product, error)

	GetVendor(ctx context.Context, id string) (*domain.Vendor, error)
	GetVendorByName(ctx context.Context, name string) (*domain.Vendor, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)

	// GetProductByName looks a product up by its full CPE name.
	GetProductByName(ctx context.Context, name string) (*domain.Product, error)

	// ListProductFamily pages through the decomposed products of a vendor
	// with the given product name, ordered by ID, starting after afterID.
	ListProductFamily(ctx context.Context, vendorID, productName, afterID string, limit int) ([]domain.Product, error)

	// ListDirtyProducts returns up to limit products still lacking a
	// decomposition. An empty vendorID scans the whole catalog.
	ListDirtyProducts(ctx context.Context, vendorID, afterID string, limit int) ([]domain.Product, error)

	SaveProductFields(ctx context.Context, productID string, fields domain.ProductFields) error
	MarkProductMalformed(ctx context.Context, productID string) error

	// Name lists used for closest-match resolution.
	ListVendorNames(ctx context.Context) ([]string, error)
	ListProductNames(ctx context.Context, vendorID string) ([]string, error)
}

// SubscriptionRepository persists users, categories and subscription edges.
// Edge writes are idempotent.
type SubscriptionRepository interface {
	CreateUser(ctx context.Context, user domain.User) error

	// GetUser loads a user with its vendor, product and category edges.
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByName(ctx context.Context, username string) (*domain.User, error)

	// ListUsers pages through users ordered by ID with their edges loaded.
	ListUsers(ctx context.Context, afterID string, limit int) ([]domain.User, error)

	FollowVendor(ctx context.Context, userID, vendorID string) error
	UnfollowVendor(ctx context.Context, userID, vendorID string) error
	FollowProduct(ctx context.Context, userID, productID string) error
	UnfollowProduct(ctx context.Context, userID, productID string) error
	FollowCategory(ctx context.Context, userID, categoryID string) error
	UnfollowCategory(ctx context.Context, userID, categoryID string) error

	AddCategoryVendor(ctx context.Context, categoryID, vendorID string) error
	RemoveCategoryVendor(ctx context.Context, categoryID, vendorID string) error
	AddCategoryProduct(ctx context.Context, categoryID, productID string) error
	RemoveCategoryProduct(ctx context.Context, categoryID, productID string) error

	// CreateCategory fails with domain.ErrCategoryExists on a duplicate name.
	CreateCategory(ctx context.Context, category domain.Category) error
	// GetCategory loads a category with its vendor and product members.
	GetCategory(ctx context.Context, id string) (*domain.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	RenameCategory(ctx context.Context, id, name string) error
	DeleteCategory(ctx context.Context, id string) error
}

// Store is the full persistence surface used by the application.
type Store interface {
	CatalogRepository
	SubscriptionRepository
	CVERepository
	CycleStore
	AuditRepository
}
