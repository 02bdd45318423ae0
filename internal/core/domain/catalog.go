package domain

import (
	"strings"
	"time"
)

// Vendor is a CPE vendor. Name is normalized lower-case and unique.
type Vendor struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Product is a catalog entry identified by (vendor, full CPE name).
//
// Fields is nil while the product is dirty, i.e. the decomposition has not
// been filled yet. Malformed is set when the name could not be decomposed;
// such products are excluded from wildcard expansion.
type Product struct {
	ID        string         `json:"id"`
	VendorID  string         `json:"vendor_id"`
	Vendor    string         `json:"vendor"`
	Name      string         `json:"name"`
	Fields    *ProductFields `json:"fields,omitempty"`
	Malformed bool           `json:"malformed,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// IsDirty reports whether the decomposition still needs to be repaired.
func (p Product) IsDirty() bool {
	return p.Fields == nil && !p.Malformed
}

// MatchKey renders the product as a vendor$PRODUCT$name key.
func (p Product) MatchKey() string {
	return ProductMatchKey(p.Vendor, p.Name)
}

// Category is a user-curated grouping of vendors and products.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Vendors   []Vendor  `json:"vendors,omitempty"`
	Products  []Product `json:"products,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeName lower-cases and trims vendor and category names.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
