package domain

import (
	"fmt"
	"strings"
)

// SubjectKind is the kind of entity whose match-keys can be expanded.
type SubjectKind string

const (
	SubjectUser     SubjectKind = "user"
	SubjectCategory SubjectKind = "category"
)

// Subject identifies a user or a category for expansion.
type Subject struct {
	Kind SubjectKind `json:"kind"`
	ID   string      `json:"id"`
}

// UserSubject returns the subject for a user id.
func UserSubject(id string) Subject { return Subject{Kind: SubjectUser, ID: id} }

// CategorySubject returns the subject for a category id.
func CategorySubject(id string) Subject { return Subject{Kind: SubjectCategory, ID: id} }

// TargetKind names a subscription target variant.
type TargetKind string

const (
	TargetVendor          TargetKind = "vendor"
	TargetProduct         TargetKind = "product"
	TargetCategory        TargetKind = "category"
	TargetCategoryProduct TargetKind = "categoryproduct"
	TargetCategoryVendor  TargetKind = "categoryvendor"
)

// TargetVisitor handles every subscription target variant. Adding a variant
// to SubscriptionTarget forces every visitor to grow a matching method.
type TargetVisitor interface {
	VisitVendor(VendorTarget) error
	VisitProduct(ProductTarget) error
	VisitCategory(CategoryTarget) error
	VisitCategoryProduct(CategoryProductTarget) error
	VisitCategoryVendor(CategoryVendorTarget) error
}

// SubscriptionTarget is what a user subscribes to or unsubscribes from.
type SubscriptionTarget interface {
	Kind() TargetKind
	// ID is the wire form accepted by ParseTarget.
	ID() string
	Accept(TargetVisitor) error
}

// VendorTarget follows a vendor directly.
type VendorTarget struct{ VendorID string }

// ProductTarget follows a product (and its wildcard family) directly.
type ProductTarget struct{ ProductID string }

// CategoryTarget follows a category.
type CategoryTarget struct{ CategoryID string }

// CategoryProductTarget adds or removes a product in a followed category.
type CategoryProductTarget struct{ CategoryID, ProductID string }

// CategoryVendorTarget adds or removes a vendor in a followed category.
type CategoryVendorTarget struct{ CategoryID, VendorID string }

func (VendorTarget) Kind() TargetKind          { return TargetVendor }
func (ProductTarget) Kind() TargetKind         { return TargetProduct }
func (CategoryTarget) Kind() TargetKind        { return TargetCategory }
func (CategoryProductTarget) Kind() TargetKind { return TargetCategoryProduct }
func (CategoryVendorTarget) Kind() TargetKind  { return TargetCategoryVendor }

func (t VendorTarget) ID() string          { return t.VendorID }
func (t ProductTarget) ID() string         { return t.ProductID }
func (t CategoryTarget) ID() string        { return t.CategoryID }
func (t CategoryProductTarget) ID() string { return t.CategoryID + "+" + t.ProductID }
func (t CategoryVendorTarget) ID() string  { return t.CategoryID + "+" + t.VendorID }

func (t VendorTarget) Accept(v TargetVisitor) error          { return v.VisitVendor(t) }
func (t ProductTarget) Accept(v TargetVisitor) error         { return v.VisitProduct(t) }
func (t CategoryTarget) Accept(v TargetVisitor) error        { return v.VisitCategory(t) }
func (t CategoryProductTarget) Accept(v TargetVisitor) error { return v.VisitCategoryProduct(t) }
func (t CategoryVendorTarget) Accept(v TargetVisitor) error  { return v.VisitCategoryVendor(t) }

// ParseTarget builds a target from its wire form. Composite targets carry
// "categoryID+memberID" as id.
func ParseTarget(kind, id string) (SubscriptionTarget, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrInvalidSubscription)
	}

	switch TargetKind(strings.ToLower(kind)) {
	case TargetVendor:
		return VendorTarget{VendorID: id}, nil
	case TargetProduct:
		return ProductTarget{ProductID: id}, nil
	case TargetCategory:
		return CategoryTarget{CategoryID: id}, nil
	case TargetCategoryProduct:
		cat, member, ok := splitComposite(id)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSubscription, id)
		}
		return CategoryProductTarget{CategoryID: cat, ProductID: member}, nil
	case TargetCategoryVendor:
		cat, member, ok := splitComposite(id)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSubscription, id)
		}
		return CategoryVendorTarget{CategoryID: cat, VendorID: member}, nil
	}
	return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidSubscription, kind)
}

func splitComposite(id string) (string, string, bool) {
	left, right, ok := strings.Cut(id, "+")
	if !ok || left == "" || right == "" {
		return "", "", false
	}
	return left, right, true
}
