package cpematch

import (
	"context"
	"fmt"
	"strings"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
	"github.com/lcalzada-xor/cvewatch/internal/core/ports"
	"github.com/lcalzada-xor/cvewatch/internal/logger"
)

const defaultPageSize = 500

// Matches reports whether candidate satisfies pattern. Vendor and product
// name must be equal (case-insensitive). Each versioned field matches when
// the pattern is the wildcard, the candidate is the wildcard, or the
// candidate matches the pattern as a case-insensitive glob where "*" stands
// for any run of characters.
func Matches(candidate, pattern domain.ProductFields) bool {
	if !strings.EqualFold(candidate.Vendor, pattern.Vendor) ||
		!strings.EqualFold(candidate.ProductName, pattern.ProductName) {
		return false
	}

	c, p := candidate.Versioned(), pattern.Versioned()
	for i := range p {
		if !fieldMatches(c[i], p[i]) {
			return false
		}
	}
	return true
}

func fieldMatches(candidate, pattern string) bool {
	if pattern == domain.Wildcard || candidate == domain.Wildcard {
		return true
	}
	return globMatch(strings.ToLower(pattern), strings.ToLower(candidate))
}

// globMatch matches s against pattern where "*" matches any substring,
// including the empty one. No other character is special.
func globMatch(pattern, s string) bool {
	if !strings.Contains(pattern, domain.Wildcard) {
		return pattern == s
	}

	segments := strings.Split(pattern, domain.Wildcard)
	first, last := segments[0], segments[len(segments)-1]
	if !strings.HasPrefix(s, first) {
		return false
	}
	s = s[len(first):]

	for _, seg := range segments[1 : len(segments)-1] {
		i := strings.Index(s, seg)
		if i < 0 {
			return false
		}
		s = s[i+len(seg):]
	}
	return strings.HasSuffix(s, last)
}

// Matcher expands a subscribed product into the match-keys of every
// catalog product it covers.
type Matcher struct {
	catalog  ports.CatalogRepository
	pageSize int
	log      *logger.Logger
}

// NewMatcher creates a matcher scanning the catalog pageSize products at a time.
func NewMatcher(catalog ports.CatalogRepository, pageSize int, log *logger.Logger) *Matcher {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Matcher{
		catalog:  catalog,
		pageSize: pageSize,
		log:      log.Named("cpematch"),
	}
}

// Expand returns vendor$PRODUCT$name keys for every stored product that
// matches product, always including product itself. Dirty products of the
// same vendor are repaired first so they are not silently skipped.
func (m *Matcher) Expand(ctx context.Context, product domain.Product) ([]string, error) {
	own := product.MatchKey()

	if product.IsDirty() {
		if _, err := m.RepairDirtyProducts(ctx, product.VendorID); err != nil {
			return nil, fmt.Errorf("repair vendor %s: %w", product.Vendor, err)
		}
		reloaded, err := m.catalog.GetProduct(ctx, product.ID)
		if err != nil {
			return nil, fmt.Errorf("reload product %s: %w", product.ID, err)
		}
		product = *reloaded
	} else if err := m.repairVendorIfDirty(ctx, product.VendorID); err != nil {
		return nil, err
	}

	if product.Malformed || product.Fields == nil {
		return []string{own}, nil
	}

	keys := []string{own}
	pattern := *product.Fields
	afterID := ""
	for {
		page, err := m.catalog.ListProductFamily(ctx, product.VendorID, pattern.ProductName, afterID, m.pageSize)
		if err != nil {
			return nil, fmt.Errorf("list family %s/%s: %w", product.Vendor, pattern.ProductName, err)
		}
		for _, candidate := range page {
			if candidate.ID == product.ID || candidate.Fields == nil || candidate.Malformed {
				continue
			}
			if Matches(*candidate.Fields, pattern) {
				keys = append(keys, candidate.MatchKey())
			}
		}
		if len(page) < m.pageSize {
			break
		}
		afterID = page[len(page)-1].ID
	}
	return keys, nil
}

func (m *Matcher) repairVendorIfDirty(ctx context.Context, vendorID string) error {
	dirty, err := m.catalog.ListDirtyProducts(ctx, vendorID, "", 1)
	if err != nil {
		return fmt.Errorf("check dirty products: %w", err)
	}
	if len(dirty) == 0 {
		return nil
	}
	_, err = m.RepairDirtyProducts(ctx, vendorID)
	return err
}
