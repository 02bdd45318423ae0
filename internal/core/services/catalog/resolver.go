package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
	"github.com/lcalzada-xor/cvewatch/internal/core/ports"
)

// SimilarityCutoff is the minimum similarity ratio for a closest match.
// The ratio is 1 - distance/max(len(a), len(b)) over the Levenshtein edit
// distance, so 0.6 tolerates roughly two edits in a five letter name.
const SimilarityCutoff = 0.6

// Similarity returns the normalized Levenshtein similarity of a and b in [0, 1].
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// Closest returns the candidate most similar to name, provided it reaches
// cutoff. Ties resolve to the lexically smallest candidate.
func Closest(name string, candidates []string, cutoff float64) (string, bool) {
	best, bestScore := "", -1.0
	for _, c := range candidates {
		score := Similarity(name, c)
		if score > bestScore || (score == bestScore && c < best) {
			best, bestScore = c, score
		}
	}
	if bestScore < cutoff {
		return "", false
	}
	return best, true
}

// dehumanize turns "Http Server" into "http_server", the CPE spelling.
func dehumanize(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "_")
}

// LookupContext holds the catalog names used to resolve human-entered
// vendor and product names. Build one per import batch; it is not safe for
// concurrent use.
type LookupContext struct {
	catalog  ports.CatalogRepository
	vendors  []string
	products map[string][]string
	families map[string][]domain.Product
}

// NewLookupContext snapshots the vendor names of the catalog.
func NewLookupContext(ctx context.Context, catalog ports.CatalogRepository) (*LookupContext, error) {
	vendors, err := catalog.ListVendorNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("load vendor names: %w", err)
	}
	return &LookupContext{
		catalog:  catalog,
		vendors:  vendors,
		products: make(map[string][]string),
		families: make(map[string][]domain.Product),
	}, nil
}

// ResolveProduct finds the catalog product closest to (vendor, product,
// version). It returns domain.ErrNotFound when any part has no candidate
// above SimilarityCutoff.
func (l *LookupContext) ResolveProduct(ctx context.Context, vendor, product, version string) (*domain.Product, error) {
	vendorName, ok := Closest(dehumanize(vendor), l.vendors, SimilarityCutoff)
	if !ok {
		return nil, fmt.Errorf("vendor %q: %w", vendor, domain.ErrNotFound)
	}
	v, err := l.catalog.GetVendorByName(ctx, vendorName)
	if err != nil {
		return nil, fmt.Errorf("vendor %q: %w", vendorName, err)
	}

	names, err := l.productNames(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	productName, ok := Closest(dehumanize(product), names, SimilarityCutoff)
	if !ok {
		return nil, fmt.Errorf("product %q of %s: %w", product, vendorName, domain.ErrNotFound)
	}

	family, err := l.family(ctx, v.ID, productName)
	if err != nil {
		return nil, err
	}
	return pickVersion(family, strings.ToLower(strings.TrimSpace(version)))
}

func (l *LookupContext) productNames(ctx context.Context, vendorID string) ([]string, error) {
	if names, ok := l.products[vendorID]; ok {
		return names, nil
	}
	names, err := l.catalog.ListProductNames(ctx, vendorID)
	if err != nil {
		return nil, fmt.Errorf("load product names: %w", err)
	}
	l.products[vendorID] = names
	return names, nil
}

func (l *LookupContext) family(ctx context.Context, vendorID, productName string) ([]domain.Product, error) {
	key := vendorID + "/" + productName
	if products, ok := l.families[key]; ok {
		return products, nil
	}

	var all []domain.Product
	afterID := ""
	for {
		page, err := l.catalog.ListProductFamily(ctx, vendorID, productName, afterID, 500)
		if err != nil {
			return nil, fmt.Errorf("load product family: %w", err)
		}
		all = append(all, page...)
		if len(page) < 500 {
			break
		}
		afterID = page[len(page)-1].ID
	}
	l.families[key] = all
	return all, nil
}

// pickVersion selects the family member whose version is closest to
// version, preferring the least specific entry among equal versions.
func pickVersion(family []domain.Product, version string) (*domain.Product, error) {
	if len(family) == 0 {
		return nil, domain.ErrNotFound
	}

	byVersion := make(map[string][]domain.Product)
	var versions []string
	for _, p := range family {
		v := strings.ToLower(p.Fields.Version)
		if _, seen := byVersion[v]; !seen {
			versions = append(versions, v)
		}
		byVersion[v] = append(byVersion[v], p)
	}

	if version == "" {
		version = domain.Wildcard
	}
	match, ok := Closest(version, versions, SimilarityCutoff)
	if !ok {
		return nil, fmt.Errorf("version %q: %w", version, domain.ErrNotFound)
	}

	candidates := byVersion[match]
	sort.Slice(candidates, func(i, j int) bool {
		si, sj := specificity(candidates[i]), specificity(candidates[j])
		if si != sj {
			return si < sj
		}
		return candidates[i].Name < candidates[j].Name
	})
	return &candidates[0], nil
}

func specificity(p domain.Product) int {
	n := 0
	for _, f := range p.Fields.Versioned() {
		if f != domain.Wildcard {
			n++
		}
	}
	return n
}
