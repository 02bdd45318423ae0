package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
	"github.com/lcalzada-xor/cvewatch/internal/core/ports"
	"github.com/lcalzada-xor/cvewatch/internal/core/services/cpematch"
	"github.com/lcalzada-xor/cvewatch/internal/logger"
)

// Repairer fills missing product decompositions.
type Repairer interface {
	RepairDirtyProducts(ctx context.Context, vendorID string) (cpematch.RepairResult, error)
}

// Row is one human-authored line of a category import.
type Row struct {
	Vendor  string `json:"vendor"`
	Product string `json:"product"`
	Version string `json:"version"`
	// Tag, when set, is the exact CPE name of the product.
	Tag string `json:"tag,omitempty"`
}

func (r Row) key() string {
	return strings.ToLower(r.Vendor) + ":" + strings.ToLower(r.Product) + ":" + strings.ToLower(r.Version) + "|" + r.Tag
}

// SkippedRow is a row that could not be resolved.
type SkippedRow struct {
	Row    Row    `json:"row"`
	Reason string `json:"reason"`
}

// ImportResult summarizes a category import.
type ImportResult struct {
	Added   int          `json:"added"`
	Skipped []SkippedRow `json:"skipped,omitempty"`
}

// CatalogResult summarizes a catalog seeding run.
type CatalogResult struct {
	Upserted int                   `json:"upserted"`
	Failed   int                   `json:"failed"`
	Repair   cpematch.RepairResult `json:"repair"`
}

// Importer loads catalog entries and category members in bulk.
type Importer struct {
	catalog  ports.CatalogRepository
	subs     ports.SubscriptionRepository
	repairer Repairer
	audit    ports.AuditService
	log      *logger.Logger
}

// NewImporter creates an importer writing to the catalog and subscription repositories.
func NewImporter(catalog ports.CatalogRepository, subs ports.SubscriptionRepository, repairer Repairer, auditSvc ports.AuditService, log *logger.Logger) *Importer {
	return &Importer{
		catalog:  catalog,
		subs:     subs,
		repairer: repairer,
		audit:    auditSvc,
		log:      log.Named("importer"),
	}
}

// ImportCatalog upserts one product per CPE name and runs the repair pass.
// Names whose vendor cannot be read are counted as failed and skipped.
func (i *Importer) ImportCatalog(ctx context.Context, names []string) (CatalogResult, error) {
	var res CatalogResult
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		vendor := domain.VendorOfCPE(name)
		if vendor == "" {
			i.log.Warn("skipping unparsable cpe name", "name", name)
			res.Failed++
			continue
		}
		if _, err := i.catalog.UpsertProduct(ctx, vendor, name); err != nil {
			return res, fmt.Errorf("upsert %s: %w", name, err)
		}
		res.Upserted++
	}

	repair, err := i.repairer.RepairDirtyProducts(ctx, "")
	if err != nil {
		return res, fmt.Errorf("repair catalog: %w", err)
	}
	res.Repair = repair

	details := fmt.Sprintf("upserted=%d repaired=%d malformed=%d", res.Upserted, repair.Repaired, repair.Malformed)
	if err := i.audit.Log(ctx, domain.ActionCatalogRepaired, "catalog", details); err != nil {
		i.log.Warn("audit log failed", "error", err)
	}
	i.log.Info("catalog import finished", "upserted", res.Upserted, "failed", res.Failed, "repaired", repair.Repaired, "malformed", repair.Malformed)
	return res, nil
}

// ImportCategory adds the products described by rows to the named
// category. Rows that cannot be resolved are reported and skipped; only
// storage failures abort the batch.
func (i *Importer) ImportCategory(ctx context.Context, categoryName string, rows []Row) (ImportResult, error) {
	var res ImportResult

	category, err := i.subs.GetCategoryByName(ctx, domain.NormalizeName(categoryName))
	if err != nil {
		return res, fmt.Errorf("category %q: %w", categoryName, err)
	}

	if _, err := i.repairer.RepairDirtyProducts(ctx, ""); err != nil {
		return res, fmt.Errorf("repair catalog: %w", err)
	}
	lookup, err := NewLookupContext(ctx, i.catalog)
	if err != nil {
		return res, err
	}

	members := make(map[string]struct{}, len(category.Products))
	for _, p := range category.Products {
		members[p.ID] = struct{}{}
	}

	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if _, dup := seen[row.key()]; dup {
			continue
		}
		seen[row.key()] = struct{}{}

		product, err := i.resolve(ctx, lookup, row)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				return res, err
			}
			i.log.Info("import row not resolved", "category", category.Name, "vendor", row.Vendor, "product", row.Product, "version", row.Version, "reason", err)
			res.Skipped = append(res.Skipped, SkippedRow{Row: row, Reason: err.Error()})
			continue
		}

		if _, exists := members[product.ID]; exists {
			continue
		}
		if err := i.subs.AddCategoryProduct(ctx, category.ID, product.ID); err != nil {
			return res, fmt.Errorf("add %s to %s: %w", product.Name, category.Name, err)
		}
		members[product.ID] = struct{}{}
		res.Added++
	}

	details := fmt.Sprintf("added=%d skipped=%d", res.Added, len(res.Skipped))
	if err := i.audit.Log(ctx, domain.ActionCategoryImport, "category:"+category.ID, details); err != nil {
		i.log.Warn("audit log failed", "error", err)
	}
	i.log.Info("category import finished", "category", category.Name, "added", res.Added, "skipped", len(res.Skipped))
	return res, nil
}

func (i *Importer) resolve(ctx context.Context, lookup *LookupContext, row Row) (*domain.Product, error) {
	if tag := strings.TrimSpace(row.Tag); tag != "" {
		p, err := i.catalog.GetProductByName(ctx, tag)
		if err != nil {
			return nil, fmt.Errorf("tag %q: %w", tag, err)
		}
		return p, nil
	}
	return lookup.ResolveProduct(ctx, row.Vendor, row.Product, row.Version)
}
