package cpematch

import (
	"context"
	"errors"
	"fmt"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
	"github.com/lcalzada-xor/cvewatch/internal/telemetry"
)

// RepairResult counts the outcome of a repair pass.
type RepairResult struct {
	Repaired  int `json:"repaired"`
	Malformed int `json:"malformed"`
}

// RepairDirtyProducts re-parses the raw name of every product lacking a
// decomposition. Products that cannot be parsed are flagged malformed and
// logged once; they stay out of wildcard expansion. An empty vendorID
// repairs the whole catalog.
func (m *Matcher) RepairDirtyProducts(ctx context.Context, vendorID string) (RepairResult, error) {
	var res RepairResult
	afterID := ""
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		page, err := m.catalog.ListDirtyProducts(ctx, vendorID, afterID, m.pageSize)
		if err != nil {
			return res, fmt.Errorf("list dirty products: %w", err)
		}

		for _, p := range page {
			fields, err := domain.ParseCPE(p.Name)
			if err != nil {
				if !errors.Is(err, domain.ErrMalformedCPE) {
					return res, err
				}
				if err := m.catalog.MarkProductMalformed(ctx, p.ID); err != nil {
					return res, fmt.Errorf("flag product %s: %w", p.ID, err)
				}
				m.log.Warn("malformed product excluded from expansion", "product_id", p.ID, "name", p.Name, "error", err)
				telemetry.ProductsRepaired.WithLabelValues("malformed").Inc()
				res.Malformed++
				continue
			}
			if err := m.catalog.SaveProductFields(ctx, p.ID, fields); err != nil {
				return res, fmt.Errorf("save product %s: %w", p.ID, err)
			}
			telemetry.ProductsRepaired.WithLabelValues("repaired").Inc()
			res.Repaired++
		}

		if len(page) < m.pageSize {
			break
		}
		afterID = page[len(page)-1].ID
	}

	if res.Repaired > 0 || res.Malformed > 0 {
		m.log.Info("repair pass finished", "vendor_id", vendorID, "repaired", res.Repaired, "malformed", res.Malformed)
	}
	return res, nil
}
