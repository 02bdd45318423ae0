package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
)

func TestCVEConversion(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	cve := domain.CVE{
		CveSnapshot: domain.CveSnapshot{
			ID:         "CVE-2024-1234",
			Summary:    "use after free",
			CVSS2:      score(5.0),
			CVSS3:      score(8.1),
			CWEs:       []string{"CWE-416"},
			References: []string{"https://example.com/advisory"},
			CPEs:       []string{"cpe:2.3:a:acme:widget:1.0:*:*:*:*:*:*:*"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	m := cveToModel(cve)
	require.NotNil(t, m.MaxScore)
	assert.Equal(t, 8.1, *m.MaxScore)

	back := cveToDomain(m)
	assert.Equal(t, cve.CWEs, back.CWEs)
	assert.Equal(t, cve.References, back.References)
	assert.Equal(t, cve.CPEs, back.CPEs)
	assert.Equal(t, cve.CveSnapshot.MatchKeys(), back.MatchKeys)
	assert.True(t, back.UpdatedAt.Equal(now))
}

func TestProductConversion_DirtyHasNoFields(t *testing.T) {
	m := ProductModel{ID: "p1", VendorID: "v1", Vendor: VendorModel{ID: "v1", Name: "acme"}, Name: "x", Dirty: true}
	p := productToDomain(m)
	assert.True(t, p.IsDirty())
	assert.Equal(t, "acme", p.Vendor)

	m.Dirty = false
	m.Fields = toJSON(domain.ProductFields{Vendor: "acme", ProductName: "widget", Version: "1.0"})
	p = productToDomain(m)
	require.NotNil(t, p.Fields)
	assert.Equal(t, "widget", p.Fields.ProductName)
}

func TestReportConversion(t *testing.T) {
	finished := time.Now().UTC()
	r := domain.Report{
		ID:         "r1",
		Stage:      domain.StageDone,
		Status:     domain.StatusPartial,
		Errors:     []string{"user u2: disk full"},
		FinishedAt: &finished,
	}
	back := reportToDomain(reportToModel(r))
	assert.Equal(t, r, back)
}
