package domain

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// ProductSeparator joins a vendor and a CPE name into a product match-key.
// It is the join key between CVEs and subscriptions and must not change.
const ProductSeparator = "$PRODUCT$"

// ProductMatchKey renders vendor$PRODUCT$cpe-name.
func ProductMatchKey(vendor, cpeName string) string {
	return vendor + ProductSeparator + cpeName
}

// SplitMatchKey returns the vendor and, for product keys, the CPE name.
func SplitMatchKey(key string) (vendor, cpeName string, isProduct bool) {
	if i := strings.Index(key, ProductSeparator); i >= 0 {
		return key[:i], key[i+len(ProductSeparator):], true
	}
	return key, "", false
}

// CveSnapshot is the comparable state of a CVE at one point in time.
type CveSnapshot struct {
	ID           string          `json:"cve_id"`
	Summary      string          `json:"summary"`
	CVSS2        *float64        `json:"cvss2,omitempty"`
	CVSS3        *float64        `json:"cvss3,omitempty"`
	CWEs         []string        `json:"cwes,omitempty"`
	References   []string        `json:"references,omitempty"`
	CPEs         []string        `json:"cpes,omitempty"`
	Raw          json.RawMessage `json:"raw,omitempty"`
	PublishedAt  time.Time       `json:"published_at"`
	LastModified time.Time       `json:"last_modified"`
}

// MatchKeys flattens the affected CPE list into the deduplicated, sorted
// list of vendor and vendor$PRODUCT$cpe keys.
func (s CveSnapshot) MatchKeys() []string {
	return BuildMatchKeys(s.CPEs)
}

// MaxScore returns the highest of the CVSS v2 and v3 scores, or nil when
// neither is known.
func (s CveSnapshot) MaxScore() *float64 {
	switch {
	case s.CVSS2 == nil:
		return s.CVSS3
	case s.CVSS3 == nil:
		return s.CVSS2
	case *s.CVSS3 > *s.CVSS2:
		return s.CVSS3
	default:
		return s.CVSS2
	}
}

// BuildMatchKeys converts CPE names into match-keys. Names whose vendor
// cannot be extracted are ignored.
func BuildMatchKeys(cpes []string) []string {
	seen := make(map[string]struct{}, len(cpes)*2)
	for _, uri := range cpes {
		vendor := VendorOfCPE(uri)
		if vendor == "" {
			continue
		}
		seen[vendor] = struct{}{}
		seen[ProductMatchKey(vendor, uri)] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CVE is a stored CVE record.
type CVE struct {
	CveSnapshot
	MatchKeys []string  `json:"match_keys"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CVEQuery selects CVEs whose match-keys intersect Keys. An empty Keys
// list matches nothing.
type CVEQuery struct {
	Keys         []string
	UpdatedAfter time.Time
	MinScore     *float64
	Limit        int
}
