package nvd

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
)

// timeLayout is the NVD API 2.0 timestamp format (no zone, UTC implied).
const timeLayout = "2006-01-02T15:04:05.000"

// Response is one page of the NVD CVE API 2.0.
type Response struct {
	ResultsPerPage  int             `json:"resultsPerPage"`
	StartIndex      int             `json:"startIndex"`
	TotalResults    int             `json:"totalResults"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
}

type Vulnerability struct {
	CVE json.RawMessage `json:"cve"`
}

type cveItem struct {
	ID             string          `json:"id"`
	Published      string          `json:"published"`
	LastModified   string          `json:"lastModified"`
	Descriptions   []langString    `json:"descriptions"`
	Metrics        metrics         `json:"metrics"`
	Weaknesses     []weakness      `json:"weaknesses"`
	Configurations []configuration `json:"configurations"`
	References     []reference     `json:"references"`
}

type langString struct {
	Lang  string `json:"lang"`
	Value string `json:"value"`
}

type metrics struct {
	V31 []metric `json:"cvssMetricV31"`
	V30 []metric `json:"cvssMetricV30"`
	V2  []metric `json:"cvssMetricV2"`
}

type metric struct {
	Type     string `json:"type"`
	CvssData struct {
		BaseScore float64 `json:"baseScore"`
	} `json:"cvssData"`
}

type weakness struct {
	Description []langString `json:"description"`
}

type configuration struct {
	Nodes []node `json:"nodes"`
}

type node struct {
	Operator string     `json:"operator"`
	Negate   bool       `json:"negate"`
	CpeMatch []cpeMatch `json:"cpeMatch"`
}

type cpeMatch struct {
	Vulnerable bool   `json:"vulnerable"`
	Criteria   string `json:"criteria"`
}

type reference struct {
	URL string `json:"url"`
}

// ToSnapshot converts a raw NVD "cve" object. The raw JSON is kept on the
// snapshot.
func ToSnapshot(raw json.RawMessage) (domain.CveSnapshot, error) {
	var item cveItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return domain.CveSnapshot{}, err
	}

	snap := domain.CveSnapshot{
		ID:           item.ID,
		Summary:      englishSummary(item.Descriptions),
		CVSS2:        baseScore(item.Metrics.V2),
		CVSS3:        baseScore(item.Metrics.V31),
		CWEs:         cwes(item.Weaknesses),
		References:   references(item.References),
		CPEs:         vulnerableCPEs(item.Configurations),
		Raw:          raw,
		PublishedAt:  parseTime(item.Published),
		LastModified: parseTime(item.LastModified),
	}
	if snap.CVSS3 == nil {
		snap.CVSS3 = baseScore(item.Metrics.V30)
	}
	return snap, nil
}

func englishSummary(descs []langString) string {
	for _, d := range descs {
		if d.Lang == "en" {
			return d.Value
		}
	}
	if len(descs) > 0 {
		return descs[0].Value
	}
	return ""
}

// baseScore prefers the primary (NVD) metric over secondary sources.
func baseScore(ms []metric) *float64 {
	if len(ms) == 0 {
		return nil
	}
	chosen := ms[0]
	for _, m := range ms {
		if m.Type == "Primary" {
			chosen = m
			break
		}
	}
	score := chosen.CvssData.BaseScore
	return &score
}

func cwes(ws []weakness) []string {
	seen := make(map[string]struct{})
	for _, w := range ws {
		for _, d := range w.Description {
			if strings.HasPrefix(d.Value, "CWE-") {
				seen[d.Value] = struct{}{}
			}
		}
	}
	return sortedSet(seen)
}

func references(refs []reference) []string {
	seen := make(map[string]struct{}, len(refs))
	for _, r := range refs {
		if r.URL != "" {
			seen[r.URL] = struct{}{}
		}
	}
	return sortedSet(seen)
}

func vulnerableCPEs(configs []configuration) []string {
	seen := make(map[string]struct{})
	for _, c := range configs {
		for _, n := range c.Nodes {
			if n.Negate {
				continue
			}
			for _, m := range n.CpeMatch {
				if m.Vulnerable && m.Criteria != "" {
					seen[m.Criteria] = struct{}{}
				}
			}
		}
	}
	return sortedSet(seen)
}

func sortedSet(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func parseTime(s string) time.Time {
	for _, layout := range []string{timeLayout, time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
