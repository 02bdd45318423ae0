package mock

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
	"github.com/lcalzada-xor/cvewatch/internal/core/ports"
)

// Vendors and their products used for synthetic data
var vendorProducts = map[string][]string{
	"apache":    {"http_server", "tomcat", "struts"},
	"cisco":     {"ios", "asa", "webex_meetings"},
	"microsoft": {"windows_10", "exchange_server", "edge"},
	"openssl":   {"openssl"},
	"oracle":    {"mysql", "java_se", "weblogic_server"},
	"tp-link":   {"archer_c7", "tl-wr841n"},
	"netgear":   {"r7000", "nighthawk"},
	"google":    {"chrome", "android"},
	"mozilla":   {"firefox", "thunderbird"},
	"linux":     {"linux_kernel"},
}

var versions = []string{"1.0", "1.1", "2.0", "2.3", "3.0.1", "4.2", "10.0"}

var cweIDs = []string{"CWE-79", "CWE-89", "CWE-20", "CWE-787", "CWE-125", "CWE-416", "CWE-22", "CWE-352"}

var summaries = []string{
	"A buffer overflow allows remote attackers to execute arbitrary code.",
	"Improper input validation allows a denial of service via crafted packets.",
	"Cross-site scripting in the administration interface.",
	"SQL injection in the login form allows authentication bypass.",
	"Use-after-free in the rendering engine leads to memory corruption.",
}

// DataGenerator generates synthetic catalog entries and CVE snapshots
type DataGenerator struct {
	mu   sync.Mutex
	rand *rand.Rand
	seq  int
	cves map[string]*domain.CveSnapshot
}

// NewDataGenerator creates a new generator. A zero seed uses the clock.
func NewDataGenerator(seed int64) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DataGenerator{
		rand: rand.New(rand.NewSource(seed)),
		cves: make(map[string]*domain.CveSnapshot),
	}
}

// CatalogNames returns the CPE names of every synthetic product version.
func (g *DataGenerator) CatalogNames() []string {
	var names []string
	for vendor, products := range vendorProducts {
		for _, product := range products {
			for _, v := range versions {
				names = append(names, cpeName(vendor, product, v))
			}
		}
	}
	sort.Strings(names)
	return names
}

// generateCVE creates a new CVE affecting one to three random products.
func (g *DataGenerator) generateCVE(now time.Time) domain.CveSnapshot {
	g.seq++
	id := fmt.Sprintf("CVE-%d-%05d", now.Year(), g.seq)

	n := g.rand.Intn(3) + 1
	cpes := make([]string, 0, n)
	for i := 0; i < n; i++ {
		vendor := g.randomVendor()
		products := vendorProducts[vendor]
		cpes = append(cpes, cpeName(vendor, products[g.rand.Intn(len(products))], versions[g.rand.Intn(len(versions))]))
	}
	sort.Strings(cpes)

	snap := domain.CveSnapshot{
		ID:           id,
		Summary:      summaries[g.rand.Intn(len(summaries))],
		CVSS3:        g.randomScore(),
		CWEs:         []string{cweIDs[g.rand.Intn(len(cweIDs))]},
		References:   []string{"https://nvd.nist.gov/vuln/detail/" + id},
		CPEs:         cpes,
		PublishedAt:  now,
		LastModified: now,
	}
	if g.rand.Float32() < 0.5 {
		snap.CVSS2 = g.randomScore()
	}
	g.cves[id] = &snap
	return snap
}

// GenerateScenario creates the initial CVE population.
func (g *DataGenerator) GenerateScenario(scenario string, now time.Time) []domain.CveSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	var count int
	switch scenario {
	case "crowded":
		count = 200
	case "quiet":
		count = 5
	default:
		count = 25
	}

	out := make([]domain.CveSnapshot, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, g.generateCVE(now))
	}
	return out
}

// SimulateActivity publishes a few new CVEs and modifies some known ones.
// It returns the snapshots touched.
func (g *DataGenerator) SimulateActivity(now time.Time) []domain.CveSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	var touched []domain.CveSnapshot

	// 0 to 2 new CVEs
	for i := g.rand.Intn(3); i > 0; i-- {
		touched = append(touched, g.generateCVE(now))
	}

	ids := make([]string, 0, len(g.cves))
	for id := range g.cves {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if g.rand.Float32() >= 0.1 {
			continue
		}
		snap := g.cves[id]
		switch g.rand.Intn(4) {
		case 0:
			snap.CVSS3 = g.randomScore()
		case 1:
			snap.CWEs = append(append([]string(nil), snap.CWEs...), cweIDs[g.rand.Intn(len(cweIDs))])
		case 2:
			snap.References = append(append([]string(nil), snap.References...), fmt.Sprintf("https://example.org/advisory/%s/%d", id, g.rand.Intn(1000)))
		default:
			vendor := g.randomVendor()
			products := vendorProducts[vendor]
			snap.CPEs = append(append([]string(nil), snap.CPEs...), cpeName(vendor, products[g.rand.Intn(len(products))], versions[g.rand.Intn(len(versions))]))
		}
		snap.LastModified = now
		touched = append(touched, *snap)
	}
	return touched
}

// Helper functions

func (g *DataGenerator) randomVendor() string {
	vendors := make([]string, 0, len(vendorProducts))
	for v := range vendorProducts {
		vendors = append(vendors, v)
	}
	sort.Strings(vendors)
	return vendors[g.rand.Intn(len(vendors))]
}

func (g *DataGenerator) randomScore() *float64 {
	s := float64(g.rand.Intn(100)+1) / 10
	return &s
}

func cpeName(vendor, product, version string) string {
	return fmt.Sprintf("cpe:2.3:a:%s:%s:%s:*:*:*:*:*:*:*", vendor, product, version)
}

// Feed is a ports.FeedProvider backed by a DataGenerator. The first fetch
// returns the scenario population; later fetches return simulated activity.
type Feed struct {
	gen      *DataGenerator
	scenario string
	once     sync.Once
}

var _ ports.FeedProvider = (*Feed)(nil)

// NewFeed creates a synthetic feed for the given scenario.
func NewFeed(gen *DataGenerator, scenario string) *Feed {
	return &Feed{gen: gen, scenario: scenario}
}

func (f *Feed) Fetch(ctx context.Context, since, until time.Time) ([]domain.CveSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []domain.CveSnapshot
	first := false
	f.once.Do(func() {
		first = true
		out = f.gen.GenerateScenario(f.scenario, until)
	})
	if first {
		return out, nil
	}
	return f.gen.SimulateActivity(until), nil
}
