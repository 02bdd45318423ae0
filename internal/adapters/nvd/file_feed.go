package nvd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
	"github.com/lcalzada-xor/cvewatch/internal/core/ports"
	"github.com/lcalzada-xor/cvewatch/internal/logger"
)

// FileFeed serves CVEs from a local file in the API 2.0 response format,
// for offline runs and seeding.
type FileFeed struct {
	path string
	log  *logger.Logger

	mu     sync.Mutex
	loaded bool
}

var _ ports.FeedProvider = (*FileFeed)(nil)

// NewFileFeed creates a feed reading a saved NVD response from path.
func NewFileFeed(path string, log *logger.Logger) *FileFeed {
	return &FileFeed{path: path, log: log.Named("nvd-file")}
}

// Fetch returns the records of the file last modified in [since, until).
// The first call ignores since so the whole file is loaded once. Records
// without a timestamp are always returned.
func (f *FileFeed) Fetch(ctx context.Context, since, until time.Time) ([]domain.CveSnapshot, error) {
	f.mu.Lock()
	if !f.loaded {
		since = time.Time{}
	}
	f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed file: %w", err)
	}

	var page Response
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("failed to parse feed file: %w", err)
	}

	var out []domain.CveSnapshot
	skipped := 0
	for _, v := range page.Vulnerabilities {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snap, err := ToSnapshot(v.CVE)
		if err != nil {
			skipped++
			continue
		}
		if !snap.LastModified.IsZero() && (snap.LastModified.Before(since) || !snap.LastModified.Before(until)) {
			continue
		}
		out = append(out, snap)
	}

	f.mu.Lock()
	f.loaded = true
	f.mu.Unlock()

	f.log.Info("feed file loaded", "path", f.path, "records", len(out), "skipped", skipped)
	return out, nil
}
