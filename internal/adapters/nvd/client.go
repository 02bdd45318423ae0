package nvd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/lcalzada-xor/cvewatch/internal/adapters/retryhttp"
	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
	"github.com/lcalzada-xor/cvewatch/internal/core/ports"
	"github.com/lcalzada-xor/cvewatch/internal/logger"
)

const (
	// MaxPageSize is the largest resultsPerPage the API accepts.
	MaxPageSize = 2000
	// MaxWindow is the longest lastMod range the API accepts per query.
	MaxWindow = 120 * 24 * time.Hour
)

// Client fetches CVEs modified within a window from the NVD CVE API 2.0.
type Client struct {
	http     *retryablehttp.Client
	baseURL  string
	apiKey   string
	pageSize int
	log      *logger.Logger
}

var _ ports.FeedProvider = (*Client)(nil)

// NewClient creates an API client. apiKey may be empty; the API then
// applies its public rate limit.
func NewClient(baseURL, apiKey string, timeout time.Duration, log *logger.Logger) *Client {
	log = log.Named("nvd")
	return &Client{
		http:     retryhttp.NewClient(timeout, retryhttp.DefaultRetries, log),
		baseURL:  baseURL,
		apiKey:   apiKey,
		pageSize: MaxPageSize,
		log:      log,
	}
}

// Fetch pages through every CVE last modified in [since, until). Windows
// longer than the API limit are split.
func (c *Client) Fetch(ctx context.Context, since, until time.Time) ([]domain.CveSnapshot, error) {
	var out []domain.CveSnapshot
	for start := since; start.Before(until); start = start.Add(MaxWindow) {
		end := start.Add(MaxWindow)
		if end.After(until) {
			end = until
		}
		snaps, err := c.fetchWindow(ctx, start, end)
		if err != nil {
			return nil, err
		}
		out = append(out, snaps...)
	}
	return out, nil
}

func (c *Client) fetchWindow(ctx context.Context, since, until time.Time) ([]domain.CveSnapshot, error) {
	var out []domain.CveSnapshot
	for index := 0; ; {
		page, err := c.fetchPage(ctx, since, until, index)
		if err != nil {
			return nil, err
		}
		for _, v := range page.Vulnerabilities {
			snap, err := ToSnapshot(v.CVE)
			if err != nil {
				c.log.Warn("skipping undecodable cve", "error", err)
				continue
			}
			out = append(out, snap)
		}

		c.log.Debug("feed page fetched",
			"start_index", page.StartIndex,
			"results", len(page.Vulnerabilities),
			"total", page.TotalResults)

		index += len(page.Vulnerabilities)
		if len(page.Vulnerabilities) == 0 || index >= page.TotalResults {
			return out, nil
		}
	}
}

func (c *Client) fetchPage(ctx context.Context, since, until time.Time, index int) (*Response, error) {
	q := url.Values{}
	q.Set("lastModStartDate", since.UTC().Format(timeLayout))
	q.Set("lastModEndDate", until.UTC().Format(timeLayout))
	q.Set("startIndex", strconv.Itoa(index))
	q.Set("resultsPerPage", strconv.Itoa(c.pageSize))

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apiKey", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nvd request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("nvd returned %s: %s", resp.Status, body)
	}

	var page Response
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode nvd page: %w", err)
	}
	return &page, nil
}
