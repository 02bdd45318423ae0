package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/lcalzada-xor/cvewatch/internal/adapters/retryhttp"
	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
	"github.com/lcalzada-xor/cvewatch/internal/core/ports"
	"github.com/lcalzada-xor/cvewatch/internal/logger"
)

// WebhookNotifier POSTs each notification as JSON to a fixed URL.
type WebhookNotifier struct {
	url  string
	http *retryablehttp.Client
}

var _ ports.Notifier = (*WebhookNotifier)(nil)

// NewWebhookNotifier creates a notifier posting JSON payloads to url.
func NewWebhookNotifier(url string, timeout time.Duration, log *logger.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:  url,
		http: retryhttp.NewClient(timeout, retryhttp.DefaultRetries, log.Named("webhook")),
	}
}

func (n *WebhookNotifier) Name() string { return "webhook" }

// Payload is the webhook request body.
type Payload struct {
	Username string          `json:"username"`
	Email    string          `json:"email,omitempty"`
	ReportID string          `json:"report_id"`
	CVEs     []PayloadCVE    `json:"cves"`
	Changes  []domain.Change `json:"changes,omitempty"`
}

type PayloadCVE struct {
	ID       string   `json:"id"`
	Summary  string   `json:"summary"`
	CVSS2    *float64 `json:"cvss2,omitempty"`
	CVSS3    *float64 `json:"cvss3,omitempty"`
	Affected []string `json:"cpes,omitempty"`
}

func newPayload(note domain.Notification) Payload {
	p := Payload{
		Username: note.User.Username,
		Email:    note.User.Email,
		ReportID: note.ReportID,
		Changes:  note.Changes,
		CVEs:     make([]PayloadCVE, len(note.CVEs)),
	}
	for i, c := range note.CVEs {
		p.CVEs[i] = PayloadCVE{ID: c.ID, Summary: c.Summary, CVSS2: c.CVSS2, CVSS3: c.CVSS3, Affected: c.CPEs}
	}
	return p
}

func (n *WebhookNotifier) Notify(ctx context.Context, note domain.Notification) error {
	body, err := json.Marshal(newPayload(note))
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}
