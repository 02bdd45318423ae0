package notify

import (
	"context"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
	"github.com/lcalzada-xor/cvewatch/internal/core/ports"
	"github.com/lcalzada-xor/cvewatch/internal/logger"
)

// LogNotifier writes notifications to the structured log. It is the
// default when no webhook is configured.
type LogNotifier struct {
	log *logger.Logger
}

var _ ports.Notifier = (*LogNotifier)(nil)

// NewLogNotifier creates a notifier that only logs.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log.Named("notify")}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Notify(ctx context.Context, note domain.Notification) error {
	ids := make([]string, len(note.CVEs))
	for i, c := range note.CVEs {
		ids[i] = c.ID
	}
	n.log.Info("cve alert",
		"user", note.User.Username,
		"report_id", note.ReportID,
		"alerts", len(note.Alerts),
		"cves", ids)
	return nil
}
