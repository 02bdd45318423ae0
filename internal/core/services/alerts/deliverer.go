package alerts

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
	"github.com/lcalzada-xor/cvewatch/internal/core/ports"
	"github.com/lcalzada-xor/cvewatch/internal/logger"
	"github.com/lcalzada-xor/cvewatch/internal/telemetry"
)

// DeliveryResult is the outcome of one deliver stage.
type DeliveryResult struct {
	Delivered int
	Errors    []string
}

// Deliverer hands undelivered alerts to a notifier, one notification per
// user and report.
type Deliverer struct {
	store    ports.CycleStore
	users    ports.SubscriptionRepository
	cves     ports.CVERepository
	notifier ports.Notifier
	log      *logger.Logger
	now      func() time.Time
}

// NewDeliverer creates a deliverer handing undelivered alerts to notifier.
func NewDeliverer(store ports.CycleStore, users ports.SubscriptionRepository, cves ports.CVERepository, notifier ports.Notifier, log *logger.Logger) *Deliverer {
	return &Deliverer{
		store:    store,
		users:    users,
		cves:     cves,
		notifier: notifier,
		log:      log.Named("deliverer"),
		now:      time.Now,
	}
}

// Run delivers every pending alert. A failing user is logged and retried
// on the next run; its alerts stay undelivered.
func (d *Deliverer) Run(ctx context.Context) (DeliveryResult, error) {
	var res DeliveryResult

	userIDs, err := d.store.ListUsersWithUndeliveredAlerts(ctx)
	if err != nil {
		return res, fmt.Errorf("list pending users: %w", err)
	}

	for _, userID := range userIDs {
		n, err := d.deliverUser(ctx, userID)
		res.Delivered += n
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("deliver user %s: %v", userID, err))
			d.log.Warn("delivery failed", "user_id", userID, "notifier", d.notifier.Name(), "error", err)
		}
	}
	return res, nil
}

func (d *Deliverer) deliverUser(ctx context.Context, userID string) (int, error) {
	user, err := d.users.GetUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("load user: %w", err)
	}
	alerts, err := d.store.ListUndeliveredAlerts(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list alerts: %w", err)
	}

	byReport := make(map[string][]domain.Alert)
	for _, a := range alerts {
		byReport[a.ReportID] = append(byReport[a.ReportID], a)
	}
	reportIDs := make([]string, 0, len(byReport))
	for id := range byReport {
		reportIDs = append(reportIDs, id)
	}
	sort.Strings(reportIDs)

	delivered := 0
	for _, reportID := range reportIDs {
		batch := byReport[reportID]
		n, err := d.notify(ctx, *user, reportID, batch)
		if err != nil {
			return delivered, err
		}
		delivered += n
	}
	return delivered, nil
}

func (d *Deliverer) notify(ctx context.Context, user domain.User, reportID string, alerts []domain.Alert) (int, error) {
	cveIDs := make([]string, 0, len(alerts))
	changeIDs := make([]string, 0, len(alerts))
	alertIDs := make([]string, 0, len(alerts))
	for _, a := range alerts {
		cveIDs = append(cveIDs, a.CVEID)
		changeIDs = append(changeIDs, a.ChangeID)
		alertIDs = append(alertIDs, a.ID)
	}

	cves, err := d.cves.GetCVEs(ctx, cveIDs)
	if err != nil {
		return 0, fmt.Errorf("load cves: %w", err)
	}
	changes, err := d.store.GetChanges(ctx, changeIDs)
	if err != nil {
		return 0, fmt.Errorf("load changes: %w", err)
	}

	n := domain.Notification{User: user, ReportID: reportID, Alerts: alerts, CVEs: cves, Changes: changes}
	if err := d.notifier.Notify(ctx, n); err != nil {
		return 0, err
	}
	if err := d.store.MarkAlertsDelivered(ctx, alertIDs, d.now().UTC()); err != nil {
		return 0, fmt.Errorf("mark delivered: %w", err)
	}

	telemetry.AlertsDelivered.WithLabelValues(d.notifier.Name()).Add(float64(len(alerts)))
	return len(alerts), nil
}
