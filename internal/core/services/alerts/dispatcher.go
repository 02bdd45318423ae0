package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
	"github.com/lcalzada-xor/cvewatch/internal/core/ports"
	"github.com/lcalzada-xor/cvewatch/internal/logger"
	"github.com/lcalzada-xor/cvewatch/internal/telemetry"
)

const changeBatchSize = 100

// DispatchResult is the outcome of dispatching a batch of changes.
type DispatchResult struct {
	Alerts     []domain.Alert
	Dispatched int
	// Errors holds per-user and per-change failures. They never abort the
	// batch; the affected changes stay undispatched for a follow-up run.
	Errors []string
}

// Dispatcher turns changes into per-user alerts.
type Dispatcher struct {
	users    ports.SubscriptionRepository
	cves     ports.CVERepository
	store    ports.CycleStore
	expander ports.KeyExpander
	workers  int
	pageSize int
	log      *logger.Logger
	now      func() time.Time
}

// NewDispatcher creates a dispatcher evaluating users in pages of pageSize
// across the given number of workers.
func NewDispatcher(
	users ports.SubscriptionRepository,
	cves ports.CVERepository,
	store ports.CycleStore,
	expander ports.KeyExpander,
	workers, pageSize int,
	log *logger.Logger,
) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if pageSize < 1 {
		pageSize = 200
	}
	return &Dispatcher{
		users:    users,
		cves:     cves,
		store:    store,
		expander: expander,
		workers:  workers,
		pageSize: pageSize,
		log:      log.Named("dispatcher"),
		now:      time.Now,
	}
}

// Dispatch creates the alerts for a single change.
func (d *Dispatcher) Dispatch(ctx context.Context, change domain.Change) (DispatchResult, error) {
	return d.DispatchBatch(ctx, d.expander.Session(), []domain.Change{change})
}

// Run dispatches every undispatched change, whatever cycle produced it.
func (d *Dispatcher) Run(ctx context.Context) (DispatchResult, error) {
	var total DispatchResult
	session := d.expander.Session()
	afterID := ""
	for {
		batch, err := d.store.ListUndispatchedChanges(ctx, afterID, changeBatchSize)
		if err != nil {
			return total, fmt.Errorf("list undispatched changes: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		res, err := d.DispatchBatch(ctx, session, batch)
		total.Alerts = append(total.Alerts, res.Alerts...)
		total.Dispatched += res.Dispatched
		total.Errors = append(total.Errors, res.Errors...)
		if err != nil {
			return total, err
		}
		if len(batch) < changeBatchSize {
			break
		}
		afterID = batch[len(batch)-1].ID
	}
	return total, nil
}

type target struct {
	change domain.Change
	keys   []string
}

// DispatchBatch scans users page by page and evaluates each user's
// expansion against every change of the batch in parallel. An alert is
// created once per (user, CVE, report); a duplicate insert counts as done.
// A change is marked dispatched only when no user failed.
func (d *Dispatcher) DispatchBatch(ctx context.Context, expander ports.KeyExpander, changes []domain.Change) (DispatchResult, error) {
	var (
		res     DispatchResult
		mu      sync.Mutex
		failed  = make(map[string]bool, len(changes))
		targets = make([]target, 0, len(changes))
	)

	for _, c := range changes {
		cve, err := d.cves.GetCVE(ctx, c.CVEID)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("change %s: load %s: %v", c.ID, c.CVEID, err))
			d.log.Error("cannot load cve for change", "change_id", c.ID, "cve_id", c.CVEID, "error", err)
			continue
		}
		targets = append(targets, target{change: c, keys: cve.MatchKeys})
	}

	userFailed := false
	afterID := ""
	for len(targets) > 0 {
		page, err := d.users.ListUsers(ctx, afterID, d.pageSize)
		if err != nil {
			return res, fmt.Errorf("list users: %w", err)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(d.workers)
		for i := range page {
			user := page[i]
			g.Go(func() error {
				alerts, changeErrs, err := d.evaluate(gctx, expander, &user, targets)

				mu.Lock()
				defer mu.Unlock()
				res.Alerts = append(res.Alerts, alerts...)
				if err != nil {
					userFailed = true
					telemetry.DispatchErrors.Inc()
					res.Errors = append(res.Errors, fmt.Sprintf("user %s: %v", user.ID, err))
					d.log.Warn("user skipped", "user_id", user.ID, "error", err)
				}
				for changeID, cerr := range changeErrs {
					failed[changeID] = true
					telemetry.DispatchErrors.Inc()
					res.Errors = append(res.Errors, fmt.Sprintf("user %s change %s: %v", user.ID, changeID, cerr))
					d.log.Warn("alert not created", "user_id", user.ID, "change_id", changeID, "error", cerr)
				}
				return nil
			})
		}
		// Workers never return errors; failures are collected above.
		_ = g.Wait()

		if len(page) < d.pageSize {
			break
		}
		afterID = page[len(page)-1].ID
	}

	for _, t := range targets {
		if userFailed || failed[t.change.ID] {
			continue
		}
		if err := d.store.MarkChangeDispatched(ctx, t.change.ID); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("change %s: mark dispatched: %v", t.change.ID, err))
			continue
		}
		res.Dispatched++
	}

	telemetry.AlertsCreated.Add(float64(len(res.Alerts)))
	d.log.Info("dispatch batch finished", "changes", len(changes), "dispatched", res.Dispatched, "alerts", len(res.Alerts), "errors", len(res.Errors))
	return res, nil
}

// evaluate tests one user against every target. An empty expansion matches
// nothing.
func (d *Dispatcher) evaluate(ctx context.Context, expander ports.KeyExpander, user *domain.User, targets []target) ([]domain.Alert, map[string]error, error) {
	keys, err := expander.ExpandUser(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	if keys.Cardinality() == 0 {
		return nil, nil, nil
	}

	var (
		alerts []domain.Alert
		errs   map[string]error
	)
	for _, t := range targets {
		if !intersects(keys.Contains, t.keys) {
			continue
		}
		alert := domain.Alert{
			ID:        uuid.NewString(),
			ReportID:  t.change.ReportID,
			UserID:    user.ID,
			CVEID:     t.change.CVEID,
			ChangeID:  t.change.ID,
			CreatedAt: d.now().UTC(),
		}
		created, err := d.store.CreateAlert(ctx, alert)
		if err != nil {
			if errs == nil {
				errs = make(map[string]error)
			}
			errs[t.change.ID] = err
			continue
		}
		if created {
			alerts = append(alerts, alert)
		}
	}
	return alerts, errs, nil
}

func intersects(contains func(...string) bool, keys []string) bool {
	for _, k := range keys {
		if contains(k) {
			return true
		}
	}
	return false
}
