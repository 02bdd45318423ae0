package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
	"github.com/lcalzada-xor/cvewatch/internal/core/ports"
	"github.com/lcalzada-xor/cvewatch/internal/core/services/alerts"
	"github.com/lcalzada-xor/cvewatch/internal/core/services/changes"
	"github.com/lcalzada-xor/cvewatch/internal/logger"
	"github.com/lcalzada-xor/cvewatch/internal/telemetry"
)

// DetectStage consumes the feed records staged for a report.
type DetectStage interface {
	Run(ctx context.Context, reportID string) (changes.StageResult, error)
}

// DispatchStage consumes undispatched changes.
type DispatchStage interface {
	Run(ctx context.Context) (alerts.DispatchResult, error)
}

// DeliverStage consumes undelivered alerts.
type DeliverStage interface {
	Run(ctx context.Context) (alerts.DeliveryResult, error)
}

// Options tunes the refresh stage.
type Options struct {
	// FeedTimeout bounds one feed fetch.
	FeedTimeout time.Duration
	// Lookback is the window fetched when no previous cycle committed one.
	Lookback time.Duration
}

// Orchestrator runs the refresh, detect, dispatch and deliver stages in
// order. Each stage reads its input from the store and commits before the
// next one starts, so a cycle interrupted by a crash resumes at the stage
// recorded in its report.
type Orchestrator struct {
	store      ports.CycleStore
	feed       ports.FeedProvider
	detector   DetectStage
	dispatcher DispatchStage
	deliverer  DeliverStage
	opts       Options
	log        *logger.Logger
	now        func() time.Time

	mu sync.Mutex
}

// NewOrchestrator creates an orchestrator running the stages against store.
func NewOrchestrator(
	store ports.CycleStore,
	feed ports.FeedProvider,
	detector DetectStage,
	dispatcher DispatchStage,
	deliverer DeliverStage,
	opts Options,
	log *logger.Logger,
) *Orchestrator {
	if opts.FeedTimeout <= 0 {
		opts.FeedTimeout = 2 * time.Minute
	}
	if opts.Lookback <= 0 {
		opts.Lookback = 24 * time.Hour
	}
	return &Orchestrator{
		store:      store,
		feed:       feed,
		detector:   detector,
		dispatcher: dispatcher,
		deliverer:  deliverer,
		opts:       opts,
		log:        log.Named("pipeline"),
		now:        time.Now,
	}
}

// RunCycle resumes the running cycle, if any, or starts a new one. ctx is
// checked between stages only: once a stage starts it runs to completion.
// It returns domain.ErrCycleInProgress when another cycle holds the lock.
func (o *Orchestrator) RunCycle(ctx context.Context) (*domain.CycleReport, error) {
	if !o.mu.TryLock() {
		return nil, domain.ErrCycleInProgress
	}
	defer o.mu.Unlock()

	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.cycle")
	defer span.End()

	report, err := o.openReport(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("report.id", report.ID), attribute.String("report.stage", string(report.Stage)))

	out := &domain.CycleReport{ReportID: report.ID, Status: report.Status}
	for report.Stage != domain.StageDone {
		if err := ctx.Err(); err != nil {
			o.log.Warn("cycle interrupted between stages", "report_id", report.ID, "stage", report.Stage)
			out.Errors = append(out.Errors, report.Errors...)
			return out, err
		}

		stage := report.Stage
		start := time.Now()
		err := o.runStage(context.WithoutCancel(ctx), report, out)
		telemetry.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			out.Status = report.Status
			out.Errors = append(out.Errors, report.Errors...)
			return out, err
		}
	}

	out.Status = report.Status
	out.ChangesDetected = report.ChangesDetected
	out.AlertsCreated = report.AlertsCreated
	out.Errors = append(out.Errors, report.Errors...)
	telemetry.CyclesTotal.WithLabelValues(string(report.Status)).Inc()
	o.log.Info("cycle finished",
		"report_id", report.ID,
		"status", report.Status,
		"changes", report.ChangesDetected,
		"alerts", report.AlertsCreated,
		"delivered", out.AlertsDelivered,
		"errors", len(report.Errors))
	return out, nil
}

func (o *Orchestrator) openReport(ctx context.Context) (*domain.Report, error) {
	report, err := o.store.LatestRunningReport(ctx)
	if err == nil {
		o.log.Info("resuming cycle", "report_id", report.ID, "stage", report.Stage)
		return report, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("load running report: %w", err)
	}

	report = &domain.Report{
		ID:        uuid.NewString(),
		Stage:     domain.StageRefresh,
		Status:    domain.StatusRunning,
		StartedAt: o.now().UTC(),
	}
	if err := o.store.CreateReport(ctx, *report); err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	o.log.Info("cycle started", "report_id", report.ID)
	return report, nil
}

func (o *Orchestrator) runStage(ctx context.Context, report *domain.Report, out *domain.CycleReport) error {
	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.stage."+string(report.Stage))
	defer span.End()

	switch report.Stage {
	case domain.StageRefresh:
		return o.refresh(ctx, report)

	case domain.StageDetect:
		res, err := o.detector.Run(ctx, report.ID)
		if err != nil {
			return o.keepRunning(ctx, report, fmt.Errorf("detect: %w", err))
		}
		report.ChangesDetected += res.Changes
		report.Errors = append(report.Errors, res.Errors...)

	case domain.StageDispatch:
		res, err := o.dispatcher.Run(ctx)
		report.AlertsCreated += len(res.Alerts)
		report.Errors = append(report.Errors, res.Errors...)
		if err != nil {
			return o.keepRunning(ctx, report, fmt.Errorf("dispatch: %w", err))
		}

	case domain.StageDeliver:
		res, err := o.deliverer.Run(ctx)
		out.AlertsDelivered += res.Delivered
		report.Errors = append(report.Errors, res.Errors...)
		if err != nil {
			return o.keepRunning(ctx, report, fmt.Errorf("deliver: %w", err))
		}
	}

	return o.advance(ctx, report)
}

func (o *Orchestrator) refresh(ctx context.Context, report *domain.Report) error {
	since, err := o.store.FeedWatermark(ctx)
	if err != nil {
		return o.keepRunning(ctx, report, fmt.Errorf("load feed watermark: %w", err))
	}
	until := o.now().UTC()
	if since.IsZero() {
		since = until.Add(-o.opts.Lookback)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, o.opts.FeedTimeout)
	snapshots, err := o.feed.Fetch(fetchCtx, since, until)
	cancel()
	if err != nil {
		err = fmt.Errorf("%w: %v", domain.ErrFeedUnavailable, err)
		o.fail(ctx, report, err)
		return err
	}

	report.FeedSince = since
	report.FeedUntil = until
	report.RecordsFetched = len(snapshots)
	report.Stage = domain.StageDetect
	if err := o.store.CommitRefresh(ctx, *report, snapshots); err != nil {
		report.Stage = domain.StageRefresh
		return o.keepRunning(ctx, report, fmt.Errorf("commit refresh: %w", err))
	}

	telemetry.FeedRecords.Add(float64(len(snapshots)))
	o.log.Info("feed refreshed", "report_id", report.ID, "since", since, "until", until, "records", len(snapshots))
	return nil
}

func (o *Orchestrator) advance(ctx context.Context, report *domain.Report) error {
	next := report.Stage.Next()
	report.Stage = next
	if next == domain.StageDone {
		finished := o.now().UTC()
		report.FinishedAt = &finished
		report.Status = domain.StatusCompleted
		if len(report.Errors) > 0 {
			report.Status = domain.StatusPartial
		}
	}
	if err := o.store.UpdateReport(ctx, *report); err != nil {
		return fmt.Errorf("commit stage %s: %w", next, err)
	}
	return nil
}

// fail ends the cycle before anything was staged. Committed state from
// earlier cycles is untouched.
func (o *Orchestrator) fail(ctx context.Context, report *domain.Report, cause error) {
	finished := o.now().UTC()
	report.Status = domain.StatusFailed
	report.FinishedAt = &finished
	report.Errors = append(report.Errors, cause.Error())
	if err := o.store.UpdateReport(ctx, *report); err != nil {
		o.log.Error("cannot record failed cycle", "report_id", report.ID, "error", err)
	}
	telemetry.CyclesTotal.WithLabelValues(string(domain.StatusFailed)).Inc()
	o.log.Error("cycle aborted", "report_id", report.ID, "error", cause)
}

// keepRunning records a storage failure and leaves the report resumable at
// its current stage.
func (o *Orchestrator) keepRunning(ctx context.Context, report *domain.Report, cause error) error {
	report.Errors = append(report.Errors, cause.Error())
	if err := o.store.UpdateReport(ctx, *report); err != nil {
		o.log.Error("cannot record stage failure", "report_id", report.ID, "error", err)
	}
	o.log.Error("stage failed, cycle will resume", "report_id", report.ID, "stage", report.Stage, "error", cause)
	return cause
}
