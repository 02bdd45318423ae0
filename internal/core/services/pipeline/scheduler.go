package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
	"github.com/lcalzada-xor/cvewatch/internal/logger"
)

// CycleRunner runs one notification cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) (*domain.CycleReport, error)
}

// Scheduler runs cycles on a fixed interval until its context is cancelled.
type Scheduler struct {
	runner   CycleRunner
	interval time.Duration
	log      *logger.Logger
}

// NewScheduler creates a scheduler triggering runner every interval.
func NewScheduler(runner CycleRunner, interval time.Duration, log *logger.Logger) *Scheduler {
	return &Scheduler{runner: runner, interval: interval, log: log.Named("scheduler")}
}

// Start runs a cycle immediately and then once per interval. It blocks
// until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info("scheduler started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	report, err := s.runner.RunCycle(ctx)
	switch {
	case errors.Is(err, domain.ErrCycleInProgress):
		s.log.Debug("previous cycle still running, skipping tick")
	case errors.Is(err, context.Canceled):
	case err != nil:
		s.log.Error("cycle failed", "error", err)
	default:
		s.log.Debug("tick complete", "report_id", report.ReportID, "status", report.Status)
	}
}
