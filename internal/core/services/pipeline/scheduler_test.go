package pipeline

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
	"github.com/lcalzada-xor/cvewatch/internal/logger"
)

type tickCounter struct{ runs atomic.Int32 }

func (c *tickCounter) RunCycle(ctx context.Context) (*domain.CycleReport, error) {
	c.runs.Add(1)
	return &domain.CycleReport{ReportID: "r", Status: domain.StatusCompleted}, nil
}

func TestScheduler_RunsImmediatelyAndOnTick(t *testing.T) {
	runner := &tickCounter{}
	s := NewScheduler(runner, 10*time.Millisecond, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return runner.runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
