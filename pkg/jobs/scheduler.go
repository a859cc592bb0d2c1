package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Task is a periodic unit of work triggered by the scheduler.
type Task func(ctx context.Context, now time.Time) error

// Scheduler runs named tasks on cron specs. Overlapping runs of the same task are skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler constructs an idle scheduler.
func NewScheduler(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register schedules task under spec (standard five-field cron or descriptors such as "@every 15m").
func (s *Scheduler) Register(name, spec string, task Task) error {
	_, err := s.cron.AddFunc(spec, func() {
		start := time.Now().UTC()
		if err := task(s.ctx, start); err != nil {
			s.logger.Warn("scheduled task failed", zap.String("task", name), zap.Error(err))
			return
		}
		s.logger.Debug("scheduled task finished", zap.String("task", name), zap.Duration("took", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	s.logger.Sugar().Infow("task scheduled", "task", name, "spec", spec)
	return nil
}

// Start begins firing registered tasks.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for running tasks to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}
