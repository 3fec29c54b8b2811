// Package scheduler runs the periodic housekeeping jobs of the server.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one housekeeping task.
type Job struct {
	Name string
	// Spec is a cron expression or a descriptor such as "@every 1m".
	Spec string
	Run  func(ctx context.Context) error
}

type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	timeout time.Duration
}

// New registers jobs on a cron runner that is not started yet. Each run
// gets its own context bounded by timeout.
func New(logger *slog.Logger, timeout time.Duration, jobs ...Job) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DiscardLogger),
			cron.Recover(cron.DiscardLogger),
		)),
		logger:  logger,
		timeout: timeout,
	}
	for _, job := range jobs {
		if _, err := s.cron.AddFunc(job.Spec, s.wrap(job)); err != nil {
			return nil, fmt.Errorf("scheduler: job %s: %w", job.Name, err)
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop prevents new runs and waits for running jobs or ctx, whichever
// comes first.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}

func (s *Scheduler) wrap(job Job) func() {
	return func() {
		ctx := context.Background()
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		start := time.Now()
		if err := job.Run(ctx); err != nil {
			s.logger.Error("job failed", "job", job.Name, "error", err)
			return
		}
		s.logger.Debug("job finished", "job", job.Name, "duration", time.Since(start))
	}
}
