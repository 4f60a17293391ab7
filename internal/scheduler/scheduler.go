package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

type Schedules struct {
	Reconcile string
	Cleanup   string
}

type Scheduler struct {
	cron      *cron.Cron
	jobs      *Jobs
	logger    *slog.Logger
	schedules Schedules
}

func New(jobs *Jobs, logger *slog.Logger, schedules Schedules) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger),
		cron.SkipIfStillRunning(cronLogger),
	))

	return &Scheduler{
		cron:      c,
		jobs:      jobs,
		logger:    logger,
		schedules: schedules,
	}
}

// Start registers every job and starts the cron loop. An unparsable
// schedule is an error and nothing is started.
func (s *Scheduler) Start() error {
	entries := []struct {
		name     string
		schedule string
		run      func()
	}{
		{"reconcile_ledger", s.schedules.Reconcile, s.jobs.ReconcileLedger},
		{"clean_idempotency_cache", s.schedules.Cleanup, s.jobs.CleanIdempotencyCache},
		{"clean_refresh_tokens", s.schedules.Cleanup, s.jobs.CleanExpiredRefreshTokens},
	}

	for _, e := range entries {
		if _, err := s.cron.AddFunc(e.schedule, e.run); err != nil {
			return fmt.Errorf("Scheduler.Start: %s %q: %w", e.name, e.schedule, err)
		}
		s.logger.Info("scheduled job", "job", e.name, "schedule", e.schedule)
	}

	s.cron.Start()
	return nil
}

// Stop halts scheduling. The returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
