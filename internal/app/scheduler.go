/**
 * @description
 * Cron scheduler setup for scheduled jobs.
 */
package app

import (
	"context"
	"log/slog"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/Cxsmxnaut/subwatch/internal/config"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	logger *slog.Logger
	config config.Config
}

// NewScheduler creates a new scheduler instance. Schedules are evaluated in the
// reminder time zone so "today" matches the dates the job computes.
func NewScheduler(jobs *Jobs, logger *slog.Logger, cfg config.Config) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(
		cron.WithLocation(cfg.Location()),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		logger: logger,
		config: cfg,
	}
}

// Start registers the jobs and starts the cron scheduler. An empty or "off"
// schedule leaves the reminder job to the HTTP trigger.
func (s *Scheduler) Start() error {
	schedule := strings.TrimSpace(s.config.ReminderJobSchedule)
	if schedule == "" || strings.EqualFold(schedule, "off") {
		s.logger.Info("renewal reminder job not scheduled; HTTP trigger only")
	} else {
		if _, err := s.cron.AddFunc(schedule, s.jobs.SendRenewalReminders); err != nil {
			s.logger.Error("failed to schedule renewal reminder job", "schedule", schedule, "error", err)
			return err
		}
		s.logger.Info("scheduled renewal reminder job", "schedule", schedule)
	}

	s.cron.Start()
	return nil
}

// Entries returns the number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
