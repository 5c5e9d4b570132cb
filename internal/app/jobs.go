/**
 * @description
 * Scheduled job implementations for SubWatch.
 */
package app

import (
	"context"
	"log/slog"

	"github.com/Cxsmxnaut/subwatch/internal/config"
	"github.com/Cxsmxnaut/subwatch/internal/domain"
)

// ReminderRunner runs one renewal reminder pass.
type ReminderRunner interface {
	Run(ctx context.Context) (domain.ReminderSummary, error)
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	reminders ReminderRunner
	logger    *slog.Logger
	config    config.Config
}

// NewJobs creates a new Jobs runner.
func NewJobs(reminders ReminderRunner, logger *slog.Logger, cfg config.Config) *Jobs {
	return &Jobs{
		reminders: reminders,
		logger:    logger,
		config:    cfg,
	}
}

// SendRenewalReminders is the daily job that emails owners of subscriptions renewing soon.
func (j *Jobs) SendRenewalReminders() {
	j.logger.Info("starting renewal reminder job")

	ctx := context.Background()
	if j.config.ReminderJobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.ReminderJobTimeout)
		defer cancel()
	}

	summary, err := j.reminders.Run(ctx)
	if err != nil {
		j.logger.Error("renewal reminder job failed", "error", err)
		return
	}

	j.logger.Info("renewal reminder job finished",
		"count", summary.Count,
		"sent", summary.Sent,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
}
