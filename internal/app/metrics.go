package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// subwatch_reminders_total counts reminder deliveries by outcome
	// (sent, skipped, failed, duplicate).
	remindersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subwatch_reminders_total",
			Help: "Renewal reminders processed, by outcome.",
		},
		[]string{"outcome"},
	)

	reminderRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subwatch_reminder_runs_total",
			Help: "Renewal reminder runs, by result.",
		},
		[]string{"result"},
	)
)
