/**
 * @description
 * Reminder models used by the renewal reminder job.
 */
package domain

import "time"

// ReminderOffsets are the lookahead days, in the order the job processes them.
var ReminderOffsets = []int{3, 2, 1}

// ReminderEvent pairs a subscription snapshot with its resolved owner for one run.
// User is nil when the owner could not be resolved.
type ReminderEvent struct {
	Subscription     Subscription
	User             *User
	DaysUntilRenewal int
	TargetDate       string
}

// ReminderSummary reports the outcome of one reminder run.
// Count is every event identified, whatever happened to its delivery.
type ReminderSummary struct {
	Count      int
	Sent       int
	Skipped    int
	Failed     int
	Duplicates int
}

// ReminderOutcomeEvent is published after each delivery attempt.
type ReminderOutcomeEvent struct {
	SubscriptionID   string    `json:"subscription_id"`
	UserID           string    `json:"user_id"`
	Email            string    `json:"email,omitempty"`
	DaysUntilRenewal int       `json:"days_until_renewal"`
	RenewalDate      string    `json:"renewal_date"`
	MessageID        string    `json:"message_id,omitempty"`
	Error            string    `json:"error,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}
