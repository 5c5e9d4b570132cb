/**
 * @description
 * Renewal reminder job: finds subscriptions renewing in 3, 2 or 1 days,
 * resolves their owners and emails them a heads-up.
 *
 * A failed store query aborts the run. Anything that goes wrong for a single
 * subscription (lookup, invalid row, delivery) is logged and the run moves on.
 */
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Cxsmxnaut/subwatch/internal/domain"
	"github.com/Cxsmxnaut/subwatch/pkg/emailclient"
)

const (
	routingKeyReminderSent   = "reminder.sent"
	routingKeyReminderFailed = "reminder.failed"
)

// SubscriptionStore is the read side of the subscriptions table the job needs.
type SubscriptionStore interface {
	ListByRenewalDate(ctx context.Context, date string) ([]domain.Subscription, error)
}

// UserDirectory resolves subscription owners.
type UserDirectory interface {
	GetUserByID(ctx context.Context, userID string) (*domain.User, error)
}

// EmailSender delivers rendered reminders.
type EmailSender interface {
	Send(ctx context.Context, email emailclient.Email) (string, error)
}

// EventPublisher publishes reminder outcomes to the message bus.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

// ReminderLedger remembers which reminders were already sent.
type ReminderLedger interface {
	Claim(ctx context.Context, subscriptionID string, offset int, date string) (bool, error)
	Release(ctx context.Context, subscriptionID string, offset int, date string) error
}

// StoreQueryError is returned when the subscriptions store cannot be queried.
// It aborts the whole run.
type StoreQueryError struct {
	Date string
	Err  error
}

func (e *StoreQueryError) Error() string {
	return fmt.Sprintf("failed to query subscriptions renewing on %s: %v", e.Date, e.Err)
}

func (e *StoreQueryError) Unwrap() error {
	return e.Err
}

// ReminderOptions tunes a ReminderNotifier. Ledger and Publisher are optional.
type ReminderOptions struct {
	From        string
	Location    *time.Location
	Concurrency int
	Ledger      ReminderLedger
	Publisher   EventPublisher
	Exchange    string
}

// ReminderNotifier runs the renewal reminder job.
type ReminderNotifier struct {
	store  SubscriptionStore
	users  UserDirectory
	mailer EmailSender
	logger *slog.Logger
	opts   ReminderOptions
	now    func() time.Time
}

// NewReminderNotifier creates a notifier with the given collaborators.
func NewReminderNotifier(store SubscriptionStore, users UserDirectory, mailer EmailSender, logger *slog.Logger, opts ReminderOptions) *ReminderNotifier {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &ReminderNotifier{
		store:  store,
		users:  users,
		mailer: mailer,
		logger: logger,
		opts:   opts,
		now:    time.Now,
	}
}

// WithClock replaces the notifier's clock.
func (n *ReminderNotifier) WithClock(now func() time.Time) *ReminderNotifier {
	n.now = now
	return n
}

type deliveryOutcome int

const (
	outcomeSent deliveryOutcome = iota
	outcomeSkipped
	outcomeFailed
	outcomeDuplicate
)

// Run executes one reminder pass. The returned summary's Count is the number of
// reminders identified, whether or not they were delivered.
func (n *ReminderNotifier) Run(ctx context.Context) (domain.ReminderSummary, error) {
	now := n.now().In(n.opts.Location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, n.opts.Location)

	events, err := n.collect(ctx, today)
	if err != nil {
		reminderRunsTotal.WithLabelValues("error").Inc()
		return domain.ReminderSummary{}, err
	}

	n.logger.Info("found subscriptions needing reminders", "count", len(events))

	outcomes := make([]deliveryOutcome, len(events))
	if n.opts.Concurrency == 1 {
		for i, event := range events {
			outcomes[i] = n.deliver(ctx, event)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(n.opts.Concurrency)
		for i, event := range events {
			i, event := i, event
			g.Go(func() error {
				outcomes[i] = n.deliver(ctx, event)
				return nil
			})
		}
		_ = g.Wait()
	}

	summary := domain.ReminderSummary{Count: len(events)}
	for _, outcome := range outcomes {
		switch outcome {
		case outcomeSent:
			summary.Sent++
		case outcomeSkipped:
			summary.Skipped++
		case outcomeFailed:
			summary.Failed++
		case outcomeDuplicate:
			summary.Duplicates++
		}
	}

	reminderRunsTotal.WithLabelValues("ok").Inc()
	n.logger.Info("reminder run finished",
		"count", summary.Count,
		"sent", summary.Sent,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"duplicates", summary.Duplicates,
	)
	return summary, nil
}

// collect builds the reminder events for every lookahead offset, in offset order.
func (n *ReminderNotifier) collect(ctx context.Context, today time.Time) ([]domain.ReminderEvent, error) {
	var events []domain.ReminderEvent

	for _, days := range domain.ReminderOffsets {
		targetDate := today.AddDate(0, 0, days).Format(domain.DateLayout)
		n.logger.Info("checking for subscriptions renewing", "renewal_date", targetDate, "days_until_renewal", days)

		subs, err := n.store.ListByRenewalDate(ctx, targetDate)
		if err != nil {
			n.logger.Error("failed to query subscriptions", "renewal_date", targetDate, "error", err)
			return nil, &StoreQueryError{Date: targetDate, Err: err}
		}

		for _, sub := range subs {
			event := domain.ReminderEvent{
				Subscription:     sub,
				DaysUntilRenewal: days,
				TargetDate:       targetDate,
			}

			if err := sub.Validate(); err != nil {
				n.logger.Warn("skipping invalid subscription", "subscription_id", sub.ID, "error", err)
				events = append(events, event)
				continue
			}

			user, err := n.users.GetUserByID(ctx, sub.UserID)
			if err != nil {
				n.logger.Error("failed to resolve subscription owner", "subscription_id", sub.ID, "user_id", sub.UserID, "error", err)
			} else {
				event.User = user
			}
			events = append(events, event)
		}
	}

	return events, nil
}

// deliver sends one reminder. It never returns an error: every failure is
// contained to the event it happened on.
func (n *ReminderNotifier) deliver(ctx context.Context, event domain.ReminderEvent) (outcome deliveryOutcome) {
	sub := event.Subscription
	logger := n.logger.With("subscription_id", sub.ID, "days_until_renewal", event.DaysUntilRenewal)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("reminder delivery panicked", "panic", fmt.Sprint(r))
			outcome = outcomeFailed
		}
		remindersTotal.WithLabelValues(outcome.String()).Inc()
	}()

	if !event.User.HasEmail() {
		logger.Info("no email found for subscription")
		return outcomeSkipped
	}
	email := event.User.Email

	claimed := false
	if n.opts.Ledger != nil {
		ok, err := n.opts.Ledger.Claim(ctx, sub.ID, event.DaysUntilRenewal, event.TargetDate)
		switch {
		case err != nil:
			logger.Warn("reminder ledger unavailable, sending anyway", "error", err)
		case !ok:
			logger.Info("reminder already sent for this renewal", "renewal_date", event.TargetDate)
			return outcomeDuplicate
		default:
			claimed = true
		}
	}

	message, err := renderReminder(event)
	if err != nil {
		logger.Error("failed to render reminder", "error", err)
		n.release(ctx, logger, event, claimed)
		return outcomeFailed
	}

	logger.Info("sending reminder", "email", email, "subscription", sub.Name)
	messageID, err := n.mailer.Send(ctx, emailclient.Email{
		From:    n.opts.From,
		To:      []string{email},
		Subject: message.Subject,
		HTML:    message.HTML,
	})
	if err != nil {
		logger.Error("failed to send reminder", "email", email, "error", err)
		n.release(ctx, logger, event, claimed)
		n.publish(ctx, logger, routingKeyReminderFailed, event, "", err)
		return outcomeFailed
	}

	logger.Info("reminder sent", "email", email, "message_id", messageID)
	n.publish(ctx, logger, routingKeyReminderSent, event, messageID, nil)
	return outcomeSent
}

func (n *ReminderNotifier) release(ctx context.Context, logger *slog.Logger, event domain.ReminderEvent, claimed bool) {
	if !claimed {
		return
	}
	if err := n.opts.Ledger.Release(ctx, event.Subscription.ID, event.DaysUntilRenewal, event.TargetDate); err != nil {
		logger.Warn("failed to release reminder claim", "error", err)
	}
}

func (n *ReminderNotifier) publish(ctx context.Context, logger *slog.Logger, routingKey string, event domain.ReminderEvent, messageID string, sendErr error) {
	if n.opts.Publisher == nil {
		return
	}

	payload := domain.ReminderOutcomeEvent{
		SubscriptionID:   event.Subscription.ID,
		UserID:           event.Subscription.UserID,
		Email:            event.User.Email,
		DaysUntilRenewal: event.DaysUntilRenewal,
		RenewalDate:      event.Subscription.RenewalDate,
		MessageID:        messageID,
		OccurredAt:       n.now().UTC(),
	}
	if sendErr != nil {
		payload.Error = sendErr.Error()
	}

	if err := n.opts.Publisher.Publish(ctx, n.opts.Exchange, routingKey, payload); err != nil {
		logger.Warn("failed to publish reminder event", "routing_key", routingKey, "error", err)
	}
}

func (o deliveryOutcome) String() string {
	switch o {
	case outcomeSent:
		return "sent"
	case outcomeSkipped:
		return "skipped"
	case outcomeFailed:
		return "failed"
	case outcomeDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}
