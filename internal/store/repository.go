/**
 * @description
 * This file implements the data access layer for SubWatch.
 * It contains all the SQL queries for the `subscriptions` table used by the
 * reminder job and the dashboard API.
 */
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Cxsmxnaut/subwatch/internal/domain"
)

// ErrSubscriptionNotFound is returned when a subscription does not exist for the caller.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// ErrSubscriptionLimitReached is returned when the user already stores the maximum number of subscriptions.
var ErrSubscriptionLimitReached = errors.New("subscription limit reached")

const subscriptionColumns = `
	id::text, user_id::text, name, price::float8, billing_cycle,
	to_char(renewal_date, 'YYYY-MM-DD'), COALESCE(cancel_url, ''), created_at, updated_at`

// Repository handles database operations for subscriptions.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ListByRenewalDate returns every subscription renewing exactly on date (YYYY-MM-DD).
func (r *Repository) ListByRenewalDate(ctx context.Context, date string) ([]domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE renewal_date = $1::date
	`
	rows, err := r.db.Query(ctx, query, date)
	if err != nil {
		return nil, err
	}
	return scanSubscriptions(rows)
}

// ListByUser returns a user's subscriptions ordered by renewal date.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY renewal_date ASC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return scanSubscriptions(rows)
}

// CreateWithinLimit inserts a subscription unless the user already has limit rows.
// A per-user advisory lock serialises concurrent creates, so the count and the
// insert cannot interleave.
func (r *Repository) CreateWithinLimit(ctx context.Context, sub domain.Subscription, limit int) (*domain.Subscription, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, sub.UserID); err != nil {
		return nil, fmt.Errorf("failed to lock user subscriptions: %w", err)
	}

	var count int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM subscriptions WHERE user_id = $1`, sub.UserID).Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	if count >= limit {
		return nil, ErrSubscriptionLimitReached
	}

	query := `
		INSERT INTO subscriptions (user_id, name, price, billing_cycle, renewal_date, cancel_url)
		VALUES ($1, $2, $3, $4, $5::date, NULLIF($6, ''))
		RETURNING ` + subscriptionColumns

	var created domain.Subscription
	err = scanSubscription(tx.QueryRow(ctx, query,
		sub.UserID,
		sub.Name,
		sub.Price,
		string(sub.BillingCycle),
		sub.RenewalDate,
		sub.CancelURL,
	), &created)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit subscription: %w", err)
	}
	return &created, nil
}

// Delete removes a subscription owned by userID.
func (r *Repository) Delete(ctx context.Context, userID, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM subscriptions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func scanSubscriptions(rows pgx.Rows) ([]domain.Subscription, error) {
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		var sub domain.Subscription
		if err := scanSubscription(rows, &sub); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return subs, nil
}

func scanSubscription(row pgx.Row, sub *domain.Subscription) error {
	var cycle string
	err := row.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.Name,
		&sub.Price,
		&cycle,
		&sub.RenewalDate,
		&sub.CancelURL,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return err
	}
	sub.BillingCycle = domain.BillingCycle(cycle)
	return nil
}
