/**
 * @description
 * This file defines the core domain models for SubWatch subscriptions.
 * It includes the Subscription struct that maps to the `subscriptions` table
 * and the billing cycle enum shared by the reminder job and the dashboard API.
 */
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used for renewal dates.
const DateLayout = "2006-01-02"

// BillingCycle is how often a subscription charges.
type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleYearly  BillingCycle = "yearly"
)

// Valid reports whether c is one of the supported billing cycles.
func (c BillingCycle) Valid() bool {
	return c == BillingCycleMonthly || c == BillingCycleYearly
}

// Subscription represents a user's recurring subscription as stored in the database.
type Subscription struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id"`
	Name         string       `json:"name"`
	Price        float64      `json:"price"`
	BillingCycle BillingCycle `json:"billing_cycle"`
	RenewalDate  string       `json:"renewal_date"` // YYYY-MM-DD
	CancelURL    string       `json:"cancel_url,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Validate checks the invariants every stored subscription must hold.
func (s Subscription) Validate() error {
	var errs []error
	if strings.TrimSpace(s.ID) == "" {
		errs = append(errs, errors.New("id is empty"))
	}
	if strings.TrimSpace(s.UserID) == "" {
		errs = append(errs, errors.New("user_id is empty"))
	}
	if s.Price < 0 {
		errs = append(errs, fmt.Errorf("price %.2f is negative", s.Price))
	}
	if !s.BillingCycle.Valid() {
		errs = append(errs, fmt.Errorf("billing_cycle %q is not supported", s.BillingCycle))
	}
	if _, err := time.Parse(DateLayout, s.RenewalDate); err != nil {
		errs = append(errs, fmt.Errorf("renewal_date %q is not a calendar date", s.RenewalDate))
	}
	return errors.Join(errs...)
}

// RenewalTime parses the renewal date as midnight in loc.
func (s Subscription) RenewalTime(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(DateLayout, s.RenewalDate, loc)
}

// SpendSummary is the aggregate view shown on the dashboard.
type SpendSummary struct {
	MonthlyTotal         float64               `json:"monthly_total"`
	YearlyTotal          float64               `json:"yearly_total"`
	SubscriptionCount    int                   `json:"subscription_count"`
	FreeLimitReached     bool                  `json:"free_limit_reached"`
	NextRenewal          *Subscription         `json:"next_renewal,omitempty"`
	DaysUntilNextRenewal *int                  `json:"days_until_next_renewal,omitempty"`
	Upcoming             []SubscriptionRenewal `json:"subscriptions"`
}

// SubscriptionRenewal pairs a subscription with its distance to the next charge.
type SubscriptionRenewal struct {
	Subscription
	DaysUntilRenewal int  `json:"days_until_renewal"`
	NearRenewal      bool `json:"near_renewal"`
}
