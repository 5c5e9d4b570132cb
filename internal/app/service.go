/**
 * @description
 * This file contains the business logic behind the dashboard: listing, adding and
 * deleting a user's subscriptions and computing their spend summary.
 */
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Cxsmxnaut/subwatch/internal/domain"
	"github.com/Cxsmxnaut/subwatch/internal/store"
)

const nearRenewalDays = 7

// ErrFreeTierLimitReached is returned when a free user tries to store more subscriptions than allowed.
var ErrFreeTierLimitReached = errors.New("free tier subscription limit reached")

// ValidationError describes a rejected field of a create request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Repository defines the subscription operations the dashboard service needs.
type Repository interface {
	ListByUser(ctx context.Context, userID string) ([]domain.Subscription, error)
	CreateWithinLimit(ctx context.Context, sub domain.Subscription, limit int) (*domain.Subscription, error)
	Delete(ctx context.Context, userID, id string) error
}

// CreateSubscriptionInput is the payload of the add-subscription form.
type CreateSubscriptionInput struct {
	Name         string      `json:"name" validate:"required,max=200"`
	Price        json.Number `json:"price" validate:"required,numeric"`
	BillingCycle string      `json:"billing_cycle" validate:"required,oneof=monthly yearly"`
	RenewalDate  string      `json:"renewal_date" validate:"required,datetime=2006-01-02"`
	CancelURL    string      `json:"cancel_url" validate:"omitempty,url,startswith=http"`
}

// Service provides the business logic for subscription management.
type Service struct {
	repo          Repository
	validate      *validator.Validate
	freeTierLimit int
	location      *time.Location
	now           func() time.Time
}

// NewService creates a new subscription service.
func NewService(repo Repository, freeTierLimit int, location *time.Location) *Service {
	if freeTierLimit < 1 {
		freeTierLimit = 3
	}
	if location == nil {
		location = time.UTC
	}
	return &Service{
		repo:          repo,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		freeTierLimit: freeTierLimit,
		location:      location,
		now:           time.Now,
	}
}

// WithClock replaces the service's clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// FreeTierLimit is the maximum number of subscriptions a free user may store.
func (s *Service) FreeTierLimit() int {
	return s.freeTierLimit
}

// List returns the user's subscriptions ordered by renewal date.
func (s *Service) List(ctx context.Context, userID string) ([]domain.Subscription, error) {
	subs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	if subs == nil {
		subs = []domain.Subscription{}
	}
	return subs, nil
}

// Create validates the input and stores a new subscription, enforcing the free-tier cap.
func (s *Service) Create(ctx context.Context, userID string, input CreateSubscriptionInput) (*domain.Subscription, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.CancelURL = strings.TrimSpace(input.CancelURL)
	input.RenewalDate = strings.TrimSpace(input.RenewalDate)

	if err := s.validate.Struct(input); err != nil {
		return nil, toValidationError(err)
	}

	price, err := strconv.ParseFloat(input.Price.String(), 64)
	if err != nil {
		return nil, &ValidationError{Field: "price", Message: "price must be a number"}
	}
	if price < 0 {
		return nil, &ValidationError{Field: "price", Message: "price must not be negative"}
	}

	sub := domain.Subscription{
		UserID:       userID,
		Name:         input.Name,
		Price:        math.Round(price*100) / 100,
		BillingCycle: domain.BillingCycle(input.BillingCycle),
		RenewalDate:  input.RenewalDate,
		CancelURL:    input.CancelURL,
	}
	created, err := s.repo.CreateWithinLimit(ctx, sub, s.freeTierLimit)
	if errors.Is(err, store.ErrSubscriptionLimitReached) {
		return nil, ErrFreeTierLimitReached
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	return created, nil
}

// Delete removes one of the user's subscriptions.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.repo.Delete(ctx, userID, id)
}

// Summary computes the dashboard totals for a user.
func (s *Service) Summary(ctx context.Context, userID string) (*domain.SpendSummary, error) {
	subs, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now().In(s.location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)

	summary := &domain.SpendSummary{
		SubscriptionCount: len(subs),
		FreeLimitReached:  len(subs) >= s.freeTierLimit,
		Upcoming:          make([]domain.SubscriptionRenewal, 0, len(subs)),
	}

	var monthly, yearly float64
	var next *domain.Subscription
	var nextRenewal time.Time

	for i := range subs {
		sub := subs[i]
		switch sub.BillingCycle {
		case domain.BillingCycleMonthly:
			monthly += sub.Price
		case domain.BillingCycleYearly:
			yearly += sub.Price
		}

		renewal, err := sub.RenewalTime(s.location)
		if err != nil {
			continue
		}
		days := DaysUntil(now, renewal)
		summary.Upcoming = append(summary.Upcoming, domain.SubscriptionRenewal{
			Subscription:     sub,
			DaysUntilRenewal: days,
			NearRenewal:      days >= 0 && days <= nearRenewalDays,
		})

		if !renewal.Before(today) && (next == nil || renewal.Before(nextRenewal)) {
			next = &subs[i]
			nextRenewal = renewal
		}
	}

	summary.MonthlyTotal = roundCents(monthly)
	summary.YearlyTotal = roundCents(monthly*12 + yearly)
	if next != nil {
		days := DaysUntil(now, nextRenewal)
		summary.NextRenewal = next
		summary.DaysUntilNextRenewal = &days
	}
	return summary, nil
}

// DaysUntil returns the whole days from now until renewal, rounded up.
func DaysUntil(now, renewal time.Time) int {
	return int(math.Ceil(renewal.Sub(now).Hours() / 24))
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func toValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}

	fe := fieldErrs[0]
	field := jsonFieldName(fe.Field())
	var message string
	switch fe.Tag() {
	case "required":
		message = field + " is required"
	case "numeric":
		message = field + " must be a number"
	case "oneof":
		message = field + " must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "datetime":
		message = field + " must be a date in YYYY-MM-DD format"
	case "url", "startswith":
		message = field + " must be an http(s) URL"
	case "max":
		message = field + " must be at most " + fe.Param() + " characters"
	default:
		message = field + " is invalid"
	}
	return &ValidationError{Field: field, Message: message}
}

func jsonFieldName(structField string) string {
	switch structField {
	case "BillingCycle":
		return "billing_cycle"
	case "RenewalDate":
		return "renewal_date"
	case "CancelURL":
		return "cancel_url"
	default:
		return strings.ToLower(structField)
	}
}
