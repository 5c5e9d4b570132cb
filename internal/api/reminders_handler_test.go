package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cxsmxnaut/subwatch/internal/app"
	"github.com/Cxsmxnaut/subwatch/internal/domain"
	"github.com/Cxsmxnaut/subwatch/pkg/emailclient"
)

type offsetStore struct {
	byDate map[string][]domain.Subscription
}

func (s *offsetStore) ListByRenewalDate(ctx context.Context, date string) ([]domain.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.byDate[date], nil
}

type fixedDirectory struct{}

func (fixedDirectory) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &domain.User{ID: userID, Email: userID + "@x.com"}, nil
}

// hangUpMailer cancels the caller's request while the first email is in flight
// and fails any send whose context is already done, like a real HTTP client.
type hangUpMailer struct {
	mu      sync.Mutex
	hangUp  context.CancelFunc
	sent    []string
	refused int
}

func (m *hangUpMailer) Send(ctx context.Context, email emailclient.Email) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hangUp != nil {
		m.hangUp()
		m.hangUp = nil
	}
	if err := ctx.Err(); err != nil {
		m.refused++
		return "", err
	}
	m.sent = append(m.sent, email.To[0])
	return "msg", nil
}

func TestHandler_SendReminders_CallerDisconnectDoesNotDropBatch(t *testing.T) {
	now := time.Now().UTC()
	day := func(offset int) string { return now.AddDate(0, 0, offset).Format(domain.DateLayout) }
	sub := func(id string, offset int) domain.Subscription {
		return domain.Subscription{
			ID: id, UserID: "user-" + id, Name: "Netflix", Price: 15.49,
			BillingCycle: domain.BillingCycleMonthly, RenewalDate: day(offset),
		}
	}
	store := &offsetStore{byDate: map[string][]domain.Subscription{
		day(3): {sub("a", 3)},
		day(2): {sub("b", 2)},
		day(1): {sub("c", 1)},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mailer := &hangUpMailer{hangUp: cancel}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := app.NewReminderNotifier(store, fixedDirectory{}, mailer, logger, app.ReminderOptions{From: "SubWatch <onboarding@resend.dev>"}).
		WithClock(func() time.Time { return now })
	router := NewRouter(NewHandler(&MockSubscriptionService{}, notifier, "", logger), RouterConfig{})

	req := httptest.NewRequest(http.MethodPost, "/functions/v1/send-reminders", nil).WithContext(ctx)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Error(t, ctx.Err(), "request context should have been cancelled mid-run")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"processed","count":3}`, rr.Body.String())
	assert.Equal(t, []string{"user-a@x.com", "user-b@x.com", "user-c@x.com"}, mailer.sent)
	assert.Zero(t, mailer.refused)
}

func TestHandler_SendReminders_RunIsBoundedByJobTimeout(t *testing.T) {
	var deadline time.Time
	runner := runnerFunc(func(ctx context.Context) (domain.ReminderSummary, error) {
		var ok bool
		deadline, ok = ctx.Deadline()
		if !ok {
			return domain.ReminderSummary{}, errors.New("no deadline")
		}
		return domain.ReminderSummary{}, nil
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(&MockSubscriptionService{}, runner, "", logger).WithReminderTimeout(2 * time.Minute)

	rr := httptest.NewRecorder()
	NewRouter(h, RouterConfig{}).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/functions/v1/send-reminders", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.WithinDuration(t, time.Now().Add(2*time.Minute), deadline, 5*time.Second)
}

func TestSendRemindersPreflightForEveryMethod(t *testing.T) {
	router := newTestRouter(&MockSubscriptionService{}, &MockReminderRunner{}, "")

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/functions/v1/send-reminders", nil)
			req.Header.Set("Origin", "https://app.example.com")
			req.Header.Set("Access-Control-Request-Method", method)
			rr := httptest.NewRecorder()

			router.ServeHTTP(rr, req)

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

type runnerFunc func(ctx context.Context) (domain.ReminderSummary, error)

func (f runnerFunc) Run(ctx context.Context) (domain.ReminderSummary, error) {
	return f(ctx)
}
