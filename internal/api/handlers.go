/**
 * @description
 * HTTP handlers for SubWatch. Handlers parse the request, call the service layer
 * and translate its errors into status codes with a JSON {"error": ...} body.
 */
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Cxsmxnaut/subwatch/internal/app"
	"github.com/Cxsmxnaut/subwatch/internal/domain"
	"github.com/Cxsmxnaut/subwatch/internal/store"
)

// SubscriptionService is the dashboard logic the handlers call.
type SubscriptionService interface {
	List(ctx context.Context, userID string) ([]domain.Subscription, error)
	Create(ctx context.Context, userID string, input app.CreateSubscriptionInput) (*domain.Subscription, error)
	Delete(ctx context.Context, userID, id string) error
	Summary(ctx context.Context, userID string) (*domain.SpendSummary, error)
	FreeTierLimit() int
}

// Handler holds the services that handlers interact with.
type Handler struct {
	service         SubscriptionService
	reminders       app.ReminderRunner
	triggerToken    string
	reminderTimeout time.Duration
	logger          *slog.Logger
}

// NewHandler creates a new Handler. An empty triggerToken leaves the reminder endpoint open.
func NewHandler(service SubscriptionService, reminders app.ReminderRunner, triggerToken string, logger *slog.Logger) *Handler {
	return &Handler{
		service:         service,
		reminders:       reminders,
		triggerToken:    triggerToken,
		reminderTimeout: defaultReminderTimeout,
		logger:          logger,
	}
}

// WithReminderTimeout bounds an on-demand reminder run.
func (h *Handler) WithReminderTimeout(timeout time.Duration) *Handler {
	if timeout > 0 {
		h.reminderTimeout = timeout
	}
	return h
}

func (h *Handler) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	subs, err := h.service.List(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, subs)
}

func (h *Handler) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var input app.CreateSubscriptionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sub, err := h.service.Create(r.Context(), userID, input)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, sub)
}

func (h *Handler) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid subscription ID")
		return
	}

	if err := h.service.Delete(r.Context(), userID, id.String()); err != nil {
		h.handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	summary, err := h.service.Summary(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	var verr *app.ValidationError
	switch {
	case errors.As(err, &verr):
		respondWithError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, app.ErrFreeTierLimitReached):
		respondWithError(w, http.StatusForbidden, fmt.Sprintf("Free users can only have %d subscriptions", h.service.FreeTierLimit()))
	case errors.Is(err, store.ErrSubscriptionNotFound):
		respondWithError(w, http.StatusNotFound, "Subscription not found")
	default:
		h.logger.Error("subscription request failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

// respondWithJSON writes JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
