package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Cxsmxnaut/subwatch/internal/app"
)

const defaultReminderTimeout = 5 * time.Minute

const functionAllowedHeaders = "authorization, x-client-info, apikey, content-type"

type sendRemindersResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// handleSendReminders runs one reminder pass on demand. It answers any method;
// a bare OPTIONS gets the CORS headers and nothing else.
func (h *Handler) handleSendReminders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", functionAllowedHeaders)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	if h.triggerToken != "" && !tokenMatches(r.Header.Get("Authorization"), h.triggerToken) {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	// The batch outlives the caller: a client hanging up must not drop the
	// remaining reminders. Only the job timeout bounds the run.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.reminderTimeout)
	defer cancel()

	summary, err := h.reminders.Run(ctx)
	if err != nil {
		h.logger.Error("send-reminders invocation failed", "error", err)
		respondWithError(w, http.StatusBadRequest, reminderErrorMessage(err))
		return
	}

	respondWithJSON(w, http.StatusOK, sendRemindersResponse{
		Message: "processed",
		Count:   summary.Count,
	})
}

// reminderErrorMessage returns the store's own message for a failed query.
func reminderErrorMessage(err error) string {
	var queryErr *app.StoreQueryError
	if errors.As(err, &queryErr) && queryErr.Err != nil {
		return queryErr.Err.Error()
	}
	return err.Error()
}
