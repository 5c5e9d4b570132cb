/**
 * @description
 * This file sets up the HTTP router for SubWatch using the go-chi/chi router.
 * It mounts the on-demand reminder trigger, the authenticated dashboard API,
 * and the health and metrics endpoints.
 */
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig carries the settings the router needs beyond the handlers.
type RouterConfig struct {
	Auth AuthMiddlewareConfig
}

// NewRouter creates a new Chi router and registers the SubWatch routes.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Setup middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(prometheusMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		// The reminder trigger answers every method, so preflights must too.
		AllowedMethods: []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: strings.Split(strings.ReplaceAll(functionAllowedHeaders, " ", ""), ","),
		MaxAge:         300, // Maximum value not ignored by any major browsers
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("SubWatch is healthy"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// The handler bounds the run itself, detached from the request lifetime.
	r.HandleFunc("/functions/v1/send-reminders", h.handleSendReminders)

	// Protected routes that require a Supabase session
	r.Route("/api/subscriptions", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(SupabaseAuthMiddleware(cfg.Auth))

		r.Get("/", h.handleListSubscriptions)
		r.Post("/", h.handleCreateSubscription)
		r.Get("/summary", h.handleGetSummary)
		r.Delete("/{id}", h.handleDeleteSubscription)
	})

	return r
}
