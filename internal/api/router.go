package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// WebSocket. Outside the Bearer-header group: browsers cannot set
		// headers on WS dials, so the handler validates a token query
		// parameter against the same JWT secret.
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/status", s.handleStatus)

			r.Route("/provision", func(r chi.Router) {
				r.Post("/start", s.handleStartLoop)
				r.Post("/stop", s.handleStopLoop)
				r.Post("/device", s.handleProvisionDevice)
			})

			r.Route("/logs", func(r chi.Router) {
				r.Get("/", s.handleGetLogs)
				r.Delete("/", s.handleClearLogs)
			})

			r.Get("/attempts", s.handleListAttempts)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Delete("/", s.handleResetLedger)
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
