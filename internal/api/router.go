package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kirillfir/user-service/internal/auth"
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

	// Health check (no auth required)
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		// Auth endpoints (no auth required)
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleMe)

			r.Route("/users", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermAccountList)).Get("/", s.handleListUsers)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetUser)
					r.Patch("/", s.handleBlockUser)
					r.With(s.requirePermission(auth.PermAccountChangeRole)).Patch("/role", s.handleChangeRole)
				})
			})

			// Admin-only operational views
			r.With(s.requirePermission(auth.PermAuditRead)).Get("/audit", s.handleListAuditLogs)
			r.With(s.requirePermission(auth.PermMetricsRead)).Get("/metrics", s.handleMetrics)
		})
	})

	return r
}

// handleHealth reports liveness and database reachability.
// It always answers 200 so load balancers can tell "up but degraded" apart.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	db := "up"
	if s.db == nil || s.db.HealthCheck(r.Context()) != nil {
		db = "down"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"db":      db,
		"version": s.version,
	})
}
