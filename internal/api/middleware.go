package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillfir/user-service/internal/auth"
	"github.com/kirillfir/user-service/internal/infrastructure/influxdb"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const (
	// ctxKeyRequestID is the context key for the request ID.
	ctxKeyRequestID contextKey = "request_id"
)

// Telemetry stages.
const (
	stageRequest = "request"
	stageLogin   = "login"
)

// requestIDMiddleware generates a unique request ID for each request.
// If the client sends an X-Request-ID header, it is used; otherwise one is generated.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs each HTTP request with method, path, status, and duration.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
	})
}

// recoveryMiddleware catches panics in handlers and returns a 500 response.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered in HTTP handler",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", r.Context().Value(ctxKeyRequestID),
				)
				writeInternalError(w, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware handles Cross-Origin Resource Sharing headers.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.isAllowedOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", joinOrDefault(s.cfg.CORS.AllowedMethods, "GET, POST, PATCH, OPTIONS"))
			w.Header().Set("Access-Control-Allow-Headers", joinOrDefault(s.cfg.CORS.AllowedHeaders, "Authorization, Content-Type, X-Request-ID"))
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		// Handle preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// maxRequestBodySize is the maximum allowed request body size (1 MB).
const maxRequestBodySize = 1 << 20

// bodySizeLimitMiddleware limits the size of incoming request bodies.
func (s *Server) bodySizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

// authMiddleware authenticates the bearer token on protected routes.
//
// The token only names the account: role and active flag are re-read from
// the store on every request, so a role change or block takes effect on the
// next call. On success the identity is attached to the request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		identity, err := s.authenticator.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			status, outcome := s.writeAuthError(w, r, err)
			s.recordAuthOutcome(outcome, status, stageRequest, start)
			return
		}

		s.recordAuthOutcome(influxdb.OutcomeSuccess, http.StatusOK, stageRequest, start)
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
	})
}

// writeAuthError maps an authentication failure onto the HTTP response and
// returns the status written and the telemetry outcome it represents.
func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrTokenRequired):
		writeUnauthorized(w, "token required")
		return http.StatusUnauthorized, influxdb.OutcomeTokenRequired
	case errors.Is(err, auth.ErrInvalidToken):
		writeUnauthorized(w, "invalid or expired token")
		return http.StatusUnauthorized, influxdb.OutcomeInvalidToken
	case errors.Is(err, auth.ErrAccountNotFound):
		writeUnauthorized(w, "account not found")
		return http.StatusUnauthorized, influxdb.OutcomeUnknownUser
	case errors.Is(err, auth.ErrAccountBlocked):
		writeForbidden(w, "account blocked")
		return http.StatusForbidden, influxdb.OutcomeBlocked
	default:
		s.logger.Error("authentication failed",
			"error", err,
			"path", r.URL.Path,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeInternalError(w, "internal server error")
		return http.StatusInternalServerError, influxdb.OutcomeError
	}
}

// requirePermission rejects callers the policy denies perm with 403.
// Only admin-scoped permissions are mounted this way, so no target account
// is passed. Must be mounted after authMiddleware.
func (s *Server) requirePermission(perm auth.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				writeUnauthorized(w, "token required")
				return
			}
			if err := auth.Authorize(identity, perm, 0); err != nil {
				writeForbidden(w, "admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// recordAuthOutcome forwards one authentication outcome to telemetry, if configured.
func (s *Server) recordAuthOutcome(outcome string, status int, stage string, start time.Time) {
	if s.telemetry == nil {
		return
	}
	s.telemetry.WriteAuthOutcome(influxdb.AuthOutcome{
		Outcome: outcome,
		Status:  status,
		Stage:   stage,
		Latency: time.Since(start),
		At:      time.Now(),
	})
}

// isAllowedOrigin checks if the origin is in the allowed list.
// An empty list allows all origins (dev mode).
func (s *Server) isAllowedOrigin(origin string) bool {
	if len(s.cfg.CORS.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.cfg.CORS.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// joinOrDefault joins a string slice with ", " or returns the default if empty.
func joinOrDefault(values []string, defaultVal string) string {
	if len(values) == 0 {
		return defaultVal
	}
	return strings.Join(values, ", ")
}
