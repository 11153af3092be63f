package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kirillfir/user-service/internal/audit"
	"github.com/kirillfir/user-service/internal/auth"
	"github.com/kirillfir/user-service/internal/infrastructure/config"
	"github.com/kirillfir/user-service/internal/infrastructure/influxdb"
	"github.com/kirillfir/user-service/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Database is the subset of the database handle the API needs.
// Satisfied by *database.DB.
type Database interface {
	HealthCheck(ctx context.Context) error
	Stats() sql.DBStats
}

// Telemetry receives authentication outcomes. Satisfied by *influxdb.Client.
type Telemetry interface {
	WriteAuthOutcome(o influxdb.AuthOutcome)
	IsConnected() bool
}

// Connectivity reports whether an optional backend is reachable.
// Satisfied by *mqtt.Client.
type Connectivity interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config        config.APIConfig
	Logger        *logging.Logger
	DB            Database
	Users         auth.UserRepository
	Auth          *auth.Service
	Authenticator *auth.Authenticator
	AuditRepo     audit.Repository
	Audit         *audit.Recorder // optional: nil disables the audit trail
	MQTT          Connectivity    // optional: reported by /api/metrics
	Telemetry     Telemetry       // optional: nil disables auth outcome export
	Version       string
}

// Server is the HTTP API server for the user service.
//
// It manages the HTTP listener, routes and middleware.
// The server is created with New() and started with Start().
type Server struct {
	cfg           config.APIConfig
	logger        *logging.Logger
	db            Database
	users         auth.UserRepository
	auth          *auth.Service
	authenticator *auth.Authenticator
	auditRepo     audit.Repository
	audit         *audit.Recorder
	mqtt          Connectivity
	telemetry     Telemetry
	version       string
	startTime     time.Time
	server        *http.Server
	cancel        context.CancelFunc // stops the audit drain on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if deps.Auth == nil || deps.Authenticator == nil {
		return nil, fmt.Errorf("auth service and authenticator are required")
	}

	return &Server{
		cfg:           deps.Config,
		logger:        deps.Logger,
		db:            deps.DB,
		users:         deps.Users,
		auth:          deps.Auth,
		authenticator: deps.Authenticator,
		auditRepo:     deps.AuditRepo,
		audit:         deps.Audit,
		mqtt:          deps.MQTT,
		telemetry:     deps.Telemetry,
		version:       deps.Version,
		startTime:     time.Now(),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It starts the audit drain, builds the router and launches the HTTP
// listener in a background goroutine. The server can be stopped with Close().
// The audit drain outlives ctx so requests finishing during Close are still
// recorded; only Close stops it.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	if s.audit != nil {
		s.audit.Start(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete, then
// flushes queued audit entries.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	err := s.server.Shutdown(ctx)

	if s.cancel != nil {
		s.cancel()
	}
	if s.audit != nil {
		s.audit.Stop()
	}

	if err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
