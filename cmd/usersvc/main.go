// User Service - credential and session layer for the user-management API.
//
// This is the main entry point for the user service. It wires:
//   - the account store (SQLite or PostgreSQL) and its migrations
//   - password hashing and bearer token issuance
//   - the REST API with per-request authentication
//   - optional MQTT audit publishing and InfluxDB auth telemetry
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/kirillfir/user-service/internal/api"
	"github.com/kirillfir/user-service/internal/audit"
	"github.com/kirillfir/user-service/internal/auth"
	"github.com/kirillfir/user-service/internal/infrastructure/config"
	"github.com/kirillfir/user-service/internal/infrastructure/database"
	"github.com/kirillfir/user-service/internal/infrastructure/influxdb"
	"github.com/kirillfir/user-service/internal/infrastructure/logging"
	"github.com/kirillfir/user-service/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on Ctrl+C or SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting user service",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Driver:       cfg.Database.Driver,
		Path:         cfg.Database.Path,
		WALMode:      cfg.Database.WALMode,
		BusyTimeout:  cfg.Database.BusyTimeout,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConn,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "driver", cfg.Database.Driver)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Credentials and tokens
	hasher, err := auth.NewHasher(auth.HasherConfig{
		Algorithm:       cfg.Security.Password.Algorithm,
		ArgonMemory:     cfg.Security.Password.ArgonMemory,
		ArgonIterations: cfg.Security.Password.ArgonIterations,
		ArgonThreads:    cfg.Security.Password.ArgonThreads,
		BcryptCost:      cfg.Security.Password.BcryptCost,
	})
	if err != nil {
		return fmt.Errorf("creating password hasher: %w", err)
	}

	tokens, err := auth.NewTokenService(cfg.Security.JWT.Secret, cfg.GetTokenTTL(),
		auth.WithIssuer(cfg.Security.JWT.Issuer))
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	users := auth.NewUserRepository(db.DB, db.Dialect())

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled, audit events will not be published")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB, log)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
			if n := influxClient.WriteErrors(); n > 0 {
				log.Warn("InfluxDB rejected auth telemetry batches", "failed_batches", n)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Audit trail
	auditRepo := audit.NewRepository(db.DB, db.Dialect())
	var recorderOpts []audit.RecorderOption
	if mqttClient != nil {
		recorderOpts = append(recorderOpts, audit.WithPublisher(mqttClient))
	}

	if cfg.Security.SeedAdmin.Enabled {
		if seedErr := seedAdmin(ctx, cfg.Security.SeedAdmin.Email, users, hasher, auditRepo, recorderOpts, log); seedErr != nil {
			return fmt.Errorf("seeding admin account: %w", seedErr)
		}
	}

	recorder := audit.NewRecorder(auditRepo, log, recorderOpts...)

	deps := api.Deps{
		Config:        cfg.API,
		Logger:        log,
		DB:            db,
		Users:         users,
		Auth:          auth.NewService(users, hasher, tokens),
		Authenticator: auth.NewAuthenticator(tokens, users),
		AuditRepo:     auditRepo,
		Audit:         recorder,
		Version:       version,
	}
	// Only assign when set: a nil *Client in an interface is not nil.
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	if influxClient != nil {
		deps.Telemetry = influxClient
	}

	apiServer, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server (then the audit drain)
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Database

	log.Info("user service stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses USERSVC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("USERSVC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// seedAdmin creates the first-boot admin and audits the creation with
// source "seed". Nothing is recorded when accounts already exist.
func seedAdmin(ctx context.Context, email string, users *auth.SQLUserRepository, hasher *auth.Hasher,
	auditRepo audit.Repository, opts []audit.RecorderOption, log *logging.Logger) error {
	password, err := auth.SeedAdmin(ctx, users, hasher, email, log.Logger)
	if err != nil {
		return err
	}
	if password == "" {
		return nil
	}

	admin, err := users.FindByEmail(ctx, auth.NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("loading seeded admin: %w", err)
	}

	rec := audit.NewRecorder(auditRepo, log, append(opts, audit.WithSource("seed"))...)
	rec.Start(ctx)
	rec.Record(audit.ActionRegister, strconv.FormatInt(admin.ID, 10), "", map[string]any{
		"email": admin.Email,
		"role":  string(admin.Role),
	})
	rec.Stop()

	return nil
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and influxClient may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
