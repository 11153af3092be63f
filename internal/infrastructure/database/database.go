package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver ("pgx")
	_ "github.com/mattn/go-sqlite3"    // SQLite driver ("sqlite3")
)

// Database configuration constants.
const (
	// dirPermissions is the permission mode for the SQLite database directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the SQLite database file.
	filePermissions = 0600

	// msPerSecond converts seconds to milliseconds.
	msPerSecond = 1000

	// connectionTimeout is the timeout for verifying database connectivity.
	connectionTimeout = 5 * time.Second

	// connMaxIdleTime is how long idle connections are kept open.
	connMaxIdleTime = 30 * time.Minute

	// defaultMaxOpenConns applies to postgres when the config leaves it unset.
	defaultMaxOpenConns = 10
)

// Supported driver names, matching config.DriverSQLite and config.DriverPostgres.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrUnsupportedDriver is returned by Open for an unknown driver name.
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// DB wraps a sql.DB connection together with the SQL dialect it speaks.
// It provides migration support, health checks, and lifecycle management.
type DB struct {
	*sql.DB
	dialect Dialect
	path    string
}

// Config contains database configuration options.
// These map to the database section of config.yaml.
type Config struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver string

	// Path is the filesystem path to the SQLite database file.
	// The directory will be created if it doesn't exist.
	Path string

	// WALMode enables Write-Ahead Logging for SQLite.
	WALMode bool

	// BusyTimeout is the maximum time to wait for a SQLite lock (seconds).
	BusyTimeout int

	// DSN is the PostgreSQL connection string.
	DSN string

	// MaxOpenConns bounds the PostgreSQL pool. SQLite always uses one connection.
	MaxOpenConns int
}

// Open creates a new database connection for the configured driver and
// verifies it with a ping.
func Open(cfg Config) (*DB, error) {
	switch cfg.Driver {
	case DriverSQLite, "":
		return openSQLite(cfg)
	case DriverPostgres:
		return openPostgres(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
}

// openSQLite performs the following setup:
//  1. Creates the database directory if it doesn't exist
//  2. Opens the database file (creates if not present)
//  3. Configures WAL mode and busy timeout
//  4. Verifies the connection with a ping
//  5. Sets file permissions (0600)
func openSQLite(cfg Config) (*DB, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// See: https://github.com/mattn/go-sqlite3#connection-string
	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
		cfg.Path,
		cfg.BusyTimeout*msPerSecond,
	)
	if cfg.WALMode {
		connStr += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	sqlDB, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite only supports one writer.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	db := &DB{DB: sqlDB, dialect: DialectSQLite, path: cfg.Path}
	if err := db.ping(); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, err
	}

	_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // file may not exist until first write

	return db, nil
}

func openPostgres(cfg Config) (*DB, error) {
	sqlDB, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpenConns
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxOpen / 2)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	db := &DB{DB: sqlDB, dialect: DialectPostgres}
	if err := db.ping(); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, err
	}

	return db, nil
}

func (db *DB) ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("verifying database connection: %w", err)
	}
	return nil
}

// Close closes the database connection gracefully.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Dialect reports which SQL dialect the connection speaks.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Path returns the filesystem path to the SQLite database file.
// It is empty for PostgreSQL connections.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck verifies the database is accessible and functioning.
func (db *DB) HealthCheck(ctx context.Context) error {
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// BeginTx starts a new transaction with the given options.
//
// Example:
//
//	tx, err := db.BeginTx(ctx, nil)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback() // No-op if committed
//
//	// ... execute queries on tx ...
//
//	return tx.Commit()
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := db.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	return tx, nil
}
