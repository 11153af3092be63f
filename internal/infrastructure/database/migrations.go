package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/kirillfir/user-service/migrations"
)

// gooseMu serialises access to goose's package-level state (base FS, dialect).
var gooseMu sync.Mutex

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = goose.UpContext

// Migrate applies all pending migrations for the connection's dialect.
//
// Migrations are embedded in the binary (see package migrations) and
// tracked by goose in its goose_db_version table, so calling Migrate on an
// up-to-date database is a no-op.
func (db *DB) Migrate(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(db.dialect.gooseDialect()); err != nil {
		return fmt.Errorf("setting migration dialect: %w", err)
	}

	if err := gooseUpContext(ctx, db.DB, db.dialect.migrationsDir()); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	return nil
}
