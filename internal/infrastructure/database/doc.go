// Package database provides the relational connection behind the account store.
//
// Two drivers are supported:
//   - sqlite (github.com/mattn/go-sqlite3): single-file database with WAL mode,
//     the default for development and small deployments
//   - postgres (github.com/jackc/pgx/v5/stdlib): pooled connections for production
//
// Schema migrations are embedded per dialect (package migrations) and applied
// with goose. Repositories write their SQL once with ? placeholders and pass it
// through Dialect.Rebind.
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - SQLite database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(database.Config{Driver: "sqlite", Path: "./data/users.db", WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package database
