package database

import (
	"strconv"
	"strings"
)

// Dialect identifies the SQL flavour spoken by a connection.
//
// Repositories write queries once with ? placeholders and call Rebind
// before executing them.
type Dialect int

const (
	// DialectSQLite uses ? placeholders.
	DialectSQLite Dialect = iota
	// DialectPostgres uses $1, $2, ... placeholders.
	DialectPostgres
)

// String returns the dialect name.
func (d Dialect) String() string {
	if d == DialectPostgres {
		return DriverPostgres
	}
	return DriverSQLite
}

// Rebind rewrites ? placeholders into the dialect's native form.
// Queries must not contain literal question marks.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// gooseDialect is the dialect name goose expects.
func (d Dialect) gooseDialect() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite3"
}

// migrationsDir is the directory inside migrations.FS for this dialect.
func (d Dialect) migrationsDir() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite"
}
