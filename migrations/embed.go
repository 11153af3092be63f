// Package migrations embeds the SQL schema migrations into the binary.
//
// Each supported database dialect has its own directory of goose-formatted
// files. The database package picks the directory matching the configured
// driver.
package migrations

import "embed"

// FS holds the sqlite/ and postgres/ migration directories.
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
