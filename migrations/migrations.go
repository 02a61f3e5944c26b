// Package migrations embeds the goose SQL migrations for each store driver.
package migrations

import "embed"

// FS holds postgres/ and sqlite/ migration directories.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS

const (
	PostgresDir = "postgres"
	SQLiteDir   = "sqlite"
)
