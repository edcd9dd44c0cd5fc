// Package migrations embeds the slot table schema for each supported database.
package migrations

import "embed"

// SQLite holds migrations under sqlite/.
//
//go:embed sqlite/*.sql
var SQLite embed.FS

// Postgres holds migrations under postgres/.
//
//go:embed postgres/*.sql
var Postgres embed.FS
