// Package db holds the SQL migrations of the photoword service.
package db

import "embed"

// Migrations contains one directory per dialect: migrations/postgres and
// migrations/sqlite.
//
//go:embed migrations
var Migrations embed.FS
