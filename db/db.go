// Package db embeds the schema migrations and seed data applied by
// internal/db.Migrate.
package db

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS

//go:embed seed/*.sql
var SeedFiles embed.FS
