// Package db carries the PostgreSQL schema migrations.
package db

import "embed"

// Migrations holds the goose SQL files under migrations/.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations that goose reads.
const MigrationsDir = "migrations"
