package main

import "os"

// migrationsDir is where 'create' writes new files. Applied migrations are embedded in package db.
func migrationsDir() string {
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	return "db/migrations"
}
