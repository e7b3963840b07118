package database

import (
	"context"
	"fmt"

	"bookq/db"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Migrate runs a goose command ("up", "down" or "status") with the embedded migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool, command string) error {
	if command != "up" && command != "down" && command != "status" {
		return fmt.Errorf("unknown migration command %q (want up, down or status)", command)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	goose.SetBaseFS(db.Migrations)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	switch command {
	case "up":
		return goose.UpContext(ctx, sqlDB, db.MigrationsDir)
	case "down":
		return goose.DownContext(ctx, sqlDB, db.MigrationsDir)
	default:
		return goose.StatusContext(ctx, sqlDB, db.MigrationsDir)
	}
}
