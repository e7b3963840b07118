package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"bookq/internal/config"
	"bookq/internal/platform/database"

	"github.com/pressly/goose/v3"
)

func main() {
	var (
		command = flag.String("command", "up", "Migration command: up, down, status, create")
		name    = flag.String("name", "", "Name for 'create' command")
	)
	flag.Parse()

	config.LoadEnvFiles()
	cfg := config.Load()

	if *command == "create" {
		if *name == "" {
			log.Fatal("Name is required for 'create' command")
		}
		if err := goose.Create(nil, migrationsDir(), *name, "sql"); err != nil {
			log.Fatalf("Failed to create migration: %v", err)
		}
		fmt.Printf("Migration created: %s\n", *name)
		return
	}

	ctx := context.Background()
	pool, err := database.OpenPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, *command); err != nil {
		log.Fatalf("Migration %s failed: %v", *command, err)
	}
	switch *command {
	case "up":
		fmt.Println("Migrations applied successfully")
	case "down":
		fmt.Println("Migrations rolled back successfully")
	}
}
