package main

import (
	"context"
	"flag"
	"log"

	"bookq/internal/config"
	"bookq/internal/platform/database"
	"bookq/internal/seed"
)

func main() {
	var (
		backend = flag.String("backend", "", "Backend to seed: mongo or postgres (default from BOOKQ_BACKEND)")
		reset   = flag.Bool("reset", false, "Delete every book before inserting")
	)
	flag.Parse()

	config.LoadEnvFiles()
	cfg := config.Load()
	if *backend != "" {
		cfg.Backend = *backend
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx := context.Background()
	store, err := database.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := store.Close(ctx); err != nil {
			log.Printf("close store: %v", err)
		}
	}()

	n, err := seed.Load(ctx, store, *reset)
	if err != nil {
		log.Fatalf("Failed to seed books: %v", err)
	}
	log.Printf("Successfully seeded %d books backend=%s", n, cfg.Backend)
}
