package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"bookq/internal/config"
	"bookq/internal/platform/database"
	"bookq/internal/report"
	"bookq/internal/runner"
)

func main() {
	config.LoadEnvFiles()
	cfg := config.Load()

	var (
		backend = flag.String("backend", cfg.Backend, "Backend to query: mongo or postgres")
		only    = flag.String("only", "", "Comma-separated statement names to run (default all)")
		onError = flag.String("on-error", cfg.Policy, "What to do after a failed statement: halt or continue")
		output  = flag.String("output", cfg.Output, "Output format: table or json")
		list    = flag.Bool("list", false, "List the statements and exit")
	)
	flag.Parse()

	cfg.Backend = *backend
	cfg.Policy = *onError
	cfg.Output = *output
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	policy, err := runner.ParsePolicy(cfg.Policy)
	if err != nil {
		log.Fatal(err)
	}
	format, err := report.ParseFormat(cfg.Output)
	if err != nil {
		log.Fatal(err)
	}

	var names []string
	if *only != "" {
		names = strings.Split(*only, ",")
	}
	statements, err := runner.Select(runner.Assignment(), names)
	if err != nil {
		log.Fatal(err)
	}

	writer := report.NewWriter(os.Stdout, format)
	if *list {
		if err := writer.Statements(statements, cfg.Collection); err != nil {
			log.Fatal(err)
		}
		return
	}

	os.Exit(run(cfg, policy, writer, statements))
}

func run(cfg config.Config, policy runner.Policy, writer *report.Writer, statements []runner.Statement) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.OpenStore(ctx, cfg)
	if err != nil {
		log.Printf("open store: %v", err)
		return 1
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			log.Printf("close store: %v", err)
		}
	}()

	summary, runErr := runner.New(store, writer, policy, cfg.Collection).Run(ctx, statements)
	if err := writer.Summary(summary); err != nil {
		log.Printf("write summary: %v", err)
	}
	if runErr != nil {
		log.Printf("run finished with errors: %v", runErr)
		return 1
	}
	return 0
}
