package main

import (
	"context"
	"fmt"
	"os"

	"tablet-tracker/internal/adapters/cli"
	"tablet-tracker/internal/app"
	"tablet-tracker/internal/config"
	"tablet-tracker/internal/db"
	"tablet-tracker/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	// Human output goes to stdout; logs go to stderr so they don't interleave with it.
	log := logging.NewWithOutput(cfg.LogLevel, os.Stderr)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	jobs, closeJobs, err := app.NewJobLockerFromURL(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatalf("job locker: %v", err)
	}
	defer closeJobs()

	svc := app.NewAppService(app.NewServices(pool, cfg.BagCountTolerance, log), jobs, log)

	if err := cli.Run(ctx, svc, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		closeJobs()
		pool.Close()
		os.Exit(1)
	}
}
