// profile runs candidate key discovery on a table in the configured storage
// backend and prints a summary.
//
// Usage: go run ./scripts/profile [flags] <table>
//
// Configuration: config.yaml (or -config) with the usual environment
// overrides. Profiling thresholds come from the profiling section.
//
// Flags:
//
//	-config    Path to the config file (default: config.yaml)
//	-persist   Save the run to the engine database (default: true)
//	-json      Print the run as JSON instead of a table (default: false)
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/app"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/config"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/repositories"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/services"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the config file")
	persist := flag.Bool("persist", true, "Save the run to the engine database")
	asJSON := flag.Bool("json", false, "Print the run as JSON")
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [-config path] [-persist=false] [-json] <table>\n", os.Args[0])
		os.Exit(1)
	}

	if err := run(*configPath, args[0], *persist, *asJSON); err != nil {
		fmt.Fprintf(os.Stderr, "Profiling failed: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, table string, persist, asJSON bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadFrom(configPath, "cli")
	if err != nil {
		return err
	}

	logger, err := app.NewLogger(cfg.Env)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := app.OpenStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("storage.type is not set; nothing to profile")
	}
	defer store.Close()

	metricsBackend, err := app.NewMetrics(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = metricsBackend.Close() }()

	var repo repositories.ProfileMetricRepository
	if persist {
		db, err := app.OpenDatabase(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		repo = repositories.NewProfileMetricRepository(db)
	}

	profilingService := services.NewProfilingService(store, repo, app.ProfilingConfig(cfg), metricsBackend, logger)
	result, err := profilingService.ProfileTable(ctx, table)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return app.PrintRunSummary(os.Stdout, result)
}
