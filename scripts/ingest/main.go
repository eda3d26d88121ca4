// ingest loads a fixed-width or CSV data file into the configured storage
// backend as a typed raw_<name> table.
//
// Usage: go run ./scripts/ingest [flags] <data-file> <schema-file>
//
// Configuration: config.yaml (or -config) with the usual environment
// overrides. STORAGE_TYPE and STORAGE_DSN select the backend.
//
// Flags:
//
//	-config    Path to the config file (default: config.yaml)
//	-profile   Profile the table right after loading it (default: false)
//	-persist   Save the profiling run to the engine database (default: false)
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/app"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/config"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/ingest"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/repositories"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/services"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the config file")
	profile := flag.Bool("profile", false, "Profile the table right after loading it")
	persist := flag.Bool("persist", false, "Save the profiling run to the engine database")
	flag.Parse()

	args := flag.Args()
	if len(args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s [-config path] [-profile] [-persist] <data-file> <schema-file>\n", os.Args[0])
		os.Exit(1)
	}

	if err := run(*configPath, args[0], args[1], *profile, *persist); err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, dataPath, schemaPath string, profile, persist bool) error {
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
		return fmt.Errorf("storage.type is not set; nothing to load into")
	}
	defer store.Close()

	metricsBackend, err := app.NewMetrics(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = metricsBackend.Close() }()

	pipeline := ingest.NewPipeline(ingest.NewReader(cfg.Ingest.DefaultEncoding, logger), cfg.Ingest.SampleRows, logger)
	ingestService := services.NewIngestService(pipeline, store, metricsBackend, logger)

	result, err := ingestService.Ingest(ctx, dataPath, schemaPath)
	if err != nil {
		return err
	}

	fmt.Printf("Loaded %d rows into %s in %s\n", result.Rows, result.Table.Name, result.Elapsed.Round(time.Millisecond))
	for _, col := range result.Table.Columns {
		fmt.Printf("  %-32s %s\n", col.Name, col.Type)
	}

	if !profile {
		return nil
	}

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
	profileRun, err := profilingService.ProfileLoaded(ctx, result.Table)
	if err != nil {
		return fmt.Errorf("failed to profile %s: %w", result.Table.Name, err)
	}

	fmt.Println()
	if err := app.PrintRunSummary(os.Stdout, profileRun); err != nil {
		logger.Warn("Failed to print summary", zap.Error(err))
	}
	return nil
}
