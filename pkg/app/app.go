// Package app builds the logger, storage backend, metrics backend and
// services from a loaded config. The server and the command-line tools share
// it so they wire components identically.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/adapters/storage"
	_ "github.com/ekaya-inc/ekaya-keyscout/pkg/adapters/storage/mssql"
	_ "github.com/ekaya-inc/ekaya-keyscout/pkg/adapters/storage/postgres"
	_ "github.com/ekaya-inc/ekaya-keyscout/pkg/adapters/storage/sqlite"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/config"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/database"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/logging"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/metrics"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/metrics/datadog"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/profiling"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/retry"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/services"
)

// NewLogger returns a development logger for local environments and a
// production JSON logger everywhere else.
func NewLogger(env string) (*zap.Logger, error) {
	if env == "local" || env == "dev" || env == "test" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// OpenDatabase connects to the engine database and applies migrations when
// configured to.
func OpenDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*database.DB, error) {
	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
		Retry:          retry.DefaultConfig(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to engine database: %s", logging.SanitizeError(err))
	}

	if cfg.Labels.RunMigrationsOnStart {
		if err := database.RunMigrations(db.SQLDB(), cfg.MigrationsPath, logger); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	logger.Info("Connected to engine database",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Database))
	return db, nil
}

// OpenStorage opens the configured storage backend. It returns nil, nil when
// no backend is configured.
func OpenStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Store, error) {
	if cfg.Storage.Type == "" {
		logger.Info("No storage backend configured; ingest and profiling are disabled")
		return nil, nil
	}

	store, err := storage.Open(ctx, cfg.Storage.Type, cfg.Storage.DSN, storage.Options{
		BatchSize: cfg.Storage.BatchSize,
	}, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("Opened storage backend",
		zap.String("type", cfg.Storage.Type),
		zap.String("dsn", logging.SanitizeConnectionString(cfg.Storage.DSN)))
	return store, nil
}

// NewMetrics returns the Datadog backend when enabled and a no-op backend
// otherwise. Callers must Close the result.
func NewMetrics(ctx context.Context, cfg *config.Config, logger *zap.Logger) (metrics.Backend, error) {
	if !cfg.Metrics.Datadog.Enabled {
		return metrics.Nop{}, nil
	}

	backend, err := datadog.NewBackend(ctx, datadog.Options{
		JobName:    cfg.Metrics.Datadog.JobName,
		Tags:       cfg.Metrics.Datadog.Tags,
		FlushEvery: cfg.Metrics.Datadog.FlushInterval,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Datadog metrics enabled", zap.String("job", cfg.Metrics.Datadog.JobName))
	return backend, nil
}

// ProfilingConfig converts configured thresholds into service settings.
func ProfilingConfig(cfg *config.Config) services.ProfilingConfig {
	p := cfg.Profiling
	return services.ProfilingConfig{
		Config: profiling.Config{
			UniquenessThreshold:   p.UniquenessThreshold,
			NullThreshold:         p.NullThreshold,
			StrongColumnThreshold: p.StrongColumnThreshold,
			CombinationThreshold:  p.CombinationThreshold,
			MaxCombinationSize:    p.MaxCombinationSize,
			MaxCombinations:       p.MaxCombinations,
		},
		MaxSampleRows:  p.MaxSampleRows,
		ExcludeColumns: p.ExcludeColumns,
		Workers:        p.Workers,
	}
}
