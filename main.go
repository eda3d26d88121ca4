package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/adapters/storage"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/app"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/config"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/database"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/handlers"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/mcp"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/mcp/tools"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/middleware"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/repositories"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := app.NewLogger(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("storage", cfg.Storage.Type),
		zap.Bool("mcp", cfg.MCP.Enabled),
		zap.Bool("datadog", cfg.Metrics.Datadog.Enabled))

	db, err := app.OpenDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := app.OpenStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	var reader storage.TableReader
	if store != nil {
		defer store.Close()
		reader = store
	}

	metricsBackend, err := app.NewMetrics(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := metricsBackend.Close(); err != nil {
			logger.Warn("Failed to flush metrics on shutdown", zap.Error(err))
		}
	}()

	keyLabelService := services.NewKeyLabelService(repositories.NewKeyLabelRepository(db), metricsBackend, logger)
	profilingService := services.NewProfilingService(
		reader,
		repositories.NewProfileMetricRepository(db),
		app.ProfilingConfig(cfg),
		metricsBackend,
		logger,
	)

	mux := http.NewServeMux()
	scope := handlers.ScopeMiddleware(database.WithScope(db, logger))

	handlers.NewHealthHandler(cfg, db, logger).RegisterRoutes(mux)
	handlers.NewKeyLabelsHandler(keyLabelService, logger).RegisterRoutes(mux, scope)
	handlers.NewProfilesHandler(profilingService, logger).RegisterRoutes(mux, scope)

	if cfg.MCP.Enabled {
		mcpServer := mcp.NewServer("ekaya-keyscout", cfg.Version, logger)
		tools.RegisterHealthTool(mcpServer.MCP(), cfg.Version, cfg.Storage.Type)
		tools.RegisterKeyTools(mcpServer.MCP(), &tools.KeyToolDeps{
			KeyLabels: keyLabelService,
			Profiling: profilingService,
			Logger:    logger,
		})
		handlers.NewMCPHandler(mcpServer, logger).RegisterRoutes(mux)
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting ekaya-keyscout", zap.String("addr", srv.Addr), zap.String("version", cfg.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}
