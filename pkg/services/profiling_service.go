package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/adapters/storage"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/metrics"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/models"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/profiling"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/repositories"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/workerpool"
)

// ProfilingConfig holds the thresholds of a profiling run.
type ProfilingConfig struct {
	profiling.Config
	MaxSampleRows  int      // Rows read from storage, 0 for all
	ExcludeColumns []string // Never profiled (case-insensitive)
	Workers        int
}

// ProfilingService runs candidate key discovery on stored tables and serves
// persisted results.
type ProfilingService interface {
	// ProfileTable reads tableName from the storage backend, profiles it and
	// persists the run.
	ProfileTable(ctx context.Context, tableName string) (*models.ProfileRun, error)

	// ProfileLoaded profiles an in-memory table and persists the run.
	ProfileLoaded(ctx context.Context, table *models.Table) (*models.ProfileRun, error)

	// LatestRun returns the most recent persisted run for a table.
	LatestRun(ctx context.Context, tableName string) (*models.ProfileRun, error)

	// KeyCandidates returns the accepted combinations of the latest run.
	KeyCandidates(ctx context.Context, tableName string) ([]models.CombinationMetric, error)
}

type profilingService struct {
	reader     storage.TableReader
	repo       repositories.ProfileMetricRepository
	profiler   *profiling.ColumnProfiler
	discoverer *profiling.CombinationDiscoverer
	cfg        ProfilingConfig
	metrics    metrics.Backend
	logger     *zap.Logger
}

// NewProfilingService creates a profiling service. reader may be nil when no
// storage backend is configured; repo may be nil to skip persistence.
func NewProfilingService(
	reader storage.TableReader,
	repo repositories.ProfileMetricRepository,
	cfg ProfilingConfig,
	m metrics.Backend,
	logger *zap.Logger,
) ProfilingService {
	pool := workerpool.New(workerpool.Config{MaxConcurrent: cfg.Workers}, logger)
	return &profilingService{
		reader:     reader,
		repo:       repo,
		profiler:   profiling.NewColumnProfiler(pool, logger),
		discoverer: profiling.NewCombinationDiscoverer(cfg.Config, logger),
		cfg:        cfg,
		metrics:    metrics.OrNop(m),
		logger:     logger.Named("profiling"),
	}
}

var _ ProfilingService = (*profilingService)(nil)

func (s *profilingService) ProfileTable(ctx context.Context, tableName string) (*models.ProfileRun, error) {
	if s.reader == nil {
		return nil, apperrors.ErrStorageNotConfigured
	}

	table, err := s.reader.ReadTable(ctx, tableName, s.cfg.MaxSampleRows)
	if err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", tableName, err)
	}
	if s.cfg.MaxSampleRows > 0 && table.RowCount() >= s.cfg.MaxSampleRows {
		s.logger.Warn("Profiling a row sample",
			zap.String("table", tableName),
			zap.Int("max_sample_rows", s.cfg.MaxSampleRows))
	}

	return s.ProfileLoaded(ctx, table)
}

func (s *profilingService) ProfileLoaded(ctx context.Context, table *models.Table) (run *models.ProfileRun, err error) {
	start := time.Now()
	defer func() { metrics.RecordStep(s.metrics, metrics.StepProfile, start, err) }()

	run = &models.ProfileRun{
		ID:        uuid.New(),
		TableName: table.Name,
		TotalRows: int64(table.RowCount()),
		StartedAt: start.UTC(),
	}

	columns, err := s.profiler.Profile(ctx, table, s.cfg.ExcludeColumns)
	if err != nil {
		return nil, err
	}
	run.Columns = columns
	run.CandidateColumns = profiling.SelectCandidates(columns, s.cfg.Config)

	result, err := s.discoverer.Discover(ctx, table, run.CandidateColumns, columns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover key candidates for %s: %w", table.Name, err)
	}
	run.Combinations = result.Combinations
	run.Scanned = result.Scanned
	run.Pruned = result.Pruned
	run.Accepted = result.Accepted
	run.Truncated = result.Truncated
	run.FinishedAt = time.Now().UTC()

	s.recordRun(run)

	if s.repo != nil {
		if err = s.repo.SaveRun(ctx, run); err != nil {
			s.logger.Error("Failed to save profile run",
				zap.String("table", run.TableName),
				zap.String("run_id", run.ID.String()),
				zap.Error(err))
			return nil, fmt.Errorf("failed to save profile run: %w", err)
		}
	}

	fields := []zap.Field{
		zap.String("table", run.TableName),
		zap.String("run_id", run.ID.String()),
		zap.Int64("rows", run.TotalRows),
		zap.Int("columns", len(run.Columns)),
		zap.Int("candidates", len(run.CandidateColumns)),
		zap.Int("scanned", run.Scanned),
		zap.Int("pruned", run.Pruned),
		zap.Int("accepted", run.Accepted),
		zap.Duration("elapsed", time.Since(start)),
	}
	if run.Truncated {
		s.logger.Warn("Profiling finished with truncated discovery", fields...)
	} else {
		s.logger.Info("Profiling finished", fields...)
	}

	return run, nil
}

func (s *profilingService) recordRun(run *models.ProfileRun) {
	for outcome, n := range map[string]int{
		"scanned":  run.Scanned,
		"pruned":   run.Pruned,
		"accepted": run.Accepted,
	} {
		s.metrics.IncCounter(metrics.CombinationsTotal, float64(n), metrics.Labels{"outcome": outcome})
	}
	if run.Truncated {
		s.metrics.IncCounter(metrics.TruncatedRunsTotal, 1, metrics.Labels{"table": run.TableName})
	}
}

func (s *profilingService) LatestRun(ctx context.Context, tableName string) (*models.ProfileRun, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("%w: no profile runs are persisted", apperrors.ErrNotFound)
	}
	return s.repo.LatestByTable(ctx, tableName)
}

func (s *profilingService) KeyCandidates(ctx context.Context, tableName string) ([]models.CombinationMetric, error) {
	run, err := s.LatestRun(ctx, tableName)
	if err != nil {
		return nil, err
	}
	return run.Combinations, nil
}
