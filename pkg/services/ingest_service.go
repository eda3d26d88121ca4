package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/adapters/storage"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/metrics"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/models"
)

// TablePipeline turns a data file and its schema into a typed table.
type TablePipeline interface {
	Run(ctx context.Context, dataPath, schemaPath string) (*models.Table, error)
}

// IngestResult summarizes one loaded file.
type IngestResult struct {
	Table   *models.Table
	Rows    int64
	Elapsed time.Duration
}

// IngestService reads, types and loads raw data files.
type IngestService interface {
	// Ingest runs the pipeline on dataPath and replaces the destination
	// table in the storage backend.
	Ingest(ctx context.Context, dataPath, schemaPath string) (*IngestResult, error)
}

type ingestService struct {
	pipeline TablePipeline
	loader   storage.TableLoader
	metrics  metrics.Backend
	logger   *zap.Logger
}

// NewIngestService creates an ingest service. loader may be nil when no
// storage backend is configured.
func NewIngestService(pipeline TablePipeline, loader storage.TableLoader, m metrics.Backend, logger *zap.Logger) IngestService {
	return &ingestService{
		pipeline: pipeline,
		loader:   loader,
		metrics:  metrics.OrNop(m),
		logger:   logger.Named("ingest"),
	}
}

var _ IngestService = (*ingestService)(nil)

func (s *ingestService) Ingest(ctx context.Context, dataPath, schemaPath string) (res *IngestResult, err error) {
	if s.loader == nil {
		return nil, apperrors.ErrStorageNotConfigured
	}

	start := time.Now()
	defer func() { metrics.RecordStep(s.metrics, metrics.StepIngest, start, err) }()

	table, err := s.pipeline.Run(ctx, dataPath, schemaPath)
	if err != nil {
		return nil, err
	}

	rows, err := s.loader.LoadTable(ctx, table)
	if err != nil {
		s.logger.Error("Failed to load table",
			zap.String("table", table.Name),
			zap.String("file", dataPath),
			zap.Error(err))
		return nil, fmt.Errorf("failed to load table %s: %w", table.Name, err)
	}
	s.metrics.IncCounter(metrics.RowsLoadedTotal, float64(rows), metrics.Labels{"table": table.Name})

	res = &IngestResult{Table: table, Rows: rows, Elapsed: time.Since(start)}
	s.logger.Info("Ingested file",
		zap.String("file", dataPath),
		zap.String("table", table.Name),
		zap.Int("columns", len(table.Columns)),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}
