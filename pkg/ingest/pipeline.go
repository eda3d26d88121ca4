package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/models"
)

// Pipeline turns a raw data file into a typed table:
// read → infer (sample) → coerce → widen (full scan).
type Pipeline struct {
	reader     *Reader
	sampleRows int
	logger     *zap.Logger
}

// NewPipeline creates an ingest pipeline.
func NewPipeline(reader *Reader, sampleRows int, logger *zap.Logger) *Pipeline {
	if sampleRows < 1 {
		sampleRows = DefaultSampleRows
	}
	return &Pipeline{
		reader:     reader,
		sampleRows: sampleRows,
		logger:     logger.Named("ingest-pipeline"),
	}
}

// Run reads dataPath with the schema at schemaPath and returns the typed table.
func (p *Pipeline) Run(ctx context.Context, dataPath, schemaPath string) (*models.Table, error) {
	schema, err := LoadSchema(schemaPath)
	if err != nil {
		return nil, err
	}
	return p.RunWithSchema(ctx, dataPath, schema)
}

// RunWithSchema reads dataPath with an already loaded schema.
func (p *Pipeline) RunWithSchema(ctx context.Context, dataPath string, schema *models.FileSchema) (*models.Table, error) {
	start := time.Now()

	table, err := p.reader.Read(ctx, dataPath, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dataPath, err)
	}

	p.Type(table)

	p.logger.Info("Typed table",
		zap.String("table", table.Name),
		zap.Int("rows", table.RowCount()),
		zap.Duration("elapsed", time.Since(start)))
	for _, col := range table.Columns {
		p.logger.Debug("Column type",
			zap.String("table", table.Name),
			zap.String("column", col.Name),
			zap.String("type", col.Type.String()))
	}

	return table, nil
}

// Type infers, coerces and widens a raw text table in place. Coercion always
// completes before the width pass.
func (p *Pipeline) Type(table *models.Table) {
	InferTypes(table, p.sampleRows)
	CoerceTable(table)
	AdjustWidths(table)
}
