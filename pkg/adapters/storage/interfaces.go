// Package storage defines the backends that receive typed tables from the
// ingest pipeline and hand them back to the profiler.
package storage

import (
	"context"
	"time"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/models"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/retry"
	sqlpkg "github.com/ekaya-inc/ekaya-keyscout/pkg/sql"
)

// DefaultBatchSize is the number of rows sent per bulk copy call.
const DefaultBatchSize = 10000

// SurrogateKeyColumn is the identity primary key added to every loaded table.
const SurrogateKeyColumn = "id"

// TableLoader replaces a table and bulk-loads its rows.
type TableLoader interface {
	// LoadTable drops and recreates table.Name with a surrogate identity key
	// and nullable typed columns, then inserts every row. It returns the
	// number of rows written.
	LoadTable(ctx context.Context, table *models.Table) (int64, error)
}

// TableReader reads a stored table back as typed columns.
type TableReader interface {
	// ReadTable returns at most maxRows rows of name; maxRows <= 0 reads all.
	// Returns apperrors.ErrNotFound if the table does not exist.
	ReadTable(ctx context.Context, name string, maxRows int) (*models.Table, error)
}

// Store is a configured storage backend.
type Store interface {
	TableLoader
	TableReader
	Dialect() sqlpkg.Dialect
	Close() error
}

// Options tune a backend when it is opened.
type Options struct {
	BatchSize   int
	Retry       *retry.Config
	ConnTimeout time.Duration
}

// WithDefaults fills unset options.
func (o Options) WithDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Retry == nil {
		o.Retry = retry.DefaultConfig()
	}
	if o.ConnTimeout <= 0 {
		o.ConnTimeout = 30 * time.Second
	}
	return o
}
