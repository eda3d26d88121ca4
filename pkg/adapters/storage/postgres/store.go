// Package postgres stores typed tables in PostgreSQL using COPY.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/adapters/storage"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/models"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/retry"
	sqlpkg "github.com/ekaya-inc/ekaya-keyscout/pkg/sql"
)

func init() {
	storage.Register(string(sqlpkg.DialectPostgres), Open)
}

// Store is a PostgreSQL storage backend.
type Store struct {
	pool      *pgxpool.Pool
	batchSize int
	logger    *zap.Logger
}

var encoder = storage.ValueEncoder{
	Decimal: func(d decimal.Decimal) any {
		return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
	},
}

// Open connects to PostgreSQL, retrying transient failures.
func Open(ctx context.Context, dsn string, opts storage.Options, logger *zap.Logger) (storage.Store, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	poolConfig.ConnConfig.ConnectTimeout = opts.ConnTimeout

	pool, err := retry.DoWithResult(ctx, opts.Retry, func() (*pgxpool.Pool, error) {
		p, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return NewStore(pool, opts.BatchSize, logger), nil
}

// NewStore wraps an existing pool.
func NewStore(pool *pgxpool.Pool, batchSize int, logger *zap.Logger) *Store {
	if batchSize <= 0 {
		batchSize = storage.DefaultBatchSize
	}
	return &Store{pool: pool, batchSize: batchSize, logger: logger}
}

func (s *Store) Dialect() sqlpkg.Dialect { return sqlpkg.DialectPostgres }

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// LoadTable replaces the table and copies its rows in batches inside one
// transaction.
func (s *Store) LoadTable(ctx context.Context, table *models.Table) (int64, error) {
	stmts, err := storage.ReplaceTableStatements(sqlpkg.DialectPostgres, table)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, stmt := range stmts {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return 0, fmt.Errorf("failed to replace table %s: %w", table.Name, err)
		}
	}

	schema, name := sqlpkg.SplitQualified(table.Name)
	ident := pgx.Identifier{name}
	if schema != "" {
		ident = pgx.Identifier{schema, name}
	}
	columns := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		columns[i] = c.Name
	}

	total := table.RowCount()
	var written int64
	for lo := 0; lo < total; lo += s.batchSize {
		hi := min(lo+s.batchSize, total)
		rows := make([][]any, 0, hi-lo)
		for i := lo; i < hi; i++ {
			rows = append(rows, encoder.Row(table, i))
		}

		n, err := tx.CopyFrom(ctx, ident, columns, pgx.CopyFromRows(rows))
		if err != nil {
			return written, fmt.Errorf("failed to copy rows %d-%d into %s: %w", lo+1, hi, table.Name, err)
		}
		written += n
		s.logger.Debug("Copied batch",
			zap.String("table", table.Name),
			zap.Int("from", lo+1),
			zap.Int("to", hi))
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit load of %s: %w", table.Name, err)
	}

	s.logger.Info("Loaded table",
		zap.String("table", table.Name),
		zap.Int64("rows", written),
		zap.Duration("elapsed", time.Since(start)))
	return written, nil
}

// ReadTable reads at most maxRows rows of name.
func (s *Store) ReadTable(ctx context.Context, name string, maxRows int) (*models.Table, error) {
	if _, err := sqlpkg.QuoteIdentifier(sqlpkg.DialectPostgres, name); err != nil {
		return nil, err
	}

	cols, err := s.columns(ctx, name)
	if err != nil {
		return nil, err
	}

	query, err := storage.SelectStatement(sqlpkg.DialectPostgres, name, storage.ColumnNames(cols), maxRows)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	defer rows.Close()

	table := storage.NewTableFromColumns(name, cols)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to decode row of %s: %w", name, err)
		}
		cells := make([]models.Cell, len(values))
		for i, v := range values {
			cells[i] = storage.CellFromValue(normalize(v), cols[i].Type)
		}
		table.AppendRow(cells)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	s.logger.Debug("Read table",
		zap.String("table", name),
		zap.Int("rows", table.RowCount()),
		zap.Int("columns", len(cols)))
	return table, nil
}

func (s *Store) columns(ctx context.Context, name string) ([]storage.ColumnInfo, error) {
	schema, table := sqlpkg.SplitQualified(name)

	rows, err := s.pool.Query(ctx, `
		SELECT column_name::text, data_type::text, character_maximum_length::int,
		       numeric_precision::int, numeric_scale::int
		FROM information_schema.columns
		WHERE table_name = $1 AND table_schema = COALESCE(NULLIF($2, ''), current_schema())
		ORDER BY ordinal_position`, table, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", name, err)
	}
	defer rows.Close()

	var cols []storage.ColumnInfo
	for rows.Next() {
		var colName, dataType string
		var length, precision, scale sql.NullInt64
		if err := rows.Scan(&colName, &dataType, &length, &precision, &scale); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", name, err)
		}
		cols = append(cols, storage.ColumnInfo{
			Name: colName,
			Type: storage.ColumnTypeFromSchema(dataType, length, precision, scale),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: table %s", apperrors.ErrNotFound, name)
	}
	return cols, nil
}

// normalize converts pgx-specific values to types CellFromValue understands.
func normalize(v any) any {
	switch x := v.(type) {
	case pgtype.Numeric:
		if !x.Valid || x.NaN || x.InfinityModifier != pgtype.Finite || x.Int == nil {
			return nil
		}
		return decimal.NewFromBigInt(x.Int, x.Exp)
	case float32:
		return float64(x)
	case int16:
		return int64(x)
	}
	return v
}

var _ storage.Store = (*Store)(nil)
