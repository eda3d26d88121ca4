// Package mssql stores typed tables in SQL Server using bulk copy.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	mssql "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/adapters/storage"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/models"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/retry"
	sqlpkg "github.com/ekaya-inc/ekaya-keyscout/pkg/sql"
)

func init() {
	storage.Register(string(sqlpkg.DialectSQLServer), Open)
}

// Store is a SQL Server storage backend.
type Store struct {
	db        *sql.DB
	batchSize int
	logger    *zap.Logger
}

// Decimals are sent as strings; the driver converts them to the column's
// precision and scale.
var encoder = storage.ValueEncoder{}

// Open connects to SQL Server, retrying transient failures.
func Open(ctx context.Context, dsn string, opts storage.Options, logger *zap.Logger) (storage.Store, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlserver: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	err = retry.DoIfRetryable(ctx, opts.Retry, func() error {
		pingCtx, cancel := context.WithTimeout(ctx, opts.ConnTimeout)
		defer cancel()
		return db.PingContext(pingCtx)
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to sqlserver: %w", err)
	}

	return NewStore(db, opts.BatchSize, logger), nil
}

// NewStore wraps an existing connection pool.
func NewStore(db *sql.DB, batchSize int, logger *zap.Logger) *Store {
	if batchSize <= 0 {
		batchSize = storage.DefaultBatchSize
	}
	return &Store{db: db, batchSize: batchSize, logger: logger}
}

func (s *Store) Dialect() sqlpkg.Dialect { return sqlpkg.DialectSQLServer }

// Close closes the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// LoadTable replaces the table and bulk copies its rows inside one
// transaction, one bulk statement per batch.
func (s *Store) LoadTable(ctx context.Context, table *models.Table) (int64, error) {
	stmts, err := storage.ReplaceTableStatements(sqlpkg.DialectSQLServer, table)
	if err != nil {
		return 0, err
	}
	quoted, err := sqlpkg.QuoteIdentifier(sqlpkg.DialectSQLServer, table.Name)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return 0, fmt.Errorf("failed to replace table %s: %w", table.Name, err)
		}
	}

	columns := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		columns[i] = c.Name
	}

	total := table.RowCount()
	var written int64
	for lo := 0; lo < total; lo += s.batchSize {
		hi := min(lo+s.batchSize, total)
		n, err := s.copyBatch(ctx, tx, quoted, columns, table, lo, hi)
		if err != nil {
			return written, fmt.Errorf("failed to copy rows %d-%d into %s: %w", lo+1, hi, table.Name, err)
		}
		written += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit load of %s: %w", table.Name, err)
	}

	s.logger.Info("Loaded table",
		zap.String("table", table.Name),
		zap.Int64("rows", written),
		zap.Duration("elapsed", time.Since(start)))
	return written, nil
}

func (s *Store) copyBatch(ctx context.Context, tx *sql.Tx, quoted string, columns []string, table *models.Table, lo, hi int) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(quoted, mssql.BulkOptions{RowsPerBatch: s.batchSize}, columns...))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i := lo; i < hi; i++ {
		if _, err := stmt.ExecContext(ctx, encoder.Row(table, i)...); err != nil {
			return 0, err
		}
	}

	// An Exec without arguments flushes the bulk copy.
	res, err := stmt.ExecContext(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReadTable reads at most maxRows rows of name.
func (s *Store) ReadTable(ctx context.Context, name string, maxRows int) (*models.Table, error) {
	if _, err := sqlpkg.QuoteIdentifier(sqlpkg.DialectSQLServer, name); err != nil {
		return nil, err
	}

	cols, err := s.columns(ctx, name)
	if err != nil {
		return nil, err
	}

	query, err := storage.SelectStatement(sqlpkg.DialectSQLServer, name, storage.ColumnNames(cols), maxRows)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	defer rows.Close()

	table := storage.NewTableFromColumns(name, cols)
	if err := storage.ScanRows(rows, table); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return table, nil
}

func (s *Store) columns(ctx context.Context, name string) ([]storage.ColumnInfo, error) {
	schema, table := sqlpkg.SplitQualified(name)

	rows, err := s.db.QueryContext(ctx, `
		SELECT COLUMN_NAME, DATA_TYPE, CHARACTER_MAXIMUM_LENGTH,
		       CAST(NUMERIC_PRECISION AS int), CAST(NUMERIC_SCALE AS int)
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_NAME = @p1 AND TABLE_SCHEMA = COALESCE(NULLIF(@p2, ''), SCHEMA_NAME())
		ORDER BY ORDINAL_POSITION`, table, schema)
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

var _ storage.Store = (*Store)(nil)
