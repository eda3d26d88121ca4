// Package sqlite stores typed tables in a SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/adapters/storage"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/models"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/retry"
	sqlpkg "github.com/ekaya-inc/ekaya-keyscout/pkg/sql"
)

func init() {
	storage.Register(string(sqlpkg.DialectSQLite), Open)
}

// Store is a SQLite storage backend. SQLite has no native timestamp type, so
// timestamps are stored as RFC 3339 text.
type Store struct {
	db        *sql.DB
	batchSize int
	logger    *zap.Logger
}

var encoder = storage.ValueEncoder{
	Timestamp: func(t time.Time) any { return t.UTC().Format(time.RFC3339Nano) },
}

// Open opens (or creates) the database file named by dsn.
func Open(ctx context.Context, dsn string, opts storage.Options, logger *zap.Logger) (storage.Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// One writer at a time; also keeps ":memory:" databases on one connection.
	db.SetMaxOpenConns(1)

	if err := retry.DoIfRetryable(ctx, opts.Retry, func() error { return db.PingContext(ctx) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}

	return NewStore(db, opts.BatchSize, logger), nil
}

// NewStore wraps an existing database handle.
func NewStore(db *sql.DB, batchSize int, logger *zap.Logger) *Store {
	if batchSize <= 0 {
		batchSize = storage.DefaultBatchSize
	}
	return &Store{db: db, batchSize: batchSize, logger: logger}
}

func (s *Store) Dialect() sqlpkg.Dialect { return sqlpkg.DialectSQLite }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// LoadTable replaces the table and inserts its rows with one prepared
// statement inside a transaction.
func (s *Store) LoadTable(ctx context.Context, table *models.Table) (int64, error) {
	stmts, err := storage.ReplaceTableStatements(sqlpkg.DialectSQLite, table)
	if err != nil {
		return 0, err
	}
	quoted, err := sqlpkg.QuoteIdentifier(sqlpkg.DialectSQLite, table.Name)
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

	cols := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		cols[i] = sqlpkg.MustQuote(sqlpkg.DialectSQLite, c.Name)
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoted,
		strings.Join(cols, ", "),
		strings.TrimRight(strings.Repeat("?, ", len(cols)), ", "))

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert into %s: %w", table.Name, err)
	}
	defer stmt.Close()

	total := table.RowCount()
	var written int64
	for i := 0; i < total; i++ {
		if i%s.batchSize == 0 && ctx.Err() != nil {
			return written, ctx.Err()
		}
		if _, err := stmt.ExecContext(ctx, encoder.Row(table, i)...); err != nil {
			return written, fmt.Errorf("failed to insert row %d into %s: %w", i+1, table.Name, err)
		}
		written++
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

// ReadTable reads at most maxRows rows of name.
func (s *Store) ReadTable(ctx context.Context, name string, maxRows int) (*models.Table, error) {
	quoted, err := sqlpkg.QuoteIdentifier(sqlpkg.DialectSQLite, name)
	if err != nil {
		return nil, err
	}

	cols, err := s.columns(ctx, name, quoted)
	if err != nil {
		return nil, err
	}

	query, err := storage.SelectStatement(sqlpkg.DialectSQLite, name, storage.ColumnNames(cols), maxRows)
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

func (s *Store) columns(ctx context.Context, name, quoted string) ([]storage.ColumnInfo, error) {
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info("+quoted+")")
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", name, err)
	}
	defer rows.Close()

	var cols []storage.ColumnInfo
	for rows.Next() {
		var (
			cid      int
			colName  string
			declType string
			notNull  int
			dflt     sql.NullString
			pk       int
		)
		if err := rows.Scan(&cid, &colName, &declType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", name, err)
		}
		cols = append(cols, storage.ColumnInfo{Name: colName, Type: storage.ParseDeclaredType(declType)})
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
