package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/database"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/models"
)

// ProfileMetricRepository persists profiling runs. Metrics are append-only:
// every run is stored in full and never updated.
type ProfileMetricRepository interface {
	SaveRun(ctx context.Context, run *models.ProfileRun) error
	// LatestByTable returns the most recent run for a table with its column
	// and combination metrics.
	LatestByTable(ctx context.Context, tableName string) (*models.ProfileRun, error)
}

type profileMetricRepository struct {
	db *database.DB
}

// NewProfileMetricRepository creates a new ProfileMetricRepository.
func NewProfileMetricRepository(db *database.DB) ProfileMetricRepository {
	return &profileMetricRepository{db: db}
}

var _ ProfileMetricRepository = (*profileMetricRepository)(nil)

func (r *profileMetricRepository) SaveRun(ctx context.Context, run *models.ProfileRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	candidates := run.CandidateColumns
	if candidates == nil {
		candidates = []string{}
	}

	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO engine_profile_runs (
			id, table_name, total_rows, candidate_columns,
			scanned, pruned, accepted, truncated, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.TableName, run.TotalRows, candidates,
		run.Scanned, run.Pruned, run.Accepted, run.Truncated, run.StartedAt, run.FinishedAt,
	)

	for i, m := range run.Columns {
		batch.Queue(`
			INSERT INTO engine_column_profiles (
				run_id, ordinal, table_name, column_name, data_type,
				total_rows, null_count, cardinality, uniqueness,
				max_length, min_length, pattern, mean, p95
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			run.ID, i, m.TableName, m.ColumnName, m.DataType,
			m.TotalRows, m.NullCount, m.Cardinality, m.Uniqueness,
			m.MaxLength, m.MinLength, m.Pattern, m.Mean, m.P95,
		)
	}

	for i, c := range run.Combinations {
		batch.Queue(`
			INSERT INTO engine_key_candidates (
				run_id, ordinal, table_name, columns, cardinality, uniqueness, fingerprint
			) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			run.ID, i, c.TableName, c.Columns, c.Cardinality, c.Uniqueness, c.Fingerprint,
		)
	}

	err := r.db.WithConn(ctx, func(conn *pgxpool.Conn) error {
		return pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
			return tx.SendBatch(ctx, batch).Close()
		})
	})
	if err != nil {
		return fmt.Errorf("failed to save profile run: %w", err)
	}
	return nil
}

func (r *profileMetricRepository) LatestByTable(ctx context.Context, tableName string) (*models.ProfileRun, error) {
	var run models.ProfileRun

	err := r.db.WithConn(ctx, func(conn *pgxpool.Conn) error {
		err := conn.QueryRow(ctx, `
			SELECT id, table_name, total_rows, candidate_columns,
			       scanned, pruned, accepted, truncated, started_at, finished_at
			FROM engine_profile_runs
			WHERE table_name = $1
			ORDER BY finished_at DESC
			LIMIT 1`, tableName,
		).Scan(&run.ID, &run.TableName, &run.TotalRows, &run.CandidateColumns,
			&run.Scanned, &run.Pruned, &run.Accepted, &run.Truncated, &run.StartedAt, &run.FinishedAt)
		if err != nil {
			return err
		}

		run.Columns, err = queryColumnMetrics(ctx, conn, run.ID)
		if err != nil {
			return err
		}
		run.Combinations, err = queryCombinationMetrics(ctx, conn, run.ID)
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile run: %w", err)
	}
	return &run, nil
}

func queryColumnMetrics(ctx context.Context, conn *pgxpool.Conn, runID uuid.UUID) ([]models.ColumnMetric, error) {
	rows, err := conn.Query(ctx, `
		SELECT table_name, column_name, data_type, total_rows, null_count, cardinality,
		       uniqueness, max_length, min_length, pattern, mean, p95
		FROM engine_column_profiles
		WHERE run_id = $1
		ORDER BY ordinal`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query column profiles: %w", err)
	}
	defer rows.Close()

	metrics := make([]models.ColumnMetric, 0)
	for rows.Next() {
		var m models.ColumnMetric
		if err := rows.Scan(&m.TableName, &m.ColumnName, &m.DataType, &m.TotalRows, &m.NullCount,
			&m.Cardinality, &m.Uniqueness, &m.MaxLength, &m.MinLength, &m.Pattern, &m.Mean, &m.P95); err != nil {
			return nil, fmt.Errorf("failed to scan column profile: %w", err)
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

func queryCombinationMetrics(ctx context.Context, conn *pgxpool.Conn, runID uuid.UUID) ([]models.CombinationMetric, error) {
	rows, err := conn.Query(ctx, `
		SELECT table_name, columns, cardinality, uniqueness, fingerprint
		FROM engine_key_candidates
		WHERE run_id = $1
		ORDER BY ordinal`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query key candidates: %w", err)
	}
	defer rows.Close()

	combos := make([]models.CombinationMetric, 0)
	for rows.Next() {
		var c models.CombinationMetric
		if err := rows.Scan(&c.TableName, &c.Columns, &c.Cardinality, &c.Uniqueness, &c.Fingerprint); err != nil {
			return nil, fmt.Errorf("failed to scan key candidate: %w", err)
		}
		combos = append(combos, c)
	}
	return combos, rows.Err()
}
