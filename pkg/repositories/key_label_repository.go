package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/database"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/models"
)

// KeyLabelRepository provides data access for key decisions.
type KeyLabelRepository interface {
	// Upsert inserts the label or, when its fingerprint already exists,
	// updates the decision fields and revives a soft-deleted row. The label
	// is refreshed from the stored row. created reports whether a new row
	// was inserted.
	Upsert(ctx context.Context, label *models.KeyLabel) (created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.KeyLabel, error)
	List(ctx context.Context, filter models.KeyLabelFilter) ([]*models.KeyLabel, error)
	UpdateDecision(ctx context.Context, id uuid.UUID, isKey bool, justification, author string) (*models.KeyLabel, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

type keyLabelRepository struct {
	db *database.DB
}

// NewKeyLabelRepository creates a new KeyLabelRepository.
func NewKeyLabelRepository(db *database.DB) KeyLabelRepository {
	return &keyLabelRepository{db: db}
}

var _ KeyLabelRepository = (*keyLabelRepository)(nil)

const keyLabelColumns = `id, fingerprint, table_a, columns_a, table_b, columns_b,
		       is_key, justification, author, created_at, updated_at`

func (r *keyLabelRepository) Upsert(ctx context.Context, label *models.KeyLabel) (bool, error) {
	if label.ID == uuid.Nil {
		label.ID = uuid.New()
	}
	now := time.Now().UTC()

	// xmax = 0 only for a freshly inserted row version.
	query := `
		INSERT INTO engine_key_labels (
			id, fingerprint, table_a, columns_a, table_b, columns_b,
			is_key, justification, author, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (fingerprint) DO UPDATE SET
			is_key        = EXCLUDED.is_key,
			justification = EXCLUDED.justification,
			author        = EXCLUDED.author,
			updated_at    = EXCLUDED.updated_at,
			deleted_at    = NULL
		RETURNING ` + keyLabelColumns + `, (xmax = 0) AS inserted`

	var created bool
	err := r.db.WithConn(ctx, func(conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx, query,
			label.ID, label.Fingerprint, label.TableA, label.ColumnsA, label.TableB, label.ColumnsB,
			label.IsKey, label.Justification, label.Author, now,
		)
		stored, inserted, err := scanKeyLabel(row, true)
		if err != nil {
			return err
		}
		*label = *stored
		created = inserted
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to upsert key label: %w", err)
	}
	return created, nil
}

func (r *keyLabelRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.KeyLabel, error) {
	query := `
		SELECT ` + keyLabelColumns + `
		FROM engine_key_labels
		WHERE id = $1 AND deleted_at IS NULL`

	var label *models.KeyLabel
	err := r.db.WithConn(ctx, func(conn *pgxpool.Conn) error {
		var err error
		label, _, err = scanKeyLabel(conn.QueryRow(ctx, query, id), false)
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key label: %w", err)
	}
	return label, nil
}

func (r *keyLabelRepository) List(ctx context.Context, filter models.KeyLabelFilter) ([]*models.KeyLabel, error) {
	conds := []string{"deleted_at IS NULL"}
	var args []any
	if filter.TableA != "" {
		args = append(args, filter.TableA)
		conds = append(conds, fmt.Sprintf("table_a = $%d", len(args)))
	}
	if filter.TableB != "" {
		args = append(args, filter.TableB)
		conds = append(conds, fmt.Sprintf("table_b = $%d", len(args)))
	}

	query := `
		SELECT ` + keyLabelColumns + `
		FROM engine_key_labels
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY created_at DESC, id`

	labels := make([]*models.KeyLabel, 0)
	err := r.db.WithConn(ctx, func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			label, _, err := scanKeyLabel(rows, false)
			if err != nil {
				return err
			}
			labels = append(labels, label)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list key labels: %w", err)
	}
	return labels, nil
}

func (r *keyLabelRepository) UpdateDecision(ctx context.Context, id uuid.UUID, isKey bool, justification, author string) (*models.KeyLabel, error) {
	query := `
		UPDATE engine_key_labels
		SET is_key = $2, justification = $3, author = $4, updated_at = $5
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + keyLabelColumns

	var label *models.KeyLabel
	err := r.db.WithConn(ctx, func(conn *pgxpool.Conn) error {
		var err error
		label, _, err = scanKeyLabel(conn.QueryRow(ctx, query, id, isKey, justification, author, time.Now().UTC()), false)
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update key label: %w", err)
	}
	return label, nil
}

func (r *keyLabelRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE engine_key_labels
		SET deleted_at = $2
		WHERE id = $1 AND deleted_at IS NULL`

	var affected int64
	err := r.db.WithConn(ctx, func(conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, query, id, time.Now().UTC())
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete key label: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func scanKeyLabel(row pgx.Row, withInserted bool) (*models.KeyLabel, bool, error) {
	var l models.KeyLabel
	var inserted bool
	dest := []any{
		&l.ID, &l.Fingerprint, &l.TableA, &l.ColumnsA, &l.TableB, &l.ColumnsB,
		&l.IsKey, &l.Justification, &l.Author, &l.CreatedAt, &l.UpdatedAt,
	}
	if withInserted {
		dest = append(dest, &inserted)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, false, err
	}
	return &l, inserted, nil
}
