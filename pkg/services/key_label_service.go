package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/fingerprint"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/metrics"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/models"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/repositories"
)

// KeyDecision is an analyst's verdict on whether ColumnsA of TableA joins
// ColumnsB of TableB as a key.
type KeyDecision struct {
	TableA        string
	ColumnsA      []string
	TableB        string
	ColumnsB      []string
	IsKey         bool
	Justification string
	Author        string
}

// KeyLabelService records and serves key decisions.
type KeyLabelService interface {
	// RecordDecision upserts a decision by fingerprint. created is false when
	// an existing label for the same normalized pair was updated.
	RecordDecision(ctx context.Context, decision KeyDecision) (label *models.KeyLabel, created bool, err error)

	// List returns labels matching the normalized filter, newest first.
	List(ctx context.Context, filter models.KeyLabelFilter) ([]*models.KeyLabel, error)

	Get(ctx context.Context, id uuid.UUID) (*models.KeyLabel, error)

	// Update changes the decision fields of an existing label.
	Update(ctx context.Context, id uuid.UUID, isKey bool, justification, author string) (*models.KeyLabel, error)

	Delete(ctx context.Context, id uuid.UUID) error
}

type keyLabelService struct {
	repo    repositories.KeyLabelRepository
	metrics metrics.Backend
	logger  *zap.Logger
}

// NewKeyLabelService creates a new key label service. A nil metrics backend
// records nothing.
func NewKeyLabelService(repo repositories.KeyLabelRepository, m metrics.Backend, logger *zap.Logger) KeyLabelService {
	return &keyLabelService{
		repo:    repo,
		metrics: metrics.OrNop(m),
		logger:  logger.Named("key-labels"),
	}
}

var _ KeyLabelService = (*keyLabelService)(nil)

// NormalizeDecision normalizes both sides of a decision and rejects pairs
// with a blank table or no usable columns.
func NormalizeDecision(d KeyDecision) (KeyDecision, error) {
	d.TableA = fingerprint.NormalizeTable(d.TableA)
	d.TableB = fingerprint.NormalizeTable(d.TableB)
	d.ColumnsA = fingerprint.NormalizeColumns(d.ColumnsA)
	d.ColumnsB = fingerprint.NormalizeColumns(d.ColumnsB)
	d.Justification = strings.TrimSpace(d.Justification)
	d.Author = strings.TrimSpace(d.Author)

	switch {
	case d.TableA == "":
		return d, fmt.Errorf("%w: tableA is required", apperrors.ErrInvalidInput)
	case d.TableB == "":
		return d, fmt.Errorf("%w: tableB is required", apperrors.ErrInvalidInput)
	case len(d.ColumnsA) == 0:
		return d, fmt.Errorf("%w: columnsA must contain at least one column", apperrors.ErrInvalidInput)
	case len(d.ColumnsB) == 0:
		return d, fmt.Errorf("%w: columnsB must contain at least one column", apperrors.ErrInvalidInput)
	}
	return d, nil
}

func (s *keyLabelService) RecordDecision(ctx context.Context, decision KeyDecision) (*models.KeyLabel, bool, error) {
	d, err := NormalizeDecision(decision)
	if err != nil {
		return nil, false, err
	}

	label := &models.KeyLabel{
		Fingerprint:   fingerprint.Pair(d.TableA, d.ColumnsA, d.TableB, d.ColumnsB),
		TableA:        d.TableA,
		ColumnsA:      d.ColumnsA,
		TableB:        d.TableB,
		ColumnsB:      d.ColumnsB,
		IsKey:         d.IsKey,
		Justification: d.Justification,
		Author:        d.Author,
	}

	created, err := s.repo.Upsert(ctx, label)
	if err != nil {
		s.logger.Error("Failed to record key decision",
			zap.String("fingerprint", label.Fingerprint),
			zap.String("table_a", d.TableA),
			zap.String("table_b", d.TableB),
			zap.Error(err))
		return nil, false, fmt.Errorf("failed to record key decision: %w", err)
	}

	outcome := "updated"
	if created {
		outcome = "created"
	}
	s.metrics.IncCounter(metrics.KeyDecisionsTotal, 1, metrics.Labels{"outcome": outcome})

	s.logger.Info("Recorded key decision",
		zap.String("id", label.ID.String()),
		zap.String("fingerprint", label.Fingerprint),
		zap.Bool("is_key", label.IsKey),
		zap.Bool("created", created))

	return label, created, nil
}

func (s *keyLabelService) List(ctx context.Context, filter models.KeyLabelFilter) ([]*models.KeyLabel, error) {
	filter.TableA = fingerprint.NormalizeTable(filter.TableA)
	filter.TableB = fingerprint.NormalizeTable(filter.TableB)

	labels, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list key labels: %w", err)
	}
	return labels, nil
}

func (s *keyLabelService) Get(ctx context.Context, id uuid.UUID) (*models.KeyLabel, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *keyLabelService) Update(ctx context.Context, id uuid.UUID, isKey bool, justification, author string) (*models.KeyLabel, error) {
	label, err := s.repo.UpdateDecision(ctx, id, isKey, strings.TrimSpace(justification), strings.TrimSpace(author))
	if err != nil {
		return nil, err
	}
	s.logger.Info("Updated key decision",
		zap.String("id", id.String()),
		zap.Bool("is_key", isKey))
	return label, nil
}

func (s *keyLabelService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Deleted key decision", zap.String("id", id.String()))
	return nil
}
