package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/models"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/services"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// mockKeyLabelService implements services.KeyLabelService for handler tests.
type mockKeyLabelService struct {
	labels       map[uuid.UUID]*models.KeyLabel
	created      bool
	err          error
	lastDecision services.KeyDecision
	lastFilter   models.KeyLabelFilter
	deleted      []uuid.UUID
}

func newMockKeyLabelService() *mockKeyLabelService {
	return &mockKeyLabelService{labels: make(map[uuid.UUID]*models.KeyLabel)}
}

func (m *mockKeyLabelService) RecordDecision(ctx context.Context, d services.KeyDecision) (*models.KeyLabel, bool, error) {
	m.lastDecision = d
	if m.err != nil {
		return nil, false, m.err
	}
	normalized, err := services.NormalizeDecision(d)
	if err != nil {
		return nil, false, err
	}
	label := &models.KeyLabel{
		ID:       uuid.New(),
		TableA:   normalized.TableA,
		ColumnsA: normalized.ColumnsA,
		TableB:   normalized.TableB,
		ColumnsB: normalized.ColumnsB,
		IsKey:    normalized.IsKey,
	}
	m.labels[label.ID] = label
	return label, m.created, nil
}

func (m *mockKeyLabelService) List(ctx context.Context, filter models.KeyLabelFilter) ([]*models.KeyLabel, error) {
	m.lastFilter = filter
	if m.err != nil {
		return nil, m.err
	}
	var out []*models.KeyLabel
	for _, l := range m.labels {
		out = append(out, l)
	}
	return out, nil
}

func (m *mockKeyLabelService) Get(ctx context.Context, id uuid.UUID) (*models.KeyLabel, error) {
	if m.err != nil {
		return nil, m.err
	}
	if l, ok := m.labels[id]; ok {
		return l, nil
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockKeyLabelService) Update(ctx context.Context, id uuid.UUID, isKey bool, justification, author string) (*models.KeyLabel, error) {
	l, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	l.IsKey = isKey
	l.Justification = justification
	l.Author = author
	return l, nil
}

func (m *mockKeyLabelService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := m.Get(ctx, id); err != nil {
		return err
	}
	delete(m.labels, id)
	m.deleted = append(m.deleted, id)
	return nil
}

// mockProfilingService implements services.ProfilingService for handler tests.
type mockProfilingService struct {
	runs       map[string]*models.ProfileRun
	profileErr error
	profiled   []string
}

func (m *mockProfilingService) ProfileTable(ctx context.Context, tableName string) (*models.ProfileRun, error) {
	m.profiled = append(m.profiled, tableName)
	if m.profileErr != nil {
		return nil, m.profileErr
	}
	run := &models.ProfileRun{ID: uuid.New(), TableName: tableName}
	if m.runs == nil {
		m.runs = make(map[string]*models.ProfileRun)
	}
	m.runs[tableName] = run
	return run, nil
}

func (m *mockProfilingService) ProfileLoaded(ctx context.Context, table *models.Table) (*models.ProfileRun, error) {
	return m.ProfileTable(ctx, table.Name)
}

func (m *mockProfilingService) LatestRun(ctx context.Context, tableName string) (*models.ProfileRun, error) {
	if run, ok := m.runs[tableName]; ok {
		return run, nil
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockProfilingService) KeyCandidates(ctx context.Context, tableName string) ([]models.CombinationMetric, error) {
	run, err := m.LatestRun(ctx, tableName)
	if err != nil {
		return nil, err
	}
	return run.Combinations, nil
}
