package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/metrics"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/models"
)

// mockKeyLabelRepo implements repositories.KeyLabelRepository in memory,
// keyed by fingerprint like the unique index.
type mockKeyLabelRepo struct {
	labels    map[string]*models.KeyLabel
	deleted   map[uuid.UUID]bool
	upsertErr error
	listErr   error

	lastFilter models.KeyLabelFilter
}

func newMockKeyLabelRepo() *mockKeyLabelRepo {
	return &mockKeyLabelRepo{labels: map[string]*models.KeyLabel{}, deleted: map[uuid.UUID]bool{}}
}

func (m *mockKeyLabelRepo) Upsert(_ context.Context, label *models.KeyLabel) (bool, error) {
	if m.upsertErr != nil {
		return false, m.upsertErr
	}
	now := time.Now()
	if existing, ok := m.labels[label.Fingerprint]; ok {
		existing.IsKey = label.IsKey
		existing.Justification = label.Justification
		existing.Author = label.Author
		existing.UpdatedAt = now
		delete(m.deleted, existing.ID)
		*label = *existing
		return false, nil
	}
	label.ID = uuid.New()
	label.CreatedAt = now
	label.UpdatedAt = now
	stored := *label
	m.labels[label.Fingerprint] = &stored
	return true, nil
}

func (m *mockKeyLabelRepo) find(id uuid.UUID) *models.KeyLabel {
	if m.deleted[id] {
		return nil
	}
	for _, l := range m.labels {
		if l.ID == id {
			return l
		}
	}
	return nil
}

func (m *mockKeyLabelRepo) GetByID(_ context.Context, id uuid.UUID) (*models.KeyLabel, error) {
	if l := m.find(id); l != nil {
		return l, nil
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockKeyLabelRepo) List(_ context.Context, filter models.KeyLabelFilter) ([]*models.KeyLabel, error) {
	m.lastFilter = filter
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*models.KeyLabel
	for _, l := range m.labels {
		if m.deleted[l.ID] {
			continue
		}
		if filter.TableA != "" && l.TableA != filter.TableA {
			continue
		}
		if filter.TableB != "" && l.TableB != filter.TableB {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (m *mockKeyLabelRepo) UpdateDecision(_ context.Context, id uuid.UUID, isKey bool, justification, author string) (*models.KeyLabel, error) {
	l := m.find(id)
	if l == nil {
		return nil, apperrors.ErrNotFound
	}
	l.IsKey = isKey
	l.Justification = justification
	l.Author = author
	l.UpdatedAt = time.Now()
	return l, nil
}

func (m *mockKeyLabelRepo) SoftDelete(_ context.Context, id uuid.UUID) error {
	if m.find(id) == nil {
		return apperrors.ErrNotFound
	}
	m.deleted[id] = true
	return nil
}

// mockProfileRepo implements repositories.ProfileMetricRepository.
type mockProfileRepo struct {
	runs    []*models.ProfileRun
	saveErr error
}

func (m *mockProfileRepo) SaveRun(_ context.Context, run *models.ProfileRun) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *mockProfileRepo) LatestByTable(_ context.Context, tableName string) (*models.ProfileRun, error) {
	for i := len(m.runs) - 1; i >= 0; i-- {
		if m.runs[i].TableName == tableName {
			return m.runs[i], nil
		}
	}
	return nil, apperrors.ErrNotFound
}

// mockStore implements storage.TableLoader and storage.TableReader.
type mockStore struct {
	tables  map[string]*models.Table
	loadErr error

	readMaxRows int
}

func (m *mockStore) LoadTable(_ context.Context, table *models.Table) (int64, error) {
	if m.loadErr != nil {
		return 0, m.loadErr
	}
	if m.tables == nil {
		m.tables = map[string]*models.Table{}
	}
	m.tables[table.Name] = table
	return int64(table.RowCount()), nil
}

func (m *mockStore) ReadTable(_ context.Context, name string, maxRows int) (*models.Table, error) {
	m.readMaxRows = maxRows
	t, ok := m.tables[name]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return t, nil
}

// mockPipeline returns a fixed table.
type mockPipeline struct {
	table *models.Table
	err   error
}

func (m *mockPipeline) Run(context.Context, string, string) (*models.Table, error) {
	return m.table, m.err
}

// countingBackend sums counters by name and label set.
type countingBackend struct {
	metrics.Nop
	mu       sync.Mutex
	counters map[string]float64
	observed map[string]int
}

func newCountingBackend() *countingBackend {
	return &countingBackend{counters: map[string]float64{}, observed: map[string]int{}}
}

func counterKey(name string, labels metrics.Labels) string {
	k := name
	for _, l := range []string{"step", "status", "table", "outcome"} {
		if v, ok := labels[l]; ok {
			k += "," + l + "=" + v
		}
	}
	return k
}

func (c *countingBackend) IncCounter(name string, delta float64, labels metrics.Labels) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[counterKey(name, labels)] += delta
}

func (c *countingBackend) ObserveHistogram(name string, _ float64, labels metrics.Labels) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observed[counterKey(name, labels)]++
}
