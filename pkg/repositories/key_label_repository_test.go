//go:build integration

package repositories

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/fingerprint"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/models"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/testhelpers"
)

func setupKeyLabelTest(t *testing.T) KeyLabelRepository {
	t.Helper()
	engineDB := testhelpers.GetEngineDB(t)
	engineDB.Truncate(t, "engine_key_labels")
	return NewKeyLabelRepository(engineDB.DB)
}

func newLabel(tableA string, colsA []string, tableB string, colsB []string, isKey bool) *models.KeyLabel {
	return &models.KeyLabel{
		Fingerprint:   fingerprint.Pair(tableA, colsA, tableB, colsB),
		TableA:        fingerprint.NormalizeTable(tableA),
		ColumnsA:      fingerprint.NormalizeColumns(colsA),
		TableB:        fingerprint.NormalizeTable(tableB),
		ColumnsB:      fingerprint.NormalizeColumns(colsB),
		IsKey:         isKey,
		Justification: "initial",
		Author:        "analyst",
	}
}

func TestKeyLabelRepository_UpsertIsIdempotent(t *testing.T) {
	repo := setupKeyLabelTest(t)
	ctx := context.Background()

	first := newLabel("orders", []string{"customer_id"}, "customers", []string{"id"}, true)
	created, err := repo.Upsert(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	again := newLabel(" ORDERS ", []string{"Customer_ID", "customer_id"}, "customers", []string{"ID"}, false)
	again.Justification = "changed my mind"
	created, err = repo.Upsert(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)

	assert.Equal(t, first.ID, again.ID, "same row is updated")
	assert.False(t, again.IsKey)
	assert.Equal(t, "changed my mind", again.Justification)
	assert.True(t, !again.UpdatedAt.Before(first.UpdatedAt))

	all, err := repo.List(ctx, models.KeyLabelFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestKeyLabelRepository_ConcurrentUpsertsConverge(t *testing.T) {
	repo := setupKeyLabelTest(t)
	ctx := context.Background()

	const submitters = 8
	labels := make([]*models.KeyLabel, submitters)
	created := make([]bool, submitters)
	errs := make([]error, submitters)
	for i := range labels {
		labels[i] = newLabel("orders", []string{"order_no", "line_no"}, "order_lines", []string{"order_no", "line_no"}, i%2 == 0)
	}

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := range labels {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			created[i], errs[i] = repo.Upsert(ctx, labels[i])
		}(i)
	}
	close(start)
	wg.Wait()

	createdCount := 0
	for i := range labels {
		require.NoError(t, errs[i])
		if created[i] {
			createdCount++
		}
		assert.Equal(t, labels[0].ID, labels[i].ID, "all submissions land on one row")
	}
	assert.Equal(t, 1, createdCount)

	all, err := repo.List(ctx, models.KeyLabelFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestKeyLabelRepository_ListFiltersAndOrdersNewestFirst(t *testing.T) {
	repo := setupKeyLabelTest(t)
	ctx := context.Background()

	for _, l := range []*models.KeyLabel{
		newLabel("orders", []string{"a"}, "customers", []string{"a"}, true),
		newLabel("orders", []string{"b"}, "items", []string{"b"}, true),
		newLabel("items", []string{"c"}, "customers", []string{"c"}, false),
	} {
		_, err := repo.Upsert(ctx, l)
		require.NoError(t, err)
	}

	got, err := repo.List(ctx, models.KeyLabelFilter{TableA: "ORDERS"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"B"}, got[0].ColumnsA)

	got, err = repo.List(ctx, models.KeyLabelFilter{TableA: "ORDERS", TableB: "CUSTOMERS"})
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestKeyLabelRepository_SoftDeleteAndRevive(t *testing.T) {
	repo := setupKeyLabelTest(t)
	ctx := context.Background()

	label := newLabel("orders", []string{"id"}, "orders", []string{"id"}, true)
	_, err := repo.Upsert(ctx, label)
	require.NoError(t, err)

	require.NoError(t, repo.SoftDelete(ctx, label.ID))
	assert.ErrorIs(t, repo.SoftDelete(ctx, label.ID), apperrors.ErrNotFound)

	_, err = repo.GetByID(ctx, label.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	revived := newLabel("orders", []string{"id"}, "orders", []string{"id"}, true)
	created, err := repo.Upsert(ctx, revived)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, label.ID, revived.ID)

	got, err := repo.GetByID(ctx, label.ID)
	require.NoError(t, err)
	assert.Equal(t, label.Fingerprint, got.Fingerprint)
}

func TestKeyLabelRepository_UpdateDecision(t *testing.T) {
	repo := setupKeyLabelTest(t)
	ctx := context.Background()

	label := newLabel("orders", []string{"id"}, "payments", []string{"order_id"}, true)
	_, err := repo.Upsert(ctx, label)
	require.NoError(t, err)

	updated, err := repo.UpdateDecision(ctx, label.ID, false, "duplicates found", "reviewer")
	require.NoError(t, err)
	assert.False(t, updated.IsKey)
	assert.Equal(t, "reviewer", updated.Author)

	_, err = repo.UpdateDecision(ctx, uuid.New(), true, "", "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
