package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/apperrors"
)

func TestOpen_EmptyKindIsNotConfigured(t *testing.T) {
	_, err := Open(context.Background(), "  ", "", Options{}, zap.NewNop())
	assert.ErrorIs(t, err, apperrors.ErrStorageNotConfigured)
}

func TestOpen_UnknownKind(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "x", Options{}, zap.NewNop())
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}

func TestRegister_PanicsOnDuplicate(t *testing.T) {
	f := func(ctx context.Context, dsn string, opts Options, logger *zap.Logger) (Store, error) {
		return nil, errors.New("not used")
	}
	Register("test-dup", f)
	t.Cleanup(func() {
		registryMu.Lock()
		delete(registry, "test-dup")
		registryMu.Unlock()
	})

	assert.True(t, IsRegistered("TEST-DUP"))
	assert.Contains(t, RegisteredBackends(), "test-dup")
	assert.Panics(t, func() { Register("test-dup", f) })
	assert.Panics(t, func() { Register("", f) })
}

func TestOpen_PassesDefaultsAndSanitizesErrors(t *testing.T) {
	var got Options
	Register("test-capture", func(ctx context.Context, dsn string, opts Options, logger *zap.Logger) (Store, error) {
		got = opts
		return nil, errors.New("dial postgres://scout:s3cret@db/keys failed")
	})
	t.Cleanup(func() {
		registryMu.Lock()
		delete(registry, "test-capture")
		registryMu.Unlock()
	})

	_, err := Open(context.Background(), "test-capture", "postgres://scout:s3cret@db/keys", Options{}, zap.NewNop())
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "s3cret")
	assert.Equal(t, DefaultBatchSize, got.BatchSize)
	assert.NotNil(t, got.Retry)
}
