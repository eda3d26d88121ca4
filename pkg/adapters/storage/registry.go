package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/logging"
)

// Factory opens a backend for a DSN.
type Factory func(ctx context.Context, dsn string, opts Options, logger *zap.Logger) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register is called by each backend's init() function. Registering the
// same kind twice panics.
func Register(kind string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := registry[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	registry[kind] = f
}

// RegisteredBackends returns the registered kinds, sorted.
func RegisteredBackends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// IsRegistered checks if a backend kind is available.
func IsRegistered(kind string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[strings.ToLower(kind)]
	return ok
}

// Open constructs the backend registered under kind.
// An empty kind returns apperrors.ErrStorageNotConfigured.
func Open(ctx context.Context, kind, dsn string, opts Options, logger *zap.Logger) (Store, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" {
		return nil, apperrors.ErrStorageNotConfigured
	}

	registryMu.RLock()
	f, ok := registry[kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unsupported storage type %q (registered: %s)",
			apperrors.ErrInvalidConfig, kind, strings.Join(RegisteredBackends(), ", "))
	}

	logger.Info("Opening storage backend",
		zap.String("type", kind),
		zap.String("dsn", logging.SanitizeConnectionString(dsn)))

	store, err := f(ctx, dsn, opts.WithDefaults(), logger.Named("storage").Named(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %s", kind, logging.SanitizeError(err))
	}
	return store, nil
}
