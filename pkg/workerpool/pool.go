// Package workerpool runs independent units of work with bounded parallelism.
package workerpool

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Config configures the pool.
type Config struct {
	MaxConcurrent int // Maximum concurrent work items (default: 8)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent: 8,
	}
}

// Pool bounds how many work items execute at once. A semaphore limits
// outstanding items so a new one starts as soon as a slot frees up.
type Pool struct {
	config Config
	logger *zap.Logger
}

// New creates a new worker pool.
func New(config Config, logger *zap.Logger) *Pool {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	return &Pool{
		config: config,
		logger: logger.Named("worker-pool"),
	}
}

// Size returns the concurrency limit.
func (p *Pool) Size() int {
	return p.config.MaxConcurrent
}

// WorkItem represents a unit of work to be processed.
type WorkItem[T any] struct {
	ID      string                               // For logging/tracking
	Execute func(ctx context.Context) (T, error) // The work to be executed
}

// WorkResult represents the result of a work item.
type WorkResult[T any] struct {
	ID     string
	Result T
	Err    error
}

// Process executes all work items with bounded parallelism.
// Results are returned in submission order: results[i] belongs to items[i].
// Continues processing all items even if some fail. Items that never got a
// slot before ctx was cancelled carry ctx.Err().
func Process[T any](
	ctx context.Context,
	pool *Pool,
	items []WorkItem[T],
	onProgress func(completed, total int),
) []WorkResult[T] {
	if len(items) == 0 {
		return nil
	}

	results := make([]WorkResult[T], len(items))
	done := make(chan struct{}, len(items))
	sem := make(chan struct{}, pool.config.MaxConcurrent)

	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		go func(i int, item WorkItem[T]) {
			defer wg.Done()
			defer func() { done <- struct{}{} }()

			// Acquire semaphore slot (blocks if at max concurrency)
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i] = WorkResult[T]{ID: item.ID, Err: ctx.Err()}
				return
			}

			result, err := item.Execute(ctx)
			if err != nil {
				pool.logger.Debug("Work item failed", zap.String("id", item.ID), zap.Error(err))
			}
			results[i] = WorkResult[T]{ID: item.ID, Result: result, Err: err}
		}(i, item)
	}

	go func() {
		wg.Wait()
		close(done)
	}()

	completed := 0
	for range done {
		completed++
		if onProgress != nil {
			onProgress(completed, len(items))
		}
	}

	return results
}
