package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"librarian/pkg/logger"
)

// WarmUpFunc loads one group of entries into the cache.
type WarmUpFunc func(ctx context.Context) error

// WarmUpManager runs the registered warm-up functions concurrently.
type WarmUpManager struct {
	logger logger.Logger
	tasks  map[string]WarmUpFunc
}

func NewWarmUpManager(logger logger.Logger) *WarmUpManager {
	return &WarmUpManager{
		logger: logger,
		tasks:  make(map[string]WarmUpFunc),
	}
}

func (w *WarmUpManager) Register(name string, fn WarmUpFunc) {
	w.tasks[name] = fn
}

// Run waits for every task and returns the first failure. A failed warm-up
// leaves the cache cold, which is still correct.
func (w *WarmUpManager) Run(ctx context.Context) error {
	start := time.Now()

	var wg sync.WaitGroup
	errChan := make(chan error, len(w.tasks))

	for name, fn := range w.tasks {
		wg.Add(1)
		go func(name string, fn WarmUpFunc) {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				errChan <- fmt.Errorf("%s warm-up failed: %w", name, err)
			}
		}(name, fn)
	}

	wg.Wait()
	close(errChan)

	var first error
	for err := range errChan {
		w.logger.Warn("Cache warm-up failed", map[string]interface{}{"error": err.Error()})
		if first == nil {
			first = err
		}
	}

	w.logger.Info("Cache warm-up finished", map[string]interface{}{
		"tasks":    len(w.tasks),
		"duration": time.Since(start).String(),
	})

	return first
}
