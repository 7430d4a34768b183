// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about decomposition runs, query execution, and cache
// operations.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// This approach:
//   - Avoids import cycles (hooks are registered by main, not by libraries)
//   - Keeps the core library dependency-free from observability frameworks
//   - Allows different backends (OpenTelemetry, Prometheus, DataDog, etc.)
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetDecompositionHooks(&myDecompositionHooks{})
//	    observability.SetQueryHooks(&myQueryHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Decomposition().OnStageStart(ctx, stage)
//	// ... run stage ...
//	observability.Decomposition().OnStageComplete(ctx, stage, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Decomposition Hooks
// =============================================================================

// DecompositionHooks receives events from the batch decomposition pipeline.
type DecompositionHooks interface {
	// Stage events, one pair per pipeline stage (load, scc, solve, ...).
	OnStageStart(ctx context.Context, stage string)
	OnStageComplete(ctx context.Context, stage string, duration time.Duration, err error)

	// OnComponentsFound reports the SCC analysis outcome.
	OnComponentsFound(ctx context.Context, total, largest int)

	// OnFeedbackResolved reports the verified feedback edge set.
	OnFeedbackResolved(ctx context.Context, strategy string, edges, retries int)
}

// =============================================================================
// Query Hooks
// =============================================================================

// QueryHooks receives events from the request-serving query executor.
type QueryHooks interface {
	// OnSubmit records a query entering the pool.
	OnSubmit(ctx context.Context, class, description string)

	// OnComplete records a finished query with its outcome status.
	OnComplete(ctx context.Context, class, status string, duration time.Duration)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from fragment cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopDecompositionHooks is a no-op implementation of DecompositionHooks.
type NoopDecompositionHooks struct{}

func (NoopDecompositionHooks) OnStageStart(context.Context, string)                          {}
func (NoopDecompositionHooks) OnStageComplete(context.Context, string, time.Duration, error) {}
func (NoopDecompositionHooks) OnComponentsFound(context.Context, int, int)                   {}
func (NoopDecompositionHooks) OnFeedbackResolved(context.Context, string, int, int)          {}

// NoopQueryHooks is a no-op implementation of QueryHooks.
type NoopQueryHooks struct{}

func (NoopQueryHooks) OnSubmit(context.Context, string, string)                  {}
func (NoopQueryHooks) OnComplete(context.Context, string, string, time.Duration) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	decompositionHooks DecompositionHooks = NoopDecompositionHooks{}
	queryHooks         QueryHooks         = NoopQueryHooks{}
	cacheHooks         CacheHooks         = NoopCacheHooks{}
	hooksMu            sync.RWMutex
)

// SetDecompositionHooks registers custom decomposition hooks.
// This should be called once at application startup before any pipeline runs.
func SetDecompositionHooks(h DecompositionHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		decompositionHooks = h
	}
}

// SetQueryHooks registers custom query hooks.
// This should be called once at application startup before serving begins.
func SetQueryHooks(h QueryHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		queryHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Decomposition returns the registered decomposition hooks.
func Decomposition() DecompositionHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return decompositionHooks
}

// Query returns the registered query hooks.
func Query() QueryHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return queryHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	decompositionHooks = NoopDecompositionHooks{}
	queryHooks = NoopQueryHooks{}
	cacheHooks = NoopCacheHooks{}
}
