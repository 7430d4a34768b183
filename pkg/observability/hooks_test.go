package observability

import (
	"context"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	d := NoopDecompositionHooks{}
	d.OnStageStart(ctx, "scc")
	d.OnStageComplete(ctx, "scc", time.Second, nil)
	d.OnComponentsFound(ctx, 12000, 45)
	d.OnFeedbackResolved(ctx, "greedy-ordering", 17, 0)

	q := NoopQueryHooks{}
	q.OnSubmit(ctx, "viewport", "fragment [0,0 100,100]")
	q.OnComplete(ctx, "viewport", "success", 3*time.Millisecond)

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "fragment")
	c.OnCacheMiss(ctx, "overview")
	c.OnCacheSet(ctx, "fragment", 1024)
}

func TestSetAndReset(t *testing.T) {
	Reset()

	customDecomposition := &testDecompositionHooks{}
	SetDecompositionHooks(customDecomposition)
	if Decomposition() != customDecomposition {
		t.Error("SetDecompositionHooks should set custom hooks")
	}

	customQuery := &testQueryHooks{}
	SetQueryHooks(customQuery)
	if Query() != customQuery {
		t.Error("SetQueryHooks should set custom hooks")
	}

	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}

	// Reset and verify
	Reset()
	if _, ok := Decomposition().(NoopDecompositionHooks); !ok {
		t.Error("Reset() should restore NoopDecompositionHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()

	custom := &testQueryHooks{}
	SetQueryHooks(custom)

	// Setting nil should be ignored
	SetQueryHooks(nil)

	if Query() != custom {
		t.Error("SetQueryHooks(nil) should be ignored")
	}

	Reset()
}

// Test implementations
type testDecompositionHooks struct{ NoopDecompositionHooks }
type testQueryHooks struct{ NoopQueryHooks }
type testCacheHooks struct{ NoopCacheHooks }
