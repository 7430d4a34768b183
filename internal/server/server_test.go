package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/citetree/citetree/internal/executor"
	"github.com/citetree/citetree/internal/fragment"
	"github.com/citetree/citetree/internal/store"
	"github.com/citetree/citetree/pkg/graph"
	"github.com/citetree/citetree/pkg/graph/decompose"
	"github.com/citetree/citetree/pkg/spatial"
)

// memCache is an in-memory cache.Cache that counts hits for assertions.
type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	hits    int
}

func newMemCache() *memCache { return &memCache{entries: make(map[string][]byte)} }

func (c *memCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return data, ok, nil
}

func (c *memCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = data
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *memCache) Close() error { return nil }

type fixture struct {
	server *Server
	exec   *executor.Executor
	cache  *memCache
}

// newFixture seeds the store with the chain f→a→b plus extra edge b→a and
// wires a server around it.
func newFixture(t *testing.T, execOpts executor.Options) *fixture {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), "nodes")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	nodes := []graph.Node{
		{ID: "a", X: 0, Y: 0, Cluster: 1, Degree: 3},
		{ID: "b", X: 1, Y: 0, Cluster: 1, Degree: 2},
		{ID: "f", X: 9, Y: 9, Cluster: 2, Degree: 1},
	}
	edges := []graph.Edge{{Src: "f", Dst: "a"}, {Src: "a", Dst: "b"}, {Src: "b", Dst: "a"}}
	if err := st.ImportNodes(ctx, nodes); err != nil {
		t.Fatalf("ImportNodes: %v", err)
	}
	if err := st.ImportEdges(ctx, edges); err != nil {
		t.Fatalf("ImportEdges: %v", err)
	}
	g, err := st.LoadGraph(ctx)
	if err != nil {
		t.Fatalf("LoadGraph: %v", err)
	}
	d := &decompose.Decomposition{
		TreeEdges:  []graph.Edge{{Src: "f", Dst: "a"}, {Src: "a", Dst: "b"}},
		ExtraEdges: []graph.Edge{{Src: "b", Dst: "a"}},
	}
	if err := st.SaveDecomposition(ctx, g, d, map[string]int{"f": 0, "a": 1, "b": 2}); err != nil {
		t.Fatalf("SaveDecomposition: %v", err)
	}
	g, err = st.LoadGraph(ctx)
	if err != nil {
		t.Fatalf("LoadGraph: %v", err)
	}

	counters := &executor.Counters{}
	execOpts.Counters = counters
	exec := executor.New(execOpts)
	t.Cleanup(exec.Close)

	service := fragment.NewService(st, spatial.New(g), exec, fragment.Options{}, nil)
	mc := newMemCache()
	srv := New(service, exec, st, counters, Options{Cache: mc, CacheTTL: time.Minute})
	return &fixture{server: srv, exec: exec, cache: mc}
}

func defaultExecOpts() executor.Options {
	return executor.Options{Workers: 2, QueueSize: 4, DefaultTimeout: time.Second}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return out
}

func viewportBody() fragment.ViewportRequest {
	return fragment.ViewportRequest{
		Box: spatial.Box{MinX: -1, MinY: -1, MaxX: 2, MaxY: 1},
	}
}

func TestViewportEndpoint(t *testing.T) {
	f := newFixture(t, defaultExecOpts())

	rec := f.do(t, http.MethodPost, "/api/fragments/viewport", viewportBody())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	frag := decodeBody[fragment.Fragment](t, rec)
	if len(frag.Nodes) != 2 {
		t.Errorf("nodes = %v, want a and b", frag.Nodes)
	}
	if len(frag.BrokenEdges) != 1 || frag.BrokenEdges[0].External != "f" {
		t.Errorf("broken edges = %v, want f→a", frag.BrokenEdges)
	}
}

func TestViewportCaching(t *testing.T) {
	f := newFixture(t, defaultExecOpts())

	first := f.do(t, http.MethodPost, "/api/fragments/viewport", viewportBody())
	second := f.do(t, http.MethodPost, "/api/fragments/viewport", viewportBody())
	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("statuses = %d, %d", first.Code, second.Code)
	}
	if f.cache.hits != 1 {
		t.Errorf("cache hits = %d, want 1 (second request served from cache)", f.cache.hits)
	}
	if first.Body.String() != second.Body.String() {
		t.Error("cached response differs from computed response")
	}

	// A different request id must not fork the cache entry.
	body := viewportBody()
	body.RequestID = "custom-id"
	f.do(t, http.MethodPost, "/api/fragments/viewport", body)
	if f.cache.hits != 2 {
		t.Errorf("cache hits = %d, want request id excluded from the key", f.cache.hits)
	}
}

func TestViewportMalformedBody(t *testing.T) {
	f := newFixture(t, defaultExecOpts())

	req := httptest.NewRequest(http.MethodPost, "/api/fragments/viewport", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestViewportTimeoutMapsTo504(t *testing.T) {
	// One worker, no queue slack, and a 5ms viewport deadline: a held
	// worker forces the viewport query to time out while queued.
	f := newFixture(t, executor.Options{
		Workers:        1,
		QueueSize:      0,
		DefaultTimeout: time.Second,
		Timeouts:       map[string]time.Duration{fragment.ClassViewport: 5 * time.Millisecond},
	})

	started := make(chan struct{})
	release := make(chan struct{})
	go f.exec.Submit(context.Background(), executor.Request{Class: "hold"},
		func(ctx context.Context) (any, error) {
			close(started)
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil, nil
		})
	<-started
	defer close(release)

	rec := f.do(t, http.MethodPost, "/api/fragments/viewport", viewportBody())
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504; body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody[errorBody](t, rec)
	if body.Error.Code != "TIMEOUT" || !body.Error.Retryable {
		t.Errorf("error body = %+v, want retryable TIMEOUT", body.Error)
	}
}

func TestExtraEdgesEndpoint(t *testing.T) {
	f := newFixture(t, defaultExecOpts())

	rec := f.do(t, http.MethodPost, "/api/edges/extra", map[string]any{
		"nodeIds":  []string{"a", "b"},
		"maxEdges": 10,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[fragment.ExtraEdgesResponse](t, rec)
	if len(resp.ExtraEdges) != 1 || resp.ExtraEdges[0].Src != "b" {
		t.Errorf("extra edges = %v, want b→a", resp.ExtraEdges)
	}

	if rec := f.do(t, http.MethodPost, "/api/edges/extra", map[string]any{"nodeIds": []string{}}); rec.Code != http.StatusBadRequest {
		t.Errorf("empty nodeIds status = %d, want 400", rec.Code)
	}
}

func TestOverviewEndpoint(t *testing.T) {
	f := newFixture(t, defaultExecOpts())

	rec := f.do(t, http.MethodGet, "/api/overview?maxLevels=2&maxNodesPerLevel=5", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	o := decodeBody[fragment.Overview](t, rec)
	if len(o.Nodes) != 2 {
		t.Errorf("overview nodes = %v, want levels 0 and 1 (f, a)", o.Nodes)
	}

	if rec := f.do(t, http.MethodGet, "/api/overview?maxLevels=abc", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad maxLevels status = %d, want 400", rec.Code)
	}
}

func TestCancelEndpoints(t *testing.T) {
	f := newFixture(t, defaultExecOpts())

	if rec := f.do(t, http.MethodDelete, "/api/queries/nope", nil); rec.Code != http.StatusNotFound {
		t.Errorf("cancel unknown status = %d, want 404", rec.Code)
	}

	rec := f.do(t, http.MethodDelete, "/api/queries", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel all status = %d", rec.Code)
	}
	body := decodeBody[map[string]int](t, rec)
	if body["cancelled"] != 0 {
		t.Errorf("cancelled = %d, want 0 with nothing outstanding", body["cancelled"])
	}
}

func TestActiveQueriesEndpoint(t *testing.T) {
	f := newFixture(t, defaultExecOpts())

	rec := f.do(t, http.MethodGet, "/api/queries", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody[map[string]map[string]activeQueryBody](t, rec)
	if len(body["queries"]) != 0 {
		t.Errorf("queries = %v, want empty", body["queries"])
	}
}

func TestStatsEndpoint(t *testing.T) {
	f := newFixture(t, defaultExecOpts())

	// Run one viewport query so the counters move.
	f.do(t, http.MethodPost, "/api/fragments/viewport", viewportBody())

	rec := f.do(t, http.MethodGet, "/api/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Queries executor.Snapshot `json:"queries"`
		Store   store.Stats       `json:"store"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding stats: %v", err)
	}
	if body.Queries.Submitted != 1 || body.Queries.Succeeded != 1 {
		t.Errorf("query counters = %+v", body.Queries)
	}
	if body.Store.Nodes != 3 || body.Store.TreeEdges != 2 || body.Store.ExtraEdges != 1 {
		t.Errorf("store stats = %+v", body.Store)
	}
}
