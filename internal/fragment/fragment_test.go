package fragment

import (
	"context"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/citetree/citetree/internal/executor"
	"github.com/citetree/citetree/internal/store"
	"github.com/citetree/citetree/pkg/graph"
	"github.com/citetree/citetree/pkg/graph/decompose"
	"github.com/citetree/citetree/pkg/spatial"
)

// newTestService stores a small decomposed graph and wires the service:
//
//	f(10,10) → a(0,0) → b(1,0) → c(2,0)   cycle closed by extra edge c→a
//	            a → d(3,0) → e(4,0)
//
// Degrees: a=5, b=2, c=2, d=2, e=1, f=1. Clusters: a,b,c=1; d,e=2; f=3.
func newTestService(t *testing.T, opts Options) *Service {
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
		{ID: "a", X: 0, Y: 0, Cluster: 1, Degree: 5, Year: 2001},
		{ID: "b", X: 1, Y: 0, Cluster: 1, Degree: 2, Year: 2002},
		{ID: "c", X: 2, Y: 0, Cluster: 1, Degree: 2, Year: 2003},
		{ID: "d", X: 3, Y: 0, Cluster: 2, Degree: 2, Year: 2004},
		{ID: "e", X: 4, Y: 0, Cluster: 2, Degree: 1, Year: 2005},
		{ID: "f", X: 10, Y: 10, Cluster: 3, Degree: 1, Year: 2006},
	}
	edges := []graph.Edge{
		{Src: "a", Dst: "b"}, {Src: "b", Dst: "c"}, {Src: "c", Dst: "a"},
		{Src: "a", Dst: "d"}, {Src: "d", Dst: "e"}, {Src: "f", Dst: "a"},
	}
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
		TreeEdges: []graph.Edge{
			{Src: "a", Dst: "b"}, {Src: "b", Dst: "c"},
			{Src: "a", Dst: "d"}, {Src: "d", Dst: "e"}, {Src: "f", Dst: "a"},
		},
		ExtraEdges: []graph.Edge{{Src: "c", Dst: "a"}},
	}
	levels := map[string]int{"f": 0, "a": 1, "b": 2, "d": 2, "c": 3, "e": 3}
	if err := st.SaveDecomposition(ctx, g, d, levels); err != nil {
		t.Fatalf("SaveDecomposition: %v", err)
	}

	// Reload so the index sees persisted levels.
	g, err = st.LoadGraph(ctx)
	if err != nil {
		t.Fatalf("LoadGraph: %v", err)
	}

	exec := executor.New(executor.Options{
		Workers:        2,
		QueueSize:      8,
		DefaultTimeout: time.Second,
		Counters:       &executor.Counters{},
	})
	t.Cleanup(exec.Close)

	return NewService(st, spatial.New(g), exec, opts, nil)
}

// lineBox covers the x axis segment holding nodes a through e.
var lineBox = spatial.Box{MinX: -0.5, MinY: -0.5, MaxX: 4.5, MaxY: 0.5}

func nodeIDs(nodes []NodePayload) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}

func TestViewportOrdersByDegreeThenID(t *testing.T) {
	s := newTestService(t, Options{})

	f, err := s.Viewport(context.Background(), ViewportRequest{Box: lineBox})
	if err != nil {
		t.Fatalf("Viewport: %v", err)
	}
	want := []string{"a", "b", "c", "d", "e"}
	if got := nodeIDs(f.Nodes); !slices.Equal(got, want) {
		t.Errorf("nodes = %v, want %v", got, want)
	}
	if f.HasMore {
		t.Error("HasMore = true, want false when everything fit")
	}
	if len(f.TreeEdges) != 4 {
		t.Errorf("TreeEdges = %v, want the 4 in-page edges", f.TreeEdges)
	}
	// f→a leaves the page: f is the external parent with degree 1.
	if len(f.BrokenEdges) != 1 {
		t.Fatalf("BrokenEdges = %v, want 1", f.BrokenEdges)
	}
	be := f.BrokenEdges[0]
	if be.External != "f" || be.Role != RoleParent || be.Priority != 1 {
		t.Errorf("broken edge = %+v, want external f, role parent, priority 1", be)
	}
}

func TestViewportEmptyIntersection(t *testing.T) {
	s := newTestService(t, Options{})

	f, err := s.Viewport(context.Background(), ViewportRequest{
		Box: spatial.Box{MinX: 100, MinY: 100, MaxX: 200, MaxY: 200},
	})
	if err != nil {
		t.Fatalf("Viewport: %v", err)
	}
	if f.Nodes == nil || f.TreeEdges == nil || f.BrokenEdges == nil {
		t.Error("empty fragment must have non-nil slices")
	}
	if len(f.Nodes) != 0 || len(f.TreeEdges) != 0 || len(f.BrokenEdges) != 0 || f.HasMore {
		t.Errorf("fragment = %+v, want typed empty", f)
	}
}

func TestViewportFilters(t *testing.T) {
	s := newTestService(t, Options{})
	ctx := context.Background()
	maxLevel := 2

	tests := []struct {
		name    string
		filters Filters
		want    []string
	}{
		{"min degree", Filters{MinDegree: 2}, []string{"a", "b", "c", "d"}},
		{"cluster", Filters{Clusters: []any{float64(1)}}, []string{"a", "b", "c"}},
		{"max level", Filters{MaxLevel: &maxLevel}, []string{"a", "b", "d"}},
		{"combined", Filters{MinDegree: 2, Clusters: []any{float64(2)}}, []string{"d"}},
		{"malformed cluster list ignored", Filters{Clusters: []any{"not-a-number"}}, []string{"a", "b", "c", "d", "e"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := s.Viewport(ctx, ViewportRequest{Box: lineBox, Filters: tt.filters})
			if err != nil {
				t.Fatalf("Viewport: %v", err)
			}
			if got := nodeIDs(f.Nodes); !slices.Equal(got, tt.want) {
				t.Errorf("nodes = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestViewportBrokenEdgeRoles(t *testing.T) {
	s := newTestService(t, Options{})

	// Cluster 1 page {a,b,c}: a→d leaves as child, f→a enters as parent.
	f, err := s.Viewport(context.Background(), ViewportRequest{
		Box:     lineBox,
		Filters: Filters{Clusters: []any{float64(1)}},
	})
	if err != nil {
		t.Fatalf("Viewport: %v", err)
	}
	roles := make(map[string]string)
	priorities := make(map[string]int)
	for _, be := range f.BrokenEdges {
		roles[be.External] = be.Role
		priorities[be.External] = be.Priority
	}
	if roles["d"] != RoleChild || roles["f"] != RoleParent {
		t.Errorf("roles = %v, want d=child f=parent", roles)
	}
	if priorities["d"] != 2 || priorities["f"] != 1 {
		t.Errorf("priorities = %v, want external degrees d=2 f=1", priorities)
	}
}

func TestViewportPaginationSweep(t *testing.T) {
	// Sweeping offset with a fixed limit yields exactly the filtered node
	// set, no duplicates, no gaps.
	s := newTestService(t, Options{})
	ctx := context.Background()

	var collected []string
	offset := 0
	for {
		f, err := s.Viewport(ctx, ViewportRequest{Box: lineBox, Offset: offset, Limit: 2})
		if err != nil {
			t.Fatalf("Viewport offset %d: %v", offset, err)
		}
		collected = append(collected, nodeIDs(f.Nodes)...)
		if !f.HasMore {
			break
		}
		offset += len(f.Nodes)
	}

	want := []string{"a", "b", "c", "d", "e"}
	if !slices.Equal(collected, want) {
		t.Errorf("sweep collected %v, want %v", collected, want)
	}

	// Past-the-end offset is a typed empty page.
	f, err := s.Viewport(ctx, ViewportRequest{Box: lineBox, Offset: 50, Limit: 2})
	if err != nil {
		t.Fatalf("Viewport: %v", err)
	}
	if len(f.Nodes) != 0 || f.HasMore {
		t.Errorf("past-the-end page = %+v, want empty without HasMore", f)
	}
}

func TestViewportMarginExpansion(t *testing.T) {
	s := newTestService(t, Options{Margin: 10})

	// The tight box only covers a; the margin pulls in its neighborhood.
	f, err := s.Viewport(context.Background(), ViewportRequest{
		Box: spatial.Box{MinX: -0.1, MinY: -0.1, MaxX: 0.1, MaxY: 0.1},
	})
	if err != nil {
		t.Fatalf("Viewport: %v", err)
	}
	if len(f.Nodes) < 2 {
		t.Errorf("nodes = %v, want margin to include neighbors of a", nodeIDs(f.Nodes))
	}
}

func TestExtraEdges(t *testing.T) {
	s := newTestService(t, Options{})
	ctx := context.Background()

	resp, err := s.ExtraEdges(ctx, "", []string{"a", "b", "c"}, 10)
	if err != nil {
		t.Fatalf("ExtraEdges: %v", err)
	}
	if len(resp.ExtraEdges) != 1 {
		t.Fatalf("ExtraEdges = %v, want the single feedback edge", resp.ExtraEdges)
	}
	e := resp.ExtraEdges[0]
	if e.Src != "c" || e.Dst != "a" || e.EdgeType != "feedback" {
		t.Errorf("extra edge = %+v", e)
	}

	// Nodes not touching any extra edge get a typed empty response.
	resp, err = s.ExtraEdges(ctx, "", []string{"e"}, 10)
	if err != nil {
		t.Fatalf("ExtraEdges: %v", err)
	}
	if resp.ExtraEdges == nil || len(resp.ExtraEdges) != 0 {
		t.Errorf("ExtraEdges = %#v, want typed empty", resp.ExtraEdges)
	}
}

func TestTopologicalOverview(t *testing.T) {
	s := newTestService(t, Options{})

	o, err := s.TopologicalOverview(context.Background(), "", 3, 1)
	if err != nil {
		t.Fatalf("TopologicalOverview: %v", err)
	}
	// One node per level for levels 0..2: f, a, then the higher-degree of
	// {b, d} which ties at 2 and resolves to b by id.
	want := []string{"f", "a", "b"}
	if got := nodeIDs(o.Nodes); !slices.Equal(got, want) {
		t.Errorf("overview = %v, want %v", got, want)
	}
	for i, n := range o.Nodes {
		if n.Level != i {
			t.Errorf("node %s level = %d, want %d", n.ID, n.Level, i)
		}
	}
}
