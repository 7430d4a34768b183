package store

import (
	"context"
	"path/filepath"
	"slices"
	"strconv"
	"testing"

	"github.com/citetree/citetree/pkg/errors"
	"github.com/citetree/citetree/pkg/graph"
	"github.com/citetree/citetree/pkg/graph/decompose"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), "nodes")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return s
}

// seedTriangle stores the canonical 5-node fixture: cycle a→b→c→a plus
// d→a and a→e, with coordinates on a diagonal and degrees matching the
// edge counts.
func seedTriangle(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	nodes := []graph.Node{
		{ID: "a", X: 0, Y: 0, Cluster: 1, Degree: 4, Year: 2001},
		{ID: "b", X: 1, Y: 1, Cluster: 1, Degree: 2, Year: 2002},
		{ID: "c", X: 2, Y: 2, Cluster: 1, Degree: 2, Year: 2003},
		{ID: "d", X: 3, Y: 3, Cluster: 2, Degree: 1, Year: 2004},
		{ID: "e", X: 4, Y: 4, Cluster: 2, Degree: 1, Year: 2005},
	}
	edges := []graph.Edge{
		{Src: "a", Dst: "b"}, {Src: "b", Dst: "c"}, {Src: "c", Dst: "a"},
		{Src: "d", Dst: "a"}, {Src: "a", Dst: "e"},
	}
	if err := s.ImportNodes(ctx, nodes); err != nil {
		t.Fatalf("ImportNodes: %v", err)
	}
	if err := s.ImportEdges(ctx, edges); err != nil {
		t.Fatalf("ImportEdges: %v", err)
	}
}

func TestOpenRejectsBadTableName(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "test.db"), "nodes; DROP TABLE nodes")
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Fatalf("Open error = %v, want INVALID_CONFIG", err)
	}
}

func TestLoadGraphRoundTrip(t *testing.T) {
	s := openTestStore(t)
	seedTriangle(t, s)

	g, err := s.LoadGraph(context.Background())
	if err != nil {
		t.Fatalf("LoadGraph: %v", err)
	}
	if g.NodeCount() != 5 || g.EdgeCount() != 5 {
		t.Fatalf("loaded %d nodes / %d edges, want 5 / 5", g.NodeCount(), g.EdgeCount())
	}
	n, ok := g.Node("a")
	if !ok {
		t.Fatal("node a missing")
	}
	if n.Cluster != 1 || n.Degree != 4 || n.Year != 2001 {
		t.Errorf("node a payload = %+v", n)
	}
}

func TestLoadGraphFailsOnDanglingEdge(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.ImportNodes(ctx, []graph.Node{{ID: "a"}}); err != nil {
		t.Fatalf("ImportNodes: %v", err)
	}
	if err := s.ImportEdges(ctx, []graph.Edge{{Src: "a", Dst: "ghost"}}); err != nil {
		t.Fatalf("ImportEdges: %v", err)
	}

	_, err := s.LoadGraph(ctx)
	if !errors.Is(err, errors.ErrCodeIntegrity) {
		t.Fatalf("LoadGraph error = %v, want DATA_INTEGRITY", err)
	}
}

func saveTriangleDecomposition(t *testing.T, s *Store) *graph.Directed {
	t.Helper()
	ctx := context.Background()
	g, err := s.LoadGraph(ctx)
	if err != nil {
		t.Fatalf("LoadGraph: %v", err)
	}
	d := &decompose.Decomposition{
		TreeEdges: []graph.Edge{
			{Src: "a", Dst: "b"}, {Src: "b", Dst: "c"},
			{Src: "d", Dst: "a"}, {Src: "a", Dst: "e"},
		},
		ExtraEdges: []graph.Edge{{Src: "c", Dst: "a"}},
	}
	levels := map[string]int{"a": 1, "b": 2, "c": 3, "d": 0, "e": 2}
	if err := s.SaveDecomposition(ctx, g, d, levels); err != nil {
		t.Fatalf("SaveDecomposition: %v", err)
	}
	return g
}

func TestSaveDecompositionAndQuery(t *testing.T) {
	s := openTestStore(t)
	seedTriangle(t, s)
	saveTriangleDecomposition(t, s)
	ctx := context.Background()

	// Levels were written back to the node table.
	nodes, err := s.NodesByIDs(ctx, []string{"c", "d"})
	if err != nil {
		t.Fatalf("NodesByIDs: %v", err)
	}
	byID := make(map[string]graph.Node)
	for _, n := range nodes {
		byID[n.ID] = n
	}
	if byID["c"].Level != 3 || byID["d"].Level != 0 {
		t.Errorf("levels: c=%d d=%d, want 3 and 0", byID["c"].Level, byID["d"].Level)
	}

	// Tree edges touching the page {a, b}.
	edges, err := s.TreeEdgesTouching(ctx, []string{"a", "b"})
	if err != nil {
		t.Fatalf("TreeEdgesTouching: %v", err)
	}
	if len(edges) != 4 {
		t.Errorf("TreeEdgesTouching = %v, want all 4 tree edges", edges)
	}

	// Extra edges with priority = combined endpoint degree (c:2 + a:4).
	extra, err := s.ExtraEdgesForNodes(ctx, []string{"a"}, 10)
	if err != nil {
		t.Fatalf("ExtraEdgesForNodes: %v", err)
	}
	if len(extra) != 1 {
		t.Fatalf("ExtraEdgesForNodes = %v, want 1 edge", extra)
	}
	e := extra[0]
	if e.Src != "c" || e.Dst != "a" || e.EdgeType != "feedback" || e.Priority != 6 || e.Weight != 1.0 {
		t.Errorf("extra edge = %+v", e)
	}
}

func TestSaveDecompositionReplacesPriorRun(t *testing.T) {
	s := openTestStore(t)
	seedTriangle(t, s)
	g := saveTriangleDecomposition(t, s)
	ctx := context.Background()

	// Second run with a different feedback choice replaces the tables.
	d := &decompose.Decomposition{
		TreeEdges: []graph.Edge{
			{Src: "b", Dst: "c"}, {Src: "c", Dst: "a"},
			{Src: "d", Dst: "a"}, {Src: "a", Dst: "e"},
		},
		ExtraEdges: []graph.Edge{{Src: "a", Dst: "b"}},
	}
	if err := s.SaveDecomposition(ctx, g, d, map[string]int{"a": 0}); err != nil {
		t.Fatalf("SaveDecomposition: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TreeEdges != 4 || stats.ExtraEdges != 1 {
		t.Errorf("stats after rerun = %+v, want 4 tree / 1 extra", stats)
	}
	extra, err := s.ExtraEdgesForNodes(ctx, []string{"b"}, 10)
	if err != nil {
		t.Fatalf("ExtraEdgesForNodes: %v", err)
	}
	if len(extra) != 1 || extra[0].Src != "a" || extra[0].Dst != "b" {
		t.Errorf("extra = %v, want only a→b", extra)
	}
}

func TestNodesByLevel(t *testing.T) {
	s := openTestStore(t)
	seedTriangle(t, s)
	saveTriangleDecomposition(t, s)

	// Level 2 holds b (degree 2) and e (degree 1); highest degree first.
	nodes, err := s.NodesByLevel(context.Background(), 2, 10)
	if err != nil {
		t.Fatalf("NodesByLevel: %v", err)
	}
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	if !slices.Equal(ids, []string{"b", "e"}) {
		t.Errorf("NodesByLevel(2) = %v, want [b e]", ids)
	}

	limited, err := s.NodesByLevel(context.Background(), 2, 1)
	if err != nil {
		t.Fatalf("NodesByLevel: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "b" {
		t.Errorf("NodesByLevel(2, limit 1) = %v, want [b]", limited)
	}
}

func TestStatsBeforeDecomposition(t *testing.T) {
	s := openTestStore(t)
	seedTriangle(t, s)

	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Nodes != 5 || stats.Edges != 5 {
		t.Errorf("stats = %+v, want 5 nodes / 5 edges", stats)
	}
	if stats.TreeEdges != 0 || stats.ExtraEdges != 0 {
		t.Errorf("decomposition counts = %d/%d, want 0/0 before first run", stats.TreeEdges, stats.ExtraEdges)
	}
}

func TestNodesByIDsBatching(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var nodes []graph.Node
	var ids []string
	for i := 0; i < batchSize+50; i++ {
		id := "n" + strconv.Itoa(i)
		nodes = append(nodes, graph.Node{ID: id})
		ids = append(ids, id)
	}
	if err := s.ImportNodes(ctx, nodes); err != nil {
		t.Fatalf("ImportNodes: %v", err)
	}

	got, err := s.NodesByIDs(ctx, append(ids, "absent"))
	if err != nil {
		t.Fatalf("NodesByIDs: %v", err)
	}
	if len(got) != len(ids) {
		t.Errorf("NodesByIDs returned %d nodes, want %d", len(got), len(ids))
	}
}
