package graph

import (
	"errors"
	"strconv"
	"testing"
)

func buildGraph(t *testing.T, nodes []string, edges [][2]string) *Directed {
	t.Helper()
	g := New()
	for _, id := range nodes {
		if err := g.AddNode(Node{ID: id}); err != nil {
			t.Fatalf("AddNode(%s): %v", id, err)
		}
	}
	for _, e := range edges {
		if err := g.AddEdge(Edge{Src: e[0], Dst: e[1]}); err != nil {
			t.Fatalf("AddEdge(%s→%s): %v", e[0], e[1], err)
		}
	}
	return g
}

func TestAddNode_Duplicate(t *testing.T) {
	g := New()
	if err := g.AddNode(Node{ID: "a"}); err != nil {
		t.Fatalf("AddNode() = %v, want nil", err)
	}
	if err := g.AddNode(Node{ID: "a"}); !errors.Is(err, ErrDuplicateNodeID) {
		t.Errorf("AddNode() = %v, want ErrDuplicateNodeID", err)
	}
}

func TestAddNode_EmptyID(t *testing.T) {
	g := New()
	if err := g.AddNode(Node{}); !errors.Is(err, ErrInvalidNodeID) {
		t.Errorf("AddNode() = %v, want ErrInvalidNodeID", err)
	}
}

func TestAddEdge_UnknownEndpoints(t *testing.T) {
	g := New()
	g.AddNode(Node{ID: "a"})

	if err := g.AddEdge(Edge{Src: "missing", Dst: "a"}); !errors.Is(err, ErrUnknownSourceNode) {
		t.Errorf("AddEdge() = %v, want ErrUnknownSourceNode", err)
	}
	if err := g.AddEdge(Edge{Src: "a", Dst: "missing"}); !errors.Is(err, ErrUnknownTargetNode) {
		t.Errorf("AddEdge() = %v, want ErrUnknownTargetNode", err)
	}
}

func TestRemoveEdge(t *testing.T) {
	g := buildGraph(t, []string{"a", "b"}, [][2]string{{"a", "b"}})

	g.RemoveEdge("a", "b")

	if g.EdgeCount() != 0 {
		t.Errorf("EdgeCount() = %d, want 0", g.EdgeCount())
	}
	if g.OutDegree("a") != 0 || g.InDegree("b") != 0 {
		t.Errorf("adjacency not updated: out(a)=%d in(b)=%d", g.OutDegree("a"), g.InDegree("b"))
	}

	// Removing a missing edge is a no-op.
	g.RemoveEdge("a", "b")
}

func TestRemoveEdges(t *testing.T) {
	g := buildGraph(t, []string{"a", "b", "c", "d"},
		[][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}, {"d", "a"}, {"a", "c"}})

	g.RemoveEdges([]Edge{
		{Src: "d", Dst: "a"},
		{Src: "a", Dst: "c"},
		{Src: "x", Dst: "y"}, // unknown edges are ignored
	})

	if g.EdgeCount() != 3 {
		t.Errorf("EdgeCount() = %d, want 3", g.EdgeCount())
	}
	if g.OutDegree("d") != 0 || g.InDegree("a") != 0 {
		t.Errorf("adjacency not updated: out(d)=%d in(a)=%d", g.OutDegree("d"), g.InDegree("a"))
	}
	if err := g.CheckAcyclic(); err != nil {
		t.Errorf("CheckAcyclic() = %v after removing the cycle edges", err)
	}

	g.RemoveEdges(nil)
	if g.EdgeCount() != 3 {
		t.Errorf("EdgeCount() = %d after empty removal, want 3", g.EdgeCount())
	}
}

func TestRoots(t *testing.T) {
	g := buildGraph(t, []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}})

	roots := g.Roots()
	if len(roots) != 1 || roots[0] != "a" {
		t.Errorf("Roots() = %v, want [a]", roots)
	}
}

func TestSubgraph_Induced(t *testing.T) {
	g := buildGraph(t, []string{"a", "b", "c", "d"},
		[][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}, {"a", "d"}})

	sub := g.Subgraph([]string{"a", "b", "d"})

	if sub.NodeCount() != 3 {
		t.Errorf("NodeCount() = %d, want 3", sub.NodeCount())
	}
	// Only a→b and a→d survive; b→c and c→d cross the boundary.
	if sub.EdgeCount() != 2 {
		t.Errorf("EdgeCount() = %d, want 2", sub.EdgeCount())
	}
}

func TestClone_Independent(t *testing.T) {
	g := buildGraph(t, []string{"a", "b"}, [][2]string{{"a", "b"}})

	c := g.Clone()
	c.RemoveEdge("a", "b")

	if g.EdgeCount() != 1 {
		t.Errorf("original EdgeCount() = %d after clone mutation, want 1", g.EdgeCount())
	}
}

func TestCheckAcyclic(t *testing.T) {
	tests := []struct {
		name    string
		nodes   []string
		edges   [][2]string
		wantErr bool
	}{
		{"empty", nil, nil, false},
		{"chain", []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}}, false},
		{"diamond", []string{"a", "b", "c", "d"},
			[][2]string{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}}, false},
		{"self loop", []string{"a"}, [][2]string{{"a", "a"}}, true},
		{"two cycle", []string{"a", "b"}, [][2]string{{"a", "b"}, {"b", "a"}}, true},
		{"triangle", []string{"a", "b", "c"},
			[][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := buildGraph(t, tt.nodes, tt.edges)
			err := g.CheckAcyclic()
			if tt.wantErr && !errors.Is(err, ErrGraphHasCycle) {
				t.Errorf("CheckAcyclic() = %v, want ErrGraphHasCycle", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("CheckAcyclic() = %v, want nil", err)
			}
		})
	}
}

func TestCheckAcyclic_DeepChain(t *testing.T) {
	// A chain long enough to overflow a recursive DFS.
	g := New()
	const n = 200000
	prev := ""
	for i := 0; i < n; i++ {
		id := "n" + strconv.Itoa(i)
		g.AddNode(Node{ID: id})
		if prev != "" {
			g.AddEdge(Edge{Src: prev, Dst: id})
		}
		prev = id
	}
	if err := g.CheckAcyclic(); err != nil {
		t.Errorf("CheckAcyclic() = %v, want nil", err)
	}
}

func TestTopoSort(t *testing.T) {
	g := buildGraph(t, []string{"a", "b", "c", "d"},
		[][2]string{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}})

	order, err := g.TopoSort()
	if err != nil {
		t.Fatalf("TopoSort() error = %v", err)
	}
	pos := PosMap(order)
	for _, e := range g.Edges() {
		if pos[e.Src] >= pos[e.Dst] {
			t.Errorf("order violates edge %s→%s", e.Src, e.Dst)
		}
	}
}

func TestTopoSort_Cycle(t *testing.T) {
	g := buildGraph(t, []string{"a", "b"}, [][2]string{{"a", "b"}, {"b", "a"}})

	if _, err := g.TopoSort(); !errors.Is(err, ErrGraphHasCycle) {
		t.Errorf("TopoSort() = %v, want ErrGraphHasCycle", err)
	}
}

func TestValidate_DetectsCorruption(t *testing.T) {
	g := buildGraph(t, []string{"a", "b"}, [][2]string{{"a", "b"}})
	// Simulate a corrupt load: edge list references a node that was never added.
	g.edges = append(g.edges, Edge{Src: "a", Dst: "ghost"})

	if err := g.Validate(); !errors.Is(err, ErrInvalidEdgeEndpoint) {
		t.Errorf("Validate() = %v, want ErrInvalidEdgeEndpoint", err)
	}
}
