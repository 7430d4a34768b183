package graph

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrInvalidNodeID is returned by [Directed.AddNode] when the node ID is
	// empty. All nodes must have non-empty identifiers.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [Directed.AddNode] when a node with
	// the same ID already exists in the graph. Node IDs must be unique.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownSourceNode is returned by [Directed.AddEdge] when the Src
	// node does not exist in the graph.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [Directed.AddEdge] when the Dst
	// node does not exist in the graph.
	ErrUnknownTargetNode = errors.New("unknown target node")

	// ErrInvalidEdgeEndpoint is returned by [Directed.Validate] when an edge
	// references a node that doesn't exist. This indicates corrupt input
	// data (a citation pointing at a paper absent from the node table) and
	// must fail the batch pipeline rather than be silently dropped.
	ErrInvalidEdgeEndpoint = errors.New("invalid edge endpoint")

	// ErrGraphHasCycle is returned by [Directed.CheckAcyclic] and
	// [Directed.TopoSort] when a directed cycle is detected.
	ErrGraphHasCycle = errors.New("graph contains a cycle")
)

// Node is a paper in the citation graph. Coordinates, cluster assignment and
// degree are produced by the upstream embedding pipeline and are read-only
// here. Year is the publication year, or zero when unknown.
//
// The zero value is not usable - ID must be set before adding to a graph.
type Node struct {
	ID      string  // unique paper identifier
	X, Y    float64 // 2D layout coordinate from the embedding pipeline
	Cluster int     // cluster assignment, -1 when unclustered
	Degree  int     // precomputed total edge count (citation importance proxy)
	Year    int     // publication year, 0 when unknown
	Level   int     // topological level over tree edges, set by decompose
}

// Edge is a directed citation: Src cites Dst.
type Edge struct {
	Src string
	Dst string
}

// Directed is a directed citation graph with adjacency indexes for
// traversal in both directions.
//
// The zero value is not usable - use New to create a valid instance.
// Directed is not safe for concurrent mutation; read-only access from
// multiple goroutines is safe.
type Directed struct {
	nodes    map[string]*Node
	edges    []Edge
	outgoing map[string][]string // src -> dst IDs
	incoming map[string][]string // dst -> src IDs
}

// New creates an empty directed graph.
func New() *Directed {
	return &Directed{
		nodes:    make(map[string]*Node),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
	}
}

// AddNode adds a node to the graph. Returns ErrInvalidNodeID if the node ID
// is empty, or ErrDuplicateNodeID if a node with the same ID already exists.
func (g *Directed) AddNode(n Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if _, exists := g.nodes[n.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNodeID, n.ID)
	}
	node := &n
	g.nodes[node.ID] = node
	return nil
}

// AddEdge adds a directed edge between two existing nodes. Returns
// ErrUnknownSourceNode or ErrUnknownTargetNode when an endpoint is missing;
// edges are never silently dropped.
func (g *Directed) AddEdge(e Edge) error {
	if _, ok := g.nodes[e.Src]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSourceNode, e.Src)
	}
	if _, ok := g.nodes[e.Dst]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTargetNode, e.Dst)
	}
	g.edges = append(g.edges, e)
	g.outgoing[e.Src] = append(g.outgoing[e.Src], e.Dst)
	g.incoming[e.Dst] = append(g.incoming[e.Dst], e.Src)
	return nil
}

// RemoveEdge removes the edge src→dst if it exists. No error is returned if
// the edge does not exist. If parallel edges exist, all are removed.
func (g *Directed) RemoveEdge(src, dst string) {
	g.edges = slices.DeleteFunc(g.edges, func(e Edge) bool { return e.Src == src && e.Dst == dst })
	g.outgoing[src] = slices.DeleteFunc(g.outgoing[src], func(s string) bool { return s == dst })
	g.incoming[dst] = slices.DeleteFunc(g.incoming[dst], func(s string) bool { return s == src })
}

// RemoveEdges removes every listed edge in a single pass over the edge
// slice. Per-edge RemoveEdge calls rescan all edges each time, which is
// quadratic when a feedback set is removed from a large component.
func (g *Directed) RemoveEdges(edges []Edge) {
	if len(edges) == 0 {
		return
	}
	drop := make(map[Edge]struct{}, len(edges))
	for _, e := range edges {
		drop[e] = struct{}{}
	}
	g.edges = slices.DeleteFunc(g.edges, func(e Edge) bool {
		_, ok := drop[e]
		return ok
	})
	for e := range drop {
		g.outgoing[e.Src] = slices.DeleteFunc(g.outgoing[e.Src], func(s string) bool { return s == e.Dst })
		g.incoming[e.Dst] = slices.DeleteFunc(g.incoming[e.Dst], func(s string) bool { return s == e.Src })
	}
}

// Node returns the node with the given ID and true, or nil and false if not
// found. The returned pointer refers to the actual node in the graph.
func (g *Directed) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes in the graph. The order is not guaranteed.
func (g *Directed) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, n)
	}
	return nodes
}

// NodeIDs returns all node IDs in the graph. The order is not guaranteed.
func (g *Directed) NodeIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	return ids
}

// Edges returns a copy of all edges in insertion order.
func (g *Directed) Edges() []Edge { return slices.Clone(g.edges) }

// NodeCount returns the number of nodes in the graph.
func (g *Directed) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges in the graph.
func (g *Directed) EdgeCount() int { return len(g.edges) }

// Successors returns the IDs of nodes this node cites.
// The returned slice is a read-only view; do not modify it.
func (g *Directed) Successors(id string) []string { return g.outgoing[id] }

// Predecessors returns the IDs of nodes citing this node.
// The returned slice is a read-only view; do not modify it.
func (g *Directed) Predecessors(id string) []string { return g.incoming[id] }

// OutDegree returns the number of outgoing edges from the node,
// or 0 if the node doesn't exist.
func (g *Directed) OutDegree(id string) int { return len(g.outgoing[id]) }

// InDegree returns the number of incoming edges to the node,
// or 0 if the node doesn't exist.
func (g *Directed) InDegree(id string) int { return len(g.incoming[id]) }

// Roots returns the IDs of nodes with no incoming edges. For a citation
// graph these are the papers nothing in the set cites.
func (g *Directed) Roots() []string {
	var roots []string
	for id := range g.nodes {
		if len(g.incoming[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Clone returns a deep copy of the graph. Node structs are copied, so
// mutations of the clone never affect the original.
func (g *Directed) Clone() *Directed {
	c := New()
	for _, n := range g.nodes {
		node := *n
		c.nodes[node.ID] = &node
	}
	c.edges = slices.Clone(g.edges)
	for id, out := range g.outgoing {
		c.outgoing[id] = slices.Clone(out)
	}
	for id, in := range g.incoming {
		c.incoming[id] = slices.Clone(in)
	}
	return c
}

// Subgraph returns the subgraph induced by the given node IDs: those nodes
// plus every edge whose endpoints are both in the set. Unknown IDs are
// ignored.
func (g *Directed) Subgraph(ids []string) *Directed {
	member := make(map[string]bool, len(ids))
	sub := New()
	for _, id := range ids {
		if n, ok := g.nodes[id]; ok && !member[id] {
			member[id] = true
			node := *n
			sub.nodes[id] = &node
		}
	}
	for _, e := range g.edges {
		if member[e.Src] && member[e.Dst] {
			sub.edges = append(sub.edges, e)
			sub.outgoing[e.Src] = append(sub.outgoing[e.Src], e.Dst)
			sub.incoming[e.Dst] = append(sub.incoming[e.Dst], e.Src)
		}
	}
	return sub
}

// Validate checks that every edge references existing nodes. Returns
// ErrInvalidEdgeEndpoint naming the first offending edge. AddEdge already
// enforces this; Validate exists to re-check graphs assembled from
// persisted tables before a decomposition run.
func (g *Directed) Validate() error {
	for _, e := range g.edges {
		if _, ok := g.nodes[e.Src]; !ok {
			return fmt.Errorf("%w: edge %s→%s references missing source", ErrInvalidEdgeEndpoint, e.Src, e.Dst)
		}
		if _, ok := g.nodes[e.Dst]; !ok {
			return fmt.Errorf("%w: edge %s→%s references missing target", ErrInvalidEdgeEndpoint, e.Src, e.Dst)
		}
	}
	return nil
}

// CheckAcyclic returns nil if the graph contains no directed cycle, or
// ErrGraphHasCycle otherwise. Detection is an iterative depth-first search
// with white/gray/black coloring; citation graphs can be millions of nodes
// deep, so no recursion.
func (g *Directed) CheckAcyclic() error {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, len(g.nodes))

	type frame struct {
		id   string
		next int
	}

	for start := range g.nodes {
		if color[start] != white {
			continue
		}
		stack := []frame{{id: start}}
		color[start] = gray
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			children := g.outgoing[top.id]
			if top.next < len(children) {
				child := children[top.next]
				top.next++
				switch color[child] {
				case white:
					color[child] = gray
					stack = append(stack, frame{id: child})
				case gray:
					return fmt.Errorf("%w: back edge %s→%s", ErrGraphHasCycle, top.id, child)
				}
				continue
			}
			color[top.id] = black
			stack = stack[:len(stack)-1]
		}
	}
	return nil
}

// TopoSort returns a topological ordering of all nodes using Kahn's
// algorithm, or ErrGraphHasCycle if no such ordering exists.
func (g *Directed) TopoSort() ([]string, error) {
	inDegree := make(map[string]int, len(g.nodes))
	queue := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		d := len(g.incoming[id])
		inDegree[id] = d
		if d == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		order = append(order, curr)
		for _, child := range g.outgoing[curr] {
			inDegree[child]--
			if inDegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	if len(order) != len(g.nodes) {
		return nil, fmt.Errorf("%w: %d of %d nodes unreachable by topological order",
			ErrGraphHasCycle, len(g.nodes)-len(order), len(g.nodes))
	}
	return order, nil
}

// PosMap creates a position lookup map from a slice of node IDs, mapping
// each ID to its index. Used to turn orderings into fast backward-edge
// checks. Returns an empty map for a nil or empty slice.
func PosMap(ids []string) map[string]int {
	m := make(map[string]int, len(ids))
	for i, id := range ids {
		m[id] = i
	}
	return m
}
