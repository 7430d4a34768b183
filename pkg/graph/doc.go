// Package graph provides the directed citation graph at the core of
// citetree's spanning decomposition.
//
// # Overview
//
// A citation graph is a large, mostly-but-not-strictly acyclic directed
// graph: papers overwhelmingly cite backward in time, but preprint
// revisions, simultaneous publication and survey cross-citation create a
// small number of directed cycles, concentrated in one large strongly
// connected component. citetree splits such a graph into an acyclic tree
// backbone plus a residual feedback set; this package provides the graph
// structure and the analyses that decomposition relies on.
//
// # Basic Usage
//
// Create a graph with [New], add nodes with [Directed.AddNode] and edges
// with [Directed.AddEdge]. Edges can only connect existing nodes - a
// citation referencing an unknown paper is a data-integrity error, never
// silently dropped:
//
//	g := graph.New()
//	g.AddNode(graph.Node{ID: "paper-a", X: 1.2, Y: -0.4, Degree: 12})
//	g.AddNode(graph.Node{ID: "paper-b", X: 0.7, Y: 2.1, Degree: 3})
//	g.AddEdge(graph.Edge{Src: "paper-a", Dst: "paper-b"})
//
// Query structure with [Directed.Successors], [Directed.Predecessors],
// [Directed.Roots] and related methods. [Directed.Subgraph] extracts the
// induced subgraph of a node set, which is how the feedback-arc-set solver
// isolates the largest strongly connected component.
//
// # Analyses
//
//   - [StronglyConnected]: iterative Tarjan SCC decomposition
//   - [Directed.CheckAcyclic]: DFS cycle detection (white/gray/black)
//   - [Directed.TopoSort]: Kahn topological ordering
//
// All three are iterative rather than recursive: real citation graphs run
// to millions of nodes with long chains that would overflow the goroutine
// stack under recursive DFS.
//
// # Concurrency
//
// Directed instances are not safe for concurrent mutation. Read-only
// access (traversal, SCC analysis, acyclicity checks) can safely run in
// parallel across goroutines.
//
// # Related Packages
//
// The [fas] subpackage computes feedback arc sets over the largest SCC;
// the [decompose] subpackage partitions edges into the tree/extra sets and
// assigns topological levels.
//
// [fas]: github.com/citetree/citetree/pkg/graph/fas
// [decompose]: github.com/citetree/citetree/pkg/graph/decompose
package graph
