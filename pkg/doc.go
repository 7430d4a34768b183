// Package pkg provides the core libraries for citetree.
//
// # Overview
//
// Citetree decomposes a directed citation graph into an acyclic spanning
// tree plus a small set of cycle-closing extra edges, and serves bounded
// viewport fragments of the tree. The pkg directory is organized as:
//
//  1. [graph] - Directed graph, SCC analysis, feedback arc set strategies,
//     tree/extra partitioning, and level assignment
//  2. [spatial] - 2D range index over node coordinates
//  3. [pipeline] - Batch decomposition orchestration (load → SCC → solve →
//     partition → levels → persist)
//  4. [cache] - Response cache backends (null, file, Redis) and key hashing
//  5. [render] - DOT/SVG export of viewport fragments
//  6. [observability] - Hooks for decomposition, query, and cache events
//
// # Architecture
//
// The typical data flow:
//
//	SQLite store (nodes, edges)
//	         ↓
//	pipeline.Runner (decompose, persist tree/extra edges and levels)
//	         ↓
//	spatial.Index + internal/fragment service (viewport queries)
//	         ↓
//	HTTP fragments, or render export for diagnostics
//
// Request-serving components live under internal/ (store, executor,
// fragment, server, cli); the packages here are the building blocks they
// share.
package pkg
