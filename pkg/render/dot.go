// Package render exports viewport fragments as Graphviz DOT and SVG.
// Tree edges are drawn solid; extra (feedback) edges and broken edges
// leaving the fragment are dashed, so the acyclic skeleton stays visually
// distinct from the cycle-closing remainder.
package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/citetree/citetree/internal/fragment"
	"github.com/citetree/citetree/internal/store"
)

// Options configures DOT generation.
type Options struct {
	// Detailed includes cluster, degree, and level in node labels. When
	// false only the node id is shown.
	Detailed bool
}

// ToDOT converts a fragment and its extra edges to Graphviz DOT. External
// endpoints of broken edges appear as dashed grey placeholder nodes.
func ToDOT(f *fragment.Fragment, extra []store.ExtraEdge, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph citetree {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("\n")

	for _, n := range f.Nodes {
		fmt.Fprintf(&buf, "  %q [label=%q];\n", n.ID, label(n, opts.Detailed))
	}
	for _, be := range f.BrokenEdges {
		fmt.Fprintf(&buf, "  %q [style=\"rounded,filled,dashed\", fillcolor=lightgrey];\n", be.External)
	}

	buf.WriteString("\n")
	for _, e := range f.TreeEdges {
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.Src, e.Dst)
	}
	for _, be := range f.BrokenEdges {
		fmt.Fprintf(&buf, "  %q -> %q [style=dashed, color=grey];\n", be.Src, be.Dst)
	}
	for _, e := range extra {
		fmt.Fprintf(&buf, "  %q -> %q [style=dashed, color=firebrick];\n", e.Src, e.Dst)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func label(n fragment.NodePayload, detailed bool) string {
	if !detailed {
		return n.ID
	}
	parts := []string{
		n.ID,
		fmt.Sprintf("cluster: %d", n.Cluster),
		fmt.Sprintf("degree: %d", n.Degree),
		fmt.Sprintf("level: %d", n.Level),
	}
	if n.Year != 0 {
		parts = append(parts, fmt.Sprintf("year: %d", n.Year))
	}
	return strings.Join(parts, "\n")
}
