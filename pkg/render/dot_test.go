package render

import (
	"strings"
	"testing"

	"github.com/citetree/citetree/internal/fragment"
	"github.com/citetree/citetree/internal/store"
)

func testFragment() *fragment.Fragment {
	return &fragment.Fragment{
		Nodes: []fragment.NodePayload{
			{ID: "a", Cluster: 1, Degree: 3, Level: 1, Year: 2001},
			{ID: "b", Cluster: 1, Degree: 2, Level: 2},
		},
		TreeEdges: []fragment.EdgePayload{{Src: "a", Dst: "b"}},
		BrokenEdges: []fragment.BrokenEdge{
			{Src: "f", Dst: "a", External: "f", Role: fragment.RoleParent, Priority: 1},
		},
	}
}

func TestToDOT(t *testing.T) {
	extra := []store.ExtraEdge{{Src: "b", Dst: "a", EdgeType: "feedback"}}
	dot := ToDOT(testFragment(), extra, Options{})

	for _, want := range []string{
		"digraph citetree {",
		`"a" [label="a"];`,
		`"a" -> "b";`,
		`"f" -> "a" [style=dashed, color=grey];`,
		`"b" -> "a" [style=dashed, color=firebrick];`,
		`"f" [style="rounded,filled,dashed", fillcolor=lightgrey];`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}
}

func TestToDOTDetailedLabels(t *testing.T) {
	dot := ToDOT(testFragment(), nil, Options{Detailed: true})

	if !strings.Contains(dot, "cluster: 1") || !strings.Contains(dot, "degree: 3") {
		t.Errorf("detailed DOT missing metadata labels:\n%s", dot)
	}
	if !strings.Contains(dot, "year: 2001") {
		t.Errorf("detailed DOT missing year for dated node:\n%s", dot)
	}
	if strings.Contains(dot, "year: 0") {
		t.Errorf("detailed DOT shows a zero year:\n%s", dot)
	}
}

func TestNormalizeViewBox(t *testing.T) {
	svg := []byte(`<svg width="100pt" height="50pt" viewBox="0.00 10.00 100.00 50.00" xmlns="http://www.w3.org/2000/svg">`)
	got := string(normalizeViewBox(svg))

	if !strings.Contains(got, `viewBox="0 0 100.00 50.00"`) {
		t.Errorf("viewBox not normalized: %s", got)
	}
	if !strings.Contains(got, `width="100" height="50"`) {
		t.Errorf("pixel dimensions missing: %s", got)
	}

	// No viewBox means nothing to do.
	plain := []byte("<svg>")
	if string(normalizeViewBox(plain)) != "<svg>" {
		t.Error("svg without viewBox must pass through unchanged")
	}
}
