package graph

import (
	"slices"
	"strconv"
	"testing"
)

func componentOf(components [][]string, id string) []string {
	for _, c := range components {
		if slices.Contains(c, id) {
			s := slices.Clone(c)
			slices.Sort(s)
			return s
		}
	}
	return nil
}

func TestStronglyConnected_AcyclicIsAllSingletons(t *testing.T) {
	g := buildGraph(t, []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}})

	components := StronglyConnected(g)

	if len(components) != 3 {
		t.Fatalf("got %d components, want 3", len(components))
	}
	for _, c := range components {
		if len(c) != 1 {
			t.Errorf("component %v has size %d, want 1", c, len(c))
		}
	}
}

func TestStronglyConnected_Triangle(t *testing.T) {
	// Triangle a→b→c→a plus acyclic attachments d→a and a→e: the SCC is
	// exactly {a,b,c}, with d and e as singletons.
	g := buildGraph(t, []string{"a", "b", "c", "d", "e"},
		[][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}, {"d", "a"}, {"a", "e"}})

	components := StronglyConnected(g)

	if len(components) != 3 {
		t.Fatalf("got %d components, want 3", len(components))
	}
	got := componentOf(components, "a")
	want := []string{"a", "b", "c"}
	if !slices.Equal(got, want) {
		t.Errorf("component of a = %v, want %v", got, want)
	}
}

func TestStronglyConnected_TwoComponents(t *testing.T) {
	g := buildGraph(t, []string{"a", "b", "c", "d", "e"},
		[][2]string{{"a", "b"}, {"b", "a"}, {"c", "d"}, {"d", "c"}, {"b", "c"}})

	components := StronglyConnected(g)

	if len(components) != 3 {
		t.Fatalf("got %d components, want 3 (two pairs plus singleton e)", len(components))
	}
	if got := componentOf(components, "a"); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("component of a = %v, want [a b]", got)
	}
	if got := componentOf(components, "c"); !slices.Equal(got, []string{"c", "d"}) {
		t.Errorf("component of c = %v, want [c d]", got)
	}
}

func TestStronglyConnected_DeepCycle(t *testing.T) {
	// One long cycle through every node; must not overflow the stack.
	g := New()
	const n = 100000
	for i := 0; i < n; i++ {
		g.AddNode(Node{ID: "n" + strconv.Itoa(i)})
	}
	for i := 0; i < n; i++ {
		g.AddEdge(Edge{Src: "n" + strconv.Itoa(i), Dst: "n" + strconv.Itoa((i+1)%n)})
	}

	components := StronglyConnected(g)

	if len(components) != 1 {
		t.Fatalf("got %d components, want 1", len(components))
	}
	if len(components[0]) != n {
		t.Errorf("component size = %d, want %d", len(components[0]), n)
	}
}

func TestLargestComponent(t *testing.T) {
	components := [][]string{{"a"}, {"b", "c", "d"}, {"e", "f"}}
	got := LargestComponent(components)
	if len(got) != 3 {
		t.Errorf("LargestComponent() = %v, want the 3-node component", got)
	}
	if LargestComponent(nil) != nil {
		t.Errorf("LargestComponent(nil) != nil")
	}
}

func TestComponentSizes(t *testing.T) {
	components := [][]string{{"a"}, {"b"}, {"c", "d"}, {"e", "f", "g"}}
	sizes := ComponentSizes(components)
	if sizes[1] != 2 || sizes[2] != 1 || sizes[3] != 1 {
		t.Errorf("ComponentSizes() = %v, want map[1:2 2:1 3:1]", sizes)
	}
}

