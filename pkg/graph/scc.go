package graph

// StronglyConnected computes the strongly connected components of the graph
// using an iterative Tarjan algorithm. Each component is a slice of node
// IDs; the order of components and of IDs within a component is not
// guaranteed.
//
// Citation graphs are expected to be near-acyclic (citations mostly point
// backward in time), so all components besides one are typically
// singletons. Runs in O(V+E) time with no recursion.
func StronglyConnected(g *Directed) [][]string {
	index := make(map[string]int, g.NodeCount())
	lowlink := make(map[string]int, g.NodeCount())
	onStack := make(map[string]bool)
	var tarjanStack []string
	var components [][]string
	next := 0

	type frame struct {
		id    string
		child int
	}

	for _, start := range g.NodeIDs() {
		if _, seen := index[start]; seen {
			continue
		}

		callStack := []frame{{id: start}}
		index[start] = next
		lowlink[start] = next
		next++
		tarjanStack = append(tarjanStack, start)
		onStack[start] = true

		for len(callStack) > 0 {
			top := &callStack[len(callStack)-1]
			children := g.Successors(top.id)

			if top.child < len(children) {
				child := children[top.child]
				top.child++
				if _, seen := index[child]; !seen {
					index[child] = next
					lowlink[child] = next
					next++
					tarjanStack = append(tarjanStack, child)
					onStack[child] = true
					callStack = append(callStack, frame{id: child})
				} else if onStack[child] {
					if index[child] < lowlink[top.id] {
						lowlink[top.id] = index[child]
					}
				}
				continue
			}

			// All children explored: pop, propagating lowlink to the parent.
			id := top.id
			callStack = callStack[:len(callStack)-1]
			if len(callStack) > 0 {
				parent := &callStack[len(callStack)-1]
				if lowlink[id] < lowlink[parent.id] {
					lowlink[parent.id] = lowlink[id]
				}
			}

			if lowlink[id] == index[id] {
				var comp []string
				for {
					w := tarjanStack[len(tarjanStack)-1]
					tarjanStack = tarjanStack[:len(tarjanStack)-1]
					onStack[w] = false
					comp = append(comp, w)
					if w == id {
						break
					}
				}
				components = append(components, comp)
			}
		}
	}
	return components
}

// LargestComponent returns the component with the most nodes, or nil for an
// empty input. Ties are broken arbitrarily.
func LargestComponent(components [][]string) []string {
	var largest []string
	for _, c := range components {
		if len(c) > len(largest) {
			largest = c
		}
	}
	return largest
}

// ComponentSizes returns a histogram of component sizes (size → count of
// components of that size), used for diagnostic reporting after SCC
// analysis.
func ComponentSizes(components [][]string) map[int]int {
	sizes := make(map[int]int)
	for _, c := range components {
		sizes[len(c)]++
	}
	return sizes
}
