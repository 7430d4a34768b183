package spatial

import (
	"slices"

	"github.com/tidwall/rtree"

	"github.com/citetree/citetree/pkg/graph"
)

// Box is a 2D bounding box in embedding coordinates.
type Box struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

// Valid reports whether the box has non-negative extent on both axes.
func (b Box) Valid() bool {
	return b.MinX <= b.MaxX && b.MinY <= b.MaxY
}

// Expand grows the box by a fraction of its own width and height on each
// side. A margin of 0.1 on a 100-wide box adds 10 units left and right.
// Viewport queries use this so edges just outside the visible area still
// resolve both endpoints.
func (b Box) Expand(margin float64) Box {
	dx := (b.MaxX - b.MinX) * margin
	dy := (b.MaxY - b.MinY) * margin
	return Box{
		MinX: b.MinX - dx,
		MinY: b.MinY - dy,
		MaxX: b.MaxX + dx,
		MaxY: b.MaxY + dy,
	}
}

// Contains reports whether the point lies inside the box, borders included.
func (b Box) Contains(x, y float64) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

// Index is an immutable R-tree over node coordinates. Build it once per
// graph load; concurrent Search calls are safe because nothing mutates the
// tree after New returns.
type Index struct {
	tree rtree.RTreeG[string]
	len  int
}

// New builds the index from every node in g.
func New(g *graph.Directed) *Index {
	ix := &Index{}
	for _, n := range g.Nodes() {
		ix.tree.Insert([2]float64{n.X, n.Y}, [2]float64{n.X, n.Y}, n.ID)
		ix.len++
	}
	return ix
}

// Len returns the number of indexed nodes.
func (ix *Index) Len() int { return ix.len }

// Search returns the ids of all nodes whose point lies inside the box,
// sorted for deterministic results. An invalid (inverted) box matches
// nothing.
func (ix *Index) Search(b Box) []string {
	if !b.Valid() {
		return nil
	}
	var ids []string
	ix.tree.Search([2]float64{b.MinX, b.MinY}, [2]float64{b.MaxX, b.MaxY},
		func(min, max [2]float64, id string) bool {
			ids = append(ids, id)
			return true
		})
	slices.Sort(ids)
	return ids
}
