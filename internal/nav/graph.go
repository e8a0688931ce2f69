// Package nav provides the navigation graph over walkable floor cells and
// the A* pathfinder that routes evacuees across it.
//
// The graph is built once from the static walls and never mutated. Transient
// obstacles (other people, remembered fire) are expressed as an Overlay that
// the caller owns and passes to a single query, so nothing has to be undone
// after a search returns.
package nav

import (
	"errors"
	"fmt"

	"github.com/talgya/evacsim/internal/world"
)

// ErrNotNode is returned when masking a cell that has no graph node (a wall
// or a cell off the grid).
var ErrNotNode = errors.New("cell is not a navigation node")

// Graph holds one node per non-wall cell with 8-connected, in-bounds edges.
type Graph struct {
	Width  int
	Height int

	node  []bool
	count int
}

// NewGraph builds the graph from the walls currently on g.
func NewGraph(g *world.Grid) *Graph {
	gr := &Graph{
		Width:  g.Width,
		Height: g.Height,
		node:   make([]bool, g.Width*g.Height),
	}
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			p := world.Position{X: x, Y: y}
			if g.At(p).Kind == world.KindWall {
				continue
			}
			gr.node[y*g.Width+x] = true
			gr.count++
		}
	}
	return gr
}

// Has reports whether p is a node.
func (gr *Graph) Has(p world.Position) bool {
	if p.X < 0 || p.Y < 0 || p.X >= gr.Width || p.Y >= gr.Height {
		return false
	}
	return gr.node[p.Y*gr.Width+p.X]
}

// Len returns the number of nodes.
func (gr *Graph) Len() int {
	return gr.count
}

// Walkable reports whether p is a node that ov does not mask.
func (gr *Graph) Walkable(p world.Position, ov *Overlay) bool {
	return gr.Has(p) && !ov.Masked(p)
}

// Neighbors returns the adjacent nodes of p in stable order. Cells on the
// first and last column only connect inward.
func (gr *Graph) Neighbors(p world.Position) []world.Position {
	out := make([]world.Position, 0, 8)
	for _, d := range world.MooreOffsets {
		q := p.Add(d.X, d.Y)
		if gr.Has(q) {
			out = append(out, q)
		}
	}
	return out
}

// Mask records ps as non-walkable in ov. Every cell must be a node.
func (gr *Graph) Mask(ov *Overlay, ps ...world.Position) error {
	for _, p := range ps {
		if !gr.Has(p) {
			return fmt.Errorf("mask %s: %w", p, ErrNotNode)
		}
	}
	ov.Mask(ps...)
	return nil
}

// Overlay is a per-query set of nodes treated as non-walkable.
// The zero value and nil are both an empty overlay.
type Overlay struct {
	masked world.PositionSet
}

// NewOverlay returns an overlay masking ps.
func NewOverlay(ps ...world.Position) *Overlay {
	ov := &Overlay{}
	ov.Mask(ps...)
	return ov
}

// Mask marks ps non-walkable.
func (ov *Overlay) Mask(ps ...world.Position) {
	if len(ps) == 0 {
		return
	}
	if ov.masked == nil {
		ov.masked = make(world.PositionSet, len(ps))
	}
	for _, p := range ps {
		ov.masked.Add(p)
	}
}

// Unmask makes ps walkable again.
func (ov *Overlay) Unmask(ps ...world.Position) {
	for _, p := range ps {
		delete(ov.masked, p)
	}
}

// Masked reports whether p is masked. Safe on a nil overlay.
func (ov *Overlay) Masked(p world.Position) bool {
	if ov == nil {
		return false
	}
	return ov.masked.Has(p)
}

// Len returns the number of masked cells.
func (ov *Overlay) Len() int {
	if ov == nil {
		return 0
	}
	return len(ov.masked)
}
