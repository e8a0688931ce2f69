package nav

import (
	"container/heap"
	"fmt"
	"math"

	"github.com/talgya/evacsim/internal/world"
)

// Heuristic estimates the remaining cost from a node to the goal.
type Heuristic func(from, goal world.Position) float64

// Chebyshev is exact on an open floor when diagonal steps cost 1, so it is
// admissible and consistent for the default cost model.
func Chebyshev(from, goal world.Position) float64 {
	return float64(world.Chebyshev(from, goal))
}

// Euclidean is the straight-line distance. It overestimates when diagonal
// steps cost 1, so paths are not guaranteed shortest under that cost model.
func Euclidean(from, goal world.Position) float64 {
	return world.Euclidean(from, goal)
}

// Octile returns a heuristic exact on an open floor for the given diagonal cost.
func Octile(diagonalCost float64) Heuristic {
	return func(from, goal world.Position) float64 {
		dx := math.Abs(float64(from.X - goal.X))
		dy := math.Abs(float64(from.Y - goal.Y))
		return dx + dy + (diagonalCost-2)*math.Min(dx, dy)
	}
}

// HeuristicByName maps a configuration name to a heuristic.
func HeuristicByName(name string, diagonalCost float64) (Heuristic, error) {
	switch name {
	case "", "chebyshev":
		return Chebyshev, nil
	case "euclidean":
		return Euclidean, nil
	case "octile":
		return Octile(diagonalCost), nil
	default:
		return nil, fmt.Errorf("unknown path heuristic %q", name)
	}
}

// Pathfinder runs A* over a graph.
type Pathfinder struct {
	Graph        *Graph
	Heuristic    Heuristic
	DiagonalCost float64 // Cost of a diagonal step; orthogonal steps cost 1
}

// NewPathfinder returns a pathfinder with unit-cost diagonals and the
// Chebyshev heuristic.
func NewPathfinder(g *Graph) *Pathfinder {
	return &Pathfinder{Graph: g, Heuristic: Chebyshev, DiagonalCost: 1}
}

// FindPath is shorthand for NewPathfinder(g).FindPath.
func FindPath(g *Graph, start, goal world.Position, extra *Overlay) []world.Position {
	return NewPathfinder(g).FindPath(start, goal, extra)
}

// frontierItem is a queued node. seq breaks f ties by insertion order so the
// frontier is a strict total order.
type frontierItem struct {
	f      float64
	seq    uint64
	node   world.Position
	cost   float64
	parent world.Position
	root   bool
}

type frontier []frontierItem

func (q frontier) Len() int { return len(q) }
func (q frontier) Less(i, j int) bool {
	if q[i].f != q[j].f {
		return q[i].f < q[j].f
	}
	return q[i].seq < q[j].seq
}
func (q frontier) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *frontier) Push(x any) { *q = append(*q, x.(frontierItem)) }
func (q *frontier) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

type enqueuedCost struct {
	cost float64
	h    float64
}

type parentLink struct {
	parent world.Position
	root   bool
}

// FindPath returns the nodes from start to goal inclusive, or nil when goal
// cannot be reached. Nodes masked by extra are never expanded or enqueued.
// extra is read, not modified, so the caller's overlay and the graph are
// unchanged when this returns.
func (pf *Pathfinder) FindPath(start, goal world.Position, extra *Overlay) []world.Position {
	g := pf.Graph
	if !g.Has(start) || !g.Has(goal) {
		return nil
	}
	h := pf.Heuristic
	if h == nil {
		h = Chebyshev
	}
	diag := pf.DiagonalCost
	if diag <= 0 {
		diag = 1
	}

	var seq uint64
	q := &frontier{{f: 0, seq: seq, node: start, root: true}}
	enqueued := make(map[world.Position]enqueuedCost)
	explored := make(map[world.Position]parentLink)

	for q.Len() > 0 {
		cur := heap.Pop(q).(frontierItem)

		if cur.node == goal {
			path := []world.Position{cur.node}
			link := parentLink{parent: cur.parent, root: cur.root}
			for !link.root {
				path = append(path, link.parent)
				link = explored[link.parent]
			}
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			return path
		}

		if _, done := explored[cur.node]; done {
			continue
		}
		explored[cur.node] = parentLink{parent: cur.parent, root: cur.root}

		for _, next := range g.Neighbors(cur.node) {
			if extra.Masked(next) {
				continue
			}
			if _, done := explored[next]; done {
				continue
			}
			step := 1.0
			if next.X != cur.node.X && next.Y != cur.node.Y {
				step = diag
			}
			ncost := cur.cost + step

			var hv float64
			if prev, ok := enqueued[next]; ok {
				// A cheaper route to next is already queued.
				if prev.cost <= ncost {
					continue
				}
				hv = prev.h
			} else {
				hv = h(next, goal)
			}
			enqueued[next] = enqueuedCost{cost: ncost, h: hv}
			seq++
			heap.Push(q, frontierItem{f: ncost + hv, seq: seq, node: next, cost: ncost, parent: cur.node})
		}
	}
	return nil
}

// Length returns the number of steps in a path (nodes minus one).
func Length(path []world.Position) int {
	if len(path) == 0 {
		return 0
	}
	return len(path) - 1
}
