// Package world provides the floor-plan lattice, occupancy, and spatial queries.
// Uses integer (x, y) cell coordinates with (0, 0) at the bottom-left corner.
package world

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Position is a cell on the floor grid.
type Position struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// String returns "(x, y)", the same label the per-exit tallies use.
func (p Position) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}

// Add returns p offset by (dx, dy).
func (p Position) Add(dx, dy int) Position {
	return Position{X: p.X + dx, Y: p.Y + dy}
}

// Manhattan returns the L1 distance between two cells.
func Manhattan(a, b Position) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

// Chebyshev returns the number of 8-connected unit steps between two cells
// on an open floor.
func Chebyshev(a, b Position) int {
	dx := abs(a.X - b.X)
	dy := abs(a.Y - b.Y)
	if dx > dy {
		return dx
	}
	return dy
}

// Euclidean returns the straight-line distance between two cells.
func Euclidean(a, b Position) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// MooreOffsets are the eight neighbor directions, ordered row by row from
// the bottom-left so iteration order is stable.
var MooreOffsets = [8]Position{
	{X: -1, Y: -1}, {X: 0, Y: -1}, {X: 1, Y: -1},
	{X: -1, Y: 0}, {X: 1, Y: 0},
	{X: -1, Y: 1}, {X: 0, Y: 1}, {X: 1, Y: 1},
}

// PositionSet is an unordered set of cells.
type PositionSet map[Position]struct{}

// NewPositionSet builds a set from the given cells.
func NewPositionSet(ps ...Position) PositionSet {
	s := make(PositionSet, len(ps))
	for _, p := range ps {
		s[p] = struct{}{}
	}
	return s
}

// Add inserts p.
func (s PositionSet) Add(p Position) {
	s[p] = struct{}{}
}

// Has reports whether p is in the set. Safe on a nil set.
func (s PositionSet) Has(p Position) bool {
	_, ok := s[p]
	return ok
}

// Clone returns an independent copy.
func (s PositionSet) Clone() PositionSet {
	out := make(PositionSet, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}

// Union returns a new set holding the members of both sets.
func (s PositionSet) Union(o PositionSet) PositionSet {
	out := make(PositionSet, len(s)+len(o))
	for p := range s {
		out[p] = struct{}{}
	}
	for p := range o {
		out[p] = struct{}{}
	}
	return out
}

// Minus returns the members of s that are not in o.
func (s PositionSet) Minus(o PositionSet) PositionSet {
	out := make(PositionSet, len(s))
	for p := range s {
		if !o.Has(p) {
			out[p] = struct{}{}
		}
	}
	return out
}

// Equal reports whether both sets hold the same cells.
func (s PositionSet) Equal(o PositionSet) bool {
	if len(s) != len(o) {
		return false
	}
	for p := range s {
		if !o.Has(p) {
			return false
		}
	}
	return true
}

// Sorted returns the members ordered by x then y. Map iteration order is
// random, so anything seeded must go through here.
func (s PositionSet) Sorted() []Position {
	out := make([]Position, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	SortPositions(out)
	return out
}

// MarshalJSON encodes the set as a sorted array of cells.
func (s PositionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array of cells.
func (s *PositionSet) UnmarshalJSON(data []byte) error {
	var ps []Position
	if err := json.Unmarshal(data, &ps); err != nil {
		return err
	}
	*s = NewPositionSet(ps...)
	return nil
}

// SortPositions orders cells by x then y in place.
func SortPositions(ps []Position) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].X != ps[j].X {
			return ps[i].X < ps[j].X
		}
		return ps[i].Y < ps[j].Y
	})
}

// Rect is an inclusive axis-aligned rectangle of cells.
type Rect struct {
	Min Position `json:"min" yaml:"min"`
	Max Position `json:"max" yaml:"max"`
}

// Contains reports whether p lies inside r, borders included.
func (r Rect) Contains(p Position) bool {
	return r.Min.X <= p.X && p.X <= r.Max.X && r.Min.Y <= p.Y && p.Y <= r.Max.Y
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
