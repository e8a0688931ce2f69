package world

import (
	"errors"
	"fmt"
)

// Kind tags what occupies a cell. Exactly one kind per cell at any instant.
type Kind uint8

const (
	KindEmpty    Kind = iota
	KindWall          // Static obstacle, never part of the navigation graph
	KindExit          // Emergency exit
	KindFire          // Burning or burned-out cell
	KindCivilian      // Evacuee
	KindSteward       // Evacuee with full exit knowledge who shouts directions
)

var kindNames = [...]string{"empty", "wall", "exit", "fire", "civilian", "steward"}

// String returns the lowercase kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	for i, name := range kindNames {
		if name == string(b) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown kind %q", b)
}

// IsPerson reports whether the kind is a civilian or steward.
func (k Kind) IsPerson() bool {
	return k == KindCivilian || k == KindSteward
}

// EntityID identifies a scheduled entity. IDs are unique within a kind.
type EntityID uint64

// Occupant is what the grid stores per cell.
type Occupant struct {
	Kind Kind     `json:"kind"`
	ID   EntityID `json:"id"`
}

// Placed pairs an occupant with the cell it sits on.
type Placed struct {
	Occupant
	Pos Position `json:"pos"`
}

var (
	ErrOutOfBounds = errors.New("position out of bounds")
	ErrOccupied    = errors.New("cell occupied")
	ErrEmptyCell   = errors.New("cell empty")
)

// Grid is a fixed-size single-occupancy lattice.
type Grid struct {
	Width  int `json:"width"`
	Height int `json:"height"`

	cells []Occupant
}

// NewGrid creates an empty grid.
func NewGrid(width, height int) *Grid {
	return &Grid{
		Width:  width,
		Height: height,
		cells:  make([]Occupant, width*height),
	}
}

// InBounds returns true if p lies on the grid.
func (g *Grid) InBounds(p Position) bool {
	return p.X >= 0 && p.X < g.Width && p.Y >= 0 && p.Y < g.Height
}

func (g *Grid) index(p Position) int {
	return p.Y*g.Width + p.X
}

// At returns the occupant of p. Out-of-bounds cells read as empty.
func (g *Grid) At(p Position) Occupant {
	if !g.InBounds(p) {
		return Occupant{}
	}
	return g.cells[g.index(p)]
}

// IsEmpty returns true if p is on the grid and unoccupied.
func (g *Grid) IsEmpty(p Position) bool {
	return g.InBounds(p) && g.cells[g.index(p)].Kind == KindEmpty
}

// Place puts o on p. Fails if p is occupied.
func (g *Grid) Place(o Occupant, p Position) error {
	if !g.InBounds(p) {
		return fmt.Errorf("place %s at %s: %w", o.Kind, p, ErrOutOfBounds)
	}
	i := g.index(p)
	if g.cells[i].Kind != KindEmpty {
		return fmt.Errorf("place %s at %s: %w by %s", o.Kind, p, ErrOccupied, g.cells[i].Kind)
	}
	g.cells[i] = o
	return nil
}

// Remove clears p and returns what was there.
func (g *Grid) Remove(p Position) (Occupant, error) {
	if !g.InBounds(p) {
		return Occupant{}, fmt.Errorf("remove at %s: %w", p, ErrOutOfBounds)
	}
	i := g.index(p)
	o := g.cells[i]
	if o.Kind == KindEmpty {
		return Occupant{}, fmt.Errorf("remove at %s: %w", p, ErrEmptyCell)
	}
	g.cells[i] = Occupant{}
	return o, nil
}

// Move relocates the occupant of from onto to. The target must be empty;
// a rejected move leaves the grid untouched.
func (g *Grid) Move(from, to Position) error {
	if !g.InBounds(from) || !g.InBounds(to) {
		return fmt.Errorf("move %s -> %s: %w", from, to, ErrOutOfBounds)
	}
	src := g.index(from)
	if g.cells[src].Kind == KindEmpty {
		return fmt.Errorf("move %s -> %s: %w", from, to, ErrEmptyCell)
	}
	dst := g.index(to)
	if g.cells[dst].Kind != KindEmpty {
		return fmt.Errorf("move %s -> %s: %w", from, to, ErrOccupied)
	}
	g.cells[dst] = g.cells[src]
	g.cells[src] = Occupant{}
	return nil
}

// Neighborhood returns the in-bounds cells of the Moore square of the given
// radius around p, row-major from the bottom-left. No wraparound.
func (g *Grid) Neighborhood(p Position, radius int, includeCenter bool) []Position {
	if radius < 0 {
		return nil
	}
	side := 2*radius + 1
	out := make([]Position, 0, side*side)
	for y := p.Y - radius; y <= p.Y+radius; y++ {
		for x := p.X - radius; x <= p.X+radius; x++ {
			q := Position{X: x, Y: y}
			if !g.InBounds(q) {
				continue
			}
			if !includeCenter && q == p {
				continue
			}
			out = append(out, q)
		}
	}
	return out
}

// Neighbors returns the occupants within the Moore square of the given radius.
func (g *Grid) Neighbors(p Position, radius int, includeCenter bool) []Placed {
	var out []Placed
	for _, q := range g.Neighborhood(p, radius, includeCenter) {
		o := g.cells[g.index(q)]
		if o.Kind == KindEmpty {
			continue
		}
		out = append(out, Placed{Occupant: o, Pos: q})
	}
	return out
}

// EmptyNeighborhood returns the empty cells within radius of p.
func (g *Grid) EmptyNeighborhood(p Position, radius int) []Position {
	var out []Position
	for _, q := range g.Neighborhood(p, radius, false) {
		if g.cells[g.index(q)].Kind == KindEmpty {
			out = append(out, q)
		}
	}
	return out
}

// Count returns how many cells hold any of the given kinds.
func (g *Grid) Count(kinds ...Kind) int {
	n := 0
	for _, o := range g.cells {
		for _, k := range kinds {
			if o.Kind == k {
				n++
				break
			}
		}
	}
	return n
}

// Cells returns every occupied cell, row-major.
func (g *Grid) Cells() []Placed {
	var out []Placed
	for i, o := range g.cells {
		if o.Kind == KindEmpty {
			continue
		}
		out = append(out, Placed{Occupant: o, Pos: Position{X: i % g.Width, Y: i / g.Width}})
	}
	return out
}

// EmptyCells returns every empty cell, row-major.
func (g *Grid) EmptyCells() []Position {
	var out []Position
	for i, o := range g.cells {
		if o.Kind == KindEmpty {
			out = append(out, Position{X: i % g.Width, Y: i / g.Width})
		}
	}
	return out
}

// String returns a summary of the grid.
func (g *Grid) String() string {
	return fmt.Sprintf("Grid(%dx%d, occupied=%d)", g.Width, g.Height, len(g.Cells()))
}
