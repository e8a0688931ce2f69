package fire

import (
	"errors"
	"fmt"
	"sort"

	"github.com/talgya/evacsim/internal/world"
)

// ErrNotIgnitable is returned when igniting a cell that already holds fire,
// a wall, or an exit.
var ErrNotIgnitable = errors.New("cell cannot ignite")

// Automaton owns every fire cell of a run. It places fire on the grid but
// never removes people; callers evict an occupant before igniting its cell.
type Automaton struct {
	Threshold  int
	SpreadProb float64
	Fuel       *world.FuelField // nil means uniform fuel

	cells  map[world.EntityID]*Cell
	byPos  map[world.Position]world.EntityID
	ever   world.PositionSet
	nextID world.EntityID
}

// NewAutomaton creates an automaton whose new cells wait threshold ticks and
// then spread with probability spreadProb scaled by fuel.
func NewAutomaton(threshold int, spreadProb float64, fuel *world.FuelField) *Automaton {
	return &Automaton{
		Threshold:  threshold,
		SpreadProb: spreadProb,
		Fuel:       fuel,
		cells:      make(map[world.EntityID]*Cell),
		byPos:      make(map[world.Position]world.EntityID),
		ever:       make(world.PositionSet),
	}
}

// Ignitable reports whether fire may take a cell holding k. People are
// ignitable; the caller evicts them first.
func Ignitable(k world.Kind) bool {
	return k == world.KindEmpty || k.IsPerson()
}

// Ignite places a new burning cell on p. p must be empty on g.
func (a *Automaton) Ignite(g *world.Grid, p world.Position) (*Cell, error) {
	if _, ok := a.byPos[p]; ok {
		return nil, fmt.Errorf("ignite %s: %w", p, ErrNotIgnitable)
	}
	if !Ignitable(g.At(p).Kind) {
		return nil, fmt.Errorf("ignite %s holding %s: %w", p, g.At(p).Kind, ErrNotIgnitable)
	}
	id := a.nextID + 1
	if err := g.Place(world.Occupant{Kind: world.KindFire, ID: id}, p); err != nil {
		return nil, fmt.Errorf("ignite: %w", err)
	}
	a.nextID = id

	c := &Cell{
		ID:         id,
		Pos:        p,
		State:      OnFire,
		Threshold:  a.Threshold,
		SpreadProb: a.Fuel.SpreadProbability(p, a.SpreadProb),
	}
	a.cells[id] = c
	a.byPos[p] = id
	a.ever.Add(p)
	return c, nil
}

// Cell returns the fire cell with the given ID.
func (a *Automaton) Cell(id world.EntityID) (*Cell, bool) {
	c, ok := a.cells[id]
	return c, ok
}

// At returns the fire cell on p, if any.
func (a *Automaton) At(p world.Position) (*Cell, bool) {
	id, ok := a.byPos[p]
	if !ok {
		return nil, false
	}
	return a.cells[id], true
}

// Cells returns every fire cell ordered by ID.
func (a *Automaton) Cells() []*Cell {
	out := make([]*Cell, 0, len(a.cells))
	for _, c := range a.cells {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Burning returns the number of cells still on fire.
func (a *Automaton) Burning() int {
	n := 0
	for _, c := range a.cells {
		if c.State == OnFire {
			n++
		}
	}
	return n
}

// BurnedOut returns the number of burned-out cells.
func (a *Automaton) BurnedOut() int {
	return len(a.cells) - a.Burning()
}

// Ever returns a copy of every position that has ever ignited.
// The set only grows over a run.
func (a *Automaton) Ever() world.PositionSet {
	return a.ever.Clone()
}

// SpreadTargets returns the 8-connected neighbors of c that fire can take:
// empty cells and cells holding people. Walls, exits and existing fire are
// skipped.
func (a *Automaton) SpreadTargets(g *world.Grid, c *Cell) []world.Position {
	var out []world.Position
	for _, p := range g.Neighborhood(c.Pos, 1, false) {
		if Ignitable(g.At(p).Kind) {
			out = append(out, p)
		}
	}
	return out
}
