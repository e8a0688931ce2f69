// Agent spawning: creates the initial evacuee population with demographics,
// derived speed and vision, and starting exit knowledge.
package agents

import (
	"fmt"
	"math"

	"github.com/talgya/evacsim/internal/entropy"
	"github.com/talgya/evacsim/internal/world"
)

// Spawner creates agents for a run.
type Spawner struct {
	BaseVision   int     // Vision radius of a newborn; every 20 years of age costs a cell
	SpeedScale   float64 // Divides raw walking speed into path steps per tick
	InfoExchange bool    // Whether civilians share knowledge; stewards always do

	rng    *entropy.Source
	nextID AgentID
}

// NewSpawner creates a spawner drawing from rng.
func NewSpawner(rng *entropy.Source, baseVision int, speedScale float64, infoExchange bool) *Spawner {
	return &Spawner{
		BaseVision:   baseVision,
		SpeedScale:   speedScale,
		InfoExchange: infoExchange,
		rng:          rng,
		nextID:       1,
	}
}

// SpawnPopulation creates count agents of kind on random empty cells inside
// the footprint of l and places them on g. Every agent starts knowing exits.
func (s *Spawner) SpawnPopulation(g *world.Grid, l world.Layout, kind world.Kind, count int, exits []world.Position) ([]*Agent, error) {
	out := make([]*Agent, 0, count)
	for i := 0; i < count; i++ {
		pos, err := world.SpawnCell(g, l, s.rng)
		if err != nil {
			return out, fmt.Errorf("spawn %s %d of %d: %w", kind, i+1, count, err)
		}
		a := s.Spawn(kind, pos, exits)
		if err := g.Place(a.Occupant(), pos); err != nil {
			return out, fmt.Errorf("spawn %s %d: %w", kind, a.ID, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// Spawn creates one agent at pos without placing it on a grid.
func (s *Spawner) Spawn(kind world.Kind, pos world.Position, exits []world.Position) *Agent {
	id := s.nextID
	s.nextID++

	age := s.rng.IntRange(15, 65)
	weight := s.rng.Uniform(40, 100)

	a := &Agent{
		ID:            id,
		Kind:          kind,
		Pos:           pos,
		LastPos:       pos,
		Age:           age,
		Weight:        weight,
		VisualRange:   VisualRange(s.BaseVision, age),
		Speed:         CalculateSpeed(s.rng.Uniform(20, 30), age, weight, s.SpeedScale),
		RiskTolerance: s.rng.Intn(2),
		Willingness:   s.rng.Float64(),
		InfoExchange:  s.InfoExchange,
		Knowledge:     NewKnowledge(exits...),
	}
	if kind == world.KindSteward {
		a.InfoExchange = true
		a.Willingness = 1
	}
	return a
}

// CalculateSpeed converts a walking pace, slowed by age and weight, into
// whole path steps per tick. Every agent makes at least one step.
func CalculateSpeed(pace float64, age int, weight, scale float64) int {
	if scale <= 0 {
		scale = 1
	}
	raw := pace - (float64(age)*0.1 + weight*0.1)
	steps := int(math.Round(raw / scale))
	if steps < 1 {
		return 1
	}
	return steps
}

// VisualRange returns the perception radius at the given age, never below 1.
func VisualRange(base, age int) int {
	v := base - age/20
	if v < 1 {
		return 1
	}
	return v
}
