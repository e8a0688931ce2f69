// Simulation ties the floor, fire, and evacuees together and advances them
// one tick at a time.
package engine

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/talgya/evacsim/internal/agents"
	"github.com/talgya/evacsim/internal/config"
	"github.com/talgya/evacsim/internal/entropy"
	"github.com/talgya/evacsim/internal/fire"
	"github.com/talgya/evacsim/internal/nav"
	"github.com/talgya/evacsim/internal/world"
)

// fallbackOrigin is where fire starts when the configured origin is unusable.
var fallbackOrigin = world.Position{X: 1, Y: 1}

const maxEvents = 1000

// Simulation holds the complete run state. All exported methods are safe
// for concurrent use; Step holds the write lock for the whole tick.
type Simulation struct {
	RunID  uuid.UUID
	Config config.Config
	Layout world.Layout
	Grid   *world.Grid
	Graph  *nav.Graph
	Paths  *nav.Pathfinder
	Fire   *fire.Automaton
	RNG    *entropy.Source

	walls []world.Position // Fixed at build time

	mu       sync.RWMutex
	agents   map[agents.AgentID]*agents.Agent
	order    []agents.AgentID // Spawn order
	sched    *Scheduler
	outcomes Outcomes
	history  []Stats
	events   []Event
	tick     uint64
	running  bool
	warning  string

	subMu   sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int
}

// Event is a notable occurrence during a run.
type Event struct {
	Tick        uint64 `json:"tick"`
	Description string `json:"description"`
	Category    string `json:"category"` // "saved", "killed", "fire", "warning", "halt"
}

// Stats is the per-tick data row collected after every step.
type Stats struct {
	Tick      uint64      `json:"tick" db:"tick"`
	Alive     int         `json:"alive" db:"alive"`
	Saved     int         `json:"saved" db:"saved"`
	Killed    int         `json:"killed" db:"killed"`
	Burning   int         `json:"burning" db:"burning"`
	BurnedOut int         `json:"burned_out" db:"burned_out"`
	Exits     []ExitTally `json:"exits" db:"-"`
}

// NewSimulation builds the floor, ignites the fire origin, and spawns the
// population. An unusable fire origin is replaced by (1, 1) and reported
// through Warning rather than failing the run.
func NewSimulation(cfg config.Config) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	layout := cfg.FloorPlan()
	grid, err := layout.Build()
	if err != nil {
		return nil, fmt.Errorf("build floor: %w", err)
	}
	h, err := nav.HeuristicByName(cfg.Heuristic, cfg.DiagonalCost)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	graph := nav.NewGraph(grid)
	rng := entropy.New(cfg.Seed)
	walls := []world.Position{}
	for _, c := range grid.Cells() {
		if c.Kind == world.KindWall {
			walls = append(walls, c.Pos)
		}
	}

	s := &Simulation{
		RunID:    uuid.New(),
		Config:   cfg,
		Layout:   layout,
		Grid:     grid,
		Graph:    graph,
		Paths:    &nav.Pathfinder{Graph: graph, Heuristic: h, DiagonalCost: cfg.DiagonalCost},
		RNG:      rng,
		walls:    walls,
		agents:   make(map[agents.AgentID]*agents.Agent),
		sched:    NewScheduler(rng),
		outcomes: newOutcomes(layout.Exits),
		running:  true,
		subs:     make(map[int]chan Snapshot),
	}
	fuel := world.NewFuelField(cfg.Width, cfg.Height, rng.Seed(), cfg.FuelVariance)
	s.Fire = fire.NewAutomaton(cfg.FireDwell, cfg.SpreadProb, fuel)

	origin, err := s.resolveOrigin(cfg.FireOrigin)
	if err != nil {
		return nil, err
	}
	if err := s.igniteLocked(origin); err != nil {
		return nil, fmt.Errorf("ignite origin: %w", err)
	}

	spawner := agents.NewSpawner(rng, cfg.BaseVision, cfg.SpeedScale, cfg.InfoExchange)
	civilians, err := spawner.SpawnPopulation(grid, layout, world.KindCivilian, cfg.Civilians, layout.MainExits)
	if err != nil {
		return nil, err
	}
	stewards, err := spawner.SpawnPopulation(grid, layout, world.KindSteward, cfg.Stewards, layout.Exits)
	if err != nil {
		return nil, err
	}
	for _, a := range civilians {
		s.addAgent(a)
	}
	for _, a := range stewards {
		s.addAgent(a)
	}

	s.history = append(s.history, s.collectLocked())
	slog.Info("simulation ready",
		"run", s.RunID,
		"seed", rng.Seed(),
		"grid", grid.String(),
		"civilians", len(civilians),
		"stewards", len(stewards),
		"fire_origin", origin,
		"nav_nodes", graph.Len(),
	)
	return s, nil
}

// resolveOrigin returns p when fire can start there, otherwise a substitute
// plus a recorded warning.
func (s *Simulation) resolveOrigin(p world.Position) (world.Position, error) {
	if s.validOrigin(p) {
		return p, nil
	}
	sub := fallbackOrigin
	if !s.validOrigin(sub) {
		found := false
		for y := 0; y < s.Grid.Height && !found; y++ {
			for x := 0; x < s.Grid.Width; x++ {
				if q := (world.Position{X: x, Y: y}); s.validOrigin(q) {
					sub, found = q, true
					break
				}
			}
		}
		if !found {
			return p, fmt.Errorf("%w: no cell can hold the fire origin", config.ErrInvalid)
		}
	}
	s.warning = fmt.Sprintf("fire origin %s is outside the building; starting fire at %s instead", p, sub)
	slog.Warn("fire origin substituted", "requested", p, "origin", sub)
	s.emitLocked(Event{Tick: 0, Description: s.warning, Category: "warning"})
	return sub, nil
}

func (s *Simulation) validOrigin(p world.Position) bool {
	return s.Grid.InBounds(p) && s.Layout.InFootprint(p) && s.Grid.IsEmpty(p)
}

// Step runs one tick: every scheduled entity acts once in a fresh random
// order, fire spread from this tick is applied, and the run halts once no
// evacuee remains. Step on a halted run does nothing.
func (s *Simulation) Step() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.tick++
	env := agents.Env{
		Grid:  s.Grid,
		Paths: s.Paths,
		RNG:   s.RNG,
		Tick:  s.tick,
		Agent: s.liveAgentLocked,
	}

	var spread []world.Position
	for _, o := range s.sched.Order() {
		if !s.sched.Has(o) {
			continue // removed earlier this tick
		}
		switch o.Kind {
		case world.KindFire:
			c, ok := s.Fire.Cell(o.ID)
			if !ok {
				continue
			}
			if c.Activate(s.RNG.Float64()) {
				spread = append(spread, s.Fire.SpreadTargets(s.Grid, c)...)
				s.sched.Remove(o)
			}
		case world.KindCivilian, world.KindSteward:
			a := s.agents[o.ID]
			in := agents.Step(a, env)
			slog.Debug("agent acted", "tick", s.tick, "agent", a.ID, "action", in.Kind, "steps", in.Steps, "detail", in.Detail)
			if in.Removal != nil {
				if err := s.removeLocked(*in.Removal); err != nil {
					slog.Error("agent removal failed", "tick", s.tick, "agent", a.ID, "error", err)
				}
			}
		}
	}
	s.spreadLocked(spread)

	stats := s.collectLocked()
	s.history = append(s.history, stats)
	s.haltIfEmptyLocked()

	var snap Snapshot
	publish := s.hasSubscribers()
	if publish {
		snap = s.snapshotLocked()
	}
	s.mu.Unlock()

	if publish {
		s.publish(snap)
	}
}

// spreadLocked ignites every target, evicting people first. Targets that
// caught fire earlier in the same batch are skipped.
func (s *Simulation) spreadLocked(targets []world.Position) {
	ignited := 0
	for _, p := range targets {
		occ := s.Grid.At(p)
		if !fire.Ignitable(occ.Kind) {
			continue
		}
		if occ.Kind.IsPerson() {
			if err := s.removeLocked(agents.Removal{ID: occ.ID, Reason: agents.ReasonKilledByFire}); err != nil {
				slog.Error("fire eviction failed", "tick", s.tick, "pos", p, "error", err)
				continue
			}
		}
		if err := s.igniteLocked(p); err != nil {
			slog.Error("fire spread failed", "tick", s.tick, "pos", p, "error", err)
			continue
		}
		ignited++
	}
	if ignited > 0 {
		slog.Debug("fire spread", "tick", s.tick, "cells", ignited, "burning", s.Fire.Burning())
	}
}

func (s *Simulation) igniteLocked(p world.Position) error {
	c, err := s.Fire.Ignite(s.Grid, p)
	if err != nil {
		return err
	}
	s.sched.Add(world.Occupant{Kind: world.KindFire, ID: c.ID})
	return nil
}

func (s *Simulation) haltIfEmptyLocked() {
	if !s.running || s.sched.Count(world.KindCivilian, world.KindSteward) > 0 {
		return
	}
	s.running = false
	desc := fmt.Sprintf("evacuation over: %d saved, %d killed", len(s.outcomes.Saved), len(s.outcomes.Killed))
	s.emitLocked(Event{Tick: s.tick, Description: desc, Category: "halt"})
	slog.Info("simulation halted", "tick", s.tick, "saved", len(s.outcomes.Saved), "killed", len(s.outcomes.Killed))
}

func (s *Simulation) liveAgentLocked(o world.Occupant) *agents.Agent {
	if !o.Kind.IsPerson() || !s.sched.Has(o) {
		return nil
	}
	return s.agents[o.ID]
}

func (s *Simulation) collectLocked() Stats {
	return Stats{
		Tick:      s.tick,
		Alive:     s.outcomes.Alive,
		Saved:     len(s.outcomes.Saved),
		Killed:    len(s.outcomes.Killed),
		Burning:   s.Fire.Burning(),
		BurnedOut: s.Fire.BurnedOut(),
		Exits:     s.outcomes.Tallies(),
	}
}

func (s *Simulation) emitLocked(e Event) {
	s.events = append(s.events, e)
	if len(s.events) > maxEvents {
		s.events = s.events[len(s.events)-maxEvents:]
	}
}

// Running reports whether any evacuee is still in the building.
func (s *Simulation) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// CurrentTick returns the most recently completed tick.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tick
}

// Walls returns the wall cells, row-major. Walls never change during a run,
// so no lock is needed.
func (s *Simulation) Walls() []world.Position {
	out := make([]world.Position, len(s.walls))
	copy(out, s.walls)
	return out
}

// Warning returns the configuration warning raised at construction, if any.
func (s *Simulation) Warning() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.warning
}

// Stats returns the counts after the latest tick.
func (s *Simulation) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history[len(s.history)-1]
}

// History returns one Stats row per tick, starting with the initial state.
func (s *Simulation) History() []Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Stats(nil), s.history...)
}

// Outcomes returns a copy of the saved/killed tallies.
func (s *Simulation) Outcomes() Outcomes {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outcomes.clone()
}

// Events returns the most recent n events, oldest first.
func (s *Simulation) Events(n int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := len(s.events) - n
	if start < 0 || n <= 0 {
		start = 0
	}
	return append([]Event(nil), s.events[start:]...)
}

// Agent returns a copy of the agent with the given ID, removed or not.
func (s *Simulation) Agent(id agents.AgentID) (agents.Agent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[id]
	if !ok {
		return agents.Agent{}, false
	}
	return copyAgent(a), true
}

// Agents returns copies of every agent still in the building, by ID.
func (s *Simulation) Agents() []agents.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]agents.Agent, 0, s.outcomes.Alive)
	for _, id := range s.order {
		a := s.agents[id]
		if s.sched.Has(a.Occupant()) {
			out = append(out, copyAgent(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func copyAgent(a *agents.Agent) agents.Agent {
	c := *a
	c.Knowledge = a.Knowledge.Clone()
	c.InteractedWith = nil
	c.Memories = append([]agents.Memory(nil), a.Memories...)
	if a.Goal != nil {
		g := *a.Goal
		c.Goal = &g
	}
	return c
}
