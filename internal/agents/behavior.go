// Evacuee behavior: perceive, learn, share, pick an exit, then route or fall
// back to local movement. Every scheduled agent runs Step once per tick.
package agents

import (
	"math"

	"github.com/talgya/evacsim/internal/entropy"
	"github.com/talgya/evacsim/internal/nav"
	"github.com/talgya/evacsim/internal/world"
)

// ActionKind enumerates what an agent did with its activation.
type ActionKind uint8

const (
	ActionStay   ActionKind = iota // No legal or useful move
	ActionMove                     // Advanced along a path or took a fallback step
	ActionWait                     // Route exists but other people block it
	ActionShout                    // Steward directing nearby civilians
	ActionExit                     // Reached the goal exit
	ActionKilled                   // Trapped against fire
)

var actionNames = [...]string{"stay", "move", "wait", "shout", "exit", "killed"}

func (k ActionKind) String() string {
	if int(k) < len(actionNames) {
		return actionNames[k]
	}
	return "unknown"
}

// Intent is the outcome of one activation. Moves are already applied to the
// grid; a non-nil Removal must be applied by the caller.
type Intent struct {
	AgentID AgentID
	Kind    ActionKind
	Steps   int
	Removal *Removal
	Detail  string // Human-readable description for the debug log
}

// Env is the shared state an agent acts on.
type Env struct {
	Grid  *world.Grid
	Paths *nav.Pathfinder
	RNG   *entropy.Source
	Tick  uint64

	// Agent resolves a person on the grid, or nil if o is not a live agent.
	Agent func(o world.Occupant) *Agent
}

type perception struct {
	seen       []world.Placed // Within visual range
	contacting []world.Placed // Directly adjacent
}

// Step runs one activation of a.
func Step(a *Agent, env Env) Intent {
	a.Knowledge.ensure()
	p := perceive(a, env.Grid)
	learn(a, p, env)

	if a.IsSteward() {
		if n := shout(a, p, env); n > 0 {
			in := Intent{AgentID: a.ID, Kind: ActionShout, Detail: "directs nearby civilians"}
			return terminal(a, env, in)
		}
		// No civilians in view: trade notes with other stewards, then move on.
		exchangeWithPeers(a, p, env)
	} else if a.InfoExchange {
		exchangeWithPeers(a, p, env)
	}

	a.Goal = SelectGoal(a.Pos, a.Knowledge)
	in := route(a, p, env)
	if in.Removal != nil {
		return in
	}
	return terminal(a, env, in)
}

func perceive(a *Agent, g *world.Grid) perception {
	return perception{
		seen:       g.Neighbors(a.Pos, a.VisualRange, false),
		contacting: g.Neighbors(a.Pos, 1, false),
	}
}

// learn records seen fire and exits.
func learn(a *Agent, p perception, env Env) {
	for _, o := range p.seen {
		switch o.Kind {
		case world.KindFire:
			for _, q := range env.Grid.Neighborhood(o.Pos, a.HazardRadius(), true) {
				a.Knowledge.Hazards.Add(q)
			}
		case world.KindExit:
			if !a.Knowledge.KnownExits.Has(o.Pos) {
				a.Knowledge.KnownExits.Add(o.Pos)
				remember(a, env.Tick, 0.5, "spotted exit %s", o.Pos)
			}
		}
	}
}

// exchangeWithPeers merges knowledge with every seen person a has not
// exchanged with yet. Stewards merge with everyone in view every time.
func exchangeWithPeers(a *Agent, p perception, env Env) {
	for _, o := range p.seen {
		if !o.Kind.IsPerson() {
			continue
		}
		other := env.lookup(o.Occupant)
		if other == nil || (!a.IsSteward() && a.Interacted(other.ID)) {
			continue
		}
		if !other.InfoExchange && !other.IsSteward() {
			continue
		}
		exchange(a, other, env)
	}
}

// shout makes a steward exchange with every seen civilian, regardless of
// earlier exchanges. It returns how many civilians were addressed.
func shout(s *Agent, p perception, env Env) int {
	n := 0
	for _, o := range p.seen {
		if o.Kind != world.KindCivilian {
			continue
		}
		c := env.lookup(o.Occupant)
		if c == nil {
			continue
		}
		exchange(s, c, env)
		n++
	}
	return n
}

// exchange merges a and b. A civilian takes a steward's knowledge only with
// probability equal to its willingness.
func exchange(a, b *Agent, env Env) {
	na, nb := Merge(a.Knowledge, b.Knowledge)
	if accepts(a, b, env.RNG) {
		if len(na.KnownExits) > len(a.Knowledge.KnownExits) && b.IsSteward() {
			remember(a, env.Tick, 0.6, "steward %d pointed out %d exits", b.ID, len(na.KnownExits)-len(a.Knowledge.KnownExits))
		}
		a.Knowledge = na
	}
	if accepts(b, a, env.RNG) {
		if len(nb.KnownExits) > len(b.Knowledge.KnownExits) && a.IsSteward() {
			remember(b, env.Tick, 0.6, "steward %d pointed out %d exits", a.ID, len(nb.KnownExits)-len(b.Knowledge.KnownExits))
		}
		b.Knowledge = nb
	}
	a.markInteracted(b.ID)
	b.markInteracted(a.ID)
}

func accepts(receiver, giver *Agent, rng *entropy.Source) bool {
	if receiver.IsSteward() || !giver.IsSteward() {
		return true
	}
	return rng.Chance(receiver.Willingness)
}

// route follows a path to the goal, or discards an unreachable goal and
// falls back to local movement.
func route(a *Agent, p perception, env Env) Intent {
	if a.Goal == nil {
		return fallback(a, p, env)
	}
	goal := *a.Goal
	gr := env.Paths.Graph

	hazards, blocked := nav.NewOverlay(), nav.NewOverlay()
	for q := range a.Knowledge.Hazards {
		if gr.Has(q) {
			hazards.Mask(q)
			blocked.Mask(q)
		}
	}
	for _, o := range p.contacting {
		if o.Pos != goal && gr.Has(o.Pos) {
			blocked.Mask(o.Pos)
		}
	}

	path := env.Paths.FindPath(a.Pos, goal, blocked)
	if path == nil {
		if env.Paths.FindPath(a.Pos, goal, hazards) != nil {
			return sidestep(a, env)
		}
		a.Knowledge.DiscardedExits.Add(goal)
		a.Goal = nil
		remember(a, env.Tick, 0.8, "gave up on exit %s", goal)
		return fallback(a, p, env)
	}
	return follow(a, path, env)
}

// follow advances up to Speed steps along path. Stepping onto the goal exit
// means leaving the building.
func follow(a *Agent, path []world.Position, env Env) Intent {
	goal := path[len(path)-1]
	moved := 0
	for _, next := range path[1:] {
		if moved >= a.Speed {
			break
		}
		if next == goal {
			return Intent{
				AgentID: a.ID,
				Kind:    ActionExit,
				Steps:   moved,
				Removal: &Removal{ID: a.ID, Reason: ReasonSaved, Exit: goal},
				Detail:  "leaves through exit " + goal.String(),
			}
		}
		if !env.Grid.IsEmpty(next) {
			break
		}
		if err := moveTo(a, env.Grid, next); err != nil {
			break
		}
		moved++
	}
	if moved == 0 {
		return Intent{AgentID: a.ID, Kind: ActionStay, Detail: "path blocked"}
	}
	return Intent{AgentID: a.ID, Kind: ActionMove, Steps: moved, Detail: "heads for exit " + goal.String()}
}

// sidestep moves a to a random empty adjacent cell while people block its
// route, keeping the goal. With no free cell it waits.
func sidestep(a *Agent, env Env) Intent {
	if a.Speed <= 0 {
		return Intent{AgentID: a.ID, Kind: ActionWait, Detail: "waits for the crowd ahead"}
	}
	target, ok := entropy.Pick(env.RNG, env.Grid.EmptyNeighborhood(a.Pos, 1))
	if !ok || moveTo(a, env.Grid, target) != nil {
		return Intent{AgentID: a.ID, Kind: ActionWait, Detail: "waits for the crowd ahead"}
	}
	return Intent{AgentID: a.ID, Kind: ActionMove, Steps: 1, Detail: "sidesteps the crowd ahead"}
}

// fallback picks one local step when no goal is usable: follow a visible
// wall, else back away from visible fire, else wander.
func fallback(a *Agent, p perception, env Env) Intent {
	var walls, fires []world.Position
	for _, o := range p.seen {
		switch o.Kind {
		case world.KindWall:
			walls = append(walls, o.Pos)
		case world.KindFire:
			fires = append(fires, o.Pos)
		}
	}

	var target world.Position
	var ok bool
	detail := "wanders"
	switch {
	case len(walls) > 0:
		target, ok = followWall(a, walls, env)
		detail = "follows a wall"
	case len(fires) > 0:
		target, ok = awayFrom(a.Pos, nearest(a.Pos, fires), env.Grid)
		detail = "backs away from fire"
	}
	if !ok {
		target, ok = entropy.Pick(env.RNG, env.Grid.EmptyNeighborhood(a.Pos, 1))
	}
	if !ok || moveTo(a, env.Grid, target) != nil {
		return Intent{AgentID: a.ID, Kind: ActionStay, Detail: "nowhere to go"}
	}
	return Intent{AgentID: a.ID, Kind: ActionMove, Steps: 1, Detail: detail}
}

// followWall returns an adjacent empty cell no farther from the nearest
// visible wall than a is now, never the cell a just left. With hazards known
// it takes the candidate farthest from them.
func followWall(a *Agent, walls []world.Position, env Env) (world.Position, bool) {
	cur := minDistance(a.Pos, walls)
	var candidates []world.Position
	for _, q := range env.Grid.EmptyNeighborhood(a.Pos, 1) {
		if q == a.LastPos {
			continue
		}
		if minDistance(q, walls) <= cur {
			candidates = append(candidates, q)
		}
	}
	if len(candidates) == 0 {
		return world.Position{}, false
	}
	if len(a.Knowledge.Hazards) == 0 {
		return entropy.Pick(env.RNG, candidates)
	}
	hazards := a.Knowledge.Hazards.Sorted()
	best, bestDist := candidates[0], -1.0
	for _, q := range candidates {
		if d := minDistance(q, hazards); d > bestDist {
			best, bestDist = q, d
		}
	}
	return best, true
}

// awayFrom returns the cell one unit step from pos directly away from threat,
// if it is empty.
func awayFrom(pos, threat world.Position, g *world.Grid) (world.Position, bool) {
	dx, dy := float64(pos.X-threat.X), float64(pos.Y-threat.Y)
	norm := math.Hypot(dx, dy)
	if norm == 0 {
		return world.Position{}, false
	}
	q := world.Position{
		X: int(math.Round(float64(pos.X) + dx/norm)),
		Y: int(math.Round(float64(pos.Y) + dy/norm)),
	}
	if !g.IsEmpty(q) {
		return world.Position{}, false
	}
	return q, true
}

// terminal kills an agent that has no empty neighbor and touches fire.
func terminal(a *Agent, env Env, in Intent) Intent {
	if len(env.Grid.EmptyNeighborhood(a.Pos, 1)) > 0 {
		return in
	}
	for _, o := range env.Grid.Neighbors(a.Pos, 1, false) {
		if o.Kind == world.KindFire {
			in.Kind = ActionKilled
			in.Removal = &Removal{ID: a.ID, Reason: ReasonKilledByFire}
			in.Detail = "trapped by fire"
			return in
		}
	}
	return in
}

func moveTo(a *Agent, g *world.Grid, to world.Position) error {
	if err := g.Move(a.Pos, to); err != nil {
		return err
	}
	a.LastPos, a.Pos = a.Pos, to
	return nil
}

func (env Env) lookup(o world.Occupant) *Agent {
	if env.Agent == nil {
		return nil
	}
	return env.Agent(o)
}

func nearest(from world.Position, ps []world.Position) world.Position {
	best, bestDist := ps[0], math.Inf(1)
	for _, p := range ps {
		if d := world.Euclidean(from, p); d < bestDist {
			best, bestDist = p, d
		}
	}
	return best
}

func minDistance(from world.Position, ps []world.Position) float64 {
	best := math.Inf(1)
	for _, p := range ps {
		if d := world.Euclidean(from, p); d < best {
			best = d
		}
	}
	return best
}

func (k *Knowledge) ensure() {
	if k.KnownExits == nil {
		k.KnownExits = world.NewPositionSet()
	}
	if k.DiscardedExits == nil {
		k.DiscardedExits = world.NewPositionSet()
	}
	if k.Hazards == nil {
		k.Hazards = world.NewPositionSet()
	}
}
