// Removal bookkeeping for evacuees and the saved/killed tallies it feeds.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/talgya/evacsim/internal/agents"
	"github.com/talgya/evacsim/internal/world"
)

var (
	// ErrAlreadyRemoved is returned when an agent is removed a second time.
	ErrAlreadyRemoved = errors.New("agent already removed")
	// ErrUnknownAgent is returned for an ID that was never spawned.
	ErrUnknownAgent = errors.New("unknown agent")
)

// Outcomes is owned by the Simulation. Agent and fire code only produce
// removal intents; the Simulation applies them here.
type Outcomes struct {
	Initial int                    `json:"initial"`
	Alive   int                    `json:"alive"`
	Saved   []agents.Record        `json:"saved"`
	Killed  []agents.Record        `json:"killed"`
	PerExit map[world.Position]int `json:"-"`

	removed map[agents.AgentID]agents.Reason
}

func newOutcomes(exits []world.Position) Outcomes {
	o := Outcomes{
		PerExit: make(map[world.Position]int, len(exits)),
		removed: make(map[agents.AgentID]agents.Reason),
	}
	for _, e := range exits {
		o.PerExit[e] = 0
	}
	return o
}

// ExitTally is the number of agents saved through one exit.
type ExitTally struct {
	Exit  world.Position `json:"exit"`
	Saved int            `json:"saved"`
}

// Tallies returns the per-exit saved counts ordered by exit position.
func (o *Outcomes) Tallies() []ExitTally {
	out := make([]ExitTally, 0, len(o.PerExit))
	for e, n := range o.PerExit {
		out = append(out, ExitTally{Exit: e, Saved: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Exit.X != out[j].Exit.X {
			return out[i].Exit.X < out[j].Exit.X
		}
		return out[i].Exit.Y < out[j].Exit.Y
	})
	return out
}

// Records returns every removed agent's record, saved first, each group in
// removal order.
func (o *Outcomes) Records() []agents.Record {
	out := make([]agents.Record, 0, len(o.Saved)+len(o.Killed))
	out = append(out, o.Saved...)
	return append(out, o.Killed...)
}

func (o *Outcomes) clone() Outcomes {
	c := Outcomes{
		Initial: o.Initial,
		Alive:   o.Alive,
		Saved:   append([]agents.Record(nil), o.Saved...),
		Killed:  append([]agents.Record(nil), o.Killed...),
		PerExit: make(map[world.Position]int, len(o.PerExit)),
	}
	for e, n := range o.PerExit {
		c.PerExit[e] = n
	}
	return c
}

// addAgent registers a spawned agent in the index, the scheduler and the tallies.
func (s *Simulation) addAgent(a *agents.Agent) {
	s.agents[a.ID] = a
	s.order = append(s.order, a.ID)
	s.sched.Add(a.Occupant())
	s.outcomes.Initial++
	s.outcomes.Alive++
}

// removeLocked takes an agent off the grid and out of the scheduler and
// records why. It must succeed exactly once per agent.
func (s *Simulation) removeLocked(r agents.Removal) error {
	a, ok := s.agents[r.ID]
	if !ok {
		return fmt.Errorf("remove agent %d: %w", r.ID, ErrUnknownAgent)
	}
	if prev, done := s.outcomes.removed[r.ID]; done {
		return fmt.Errorf("remove agent %d (%s, already %s): %w", r.ID, r.Reason, prev, ErrAlreadyRemoved)
	}
	if got := s.Grid.At(a.Pos); got != a.Occupant() {
		return fmt.Errorf("remove agent %d: grid holds %s %d at %s", r.ID, got.Kind, got.ID, a.Pos)
	}
	if _, err := s.Grid.Remove(a.Pos); err != nil {
		return fmt.Errorf("remove agent %d: %w", r.ID, err)
	}
	s.sched.Remove(a.Occupant())

	rec := agents.NewRecord(a, r, s.tick)
	s.outcomes.removed[r.ID] = r.Reason
	s.outcomes.Alive--
	switch r.Reason {
	case agents.ReasonSaved:
		s.outcomes.Saved = append(s.outcomes.Saved, rec)
		if _, ok := s.outcomes.PerExit[r.Exit]; ok {
			s.outcomes.PerExit[r.Exit]++
		}
		s.emitLocked(Event{
			Tick:        s.tick,
			Description: fmt.Sprintf("%s %d escaped through exit %s", a.Kind, a.ID, r.Exit),
			Category:    "saved",
		})
	case agents.ReasonKilledByFire:
		s.outcomes.Killed = append(s.outcomes.Killed, rec)
		s.emitLocked(Event{
			Tick:        s.tick,
			Description: fmt.Sprintf("%s %d was caught by fire at %s", a.Kind, a.ID, a.Pos),
			Category:    "killed",
		})
	}
	slog.Debug("agent removed", "tick", s.tick, "agent", a.ID, "kind", a.Kind, "reason", r.Reason)
	return nil
}

// RemoveAgent removes an agent for the given reason. A second removal of the
// same agent returns ErrAlreadyRemoved.
func (s *Simulation) RemoveAgent(id agents.AgentID, reason agents.Reason) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := agents.Removal{ID: id, Reason: reason}
	if a, ok := s.agents[id]; ok && reason == agents.ReasonSaved && a.Goal != nil {
		r.Exit = *a.Goal
	}
	err := s.removeLocked(r)
	if err == nil {
		s.haltIfEmptyLocked()
	}
	return err
}
