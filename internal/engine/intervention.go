package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/evacsim/internal/agents"
	"github.com/talgya/evacsim/internal/fire"
	"github.com/talgya/evacsim/internal/world"
)

// IgniteAt starts a new fire at p between ticks. A person standing there is
// killed first. The new cell is scheduled from the next tick.
func (s *Simulation) IgniteAt(p world.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return fmt.Errorf("ignite %s: simulation has halted", p)
	}
	if !s.Grid.InBounds(p) {
		return fmt.Errorf("ignite %s: %w", p, world.ErrOutOfBounds)
	}
	occ := s.Grid.At(p)
	if !fire.Ignitable(occ.Kind) {
		return fmt.Errorf("ignite %s (%s): %w", p, occ.Kind, fire.ErrNotIgnitable)
	}
	if occ.Kind.IsPerson() {
		if err := s.removeLocked(agents.Removal{ID: occ.ID, Reason: agents.ReasonKilledByFire}); err != nil {
			return fmt.Errorf("ignite %s: %w", p, err)
		}
	}
	if err := s.igniteLocked(p); err != nil {
		return fmt.Errorf("ignite %s: %w", p, err)
	}
	s.emitLocked(Event{Tick: s.tick, Description: fmt.Sprintf("fire set at %s", p), Category: "fire"})
	slog.Info("fire set", "tick", s.tick, "pos", p)
	s.haltIfEmptyLocked()
	return nil
}
