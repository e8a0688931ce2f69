package engine

import (
	"github.com/talgya/evacsim/internal/entropy"
	"github.com/talgya/evacsim/internal/world"
)

// Scheduler holds every entity that acts each tick: burning fire cells,
// civilians and stewards. Each tick's order is a fresh shuffle.
type Scheduler struct {
	rng     *entropy.Source
	members []world.Occupant
	index   map[world.Occupant]int
}

// NewScheduler creates an empty scheduler that shuffles with rng.
func NewScheduler(rng *entropy.Source) *Scheduler {
	return &Scheduler{
		rng:   rng,
		index: make(map[world.Occupant]int),
	}
}

// Add schedules o. Adding a member twice is a no-op.
func (s *Scheduler) Add(o world.Occupant) {
	if _, ok := s.index[o]; ok {
		return
	}
	s.index[o] = len(s.members)
	s.members = append(s.members, o)
}

// Remove unschedules o and reports whether it was scheduled.
func (s *Scheduler) Remove(o world.Occupant) bool {
	i, ok := s.index[o]
	if !ok {
		return false
	}
	last := len(s.members) - 1
	s.members[i] = s.members[last]
	s.index[s.members[i]] = i
	s.members = s.members[:last]
	delete(s.index, o)
	return true
}

// Has reports whether o is scheduled.
func (s *Scheduler) Has(o world.Occupant) bool {
	_, ok := s.index[o]
	return ok
}

// Len returns the number of scheduled entities.
func (s *Scheduler) Len() int {
	return len(s.members)
}

// Count returns how many scheduled entities have one of the given kinds.
func (s *Scheduler) Count(kinds ...world.Kind) int {
	n := 0
	for _, o := range s.members {
		for _, k := range kinds {
			if o.Kind == k {
				n++
				break
			}
		}
	}
	return n
}

// Order returns this tick's activation order. Entities removed while the
// tick runs are still listed; callers check Has before activating.
func (s *Scheduler) Order() []world.Occupant {
	order := make([]world.Occupant, len(s.members))
	copy(order, s.members)
	s.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	return order
}
