package agents

import (
	"github.com/talgya/evacsim/internal/world"
)

// Knowledge is what an agent believes about the floor. Every set is owned by
// exactly one agent; Merge hands back fresh copies so no two agents ever
// share a map.
type Knowledge struct {
	KnownExits     world.PositionSet `json:"known_exits"`
	DiscardedExits world.PositionSet `json:"discarded_exits"` // Proven unreachable, never retried
	Hazards        world.PositionSet `json:"hazards"`         // Cells believed to hold fire
}

// NewKnowledge returns knowledge of the given exits and nothing else.
func NewKnowledge(exits ...world.Position) Knowledge {
	return Knowledge{
		KnownExits:     world.NewPositionSet(exits...),
		DiscardedExits: world.NewPositionSet(),
		Hazards:        world.NewPositionSet(),
	}
}

// Clone returns a deep copy.
func (k Knowledge) Clone() Knowledge {
	return Knowledge{
		KnownExits:     k.KnownExits.Clone(),
		DiscardedExits: k.DiscardedExits.Clone(),
		Hazards:        k.Hazards.Clone(),
	}
}

// Equal reports whether both hold the same sets.
func (k Knowledge) Equal(o Knowledge) bool {
	return k.KnownExits.Equal(o.KnownExits) &&
		k.DiscardedExits.Equal(o.DiscardedExits) &&
		k.Hazards.Equal(o.Hazards)
}

// Candidates returns known exits not yet discarded, in sorted order.
func (k Knowledge) Candidates() []world.Position {
	return k.KnownExits.Minus(k.DiscardedExits).Sorted()
}

// Merge returns the knowledge each side holds after an exchange: the union of
// both sides, as two independent copies. Merge is symmetric, and merging the
// results again changes nothing.
func Merge(a, b Knowledge) (Knowledge, Knowledge) {
	u := Knowledge{
		KnownExits:     a.KnownExits.Union(b.KnownExits),
		DiscardedExits: a.DiscardedExits.Union(b.DiscardedExits),
		Hazards:        a.Hazards.Union(b.Hazards),
	}
	return u, u.Clone()
}

// SelectGoal returns the nearest candidate exit by Manhattan distance from
// pos, or nil when every known exit is discarded. Ties go to the lowest
// position in sorted order.
func SelectGoal(pos world.Position, k Knowledge) *world.Position {
	var best *world.Position
	bestDist := 0
	for _, e := range k.Candidates() {
		d := world.Manhattan(pos, e)
		if best == nil || d < bestDist {
			e := e
			best, bestDist = &e, d
		}
	}
	return best
}
