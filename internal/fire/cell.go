// Package fire models ignition, dwell delay, and probabilistic spread of fire
// across the floor. A fire cell waits out its dwell, then on every activation
// draws against its spread probability; a successful draw ignites its
// neighbors and burns the cell out. Burned-out cells stay on the grid as
// permanent hazards but are never activated again.
package fire

import (
	"fmt"

	"github.com/talgya/evacsim/internal/world"
)

// State is the lifecycle stage of a fire cell.
type State uint8

const (
	OnFire    State = iota // Burning, may still spread
	BurnedOut              // Terminal
)

// String returns the state name as displayed by reporting layers.
func (s State) String() string {
	switch s {
	case OnFire:
		return "on fire"
	case BurnedOut:
		return "burned out"
	default:
		return fmt.Sprintf("state(%d)", s)
	}
}

// Cell is one burning (or burned-out) grid cell.
type Cell struct {
	ID         world.EntityID `json:"id"`
	Pos        world.Position `json:"pos"`
	State      State          `json:"state"`
	Dwell      int            `json:"dwell"`       // Activations spent waiting
	Threshold  int            `json:"threshold"`   // Dwell required before spread attempts
	SpreadProb float64        `json:"spread_prob"` // Per-attempt spread probability
}

// Activate advances the cell by one tick given a uniform draw in [0, 1).
// It returns true when the cell spreads this tick; the cell is then
// BurnedOut and the caller ignites its neighbors. Once the dwell is served
// a failed draw leaves the cell burning, to try again next tick.
func (c *Cell) Activate(draw float64) bool {
	if c.State != OnFire {
		return false
	}
	if c.Dwell < c.Threshold {
		c.Dwell++
		return false
	}
	if draw < c.SpreadProb {
		c.State = BurnedOut
		return true
	}
	return false
}

// Burning reports whether the cell can still act.
func (c *Cell) Burning() bool {
	return c.State == OnFire
}
