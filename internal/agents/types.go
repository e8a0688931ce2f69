// Package agents provides the evacuee data model, shared exit knowledge,
// population spawning, and the per-tick behavior engine.
package agents

import (
	"fmt"

	"github.com/talgya/evacsim/internal/world"
)

// AgentID is a unique identifier for an evacuee.
type AgentID = world.EntityID

// Reason is why an agent left the floor.
type Reason uint8

const (
	ReasonSaved        Reason = iota + 1 // Reached its goal exit
	ReasonKilledByFire                   // Caught by fire or trapped against it
)

// String returns the reason name used in logs and persisted rows.
func (r Reason) String() string {
	switch r {
	case ReasonSaved:
		return "saved"
	case ReasonKilledByFire:
		return "killed_by_fire"
	default:
		return fmt.Sprintf("reason(%d)", r)
	}
}

// Removal asks the orchestrator to take an agent off the floor.
// Exit is set for saved agents.
type Removal struct {
	ID     AgentID        `json:"id"`
	Reason Reason         `json:"reason"`
	Exit   world.Position `json:"exit"`
}

// Agent is one evacuee. Stewards are agents with Kind KindSteward.
type Agent struct {
	ID   AgentID    `json:"id"`
	Kind world.Kind `json:"kind"`

	// Location
	Pos     world.Position  `json:"pos"`
	LastPos world.Position  `json:"last_pos"` // Cell left most recently, avoided when wall-following
	Goal    *world.Position `json:"goal,omitempty"`

	// Demographics
	Age    int     `json:"age"`    // Years
	Weight float64 `json:"weight"` // Kilograms

	// Derived capabilities
	VisualRange   int     `json:"visual_range"`   // Perception radius in cells
	Speed         int     `json:"speed"`          // Path steps per tick
	RiskTolerance int     `json:"risk_tolerance"` // 0 avoids a fire's neighborhood, 1 only the fire itself
	Willingness   float64 `json:"willingness"`    // Chance of taking a steward's directions, 0.0–1.0
	InfoExchange  bool    `json:"info_exchange"`

	Knowledge      Knowledge            `json:"knowledge"`
	InteractedWith map[AgentID]struct{} `json:"-"`

	Memories []Memory `json:"memories,omitempty"`
}

// IsSteward reports whether the agent is a steward.
func (a *Agent) IsSteward() bool {
	return a.Kind == world.KindSteward
}

// Occupant returns the grid occupant that stands for a.
func (a *Agent) Occupant() world.Occupant {
	return world.Occupant{Kind: a.Kind, ID: a.ID}
}

// HazardRadius is how far around a seen fire the agent marks cells as unsafe.
func (a *Agent) HazardRadius() int {
	if a.RiskTolerance >= 1 {
		return 0
	}
	return 1
}

// Interacted reports whether a has already exchanged knowledge with id.
func (a *Agent) Interacted(id AgentID) bool {
	_, ok := a.InteractedWith[id]
	return ok
}

func (a *Agent) markInteracted(id AgentID) {
	if a.InteractedWith == nil {
		a.InteractedWith = make(map[AgentID]struct{})
	}
	a.InteractedWith[id] = struct{}{}
}

// Record is the per-agent outcome row kept for offline analysis.
type Record struct {
	ID            AgentID        `json:"id" db:"agent_id"`
	Kind          string         `json:"kind" db:"kind"`
	Age           int            `json:"age" db:"age"`
	Weight        float64        `json:"weight" db:"weight"`
	VisualRange   int            `json:"visual_range" db:"visual_range"`
	Speed         int            `json:"speed" db:"speed"`
	RiskTolerance int            `json:"risk_tolerance" db:"risk_tolerance"`
	Willingness   float64        `json:"willingness" db:"willingness"`
	Outcome       string         `json:"outcome" db:"outcome"`
	ExitX         int            `json:"exit_x" db:"exit_x"`
	ExitY         int            `json:"exit_y" db:"exit_y"`
	Tick          uint64         `json:"tick" db:"tick"`
	Pos           world.Position `json:"pos" db:"-"`
}

// NewRecord builds the outcome row for a removed agent.
func NewRecord(a *Agent, r Removal, tick uint64) Record {
	rec := Record{
		ID:            a.ID,
		Kind:          a.Kind.String(),
		Age:           a.Age,
		Weight:        a.Weight,
		VisualRange:   a.VisualRange,
		Speed:         a.Speed,
		RiskTolerance: a.RiskTolerance,
		Willingness:   a.Willingness,
		Outcome:       r.Reason.String(),
		ExitX:         -1,
		ExitY:         -1,
		Tick:          tick,
		Pos:           a.Pos,
	}
	if r.Reason == ReasonSaved {
		rec.ExitX, rec.ExitY = r.Exit.X, r.Exit.Y
	}
	return rec
}
