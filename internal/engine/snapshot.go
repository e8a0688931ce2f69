package engine

import (
	"log/slog"

	"github.com/talgya/evacsim/internal/world"
)

// subscriberBuffer is how many snapshots a slow subscriber may lag behind
// before newer ones are dropped for it.
const subscriberBuffer = 16

// Entity is one non-wall occupant as rendered by visual clients.
type Entity struct {
	Kind        string         `json:"kind"`
	ID          uint64         `json:"id"`
	Pos         world.Position `json:"pos"`
	Speed       int            `json:"speed,omitempty"`
	VisualRange int            `json:"visual_range,omitempty"`
	HasGoal     bool           `json:"has_goal,omitempty"`
	FireState   string         `json:"fire_state,omitempty"`
}

// Snapshot is the read-only view of one tick pushed to stream subscribers.
type Snapshot struct {
	RunID    string   `json:"run_id"`
	Tick     uint64   `json:"tick"`
	Running  bool     `json:"running"`
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	Stats    Stats    `json:"stats"`
	Entities []Entity `json:"entities"`
}

// Snapshot returns the current view of the floor. Walls are omitted; they
// never change and are served by the grid endpoint.
func (s *Simulation) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Simulation) snapshotLocked() Snapshot {
	snap := Snapshot{
		RunID:   s.RunID.String(),
		Tick:    s.tick,
		Running: s.running,
		Width:   s.Grid.Width,
		Height:  s.Grid.Height,
		Stats:   s.history[len(s.history)-1],
	}
	for _, c := range s.Grid.Cells() {
		if c.Kind == world.KindWall {
			continue
		}
		e := Entity{Kind: c.Kind.String(), ID: uint64(c.ID), Pos: c.Pos}
		switch c.Kind {
		case world.KindFire:
			if fc, ok := s.Fire.Cell(c.ID); ok {
				e.FireState = fc.State.String()
			}
		case world.KindCivilian, world.KindSteward:
			if a, ok := s.agents[c.ID]; ok {
				e.Speed = a.Speed
				e.VisualRange = a.VisualRange
				e.HasGoal = a.Goal != nil
			}
		}
		snap.Entities = append(snap.Entities, e)
	}
	return snap
}

// Subscribe registers a listener that receives a snapshot after every tick.
// The channel is closed by Unsubscribe.
func (s *Simulation) Subscribe() (int, <-chan Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan Snapshot, subscriberBuffer)
	s.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a listener and closes its channel.
func (s *Simulation) Unsubscribe(id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if ch, ok := s.subs[id]; ok {
		close(ch)
		delete(s.subs, id)
	}
}

func (s *Simulation) hasSubscribers() bool {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subs) > 0
}

// publish never blocks the tick; a full subscriber misses the snapshot.
func (s *Simulation) publish(snap Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			slog.Debug("dropping snapshot for slow subscriber", "sub_id", id, "tick", snap.Tick)
		}
	}
}
