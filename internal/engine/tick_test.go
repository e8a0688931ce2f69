package engine

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/evacsim/internal/config"
	"github.com/talgya/evacsim/internal/entropy"
	"github.com/talgya/evacsim/internal/world"
)

func TestSchedulerMembership(t *testing.T) {
	s := NewScheduler(entropy.New(1))
	fireA := world.Occupant{Kind: world.KindFire, ID: 1}
	civ := world.Occupant{Kind: world.KindCivilian, ID: 1}
	stew := world.Occupant{Kind: world.KindSteward, ID: 2}

	s.Add(fireA)
	s.Add(civ)
	s.Add(stew)
	s.Add(civ)
	assert.Equal(t, 3, s.Len(), "duplicate adds are ignored")
	assert.Equal(t, 2, s.Count(world.KindCivilian, world.KindSteward))

	assert.True(t, s.Remove(fireA))
	assert.False(t, s.Remove(fireA))
	assert.False(t, s.Has(fireA))
	assert.True(t, s.Has(civ))
	assert.True(t, s.Has(stew))
	assert.Equal(t, 0, s.Count(world.KindFire))
}

func TestSchedulerOrderIsPermutation(t *testing.T) {
	s := NewScheduler(entropy.New(3))
	var want []world.Occupant
	for i := 1; i <= 20; i++ {
		o := world.Occupant{Kind: world.KindCivilian, ID: world.EntityID(i)}
		s.Add(o)
		want = append(want, o)
	}

	differs := false
	for round := 0; round < 5; round++ {
		got := s.Order()
		require.Len(t, got, 20)
		sorted := append([]world.Occupant(nil), got...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
		assert.Equal(t, want, sorted)
		for i := range got {
			if got[i] != want[i] {
				differs = true
			}
		}
	}
	assert.True(t, differs, "order is reshuffled")
}

func TestEngineStopsAtMaxSteps(t *testing.T) {
	cfg := config.Default()
	cfg.SpreadProb = 0
	sim := newSim(t, cfg)

	ticks := 0
	e := NewEngine(sim, 0, 5)
	e.OnTick = func(uint64) { ticks++ }
	e.Run()

	assert.LessOrEqual(t, e.Steps(), 5)
	assert.Equal(t, e.Steps(), ticks)
	if sim.Running() {
		assert.Equal(t, 5, e.Steps())
	}
	assert.Equal(t, uint64(e.Steps()), sim.CurrentTick())
}

func TestEngineStopsWhenHalted(t *testing.T) {
	s := newSim(t, openConfig(5, 5, pos(4, 2)))
	place(t, s, world.KindCivilian, 100, pos(3, 2), 1, pos(4, 2))

	e := NewEngine(s, 0, 0)
	e.Run()
	assert.False(t, s.Running())
	assert.Equal(t, 1, e.Steps())
}

func TestEngineStop(t *testing.T) {
	sim := newSim(t, config.Default())
	e := NewEngine(sim, time.Millisecond, 0)

	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()
	require.Eventually(t, func() bool { return e.Steps() > 0 || !sim.Running() }, 2*time.Second, time.Millisecond)
	e.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}
}

func TestEngineSpeed(t *testing.T) {
	e := NewEngine(nil, time.Second, 0)
	assert.Equal(t, 1.0, e.Speed())
	e.SetSpeed(4)
	assert.Equal(t, 4.0, e.Speed())
}
