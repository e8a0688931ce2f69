package fire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/evacsim/internal/world"
)

func TestCellActivate(t *testing.T) {
	tests := []struct {
		name      string
		threshold int
		prob      float64
		draws     []float64
		spreadAt  int // index of the activation that spreads, -1 for none
	}{
		{"immediate", 0, 1, []float64{0.99}, 0},
		{"dwell one", 1, 1, []float64{0, 0}, 1},
		{"dwell three", 3, 0.5, []float64{0, 0, 0, 0.1}, 3},
		{"failed draws idle", 0, 0.25, []float64{0.3, 0.9, 0.25, 0.24}, 3},
		{"never spreads", 0, 0, []float64{0, 0, 0}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Cell{State: OnFire, Threshold: tt.threshold, SpreadProb: tt.prob}
			got := -1
			for i, d := range tt.draws {
				if c.Activate(d) {
					got = i
					break
				}
				assert.Equal(t, OnFire, c.State)
			}
			assert.Equal(t, tt.spreadAt, got)
			if got >= 0 {
				assert.Equal(t, BurnedOut, c.State)
			}
		})
	}
}

func TestBurnedOutIsTerminal(t *testing.T) {
	c := &Cell{State: OnFire, SpreadProb: 1}
	require.True(t, c.Activate(0))
	for i := 0; i < 5; i++ {
		assert.False(t, c.Activate(0))
		assert.Equal(t, BurnedOut, c.State)
		assert.False(t, c.Burning())
	}
}

func TestIgnite(t *testing.T) {
	g := world.NewGrid(5, 5)
	require.NoError(t, g.Place(world.Occupant{Kind: world.KindWall}, world.Position{X: 0, Y: 0}))
	require.NoError(t, g.Place(world.Occupant{Kind: world.KindExit}, world.Position{X: 4, Y: 4}))
	a := NewAutomaton(1, 0.25, nil)

	c, err := a.Ignite(g, world.Position{X: 2, Y: 2})
	require.NoError(t, err)
	assert.Equal(t, world.KindFire, g.At(c.Pos).Kind)
	assert.Equal(t, c.ID, g.At(c.Pos).ID)
	assert.Equal(t, 0.25, c.SpreadProb)

	_, err = a.Ignite(g, world.Position{X: 2, Y: 2})
	assert.ErrorIs(t, err, ErrNotIgnitable)
	_, err = a.Ignite(g, world.Position{X: 0, Y: 0})
	assert.ErrorIs(t, err, ErrNotIgnitable)
	_, err = a.Ignite(g, world.Position{X: 4, Y: 4})
	assert.ErrorIs(t, err, ErrNotIgnitable)

	// A person must be evicted first.
	require.NoError(t, g.Place(world.Occupant{Kind: world.KindCivilian, ID: 1}, world.Position{X: 1, Y: 1}))
	_, err = a.Ignite(g, world.Position{X: 1, Y: 1})
	assert.ErrorIs(t, err, world.ErrOccupied)

	c2, err := a.Ignite(g, world.Position{X: 3, Y: 3})
	require.NoError(t, err)
	assert.NotEqual(t, c.ID, c2.ID)

	got, ok := a.At(world.Position{X: 3, Y: 3})
	require.True(t, ok)
	assert.Same(t, c2, got)
	assert.Equal(t, 2, a.Burning())
	assert.Equal(t, 0, a.BurnedOut())
}

func TestSpreadTargetsSkipWallsExitsAndFire(t *testing.T) {
	g := world.NewGrid(5, 5)
	require.NoError(t, g.Place(world.Occupant{Kind: world.KindWall}, world.Position{X: 1, Y: 1}))
	require.NoError(t, g.Place(world.Occupant{Kind: world.KindExit}, world.Position{X: 3, Y: 3}))
	require.NoError(t, g.Place(world.Occupant{Kind: world.KindSteward, ID: 9}, world.Position{X: 2, Y: 3}))
	a := NewAutomaton(0, 1, nil)
	_, err := a.Ignite(g, world.Position{X: 3, Y: 2})
	require.NoError(t, err)
	c, err := a.Ignite(g, world.Position{X: 2, Y: 2})
	require.NoError(t, err)

	targets := a.SpreadTargets(g, c)
	assert.ElementsMatch(t, []world.Position{
		{X: 2, Y: 1}, {X: 3, Y: 1},
		{X: 1, Y: 2},
		{X: 1, Y: 3}, {X: 2, Y: 3},
	}, targets)

	corner, err := a.Ignite(g, world.Position{X: 0, Y: 4})
	require.NoError(t, err)
	assert.ElementsMatch(t, []world.Position{{X: 1, Y: 4}, {X: 0, Y: 3}, {X: 1, Y: 3}}, a.SpreadTargets(g, corner))
}

func TestEverIgnitedNeverShrinks(t *testing.T) {
	g := world.NewGrid(7, 7)
	a := NewAutomaton(0, 1, nil)
	_, err := a.Ignite(g, world.Position{X: 3, Y: 3})
	require.NoError(t, err)

	prev := a.Ever()
	for tick := 0; tick < 4; tick++ {
		var spread []world.Position
		for _, c := range a.Cells() {
			if c.Activate(0) {
				spread = append(spread, a.SpreadTargets(g, c)...)
			}
		}
		for _, p := range spread {
			if g.IsEmpty(p) {
				_, err := a.Ignite(g, p)
				require.NoError(t, err)
			}
		}
		ever := a.Ever()
		for p := range prev {
			require.True(t, ever.Has(p), "tick %d lost %s", tick, p)
		}
		for _, c := range a.Cells() {
			if c.State == BurnedOut {
				require.True(t, ever.Has(c.Pos))
			}
		}
		prev = ever
	}
	assert.Equal(t, 49, len(prev))
	assert.Equal(t, 49, a.BurnedOut()+a.Burning())
}

func TestFuelScalesSpreadProbability(t *testing.T) {
	g := world.NewGrid(20, 20)
	fuel := world.NewFuelField(20, 20, 3, 0.5)
	a := NewAutomaton(1, 0.4, fuel)
	for x := 0; x < 20; x++ {
		c, err := a.Ignite(g, world.Position{X: x, Y: 10})
		require.NoError(t, err)
		assert.InDelta(t, 0.4*fuel.Multiplier(c.Pos), c.SpreadProb, 1e-12)
		assert.GreaterOrEqual(t, c.SpreadProb, 0.0)
		assert.LessOrEqual(t, c.SpreadProb, 1.0)
	}
}
