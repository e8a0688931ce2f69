package nav

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/evacsim/internal/world"
)

// bfsDistance is the brute-force shortest 8-connected step count, or -1.
func bfsDistance(g *Graph, start, goal world.Position, blocked *Overlay) int {
	if !g.Has(start) || !g.Has(goal) {
		return -1
	}
	dist := map[world.Position]int{start: 0}
	queue := []world.Position{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == goal {
			return dist[cur]
		}
		for _, n := range g.Neighbors(cur) {
			if blocked.Masked(n) {
				continue
			}
			if _, seen := dist[n]; seen {
				continue
			}
			dist[n] = dist[cur] + 1
			queue = append(queue, n)
		}
	}
	return -1
}

func assertValidPath(t *testing.T, g *Graph, path []world.Position, start, goal world.Position, blocked *Overlay) {
	t.Helper()
	require.NotEmpty(t, path)
	assert.Equal(t, start, path[0])
	assert.Equal(t, goal, path[len(path)-1])
	for i := 1; i < len(path); i++ {
		require.True(t, g.Has(path[i]), "path step %s must be a node", path[i])
		require.False(t, blocked.Masked(path[i]), "path step %s is masked", path[i])
		require.Equal(t, 1, world.Chebyshev(path[i-1], path[i]), "steps must be adjacent")
	}
}

func randomGrid(rng *rand.Rand, w, h int, wallRate float64) *world.Grid {
	g := world.NewGrid(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if rng.Float64() < wallRate {
				_ = g.Place(world.Occupant{Kind: world.KindWall}, world.Position{X: x, Y: y})
			}
		}
	}
	return g
}

func TestGraphExcludesWalls(t *testing.T) {
	g := world.NewGrid(5, 5)
	require.NoError(t, g.Place(world.Occupant{Kind: world.KindWall}, world.Position{X: 2, Y: 2}))
	require.NoError(t, g.Place(world.Occupant{Kind: world.KindExit}, world.Position{X: 4, Y: 4}))

	gr := NewGraph(g)
	assert.Equal(t, 24, gr.Len())
	assert.False(t, gr.Has(world.Position{X: 2, Y: 2}))
	assert.True(t, gr.Has(world.Position{X: 4, Y: 4}), "exits are walkable nodes")
	assert.Len(t, gr.Neighbors(world.Position{X: 0, Y: 0}), 3)
	assert.Len(t, gr.Neighbors(world.Position{X: 1, Y: 1}), 7)
	assert.Len(t, gr.Neighbors(world.Position{X: 4, Y: 2}), 5, "last column connects inward only")

	err := gr.Mask(NewOverlay(), world.Position{X: 2, Y: 2})
	assert.ErrorIs(t, err, ErrNotNode)
}

func TestFindPathOpenGrid(t *testing.T) {
	gr := NewGraph(world.NewGrid(5, 5))
	path := FindPath(gr, world.Position{X: 0, Y: 0}, world.Position{X: 4, Y: 4}, nil)
	assertValidPath(t, gr, path, world.Position{X: 0, Y: 0}, world.Position{X: 4, Y: 4}, nil)
	assert.Equal(t, 4, Length(path))

	same := FindPath(gr, world.Position{X: 1, Y: 1}, world.Position{X: 1, Y: 1}, nil)
	assert.Equal(t, []world.Position{{X: 1, Y: 1}}, same)
}

func TestFindPathMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 200; trial++ {
		g := randomGrid(rng, 5+rng.Intn(4), 5+rng.Intn(4), 0.25)
		gr := NewGraph(g)
		start := world.Position{X: rng.Intn(g.Width), Y: rng.Intn(g.Height)}
		goal := world.Position{X: rng.Intn(g.Width), Y: rng.Intn(g.Height)}

		want := bfsDistance(gr, start, goal, nil)
		path := FindPath(gr, start, goal, nil)
		if want < 0 {
			assert.Nil(t, path, "trial %d: %s -> %s unreachable", trial, start, goal)
			continue
		}
		assertValidPath(t, gr, path, start, goal, nil)
		assert.Equal(t, want, Length(path), "trial %d: %s -> %s", trial, start, goal)
	}
}

func TestFindPathWithOverlayMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for trial := 0; trial < 200; trial++ {
		g := randomGrid(rng, 6, 6, 0.15)
		gr := NewGraph(g)
		start := world.Position{X: rng.Intn(6), Y: rng.Intn(6)}
		goal := world.Position{X: rng.Intn(6), Y: rng.Intn(6)}

		ov := NewOverlay()
		for i := 0; i < 6; i++ {
			p := world.Position{X: rng.Intn(6), Y: rng.Intn(6)}
			if p != start && gr.Has(p) {
				require.NoError(t, gr.Mask(ov, p))
			}
		}

		want := bfsDistance(gr, start, goal, ov)
		path := FindPath(gr, start, goal, ov)
		if want < 0 {
			assert.Nil(t, path)
			continue
		}
		assertValidPath(t, gr, path, start, goal, ov)
		assert.Equal(t, want, Length(path))
	}
}

func TestFindPathLeavesWalkabilityUntouched(t *testing.T) {
	g := world.NewGrid(6, 6)
	require.NoError(t, g.Place(world.Occupant{Kind: world.KindWall}, world.Position{X: 3, Y: 3}))
	gr := NewGraph(g)

	snapshot := func(ov *Overlay) map[world.Position]bool {
		out := make(map[world.Position]bool)
		for y := 0; y < 6; y++ {
			for x := 0; x < 6; x++ {
				p := world.Position{X: x, Y: y}
				out[p] = gr.Walkable(p, ov)
			}
		}
		return out
	}

	before := snapshot(nil)
	ov := NewOverlay(world.Position{X: 1, Y: 0}, world.Position{X: 1, Y: 1}, world.Position{X: 0, Y: 1})
	maskedBefore := snapshot(ov)

	path := FindPath(gr, world.Position{X: 0, Y: 0}, world.Position{X: 5, Y: 5}, ov)
	assert.Nil(t, path, "start is boxed in by the overlay")

	assert.Equal(t, before, snapshot(nil), "graph flags restored for every node")
	assert.Equal(t, maskedBefore, snapshot(ov), "overlay not consumed by the query")
	assert.Equal(t, 3, ov.Len())

	ov.Unmask(world.Position{X: 1, Y: 1})
	path = FindPath(gr, world.Position{X: 0, Y: 0}, world.Position{X: 5, Y: 5}, ov)
	assertValidPath(t, gr, path, world.Position{X: 0, Y: 0}, world.Position{X: 5, Y: 5}, ov)
}

func TestFindPathMaskedMidPath(t *testing.T) {
	// A corridor one cell wide: y=1 is open, rows 0 and 2 are wall.
	g := world.NewGrid(7, 3)
	for x := 0; x < 7; x++ {
		require.NoError(t, g.Place(world.Occupant{Kind: world.KindWall}, world.Position{X: x, Y: 0}))
		require.NoError(t, g.Place(world.Occupant{Kind: world.KindWall}, world.Position{X: x, Y: 2}))
	}
	gr := NewGraph(g)
	start, goal := world.Position{X: 0, Y: 1}, world.Position{X: 6, Y: 1}

	require.NotNil(t, FindPath(gr, start, goal, nil))
	assert.Nil(t, FindPath(gr, start, goal, NewOverlay(world.Position{X: 3, Y: 1})))
	assert.Nil(t, FindPath(gr, start, goal, NewOverlay(goal)), "masked goal is unreachable")
	assert.Nil(t, FindPath(gr, start, world.Position{X: 3, Y: 0}, nil), "walls are not nodes")
}

func TestHeuristicVariants(t *testing.T) {
	gr := NewGraph(world.NewGrid(8, 8))
	start, goal := world.Position{X: 0, Y: 0}, world.Position{X: 7, Y: 3}

	for _, name := range []string{"chebyshev", "euclidean", "octile"} {
		h, err := HeuristicByName(name, 1)
		require.NoError(t, err)
		pf := &Pathfinder{Graph: gr, Heuristic: h, DiagonalCost: 1}
		path := pf.FindPath(start, goal, nil)
		assertValidPath(t, gr, path, start, goal, nil)
		if name == "euclidean" {
			assert.GreaterOrEqual(t, Length(path), 7)
			continue
		}
		assert.Equal(t, 7, Length(path), name)
	}

	_, err := HeuristicByName("manhattan", 1)
	assert.Error(t, err)

	assert.InDelta(t, 7+3*(1.4142-2)+3, Octile(1.4142)(start, goal), 1e-9)
}
