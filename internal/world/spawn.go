// Spawn placement: picks start cells for evacuees inside the building.
package world

import "errors"

// ErrNoSpawnCell is returned when the footprint has no empty interior cell left.
var ErrNoSpawnCell = errors.New("no empty spawn cell")

// Intner is the slice of a random source placement needs.
type Intner interface {
	Intn(n int) int
}

// maxSpawnDraws bounds rejection sampling before falling back to a scan.
const maxSpawnDraws = 1000

// SpawnCell draws a uniformly random empty cell strictly inside the outer
// walls and inside the footprint of l.
func SpawnCell(g *Grid, l Layout, rng Intner) (Position, error) {
	if g.Width < 3 || g.Height < 3 {
		return spawnScan(g, l, rng, 0)
	}
	for i := 0; i < maxSpawnDraws; i++ {
		p := Position{
			X: 1 + rng.Intn(g.Width-2),
			Y: 1 + rng.Intn(g.Height-2),
		}
		if g.IsEmpty(p) && l.InFootprint(p) {
			return p, nil
		}
	}
	// Crowded floor: pick uniformly among what is left.
	return spawnScan(g, l, rng, 1)
}

func spawnScan(g *Grid, l Layout, rng Intner, margin int) (Position, error) {
	var candidates []Position
	for y := margin; y < g.Height-margin; y++ {
		for x := margin; x < g.Width-margin; x++ {
			p := Position{X: x, Y: y}
			if g.IsEmpty(p) && l.InFootprint(p) {
				candidates = append(candidates, p)
			}
		}
	}
	if len(candidates) == 0 {
		return Position{}, ErrNoSpawnCell
	}
	return candidates[rng.Intn(len(candidates))], nil
}
