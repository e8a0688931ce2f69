// Floor-plan construction: walls, exits, and the zones where nobody spawns.
// The default plan is an E-shaped building: a spine on the west side, three
// wings reaching east, and two open courtyards between the wings.
package world

import "fmt"

// Segment is a straight or diagonal wall run between two cells, inclusive.
type Segment struct {
	From Position `json:"from" yaml:"from"`
	To   Position `json:"to" yaml:"to"`
}

// Layout describes a floor plan independent of any grid instance.
type Layout struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`

	Walls     []Segment  `json:"walls" yaml:"walls"`
	Exits     []Position `json:"exits" yaml:"exits"`           // Every exit, main exits included
	MainExits []Position `json:"main_exits" yaml:"main_exits"` // Known to every civilian at spawn
	NoSpawn   []Rect     `json:"no_spawn" yaml:"no_spawn"`     // Outside the building footprint
}

// EBuilding returns the default plan scaled to width x height.
// For 50x50 this gives horizontal bars at y=10, 20, 29 and 39, courtyards
// spanning x 0..25, and main exits on the east wall at y=14..16.
func EBuilding(width, height int) Layout {
	armLen := height / 5  // vertical segments of the E
	armDepth := width / 2 // horizontal reach of the inner arms

	l := Layout{Width: width, Height: height}

	for i := 0; i < 3; i++ {
		start := 2 * i * armLen
		l.Walls = append(l.Walls, Segment{From: Position{X: 0, Y: start}, To: Position{X: 0, Y: start + armLen - 1}})
	}
	for i := 0; i < 2; i++ {
		start := 2*i*armLen + armLen
		l.Walls = append(l.Walls, Segment{From: Position{X: armDepth, Y: start}, To: Position{X: armDepth, Y: start + armLen - 1}})
	}
	for _, y := range []int{armLen, 2 * armLen, 3*armLen - 1, 4*armLen - 1} {
		l.Walls = append(l.Walls, Segment{From: Position{X: 0, Y: y}, To: Position{X: armDepth, Y: y}})
	}

	topLeft := Position{X: 0, Y: height - 1}
	topRight := Position{X: width - 1, Y: height - 1}
	bottomRight := Position{X: width - 1, Y: 0}
	l.Walls = append(l.Walls,
		Segment{From: Position{X: 0, Y: 0}, To: bottomRight},
		Segment{From: topLeft, To: topRight},
		Segment{From: bottomRight, To: topRight},
	)

	tenth := height / 10
	l.Exits = []Position{
		{X: 0, Y: tenth},
		{X: 0, Y: height / 2},
		{X: 0, Y: height - tenth},
	}
	mainY := height * 14 / 50
	for i := 0; i < 3; i++ {
		main := Position{X: width - 1, Y: mainY + i}
		l.Exits = append(l.Exits, main)
		l.MainExits = append(l.MainExits, main)
	}

	l.NoSpawn = []Rect{
		{Min: Position{X: 0, Y: armLen}, Max: Position{X: armDepth, Y: 2 * armLen}},
		{Min: Position{X: 0, Y: 3*armLen - 1}, Max: Position{X: armDepth, Y: 4*armLen - 1}},
	}
	return l
}

// OpenFloor returns a wall-free plan with the given exits, all of them main.
func OpenFloor(width, height int, exits ...Position) Layout {
	return Layout{
		Width:     width,
		Height:    height,
		Exits:     append([]Position(nil), exits...),
		MainExits: append([]Position(nil), exits...),
	}
}

// Validate checks that every referenced cell lies on the plan.
func (l Layout) Validate() error {
	if l.Width <= 0 || l.Height <= 0 {
		return fmt.Errorf("layout size %dx%d must be positive", l.Width, l.Height)
	}
	bounds := Rect{Max: Position{X: l.Width - 1, Y: l.Height - 1}}
	for _, s := range l.Walls {
		if !bounds.Contains(s.From) || !bounds.Contains(s.To) {
			return fmt.Errorf("wall %s-%s: %w", s.From, s.To, ErrOutOfBounds)
		}
	}
	if len(l.Exits) == 0 {
		return fmt.Errorf("layout has no exits")
	}
	exits := NewPositionSet(l.Exits...)
	for _, e := range l.Exits {
		if !bounds.Contains(e) {
			return fmt.Errorf("exit %s: %w", e, ErrOutOfBounds)
		}
	}
	for _, m := range l.MainExits {
		if !exits.Has(m) {
			return fmt.Errorf("main exit %s is not an exit", m)
		}
	}
	return nil
}

// InFootprint reports whether p is on the plan and outside every no-spawn zone.
func (l Layout) InFootprint(p Position) bool {
	if p.X < 0 || p.Y < 0 || p.X >= l.Width || p.Y >= l.Height {
		return false
	}
	for _, r := range l.NoSpawn {
		if r.Contains(p) {
			return false
		}
	}
	return true
}

// Build creates a grid with walls and exits placed. Exits replace any wall
// drawn over their cell.
func (l Layout) Build() (*Grid, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	g := NewGrid(l.Width, l.Height)
	for _, s := range l.Walls {
		for _, p := range Rasterize(s.From, s.To) {
			if g.IsEmpty(p) {
				if err := g.Place(Occupant{Kind: KindWall}, p); err != nil {
					return nil, err
				}
			}
		}
	}
	for i, e := range l.Exits {
		if g.At(e).Kind == KindWall {
			if _, err := g.Remove(e); err != nil {
				return nil, err
			}
		}
		if err := g.Place(Occupant{Kind: KindExit, ID: EntityID(i)}, e); err != nil {
			return nil, fmt.Errorf("exit %d: %w", i, err)
		}
	}
	return g, nil
}

// Rasterize returns the cells of a wall run. It steps diagonally while the
// remaining offsets are equal, otherwise along the longer axis.
func Rasterize(from, to Position) []Position {
	dx := to.X - from.X
	dy := to.Y - from.Y
	c := from
	out := []Position{c}
	for dx != 0 || dy != 0 {
		switch {
		case abs(dx) == abs(dy):
			c.X += sign(dx)
			c.Y += sign(dy)
			dx -= sign(dx)
			dy -= sign(dy)
		case abs(dx) < abs(dy):
			c.Y += sign(dy)
			dy -= sign(dy)
		default:
			c.X += sign(dx)
			dx -= sign(dx)
		}
		out = append(out, c)
	}
	return out
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
