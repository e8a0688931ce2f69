// Fuel load: layered simplex noise over the floor that scales how readily
// each cell passes fire on. Furniture and partitions are not modeled cell by
// cell; the noise stands in for them and breaks up square spread fronts.
package world

import (
	opensimplex "github.com/ojrac/opensimplex-go"
)

// FuelField holds a spread-probability multiplier per cell.
type FuelField struct {
	Width    int
	Height   int
	Variance float64 // 0 = uniform fuel, 1 = multipliers span [0, 2]

	mult []float64
}

// NewFuelField samples noise for every cell. With variance 0 every
// multiplier is exactly 1.
func NewFuelField(width, height int, seed int64, variance float64) *FuelField {
	f := &FuelField{
		Width:    width,
		Height:   height,
		Variance: variance,
		mult:     make([]float64, width*height),
	}

	noise := opensimplex.NewNormalized(seed + 500)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			m := 1.0
			if variance > 0 {
				n := octaveNoise(noise, float64(x), float64(y), 3, 0.12, 0.5)
				m = 1.0 + variance*(2*n-1)
				if m < 0 {
					m = 0
				}
			}
			f.mult[y*width+x] = m
		}
	}
	return f
}

// Multiplier returns the fuel multiplier at p, or 1 off the grid.
func (f *FuelField) Multiplier(p Position) float64 {
	if f == nil || p.X < 0 || p.Y < 0 || p.X >= f.Width || p.Y >= f.Height {
		return 1
	}
	return f.mult[p.Y*f.Width+p.X]
}

// SpreadProbability scales a base probability by the fuel at p, clamped to [0, 1].
func (f *FuelField) SpreadProbability(p Position, base float64) float64 {
	v := base * f.Multiplier(p)
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// octaveNoise samples multi-octave normalized noise in [0, 1].
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxAmp := 0.0
	freq := frequency
	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*freq, y*freq) * amplitude
		maxAmp += amplitude
		amplitude *= persistence
		freq *= 2
	}
	return total / maxAmp
}
