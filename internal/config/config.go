// Package config holds scenario settings for an evacuation run: built-in
// defaults, YAML scenario files, and EVACSIM_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/evacsim/internal/nav"
	"github.com/talgya/evacsim/internal/world"
)

// ErrInvalid wraps every validation failure that cannot be degraded.
var ErrInvalid = errors.New("invalid configuration")

// Config describes one run.
type Config struct {
	// Population
	Civilians    int  `yaml:"civilians" json:"civilians"`
	Stewards     int  `yaml:"stewards" json:"stewards"`
	InfoExchange bool `yaml:"info_exchange" json:"info_exchange"`

	// Floor
	Width  int           `yaml:"width" json:"width"`
	Height int           `yaml:"height" json:"height"`
	Layout *world.Layout `yaml:"layout,omitempty" json:"layout,omitempty"` // nil = E-shaped building

	// Fire
	FireOrigin   world.Position `yaml:"fire_origin" json:"fire_origin"`
	FireDwell    int            `yaml:"fire_dwell" json:"fire_dwell"`
	SpreadProb   float64        `yaml:"spread_probability" json:"spread_probability"`
	FuelVariance float64        `yaml:"fuel_variance" json:"fuel_variance"` // 0 = uniform fuel

	// Agents
	BaseVision int     `yaml:"base_vision" json:"base_vision"`
	SpeedScale float64 `yaml:"speed_scale" json:"speed_scale"`

	// Pathfinding
	Heuristic    string  `yaml:"path_heuristic" json:"path_heuristic"`
	DiagonalCost float64 `yaml:"diagonal_cost" json:"diagonal_cost"`

	// Run control
	Seed         int64         `yaml:"seed" json:"seed"` // 0 = random
	MaxSteps     int           `yaml:"max_steps" json:"max_steps"`
	TickInterval time.Duration `yaml:"tick_interval" json:"tick_interval"`

	// Service
	Port     int    `yaml:"port" json:"port"`
	DBPath   string `yaml:"db_path" json:"db_path"`
	AdminKey string `yaml:"-" json:"-"`
}

// Default returns the stock scenario: ten civilians, no stewards, a 50x50
// E-shaped building with fire starting at (1, 1).
func Default() Config {
	return Config{
		Civilians:    10,
		Stewards:     0,
		InfoExchange: true,
		Width:        50,
		Height:       50,
		FireOrigin:   world.Position{X: 1, Y: 1},
		FireDwell:    1,
		SpreadProb:   0.25,
		FuelVariance: 0,
		BaseVision:   6,
		SpeedScale:   5,
		Heuristic:    "chebyshev",
		DiagonalCost: 1,
		Seed:         42,
		MaxSteps:     500,
		TickInterval: 200 * time.Millisecond,
		Port:         8080,
		DBPath:       "data/evacsim.db",
	}
}

// Load reads a YAML scenario over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Layout != nil {
		if cfg.Layout.Width == 0 {
			cfg.Layout.Width = cfg.Width
		}
		if cfg.Layout.Height == 0 {
			cfg.Layout.Height = cfg.Height
		}
	}
	return cfg, cfg.Validate()
}

// FloorPlan returns the configured layout, or the E-shaped building sized
// to the grid.
func (c Config) FloorPlan() world.Layout {
	if c.Layout != nil {
		return *c.Layout
	}
	return world.EBuilding(c.Width, c.Height)
}

// Validate reports settings that would make a run meaningless. The fire
// origin is not checked here; a bad origin is substituted when the run
// is built.
func (c Config) Validate() error {
	switch {
	case c.Civilians < 0 || c.Stewards < 0:
		return fmt.Errorf("%w: negative population (%d civilians, %d stewards)", ErrInvalid, c.Civilians, c.Stewards)
	case c.Width < 3 || c.Height < 3:
		return fmt.Errorf("%w: grid %dx%d smaller than 3x3", ErrInvalid, c.Width, c.Height)
	case c.FireDwell < 0:
		return fmt.Errorf("%w: fire dwell %d", ErrInvalid, c.FireDwell)
	case c.SpreadProb < 0 || c.SpreadProb > 1:
		return fmt.Errorf("%w: spread probability %v outside [0, 1]", ErrInvalid, c.SpreadProb)
	case c.FuelVariance < 0 || c.FuelVariance > 1:
		return fmt.Errorf("%w: fuel variance %v outside [0, 1]", ErrInvalid, c.FuelVariance)
	case c.BaseVision < 1:
		return fmt.Errorf("%w: base vision %d", ErrInvalid, c.BaseVision)
	case c.SpeedScale <= 0:
		return fmt.Errorf("%w: speed scale %v", ErrInvalid, c.SpeedScale)
	case c.DiagonalCost <= 0:
		return fmt.Errorf("%w: diagonal cost %v", ErrInvalid, c.DiagonalCost)
	case c.MaxSteps < 0:
		return fmt.Errorf("%w: max steps %d", ErrInvalid, c.MaxSteps)
	}
	if _, err := nav.HeuristicByName(c.Heuristic, c.DiagonalCost); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Layout != nil {
		if c.Layout.Width != c.Width || c.Layout.Height != c.Height {
			return fmt.Errorf("%w: layout %dx%d does not match grid %dx%d",
				ErrInvalid, c.Layout.Width, c.Layout.Height, c.Width, c.Height)
		}
		if err := c.Layout.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	return nil
}
