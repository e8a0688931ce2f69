package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/evacsim/internal/world"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.Civilians)
	assert.Equal(t, 0, cfg.Stewards)
	assert.Equal(t, world.Position{X: 1, Y: 1}, cfg.FireOrigin)
	assert.True(t, cfg.InfoExchange)

	l := cfg.FloorPlan()
	assert.Equal(t, 50, l.Width)
	assert.Len(t, l.Exits, 6)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative civilians", func(c *Config) { c.Civilians = -1 }},
		{"tiny grid", func(c *Config) { c.Width = 2 }},
		{"spread above one", func(c *Config) { c.SpreadProb = 1.5 }},
		{"negative dwell", func(c *Config) { c.FireDwell = -1 }},
		{"fuel variance", func(c *Config) { c.FuelVariance = 2 }},
		{"zero vision", func(c *Config) { c.BaseVision = 0 }},
		{"zero speed scale", func(c *Config) { c.SpeedScale = 0 }},
		{"unknown heuristic", func(c *Config) { c.Heuristic = "manhattan" }},
		{"layout size mismatch", func(c *Config) {
			l := world.OpenFloor(10, 10, world.Position{X: 9, Y: 9})
			c.Layout = &l
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	body := `
civilians: 25
stewards: 2
info_exchange: false
width: 12
height: 8
fire_origin: {x: 5, y: 4}
spread_probability: 0.5
path_heuristic: octile
diagonal_cost: 1.4
tick_interval: 50ms
layout:
  walls:
    - {from: {x: 0, y: 0}, to: {x: 11, y: 0}}
  exits:
    - {x: 11, y: 3}
  main_exits:
    - {x: 11, y: 3}
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Civilians)
	assert.Equal(t, 2, cfg.Stewards)
	assert.False(t, cfg.InfoExchange)
	assert.Equal(t, world.Position{X: 5, Y: 4}, cfg.FireOrigin)
	assert.Equal(t, 0.5, cfg.SpreadProb)
	assert.Equal(t, "octile", cfg.Heuristic)
	assert.Equal(t, 50*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, 1, cfg.FireDwell, "unset fields keep their defaults")

	require.NotNil(t, cfg.Layout)
	l := cfg.FloorPlan()
	assert.Equal(t, 12, l.Width)
	assert.Equal(t, 8, l.Height)
	assert.Equal(t, []world.Position{{X: 11, Y: 3}}, l.Exits)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("spread_probability: 3\n"), 0o644))
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("EVACSIM_CIVILIANS", "150")
	t.Setenv("EVACSIM_STEWARDS", "3")
	t.Setenv("EVACSIM_INFO_EXCHANGE", "false")
	t.Setenv("EVACSIM_FIRE_X", "20")
	t.Setenv("EVACSIM_SEED", "not-a-number")
	t.Setenv("EVACSIM_TICK_INTERVAL", "1s")
	t.Setenv("EVACSIM_ADMIN_KEY", "secret")

	cfg := Default()
	cfg.ApplyEnv()
	assert.Equal(t, 150, cfg.Civilians)
	assert.Equal(t, 3, cfg.Stewards)
	assert.False(t, cfg.InfoExchange)
	assert.Equal(t, world.Position{X: 20, Y: 1}, cfg.FireOrigin)
	assert.Equal(t, int64(42), cfg.Seed, "malformed values are ignored")
	assert.Equal(t, time.Second, cfg.TickInterval)
	assert.Equal(t, "secret", cfg.AdminKey)
}
