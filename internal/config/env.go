package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// ApplyEnv overrides fields from EVACSIM_* environment variables. Values
// that fail to parse are ignored with a warning.
func (c *Config) ApplyEnv() {
	c.Civilians = envIntOrDefault("EVACSIM_CIVILIANS", c.Civilians)
	c.Stewards = envIntOrDefault("EVACSIM_STEWARDS", c.Stewards)
	c.InfoExchange = envBoolOrDefault("EVACSIM_INFO_EXCHANGE", c.InfoExchange)
	c.Width = envIntOrDefault("EVACSIM_WIDTH", c.Width)
	c.Height = envIntOrDefault("EVACSIM_HEIGHT", c.Height)
	c.FireOrigin.X = envIntOrDefault("EVACSIM_FIRE_X", c.FireOrigin.X)
	c.FireOrigin.Y = envIntOrDefault("EVACSIM_FIRE_Y", c.FireOrigin.Y)
	c.FireDwell = envIntOrDefault("EVACSIM_FIRE_DWELL", c.FireDwell)
	c.SpreadProb = envFloatOrDefault("EVACSIM_SPREAD_PROBABILITY", c.SpreadProb)
	c.FuelVariance = envFloatOrDefault("EVACSIM_FUEL_VARIANCE", c.FuelVariance)
	c.Heuristic = envOrDefault("EVACSIM_PATH_HEURISTIC", c.Heuristic)
	c.Seed = int64(envIntOrDefault("EVACSIM_SEED", int(c.Seed)))
	c.MaxSteps = envIntOrDefault("EVACSIM_MAX_STEPS", c.MaxSteps)
	c.TickInterval = envDurationOrDefault("EVACSIM_TICK_INTERVAL", c.TickInterval)
	c.Port = envIntOrDefault("EVACSIM_PORT", c.Port)
	c.DBPath = envOrDefault("EVACSIM_DB_PATH", c.DBPath)
	c.AdminKey = envOrDefault("EVACSIM_ADMIN_KEY", c.AdminKey)
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		slog.Warn("ignoring malformed environment override", "key", key, "value", v)
	}
	return defaultVal
}

func envFloatOrDefault(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		slog.Warn("ignoring malformed environment override", "key", key, "value", v)
	}
	return defaultVal
}

func envBoolOrDefault(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		slog.Warn("ignoring malformed environment override", "key", key, "value", v)
	}
	return defaultVal
}

func envDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		slog.Warn("ignoring malformed environment override", "key", key, "value", v)
	}
	return defaultVal
}
