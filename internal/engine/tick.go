// Package engine owns the evacuation run: the shuffled per-tick scheduler,
// the removal bookkeeping, and the loop that paces ticks in wall time.
package engine

import (
	"log/slog"
	"sync"
	"time"
)

// Engine drives a Simulation forward until it halts, hits MaxSteps, or is
// stopped.
type Engine struct {
	Sim      *Simulation
	Interval time.Duration // Base tick interval; zero runs flat out
	MaxSteps int           // Zero means no cap

	// OnTick runs after every completed tick, outside the simulation lock.
	OnTick func(tick uint64)

	mu      sync.Mutex
	speed   float64 // Multiplier: 1.0 = real-time, 0 = paused
	running bool
	steps   int
}

// NewEngine creates an engine for sim with real-time speed.
func NewEngine(sim *Simulation, interval time.Duration, maxSteps int) *Engine {
	return &Engine{
		Sim:      sim,
		Interval: interval,
		MaxSteps: maxSteps,
		speed:    1.0,
	}
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the speed multiplier. Zero or below pauses the run.
func (e *Engine) SetSpeed(v float64) {
	e.mu.Lock()
	e.speed = v
	e.mu.Unlock()
	slog.Info("engine speed changed", "speed", v)
}

// Steps returns how many ticks this engine has run.
func (e *Engine) Steps() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.steps
}

// Run blocks until the simulation halts, MaxSteps ticks have run, or Stop
// is called.
func (e *Engine) Run() {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()
	slog.Info("simulation engine started", "tick", e.Sim.CurrentTick(), "speed", e.Speed(), "max_steps", e.MaxSteps)

	for e.next() {
		speed := e.Speed()
		if speed <= 0 {
			// Paused; check again shortly.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()
		e.step()

		if e.Interval <= 0 {
			continue
		}
		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / speed)
		if elapsed < target {
			time.Sleep(target - elapsed)
		}
	}

	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
	slog.Info("simulation engine stopped", "tick", e.Sim.CurrentTick(), "steps", e.Steps(), "halted", !e.Sim.Running())
}

// Stop ends the loop after the current tick.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

// next reports whether another tick should run.
func (e *Engine) next() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return false
	}
	if e.MaxSteps > 0 && e.steps >= e.MaxSteps {
		return false
	}
	return e.Sim.Running()
}

func (e *Engine) step() {
	e.Sim.Step()
	e.mu.Lock()
	e.steps++
	e.mu.Unlock()
	if e.OnTick != nil {
		e.OnTick(e.Sim.CurrentTick())
	}
}
