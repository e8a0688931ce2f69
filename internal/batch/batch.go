// Package batch runs parameter sweeps: every civilian count from Min to Max
// by Step, every steward count below Stewards, Iterations runs per cell.
// Runs execute flat out (no tick pacing) and are stored as they finish.
package batch

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/talgya/evacsim/internal/config"
	"github.com/talgya/evacsim/internal/engine"
)

// Sweep is the experiment grid.
type Sweep struct {
	MinCivilians int `yaml:"min_civilians"`
	MaxCivilians int `yaml:"max_civilians"`
	Step         int `yaml:"step"`
	Stewards     int `yaml:"stewards"` // Steward counts 0..Stewards-1
	Iterations   int `yaml:"iterations"`
	MaxSteps     int `yaml:"max_steps"`
}

// DefaultSweep mirrors the stock experiment: 100 to 200 civilians by 50,
// zero to three stewards, ten runs each, 500 ticks at most.
func DefaultSweep() Sweep {
	return Sweep{
		MinCivilians: 100,
		MaxCivilians: 200,
		Step:         50,
		Stewards:     4,
		Iterations:   10,
		MaxSteps:     500,
	}
}

// Validate rejects empty or inverted sweeps.
func (s Sweep) Validate() error {
	switch {
	case s.MinCivilians < 0 || s.MaxCivilians < s.MinCivilians:
		return fmt.Errorf("%w: civilians %d..%d", config.ErrInvalid, s.MinCivilians, s.MaxCivilians)
	case s.Step <= 0:
		return fmt.Errorf("%w: step %d", config.ErrInvalid, s.Step)
	case s.Stewards <= 0:
		return fmt.Errorf("%w: steward bound %d", config.ErrInvalid, s.Stewards)
	case s.Iterations <= 0:
		return fmt.Errorf("%w: iterations %d", config.ErrInvalid, s.Iterations)
	case s.MaxSteps < 0:
		return fmt.Errorf("%w: max steps %d", config.ErrInvalid, s.MaxSteps)
	}
	return nil
}

// Cell is one point of the grid.
type Cell struct {
	Civilians int
	Stewards  int
}

// Cells lists the grid points in run order.
func (s Sweep) Cells() []Cell {
	var out []Cell
	for n := s.MinCivilians; n <= s.MaxCivilians; n += s.Step {
		for k := 0; k < s.Stewards; k++ {
			out = append(out, Cell{Civilians: n, Stewards: k})
		}
	}
	return out
}

// Runs returns the total number of simulations the sweep performs.
func (s Sweep) Runs() int {
	return len(s.Cells()) * s.Iterations
}

// Result is the digest of one finished run.
type Result struct {
	Batch     string
	RunID     uuid.UUID
	Cell      Cell
	Iteration int
	Seed      int64
	Ticks     uint64
	Saved     int
	Killed    int
	Alive     int
	Halted    bool
	Exits     []engine.ExitTally
}

// Store persists finished runs.
type Store interface {
	SaveRun(sim *engine.Simulation, batch string) error
}

// Runner executes a sweep over a base scenario.
type Runner struct {
	Base  config.Config
	Sweep Sweep
	Batch string // Defaults to a fresh UUID
	Store Store  // Optional
	CSV   *csv.Writer

	// OnResult is called after every run, in order.
	OnResult func(done, total int, r Result)
}

// Run performs every simulation of the sweep. It stops early, returning
// the results so far, when ctx is cancelled.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	if err := r.Sweep.Validate(); err != nil {
		return nil, err
	}
	if r.Batch == "" {
		r.Batch = uuid.NewString()
	}
	total := r.Sweep.Runs()
	slog.Info("batch starting", "batch", r.Batch, "runs", total, "cells", len(r.Sweep.Cells()))

	headerDone := false
	var results []Result
	runIdx := 0
	for _, cell := range r.Sweep.Cells() {
		for it := 0; it < r.Sweep.Iterations; it++ {
			if err := ctx.Err(); err != nil {
				slog.Warn("batch interrupted", "batch", r.Batch, "done", len(results), "total", total)
				return results, err
			}
			res, err := r.runOne(cell, it, runIdx)
			if err != nil {
				return results, fmt.Errorf("run %d (civilians=%d stewards=%d): %w", runIdx, cell.Civilians, cell.Stewards, err)
			}
			runIdx++

			if r.CSV != nil {
				if !headerDone {
					if err := r.CSV.Write(csvHeader(res.Exits)); err != nil {
						return results, fmt.Errorf("write csv: %w", err)
					}
					headerDone = true
				}
				if err := r.CSV.Write(csvRow(res)); err != nil {
					return results, fmt.Errorf("write csv: %w", err)
				}
				r.CSV.Flush()
				if err := r.CSV.Error(); err != nil {
					return results, fmt.Errorf("write csv: %w", err)
				}
			}

			results = append(results, res)
			if r.OnResult != nil {
				r.OnResult(len(results), total, res)
			}
		}
	}

	slog.Info("batch finished", "batch", r.Batch, "runs", len(results))
	return results, nil
}

func (r *Runner) runOne(cell Cell, iteration, idx int) (Result, error) {
	cfg := r.Base
	cfg.Civilians = cell.Civilians
	cfg.Stewards = cell.Stewards
	if r.Base.Seed != 0 {
		// Distinct but reproducible seed per run.
		cfg.Seed = r.Base.Seed + int64(idx)
	}

	sim, err := engine.NewSimulation(cfg)
	if err != nil {
		return Result{}, err
	}
	eng := engine.NewEngine(sim, 0, r.Sweep.MaxSteps)
	eng.Run()

	if r.Store != nil {
		if err := r.Store.SaveRun(sim, r.Batch); err != nil {
			return Result{}, fmt.Errorf("store: %w", err)
		}
	}

	out := sim.Outcomes()
	return Result{
		Batch:     r.Batch,
		RunID:     sim.RunID,
		Cell:      cell,
		Iteration: iteration,
		Seed:      sim.RNG.Seed(),
		Ticks:     sim.CurrentTick(),
		Saved:     len(out.Saved),
		Killed:    len(out.Killed),
		Alive:     out.Alive,
		Halted:    !sim.Running(),
		Exits:     out.Tallies(),
	}, nil
}

func csvHeader(exits []engine.ExitTally) []string {
	h := []string{"batch", "run_id", "civilians", "stewards", "iteration", "seed", "ticks", "saved", "killed", "alive", "halted"}
	for _, e := range exits {
		h = append(h, "Exit "+e.Exit.String())
	}
	return h
}

func csvRow(r Result) []string {
	row := []string{
		r.Batch,
		r.RunID.String(),
		strconv.Itoa(r.Cell.Civilians),
		strconv.Itoa(r.Cell.Stewards),
		strconv.Itoa(r.Iteration),
		strconv.FormatInt(r.Seed, 10),
		strconv.FormatUint(r.Ticks, 10),
		strconv.Itoa(r.Saved),
		strconv.Itoa(r.Killed),
		strconv.Itoa(r.Alive),
		strconv.FormatBool(r.Halted),
	}
	for _, e := range r.Exits {
		row = append(row, strconv.Itoa(e.Saved))
	}
	return row
}

// Summary aggregates results per grid cell.
type Summary struct {
	Cell       Cell
	Runs       int
	MeanSaved  float64
	MeanKilled float64
	MeanTicks  float64
}

// Summarize averages results per cell, in sweep order.
func Summarize(results []Result) []Summary {
	var out []Summary
	index := map[Cell]int{}
	for _, r := range results {
		i, ok := index[r.Cell]
		if !ok {
			i = len(out)
			index[r.Cell] = i
			out = append(out, Summary{Cell: r.Cell})
		}
		s := &out[i]
		s.Runs++
		s.MeanSaved += float64(r.Saved)
		s.MeanKilled += float64(r.Killed)
		s.MeanTicks += float64(r.Ticks)
	}
	for i := range out {
		n := float64(out[i].Runs)
		out[i].MeanSaved /= n
		out[i].MeanKilled /= n
		out[i].MeanTicks /= n
	}
	return out
}
