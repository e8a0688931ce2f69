package batch

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/evacsim/internal/config"
	"github.com/talgya/evacsim/internal/engine"
	"github.com/talgya/evacsim/internal/persistence"
)

func smallSweep() Sweep {
	return Sweep{MinCivilians: 5, MaxCivilians: 10, Step: 5, Stewards: 2, Iterations: 2, MaxSteps: 30}
}

func TestSweepCells(t *testing.T) {
	s := DefaultSweep()
	require.NoError(t, s.Validate())
	cells := s.Cells()
	assert.Len(t, cells, 12)
	assert.Equal(t, Cell{Civilians: 100, Stewards: 0}, cells[0])
	assert.Equal(t, Cell{Civilians: 200, Stewards: 3}, cells[len(cells)-1])
	assert.Equal(t, 120, s.Runs())
}

func TestSweepValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Sweep)
	}{
		{"inverted range", func(s *Sweep) { s.MaxCivilians = 1 }},
		{"zero step", func(s *Sweep) { s.Step = 0 }},
		{"no steward counts", func(s *Sweep) { s.Stewards = 0 }},
		{"no iterations", func(s *Sweep) { s.Iterations = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := smallSweep()
			tt.mutate(&s)
			assert.ErrorIs(t, s.Validate(), config.ErrInvalid)
		})
	}
}

type memStore struct {
	saved []string
}

func (m *memStore) SaveRun(sim *engine.Simulation, batch string) error {
	m.saved = append(m.saved, batch+"/"+sim.RunID.String())
	return nil
}

func TestRunnerRunsEveryCell(t *testing.T) {
	var buf bytes.Buffer
	store := &memStore{}
	calls := 0
	r := &Runner{
		Base:  config.Default(),
		Sweep: smallSweep(),
		Batch: "t1",
		Store: store,
		CSV:   csv.NewWriter(&buf),
		OnResult: func(done, total int, _ Result) {
			calls++
			assert.Equal(t, calls, done)
			assert.Equal(t, 8, total)
		},
	}

	results, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 8)
	assert.Len(t, store.saved, 8)

	seeds := map[int64]bool{}
	for _, res := range results {
		assert.Equal(t, res.Cell.Civilians+res.Cell.Stewards, res.Saved+res.Killed+res.Alive)
		assert.LessOrEqual(t, res.Ticks, uint64(30))
		seeds[res.Seed] = true
	}
	assert.Len(t, seeds, 8, "every run gets its own seed")

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 9)
	assert.Equal(t, "run_id", rows[0][1])
	assert.Equal(t, "Exit (0, 5)", rows[0][11])
	assert.Len(t, rows[1], 11+6)

	sums := Summarize(results)
	require.Len(t, sums, 4)
	assert.Equal(t, Cell{Civilians: 5, Stewards: 0}, sums[0].Cell)
	assert.Equal(t, 2, sums[0].Runs)
}

func TestRunnerStoresToSQLite(t *testing.T) {
	db, err := persistence.Open(filepath.Join(t.TempDir(), "batch.db"))
	require.NoError(t, err)
	defer db.Close()

	sweep := smallSweep()
	sweep.Iterations = 1
	r := &Runner{Base: config.Default(), Sweep: sweep, Store: db}
	results, err := r.Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, r.Batch)

	runs, err := db.BatchRuns(r.Batch)
	require.NoError(t, err)
	require.Len(t, runs, len(results))
	for i, run := range runs {
		assert.Equal(t, results[i].RunID.String(), run.RunID)
		assert.Equal(t, results[i].Saved, run.Saved)
	}
}

func TestRunnerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &Runner{Base: config.Default(), Sweep: smallSweep()}
	results, err := r.Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, results)
}
