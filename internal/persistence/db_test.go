package persistence

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/evacsim/internal/config"
	"github.com/talgya/evacsim/internal/engine"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func finishedRun(t *testing.T, civilians int) *engine.Simulation {
	t.Helper()
	cfg := config.Default()
	cfg.Civilians = civilians
	cfg.Stewards = 1
	cfg.SpreadProb = 0.5
	sim, err := engine.NewSimulation(cfg)
	require.NoError(t, err)
	for i := 0; i < 60 && sim.Running(); i++ {
		sim.Step()
	}
	return sim
}

func TestSaveAndLoadRun(t *testing.T) {
	db := openTestDB(t)
	sim := finishedRun(t, 20)
	require.NoError(t, db.SaveRun(sim, "sweep-1"))

	runID := sim.RunID.String()
	got, err := db.LoadRun(runID)
	require.NoError(t, err)
	out := sim.Outcomes()
	assert.Equal(t, "sweep-1", got.Batch)
	assert.Equal(t, int64(42), got.Seed)
	assert.Equal(t, 20, got.Civilians)
	assert.Equal(t, 1, got.Stewards)
	assert.True(t, got.InfoExchange)
	assert.Equal(t, sim.CurrentTick(), got.Ticks)
	assert.Equal(t, out.Initial, got.Initial)
	assert.Equal(t, len(out.Saved), got.Saved)
	assert.Equal(t, len(out.Killed), got.Killed)
	assert.Equal(t, got.Initial, got.Alive+got.Saved+got.Killed)
	assert.Equal(t, !sim.Running(), got.Halted)
	assert.Contains(t, got.ConfigJSON, `"civilians":20`)

	recs, err := db.AgentOutcomes(runID)
	require.NoError(t, err)
	assert.Len(t, recs, got.Saved+got.Killed)
	for i, r := range recs {
		if i < got.Saved {
			assert.Equal(t, "saved", r.Outcome)
			assert.GreaterOrEqual(t, r.ExitX, 0)
		} else {
			assert.Equal(t, "killed_by_fire", r.Outcome)
			assert.Equal(t, -1, r.ExitX)
		}
	}

	stats, err := db.TickStats(runID)
	require.NoError(t, err)
	history := sim.History()
	require.Len(t, stats, len(history))
	for i := range stats {
		assert.Equal(t, history[i].Tick, stats[i].Tick)
		assert.Equal(t, history[i].Alive, stats[i].Alive)
		assert.Equal(t, history[i].Burning, stats[i].Burning)
	}

	tallies, err := db.ExitTallies(runID)
	require.NoError(t, err)
	assert.Equal(t, out.Tallies(), tallies)

	last, err := db.GetMeta("last_run")
	require.NoError(t, err)
	assert.Equal(t, runID, last)
}

func TestSaveRunTwiceReplaces(t *testing.T) {
	db := openTestDB(t)
	sim := finishedRun(t, 10)
	require.NoError(t, db.SaveRun(sim, ""))
	require.NoError(t, db.SaveRun(sim, ""))

	runs, err := db.RecentRuns(10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	stats, err := db.TickStats(sim.RunID.String())
	require.NoError(t, err)
	assert.Len(t, stats, len(sim.History()))
}

func TestBatchRuns(t *testing.T) {
	db := openTestDB(t)
	a, b := finishedRun(t, 5), finishedRun(t, 8)
	require.NoError(t, db.SaveRun(a, "b1"))
	require.NoError(t, db.SaveRun(b, "b1"))
	require.NoError(t, db.SaveRun(finishedRun(t, 3), "other"))

	runs, err := db.BatchRuns("b1")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, a.RunID.String(), runs[0].RunID)
	assert.Equal(t, b.RunID.String(), runs[1].RunID)

	recent, err := db.RecentRuns(2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestLoadRunMissing(t *testing.T) {
	db := openTestDB(t)
	_, err := db.LoadRun("nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestFailedSaveLeavesNoPartialRun(t *testing.T) {
	db := openTestDB(t)
	_, err := db.conn.Exec(`CREATE TRIGGER reject_tallies BEFORE INSERT ON exit_tallies
		BEGIN SELECT RAISE(ABORT, 'disk full'); END`)
	require.NoError(t, err)

	sim := finishedRun(t, 10)
	out := sim.Outcomes()
	require.NotEmpty(t, out.Tallies())
	err = db.SaveRun(sim, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save exit tallies")

	runID := sim.RunID.String()
	_, err = db.LoadRun(runID)
	assert.ErrorIs(t, err, ErrRunNotFound)
	recs, err := db.AgentOutcomes(runID)
	require.NoError(t, err)
	assert.Empty(t, recs)
	stats, err := db.TickStats(runID)
	require.NoError(t, err)
	assert.Empty(t, stats)
	runs, err := db.RecentRuns(10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRecentEvents(t *testing.T) {
	db := openTestDB(t)
	events := []engine.Event{
		{Tick: 1, Description: "first", Category: "saved"},
		{Tick: 2, Description: "second", Category: "killed"},
		{Tick: 3, Description: "third", Category: "halt"},
	}
	require.NoError(t, db.SaveEvents("run-a", events))

	got, err := db.RecentEvents("run-a", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "third", got[0].Description)
	assert.Equal(t, "second", got[1].Description)

	none, err := db.RecentEvents("run-b", 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}
