// Package persistence stores finished and in-progress runs in SQLite: one
// summary row per run plus per-agent outcomes, per-tick stats, per-exit
// tallies, and the event log.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/evacsim/internal/agents"
	"github.com/talgya/evacsim/internal/engine"
	"github.com/talgya/evacsim/internal/world"
)

// ErrRunNotFound is returned by LoadRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// DB wraps a SQLite connection for run storage.
type DB struct {
	conn *sqlx.DB
}

// RunSummary is the one-row digest of a run.
type RunSummary struct {
	RunID        string  `db:"run_id" json:"run_id"`
	Batch        string  `db:"batch" json:"batch,omitempty"`
	Seed         int64   `db:"seed" json:"seed"`
	Civilians    int     `db:"civilians" json:"civilians"`
	Stewards     int     `db:"stewards" json:"stewards"`
	InfoExchange bool    `db:"info_exchange" json:"info_exchange"`
	Width        int     `db:"width" json:"width"`
	Height       int     `db:"height" json:"height"`
	FireX        int     `db:"fire_x" json:"fire_x"`
	FireY        int     `db:"fire_y" json:"fire_y"`
	SpreadProb   float64 `db:"spread_probability" json:"spread_probability"`
	Ticks        uint64  `db:"ticks" json:"ticks"`
	Initial      int     `db:"initial" json:"initial"`
	Alive        int     `db:"alive" json:"alive"`
	Saved        int     `db:"saved" json:"saved"`
	Killed       int     `db:"killed" json:"killed"`
	Halted       bool    `db:"halted" json:"halted"`
	Warning      string  `db:"warning" json:"warning,omitempty"`
	ConfigJSON   string  `db:"config_json" json:"-"`
	CreatedAt    string  `db:"created_at" json:"created_at"`
}

// Summarize builds the summary row for sim as it stands now.
func Summarize(sim *engine.Simulation) RunSummary {
	out := sim.Outcomes()
	cfg := sim.Config
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		slog.Warn("config not serializable", "run", sim.RunID, "error", err)
	}
	return RunSummary{
		RunID:        sim.RunID.String(),
		Seed:         sim.RNG.Seed(),
		Civilians:    cfg.Civilians,
		Stewards:     cfg.Stewards,
		InfoExchange: cfg.InfoExchange,
		Width:        cfg.Width,
		Height:       cfg.Height,
		FireX:        cfg.FireOrigin.X,
		FireY:        cfg.FireOrigin.Y,
		SpreadProb:   cfg.SpreadProb,
		Ticks:        sim.CurrentTick(),
		Initial:      out.Initial,
		Alive:        out.Alive,
		Saved:        len(out.Saved),
		Killed:       len(out.Killed),
		Halted:       !sim.Running(),
		Warning:      sim.Warning(),
		ConfigJSON:   string(cfgJSON),
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
	}
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		batch TEXT NOT NULL DEFAULT '',
		seed INTEGER NOT NULL,
		civilians INTEGER NOT NULL,
		stewards INTEGER NOT NULL,
		info_exchange INTEGER NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		fire_x INTEGER NOT NULL,
		fire_y INTEGER NOT NULL,
		spread_probability REAL NOT NULL,
		ticks INTEGER NOT NULL,
		initial INTEGER NOT NULL,
		alive INTEGER NOT NULL,
		saved INTEGER NOT NULL,
		killed INTEGER NOT NULL,
		halted INTEGER NOT NULL,
		warning TEXT NOT NULL,
		config_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agent_outcomes (
		run_id TEXT NOT NULL,
		agent_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		age INTEGER NOT NULL,
		weight REAL NOT NULL,
		visual_range INTEGER NOT NULL,
		speed INTEGER NOT NULL,
		risk_tolerance INTEGER NOT NULL,
		willingness REAL NOT NULL,
		outcome TEXT NOT NULL,
		exit_x INTEGER NOT NULL,
		exit_y INTEGER NOT NULL,
		tick INTEGER NOT NULL,
		PRIMARY KEY (run_id, kind, agent_id)
	);

	CREATE TABLE IF NOT EXISTS tick_stats (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		alive INTEGER NOT NULL,
		saved INTEGER NOT NULL,
		killed INTEGER NOT NULL,
		burning INTEGER NOT NULL,
		burned_out INTEGER NOT NULL,
		PRIMARY KEY (run_id, tick)
	);

	CREATE TABLE IF NOT EXISTS exit_tallies (
		run_id TEXT NOT NULL,
		exit_x INTEGER NOT NULL,
		exit_y INTEGER NOT NULL,
		saved INTEGER NOT NULL,
		PRIMARY KEY (run_id, exit_x, exit_y)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_batch ON runs(batch);
	CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id, tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveRun performs a full save of sim: summary, outcomes, per-tick stats,
// per-exit tallies, and events, all in one transaction. Saving the same run
// again replaces it; a failed save leaves nothing of the run behind.
func (db *DB) SaveRun(sim *engine.Simulation, batch string) error {
	sum := Summarize(sim)
	sum.Batch = batch
	out := sim.Outcomes()
	slog.Info("saving run", "run", sum.RunID, "ticks", sum.Ticks, "saved", sum.Saved, "killed", sum.Killed)

	err := db.inTx(func(tx *sqlx.Tx) error {
		if err := writeSummary(tx, sum); err != nil {
			return fmt.Errorf("save summary: %w", err)
		}
		if err := writeAgentOutcomes(tx, sum.RunID, out.Records()); err != nil {
			return fmt.Errorf("save agent outcomes: %w", err)
		}
		if err := writeTickStats(tx, sum.RunID, sim.History()); err != nil {
			return fmt.Errorf("save tick stats: %w", err)
		}
		if err := writeExitTallies(tx, sum.RunID, out.Tallies()); err != nil {
			return fmt.Errorf("save exit tallies: %w", err)
		}
		if err := writeEvents(tx, sum.RunID, sim.Events(0)); err != nil {
			return fmt.Errorf("save events: %w", err)
		}
		if err := writeMeta(tx, "last_run", sum.RunID); err != nil {
			return fmt.Errorf("save meta: %w", err)
		}
		return nil
	})
	if err != nil {
		slog.Error("run not saved", "run", sum.RunID, "error", err)
		return err
	}

	slog.Info("run saved", "run", sum.RunID)
	return nil
}

// inTx runs fn in a transaction, committing only when fn succeeds.
func (db *DB) inTx(fn func(tx *sqlx.Tx) error) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveSummary inserts or replaces one run summary.
func (db *DB) SaveSummary(s RunSummary) error {
	return db.inTx(func(tx *sqlx.Tx) error { return writeSummary(tx, s) })
}

// SaveAgentOutcomes writes the outcome rows of a run (full replace).
func (db *DB) SaveAgentOutcomes(runID string, records []agents.Record) error {
	return db.inTx(func(tx *sqlx.Tx) error { return writeAgentOutcomes(tx, runID, records) })
}

// SaveTickStats writes one row per tick (full replace).
func (db *DB) SaveTickStats(runID string, history []engine.Stats) error {
	return db.inTx(func(tx *sqlx.Tx) error { return writeTickStats(tx, runID, history) })
}

// SaveExitTallies writes the per-exit saved counts (full replace).
func (db *DB) SaveExitTallies(runID string, tallies []engine.ExitTally) error {
	return db.inTx(func(tx *sqlx.Tx) error { return writeExitTallies(tx, runID, tallies) })
}

// SaveEvents replaces the stored event log of a run.
func (db *DB) SaveEvents(runID string, events []engine.Event) error {
	return db.inTx(func(tx *sqlx.Tx) error { return writeEvents(tx, runID, events) })
}

func writeSummary(tx *sqlx.Tx, s RunSummary) error {
	_, err := tx.NamedExec(`INSERT OR REPLACE INTO runs
		(run_id, batch, seed, civilians, stewards, info_exchange, width, height,
		 fire_x, fire_y, spread_probability, ticks, initial, alive, saved, killed,
		 halted, warning, config_json, created_at)
		VALUES (:run_id, :batch, :seed, :civilians, :stewards, :info_exchange, :width, :height,
		 :fire_x, :fire_y, :spread_probability, :ticks, :initial, :alive, :saved, :killed,
		 :halted, :warning, :config_json, :created_at)`, s)
	return err
}

func writeAgentOutcomes(tx *sqlx.Tx, runID string, records []agents.Record) error {
	if _, err := tx.Exec("DELETE FROM agent_outcomes WHERE run_id = ?", runID); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO agent_outcomes
		(run_id, agent_id, kind, age, weight, visual_range, speed, risk_tolerance,
		 willingness, outcome, exit_x, exit_y, tick)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.Exec(
			runID, uint64(r.ID), r.Kind, r.Age, r.Weight, r.VisualRange, r.Speed,
			r.RiskTolerance, r.Willingness, r.Outcome, r.ExitX, r.ExitY, r.Tick,
		)
		if err != nil {
			return fmt.Errorf("insert outcome %s %d: %w", r.Kind, r.ID, err)
		}
	}
	return nil
}

func writeTickStats(tx *sqlx.Tx, runID string, history []engine.Stats) error {
	if _, err := tx.Exec("DELETE FROM tick_stats WHERE run_id = ?", runID); err != nil {
		return err
	}
	for _, s := range history {
		_, err := tx.Exec(`INSERT INTO tick_stats
			(run_id, tick, alive, saved, killed, burning, burned_out)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, s.Tick, s.Alive, s.Saved, s.Killed, s.Burning, s.BurnedOut,
		)
		if err != nil {
			return fmt.Errorf("insert tick %d: %w", s.Tick, err)
		}
	}
	return nil
}

func writeExitTallies(tx *sqlx.Tx, runID string, tallies []engine.ExitTally) error {
	if _, err := tx.Exec("DELETE FROM exit_tallies WHERE run_id = ?", runID); err != nil {
		return err
	}
	for _, t := range tallies {
		_, err := tx.Exec(
			"INSERT INTO exit_tallies (run_id, exit_x, exit_y, saved) VALUES (?, ?, ?, ?)",
			runID, t.Exit.X, t.Exit.Y, t.Saved,
		)
		if err != nil {
			return fmt.Errorf("insert exit %s: %w", t.Exit, err)
		}
	}
	return nil
}

func writeEvents(tx *sqlx.Tx, runID string, events []engine.Event) error {
	if _, err := tx.Exec("DELETE FROM events WHERE run_id = ?", runID); err != nil {
		return err
	}
	for _, e := range events {
		_, err := tx.Exec(
			"INSERT INTO events (run_id, tick, description, category) VALUES (?, ?, ?, ?)",
			runID, e.Tick, e.Description, e.Category,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func writeMeta(tx *sqlx.Tx, key, value string) error {
	_, err := tx.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)", key, value)
	return err
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}

// LoadRun returns the summary of one run.
func (db *DB) LoadRun(runID string) (RunSummary, error) {
	var s RunSummary
	err := db.conn.Get(&s, "SELECT * FROM runs WHERE run_id = ?", runID)
	if errors.Is(err, sql.ErrNoRows) {
		return s, fmt.Errorf("load run %s: %w", runID, ErrRunNotFound)
	}
	return s, err
}

// RecentRuns returns up to limit summaries, newest first.
func (db *DB) RecentRuns(limit int) ([]RunSummary, error) {
	var runs []RunSummary
	err := db.conn.Select(&runs, "SELECT * FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
	return runs, err
}

// BatchRuns returns every run of a batch in insertion order.
func (db *DB) BatchRuns(batch string) ([]RunSummary, error) {
	var runs []RunSummary
	err := db.conn.Select(&runs, "SELECT * FROM runs WHERE batch = ? ORDER BY rowid", batch)
	return runs, err
}

// AgentOutcomes returns the outcome rows of a run, saved before killed.
func (db *DB) AgentOutcomes(runID string) ([]agents.Record, error) {
	var recs []agents.Record
	err := db.conn.Select(&recs, `SELECT agent_id, kind, age, weight, visual_range, speed,
		risk_tolerance, willingness, outcome, exit_x, exit_y, tick
		FROM agent_outcomes WHERE run_id = ?
		ORDER BY outcome = 'killed_by_fire', tick, agent_id`, runID)
	return recs, err
}

// TickStats returns the per-tick rows of a run. Per-exit counts are not
// stored per tick; see ExitTallies.
func (db *DB) TickStats(runID string) ([]engine.Stats, error) {
	var rows []engine.Stats
	err := db.conn.Select(&rows, `SELECT tick, alive, saved, killed, burning, burned_out
		FROM tick_stats WHERE run_id = ? ORDER BY tick`, runID)
	return rows, err
}

// ExitTallies returns the final per-exit saved counts of a run.
func (db *DB) ExitTallies(runID string) ([]engine.ExitTally, error) {
	var rows []struct {
		X     int `db:"exit_x"`
		Y     int `db:"exit_y"`
		Saved int `db:"saved"`
	}
	err := db.conn.Select(&rows, `SELECT exit_x, exit_y, saved FROM exit_tallies
		WHERE run_id = ? ORDER BY exit_x, exit_y`, runID)
	if err != nil {
		return nil, err
	}
	out := make([]engine.ExitTally, len(rows))
	for i, r := range rows {
		out[i] = engine.ExitTally{Exit: world.Position{X: r.X, Y: r.Y}, Saved: r.Saved}
	}
	return out, nil
}

// RecentEvents returns the most recent N events of a run.
func (db *DB) RecentEvents(runID string, limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT tick, description, category FROM events WHERE run_id = ? ORDER BY id DESC LIMIT ?",
		runID, limit,
	)
	return events, err
}
