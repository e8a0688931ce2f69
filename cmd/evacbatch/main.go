// Command evacbatch sweeps civilian and steward counts over a scenario and
// records every run in the results database, optionally as CSV too.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/talgya/evacsim/internal/batch"
	"github.com/talgya/evacsim/internal/config"
	"github.com/talgya/evacsim/internal/persistence"
)

func main() {
	def := batch.DefaultSweep()
	configPath := flag.String("config", "", "YAML scenario file used as the base of every run")
	sweepPath := flag.String("sweep", "", "YAML sweep file (flags below are ignored when set)")
	minCiv := flag.Int("min", def.MinCivilians, "smallest civilian count")
	maxCiv := flag.Int("max", def.MaxCivilians, "largest civilian count")
	step := flag.Int("step", def.Step, "civilian count increment")
	stewards := flag.Int("stewards", def.Stewards, "steward counts 0..N-1 are tried")
	iterations := flag.Int("n", def.Iterations, "runs per grid cell")
	maxSteps := flag.Int("max-steps", def.MaxSteps, "tick cap per run (0 = until halt)")
	csvPath := flag.String("csv", "", "also write one CSV row per run to this file")
	noDB := flag.Bool("no-db", false, "skip the results database")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			slog.Error("failed to load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	cfg.ApplyEnv()

	sweep := batch.Sweep{
		MinCivilians: *minCiv,
		MaxCivilians: *maxCiv,
		Step:         *step,
		Stewards:     *stewards,
		Iterations:   *iterations,
		MaxSteps:     *maxSteps,
	}
	if *sweepPath != "" {
		b, err := os.ReadFile(*sweepPath)
		if err != nil {
			slog.Error("failed to read sweep", "path", *sweepPath, "error", err)
			os.Exit(1)
		}
		sweep = def
		if err := yaml.Unmarshal(b, &sweep); err != nil {
			slog.Error("failed to parse sweep", "path", *sweepPath, "error", err)
			os.Exit(1)
		}
	}
	if err := sweep.Validate(); err != nil {
		slog.Error("invalid sweep", "error", err)
		os.Exit(1)
	}

	runner := &batch.Runner{Base: cfg, Sweep: sweep}

	if !*noDB {
		if dir := filepath.Dir(cfg.DBPath); dir != "." {
			os.MkdirAll(dir, 0755)
		}
		db, err := persistence.Open(cfg.DBPath)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		runner.Store = db
	}

	if *csvPath != "" {
		f, err := os.Create(*csvPath)
		if err != nil {
			slog.Error("failed to create csv", "path", *csvPath, "error", err)
			os.Exit(1)
		}
		defer f.Close()
		runner.CSV = csv.NewWriter(f)
	}

	total := sweep.Runs()
	started := time.Now()
	runner.OnResult = func(done, total int, r batch.Result) {
		fmt.Printf("\r%s / %s runs", humanize.Comma(int64(done)), humanize.Comma(int64(total)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Sweeping %d..%d civilians by %d, 0..%d stewards, %s runs each (%s runs).\n",
		sweep.MinCivilians, sweep.MaxCivilians, sweep.Step, sweep.Stewards-1,
		humanize.Comma(int64(sweep.Iterations)), humanize.Comma(int64(total)))

	results, err := runner.Run(ctx)
	fmt.Println()
	if err != nil {
		slog.Error("batch stopped", "batch", runner.Batch, "completed", len(results), "error", err)
	}

	fmt.Printf("\nBatch %s: %s runs in %s.\n", runner.Batch,
		humanize.Comma(int64(len(results))), time.Since(started).Round(time.Millisecond))
	fmt.Printf("%10s %9s %6s %11s %12s %10s\n", "civilians", "stewards", "runs", "mean saved", "mean killed", "mean ticks")
	for _, s := range batch.Summarize(results) {
		fmt.Printf("%10d %9d %6d %11.1f %12.1f %10.1f\n",
			s.Cell.Civilians, s.Cell.Stewards, s.Runs, s.MeanSaved, s.MeanKilled, s.MeanTicks)
	}
	if runner.Store != nil {
		if fi, err := os.Stat(cfg.DBPath); err == nil {
			fmt.Printf("Results stored in %s (%s).\n", cfg.DBPath, humanize.Bytes(uint64(fi.Size())))
		}
	}
	if err != nil {
		os.Exit(1)
	}
}
