// Command evacsim runs one live evacuation with the HTTP API attached and
// stores the result when the run halts or is interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/evacsim/internal/api"
	"github.com/talgya/evacsim/internal/config"
	"github.com/talgya/evacsim/internal/engine"
	"github.com/talgya/evacsim/internal/persistence"
)

func main() {
	configPath := flag.String("config", "", "YAML scenario file (defaults apply when empty)")
	verbose := flag.Bool("v", false, "log every agent decision")
	noAPI := flag.Bool("no-api", false, "run without the HTTP API")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// ── Configuration ─────────────────────────────────────────────────
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
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// ── Database ──────────────────────────────────────────────────────
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		os.MkdirAll(dir, 0755)
	}
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	// ── Simulation ────────────────────────────────────────────────────
	sim, err := engine.NewSimulation(cfg)
	if err != nil {
		slog.Error("failed to build simulation", "error", err)
		os.Exit(1)
	}
	if warn := sim.Warning(); warn != "" {
		fmt.Printf("Warning: %s\n", warn)
	}

	eng := engine.NewEngine(sim, cfg.TickInterval, cfg.MaxSteps)
	eng.OnTick = func(tick uint64) {
		if tick%50 != 0 {
			return
		}
		st := sim.Stats()
		slog.Info("progress", "tick", tick, "alive", st.Alive, "saved", st.Saved, "killed", st.Killed, "burning", st.Burning)
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	var apiServer *api.Server
	if !*noAPI {
		if cfg.AdminKey == "" {
			slog.Warn("EVACSIM_ADMIN_KEY not set; admin POST endpoints will be disabled")
		}
		apiServer = &api.Server{
			Sim:      sim,
			Eng:      eng,
			DB:       db,
			Port:     cfg.Port,
			AdminKey: cfg.AdminKey,
		}
		apiServer.Start()
	}

	// ── Start ─────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		eng.Stop()
	}()

	fmt.Printf("\nEvacuation under way: %s civilians and %s stewards in a %dx%d building, fire at (%d, %d).\n",
		humanize.Comma(int64(cfg.Civilians)), humanize.Comma(int64(cfg.Stewards)),
		cfg.Width, cfg.Height, cfg.FireOrigin.X, cfg.FireOrigin.Y)
	if apiServer != nil {
		fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Port)
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	started := time.Now()
	eng.Run()

	// Final save.
	slog.Info("final save...")
	if err := db.SaveRun(sim, ""); err != nil {
		slog.Error("final save failed", "error", err)
	}
	if apiServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := apiServer.Shutdown(ctx); err != nil {
			slog.Warn("API shutdown", "error", err)
		}
		cancel()
	}

	out := sim.Outcomes()
	fmt.Printf("\nRun %s finished after %s ticks (%s).\n",
		sim.RunID, humanize.Comma(int64(sim.CurrentTick())), time.Since(started).Round(time.Millisecond))
	fmt.Printf("  saved:  %s of %s\n", humanize.Comma(int64(len(out.Saved))), humanize.Comma(int64(out.Initial)))
	fmt.Printf("  killed: %s\n", humanize.Comma(int64(len(out.Killed))))
	if out.Alive > 0 {
		fmt.Printf("  still inside: %s\n", humanize.Comma(int64(out.Alive)))
	}
	for _, t := range out.Tallies() {
		fmt.Printf("  exit %s: %s\n", t.Exit, humanize.Comma(int64(t.Saved)))
	}
	if fi, err := os.Stat(cfg.DBPath); err == nil {
		fmt.Printf("Results stored in %s (%s).\n", cfg.DBPath, humanize.Bytes(uint64(fi.Size())))
	}
}
