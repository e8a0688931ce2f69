// Package api serves a running evacuation over HTTP.
// GET endpoints are public and read-only. POST endpoints require a bearer
// token and act on the live run.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/evacsim/internal/agents"
	"github.com/talgya/evacsim/internal/engine"
	"github.com/talgya/evacsim/internal/persistence"
	"github.com/talgya/evacsim/internal/world"
)

// Server serves the simulation state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine
	DB       *persistence.DB // Optional; stored-run endpoints answer 503 without it
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	streamConns int32
	httpServer  *http.Server
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	gridLimiter := NewRateLimiter(60, time.Minute)
	runsLimiter := NewRateLimiter(30, time.Minute)

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/agents", s.handleAgents)
	mux.HandleFunc("/api/v1/agent/", s.handleAgentRoutes)
	mux.HandleFunc("/api/v1/outcomes", s.handleOutcomes)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/stats", s.handleStats)
	mux.HandleFunc("/api/v1/stats/history", s.handleStatsHistory)
	mux.HandleFunc("/api/v1/grid", RateLimitMiddleware(gridLimiter, s.handleGrid))
	mux.HandleFunc("/api/v1/runs", RateLimitMiddleware(runsLimiter, s.handleRuns))
	mux.HandleFunc("/api/v1/runs/", RateLimitMiddleware(runsLimiter, s.handleRunDetail))

	// Per-tick snapshot stream (websocket).
	mux.HandleFunc("/api/v1/stream", s.handleStream)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/ignite", s.adminOnly(s.handleIgnite))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "store", s.DB != nil)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops the server started by Start.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of extra allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no EVACSIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.Sim.Stats()
	status := map[string]any{
		"name":       "evacsim",
		"run_id":     s.Sim.RunID.String(),
		"seed":       s.Sim.RNG.Seed(),
		"tick":       s.Sim.CurrentTick(),
		"running":    s.Sim.Running(),
		"width":      s.Sim.Grid.Width,
		"height":     s.Sim.Grid.Height,
		"alive":      stats.Alive,
		"saved":      stats.Saved,
		"killed":     stats.Killed,
		"burning":    stats.Burning,
		"burned_out": stats.BurnedOut,
	}
	if s.Eng != nil {
		status["speed"] = s.Eng.Speed()
		status["steps"] = s.Eng.Steps()
	}
	if warn := s.Sim.Warning(); warn != "" {
		status["warning"] = warn
	}
	writeJSON(w, status)
}

type agentSummary struct {
	ID          agents.AgentID  `json:"id"`
	Kind        world.Kind      `json:"kind"`
	Pos         world.Position  `json:"pos"`
	Goal        *world.Position `json:"goal,omitempty"`
	Speed       int             `json:"speed"`
	VisualRange int             `json:"visual_range"`
	KnownExits  int             `json:"known_exits"`
	Hazards     int             `json:"hazards"`
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	var kind world.Kind
	if k := r.URL.Query().Get("kind"); k != "" {
		if err := kind.UnmarshalText([]byte(k)); err != nil || !kind.IsPerson() {
			http.Error(w, "kind must be civilian or steward", http.StatusBadRequest)
			return
		}
	}

	result := []agentSummary{}
	for _, a := range s.Sim.Agents() {
		if kind != world.KindEmpty && a.Kind != kind {
			continue
		}
		result = append(result, agentSummary{
			ID:          a.ID,
			Kind:        a.Kind,
			Pos:         a.Pos,
			Goal:        a.Goal,
			Speed:       a.Speed,
			VisualRange: a.VisualRange,
			KnownExits:  len(a.Knowledge.KnownExits),
			Hazards:     len(a.Knowledge.Hazards),
		})
	}
	writeJSON(w, result)
}

// handleAgentRoutes serves /api/v1/agent/:id and /api/v1/agent/:id/memories.
func (s *Server) handleAgentRoutes(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) < 5 || parts[4] == "" {
		http.Error(w, "missing agent id", http.StatusBadRequest)
		return
	}
	id, err := strconv.ParseUint(parts[4], 10, 64)
	if err != nil {
		http.Error(w, "invalid agent id", http.StatusBadRequest)
		return
	}

	agent, ok := s.Sim.Agent(agents.AgentID(id))
	if !ok {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}

	if len(parts) >= 6 && parts[5] == "memories" {
		limit := queryInt(r, "limit", 10, agents.MaxMemories)
		writeJSON(w, agents.RecentMemories(&agent, limit))
		return
	}
	writeJSON(w, agent)
}

func (s *Server) handleOutcomes(w http.ResponseWriter, r *http.Request) {
	out := s.Sim.Outcomes()
	writeJSON(w, map[string]any{
		"initial": out.Initial,
		"alive":   out.Alive,
		"saved":   out.Saved,
		"killed":  out.Killed,
		"exits":   out.Tallies(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50, 500)
	events := s.Sim.Events(limit)

	if category := r.URL.Query().Get("category"); category != "" {
		filtered := []engine.Event{}
		for _, e := range events {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}
	writeJSON(w, events)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Stats())
}

// handleStatsHistory returns per-tick rows with from <= tick, at most limit.
func (s *Server) handleStatsHistory(w http.ResponseWriter, r *http.Request) {
	from := uint64(0)
	if f := r.URL.Query().Get("from"); f != "" {
		if v, err := strconv.ParseUint(f, 10, 64); err == nil {
			from = v
		}
	}
	limit := queryInt(r, "limit", 100, 1000)

	rows := []engine.Stats{}
	for _, st := range s.Sim.History() {
		if st.Tick < from {
			continue
		}
		if len(rows) == limit {
			break
		}
		rows = append(rows, st)
	}
	writeJSON(w, rows)
}

// handleGrid returns the static layout plus every non-wall occupant.
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	snap := s.Sim.Snapshot()
	writeJSON(w, map[string]any{
		"width":      snap.Width,
		"height":     snap.Height,
		"tick":       snap.Tick,
		"walls":      s.Sim.Walls(),
		"exits":      s.Sim.Layout.Exits,
		"main_exits": s.Sim.Layout.MainExits,
		"no_spawn":   s.Sim.Layout.NoSpawn,
		"entities":   snap.Entities,
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	var (
		runs []persistence.RunSummary
		err  error
	)
	if batch := r.URL.Query().Get("batch"); batch != "" {
		runs, err = s.DB.BatchRuns(batch)
	} else {
		runs, err = s.DB.RecentRuns(queryInt(r, "limit", 20, 200))
	}
	if err != nil {
		slog.Error("run listing failed", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []persistence.RunSummary{}
	}
	writeJSON(w, runs)
}

// handleRunDetail serves /api/v1/runs/:id with outcomes and exit tallies.
func (s *Server) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	runID := strings.TrimPrefix(r.URL.Path, "/api/v1/runs/")
	if runID == "" {
		http.Error(w, "missing run id", http.StatusBadRequest)
		return
	}

	sum, err := s.DB.LoadRun(runID)
	if errors.Is(err, persistence.ErrRunNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("run lookup failed", "run", runID, "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	recs, err := s.DB.AgentOutcomes(runID)
	if err != nil {
		slog.Error("outcome lookup failed", "run", runID, "error", err)
	}
	tallies, err := s.DB.ExitTallies(runID)
	if err != nil {
		slog.Error("exit tally lookup failed", "run", runID, "error", err)
	}
	writeJSON(w, map[string]any{
		"summary":  sum,
		"outcomes": recs,
		"exits":    tallies,
	})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "engine not attached", http.StatusServiceUnavailable)
		return
	}
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleIgnite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req world.Position
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if err := s.Sim.IgniteAt(req); err != nil {
		status := http.StatusConflict // Not ignitable, or the run is over
		if errors.Is(err, world.ErrOutOfBounds) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	slog.Info("admin ignition", "pos", req)
	writeJSON(w, map[string]any{
		"ignited": req,
		"tick":    s.Sim.CurrentTick(),
		"stats":   s.Sim.Stats(),
	})
}

// queryInt reads a positive integer parameter capped at max.
func queryInt(r *http.Request, key string, def, max int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= max {
			return n
		}
	}
	return def
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		slog.Warn("response encode failed", "error", err)
	}
}
