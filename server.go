package main

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

//go:embed frontend
var frontendFS embed.FS

const (
	apiVersion    = "1.0.0"
	maxPlayerName = 50
	defaultPlayer = "Player"
)

// rateLimiter is a simple per-IP token bucket rate limiter.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*bucket
	rate     int           // tokens per interval
	interval time.Duration // refill interval
}

type bucket struct {
	tokens   int
	lastSeen time.Time
}

func newRateLimiter(rate int, interval time.Duration) *rateLimiter {
	return &rateLimiter{
		visitors: make(map[string]*bucket),
		rate:     rate,
		interval: interval,
	}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Evict idle buckets once the map gets large.
	if len(rl.visitors) > 1024 {
		for k, b := range rl.visitors {
			if time.Since(b.lastSeen) > 5*time.Minute {
				delete(rl.visitors, k)
			}
		}
	}

	b, ok := rl.visitors[ip]
	if !ok {
		rl.visitors[ip] = &bucket{tokens: rl.rate - 1, lastSeen: time.Now()}
		return true
	}

	elapsed := time.Since(b.lastSeen)
	if refill := int(elapsed / rl.interval); refill > 0 {
		b.tokens += refill * rl.rate
		if b.tokens > rl.rate {
			b.tokens = rl.rate
		}
		b.lastSeen = time.Now()
	}

	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// Server is the main HTTP server: game session API, leaderboard API and the
// static frontend.
type Server struct {
	mux      *http.ServeMux
	store    *Store
	reporter *ScoreReporter // nil: scores are saved to the local store
	hub      *Hub
	scoreRL  *rateLimiter
	inputRL  *rateLimiter
}

// NewServer creates a configured HTTP server. reporter may be nil, in which
// case finished games are persisted locally.
func NewServer(store *Store, reporter *ScoreReporter) *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		store:    store,
		reporter: reporter,
		hub:      NewHub(),
		scoreRL:  newRateLimiter(10, time.Minute), // 10 score submissions/min per IP
		inputRL:  newRateLimiter(60, time.Second), // 60 inputs/sec per IP
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	// Game session API
	s.mux.HandleFunc("POST /api/games", s.handleCreateGame)
	s.mux.HandleFunc("GET /api/games/{id}", s.handleGetGame)
	s.mux.HandleFunc("POST /api/games/{id}/direction", s.handleDirection)
	s.mux.HandleFunc("POST /api/games/{id}/pause", s.handlePause)
	s.mux.HandleFunc("GET /api/games/{id}/events", s.handleGameEvents)
	s.mux.HandleFunc("GET /api/games/{id}/ws", s.handleGameSocket)

	// Leaderboard API
	s.mux.HandleFunc("POST /api/scores", s.handleCreateScore)
	s.mux.HandleFunc("GET /api/leaderboard", s.handleLeaderboard)
	s.mux.HandleFunc("GET /api/scores/best", s.handleBestScore)
	s.mux.HandleFunc("GET /api/scores/history", s.handleScoreHistory)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	// Frontend static files
	frontendDir, _ := fs.Sub(frontendFS, "frontend")
	s.mux.Handle("GET /", http.FileServer(http.FS(frontendDir)))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
	s.mux.ServeHTTP(w, r)
}

// --- Game session handlers ---

// POST /api/games: start a fresh session and its drivers.
func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerName string `json:"player_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	name, ok := sanitizeName(req.PlayerName)
	if !ok {
		jsonError(w, "player_name must be at most 50 characters", http.StatusBadRequest)
		return
	}

	id := generateID()
	session := NewGameSession(DefaultConfig(), id, name, nil, s.handleGameOver)
	runner := NewRunner(session, func(snap Snapshot) {
		data, _ := json.Marshal(snap)
		s.hub.Publish(id, string(data))
	})
	s.store.PutRunner(id, runner)
	runner.Start()

	log.Printf("game %s started for %q", id, name)

	writeJSON(w, http.StatusCreated, session.Snapshot())
}

// handleGameOver persists a finished session's tally, remotely when a
// reporter is configured, locally otherwise. A failed save is surfaced to
// spectators as a notice and otherwise forgotten; the session is done either
// way.
func (s *Server) handleGameOver(sum Summary) {
	go func() {
		if s.reporter == nil {
			s.store.SaveScore(ScoreRecord{
				PlayerName:      sum.PlayerName,
				Score:           sum.Score,
				SnakeLength:     sum.SnakeLength,
				DurationSeconds: sum.DurationSeconds,
			})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := s.reporter.PostScore(ctx, sum); err != nil {
			log.Printf("game %s: score save failed: %v", sum.GameID, err)
			notice, _ := json.Marshal(map[string]string{
				"type":   "notice",
				"detail": "score could not be saved",
			})
			s.hub.Publish(sum.GameID, string(notice))
		}
	}()
}

// GET /api/games/{id}: current snapshot.
func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	runner := s.store.GetRunner(r.PathValue("id"))
	if runner == nil {
		jsonError(w, "game not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, runner.Snapshot())
}

// POST /api/games/{id}/direction: buffer a directional input.
func (s *Server) handleDirection(w http.ResponseWriter, r *http.Request) {
	if !s.inputRL.allow(r.RemoteAddr) {
		jsonError(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	runner := s.store.GetRunner(r.PathValue("id"))
	if runner == nil {
		jsonError(w, "game not found", http.StatusNotFound)
		return
	}

	var req struct {
		Direction string `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	d, ok := ParseDirection(req.Direction)
	if !ok {
		jsonError(w, "direction must be one of up, down, left, right", http.StatusBadRequest)
		return
	}

	runner.SubmitDirection(d)
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/games/{id}/pause: toggle pause. A no-op on finished games.
func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	runner := s.store.GetRunner(r.PathValue("id"))
	if runner == nil {
		jsonError(w, "game not found", http.StatusNotFound)
		return
	}
	runner.TogglePause()
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/games/{id}/events: SSE snapshot stream.
func (s *Server) handleGameEvents(w http.ResponseWriter, r *http.Request) {
	runner := s.store.GetRunner(r.PathValue("id"))
	if runner == nil {
		jsonError(w, "game not found", http.StatusNotFound)
		return
	}

	s.hub.ServeSSE(w, r, runner.Session().ID, func(c *subscriber) {
		snap, _ := json.Marshal(runner.Snapshot())
		c.ch <- string(snap)
	})
}

// --- Leaderboard handlers ---

// POST /api/scores: save a game result.
func (s *Server) handleCreateScore(w http.ResponseWriter, r *http.Request) {
	if !s.scoreRL.allow(r.RemoteAddr) {
		jsonError(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	var req struct {
		PlayerName      string `json:"player_name"`
		Score           *int   `json:"score"`
		SnakeLength     *int   `json:"snake_length"`
		DurationSeconds *int   `json:"duration_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	name, ok := sanitizeName(req.PlayerName)
	if !ok {
		jsonError(w, "player_name must be at most 50 characters", http.StatusBadRequest)
		return
	}
	switch {
	case req.Score == nil || *req.Score < 0:
		jsonError(w, "score is required and must be >= 0", http.StatusBadRequest)
		return
	case req.SnakeLength == nil || *req.SnakeLength < 1:
		jsonError(w, "snake_length is required and must be >= 1", http.StatusBadRequest)
		return
	case req.DurationSeconds == nil || *req.DurationSeconds < 0:
		jsonError(w, "duration_seconds is required and must be >= 0", http.StatusBadRequest)
		return
	}

	rec := s.store.SaveScore(ScoreRecord{
		PlayerName:      name,
		Score:           *req.Score,
		SnakeLength:     *req.SnakeLength,
		DurationSeconds: *req.DurationSeconds,
	})

	writeJSON(w, http.StatusCreated, rec)
}

// GET /api/leaderboard?limit=N: ranked best score per player. Proxied to the
// remote leaderboard when a reporter is configured, since that is where the
// scores went.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)
	if s.reporter != nil {
		lb, err := s.reporter.FetchLeaderboard(r.Context(), limit)
		if err != nil {
			log.Printf("leaderboard fetch: %v", err)
			jsonError(w, "leaderboard service unavailable", http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, lb)
		return
	}
	writeJSON(w, http.StatusOK, s.store.Leaderboard(limit))
}

// GET /api/scores/best?player_name=: a player's best result, proxied like the
// leaderboard.
func (s *Server) handleBestScore(w http.ResponseWriter, r *http.Request) {
	name, ok := sanitizeName(r.URL.Query().Get("player_name"))
	if !ok {
		jsonError(w, "player_name must be at most 50 characters", http.StatusBadRequest)
		return
	}
	if s.reporter != nil {
		best, err := s.reporter.FetchBest(r.Context(), name)
		if err != nil {
			log.Printf("best score fetch: %v", err)
			jsonError(w, "leaderboard service unavailable", http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, best)
		return
	}
	writeJSON(w, http.StatusOK, s.store.Best(name))
}

// GET /api/scores/history?player_name=&limit=: recent games, newest first.
func (s *Server) handleScoreHistory(w http.ResponseWriter, r *http.Request) {
	name, ok := sanitizeName(r.URL.Query().Get("player_name"))
	if !ok {
		jsonError(w, "player_name must be at most 50 characters", http.StatusBadRequest)
		return
	}
	limit := queryInt(r, "limit", 20)
	writeJSON(w, http.StatusOK, s.store.History(name, limit))
}

// GET /api/stats: global statistics.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Stats())
}

// GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"store":   "in-memory",
		"version": apiVersion,
	})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"detail": msg})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// sanitizeName trims whitespace and substitutes the default for empty names.
// Names longer than the limit are rejected, not truncated.
func sanitizeName(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultPlayer, true
	}
	if utf8.RuneCountInString(s) > maxPlayerName {
		return "", false
	}
	return s, true
}
