package main

import (
	"crypto/rand"
	"encoding/hex"
	"math"
	"sort"
	"sync"
	"time"
)

// How long a finished session stays queryable before the janitor drops it.
const finishedSessionTTL = time.Hour

// ScoreRecord is one persisted game result.
type ScoreRecord struct {
	ID              int       `json:"id"`
	PlayerName      string    `json:"player_name"`
	Score           int       `json:"score"`
	SnakeLength     int       `json:"snake_length"`
	DurationSeconds int       `json:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at"`
}

// LeaderboardEntry is one ranked row: a player's best result.
type LeaderboardEntry struct {
	Rank        int       `json:"rank"`
	PlayerName  string    `json:"player_name"`
	Score       int       `json:"score"`
	SnakeLength int       `json:"snake_length"`
	CreatedAt   time.Time `json:"created_at"`
}

// Leaderboard is the ranked table plus the total number of games played.
type Leaderboard struct {
	Entries    []LeaderboardEntry `json:"entries"`
	TotalGames int                `json:"total_games"`
}

// PlayerBest summarizes a single player's results.
type PlayerBest struct {
	PlayerName   string  `json:"player_name"`
	BestScore    int     `json:"best_score"`
	TotalGames   int     `json:"total_games"`
	AverageScore float64 `json:"average_score"`
}

// GameStats is the global statistics view.
type GameStats struct {
	TotalGames   int     `json:"total_games"`
	TotalPlayers int     `json:"total_players"`
	HighestScore int     `json:"highest_score"`
	AverageScore float64 `json:"average_score"`
	LongestSnake int     `json:"longest_snake"`
}

// Store holds all scores and live game sessions in memory.
type Store struct {
	mu       sync.RWMutex
	scores   []ScoreRecord
	nextID   int
	sessions map[string]*Runner

	done      chan struct{}
	closeOnce sync.Once
}

// NewStore creates an empty store and starts a janitor that drops finished
// sessions once they have aged out.
func NewStore() *Store {
	s := &Store{
		nextID:   1,
		sessions: make(map[string]*Runner),
		done:     make(chan struct{}),
	}
	go s.janitor()
	return s
}

func (s *Store) janitor() {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.pruneFinished()
		case <-s.done:
			return
		}
	}
}

// Close stops the janitor goroutine. Idempotent.
func (s *Store) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// SaveScore persists a result, assigning its ID and timestamp.
func (s *Store) SaveScore(rec ScoreRecord) ScoreRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ID = s.nextID
	s.nextID++
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	s.scores = append(s.scores, rec)
	return rec
}

// Leaderboard returns the best result per player, ranked by score descending,
// capped at limit entries.
func (s *Store) Leaderboard(limit int) Leaderboard {
	s.mu.RLock()
	defer s.mu.RUnlock()

	best := make(map[string]ScoreRecord)
	for _, rec := range s.scores {
		if cur, ok := best[rec.PlayerName]; !ok || rec.Score > cur.Score {
			best[rec.PlayerName] = rec
		}
	}

	ranked := make([]ScoreRecord, 0, len(best))
	for _, rec := range best {
		ranked = append(ranked, rec)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].CreatedAt.Before(ranked[j].CreatedAt)
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	entries := make([]LeaderboardEntry, len(ranked))
	for i, rec := range ranked {
		entries[i] = LeaderboardEntry{
			Rank:        i + 1,
			PlayerName:  rec.PlayerName,
			Score:       rec.Score,
			SnakeLength: rec.SnakeLength,
			CreatedAt:   rec.CreatedAt,
		}
	}

	return Leaderboard{Entries: entries, TotalGames: len(s.scores)}
}

// Best returns a player's best score and averages. Zero values for players
// who have not played yet.
func (s *Store) Best(playerName string) PlayerBest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := PlayerBest{PlayerName: playerName}
	var sum int
	for _, rec := range s.scores {
		if rec.PlayerName != playerName {
			continue
		}
		out.TotalGames++
		sum += rec.Score
		if rec.Score > out.BestScore {
			out.BestScore = rec.Score
		}
	}
	if out.TotalGames > 0 {
		out.AverageScore = round1(float64(sum) / float64(out.TotalGames))
	}
	return out
}

// History returns a player's most recent games, newest first.
func (s *Store) History(playerName string, limit int) []ScoreRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ScoreRecord
	for i := len(s.scores) - 1; i >= 0; i-- {
		if s.scores[i].PlayerName != playerName {
			continue
		}
		out = append(out, s.scores[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	if out == nil {
		out = []ScoreRecord{}
	}
	return out
}

// Stats returns the global statistics over all saved games.
func (s *Store) Stats() GameStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := GameStats{LongestSnake: 1}
	if len(s.scores) == 0 {
		return stats
	}

	players := make(map[string]struct{})
	var sum int
	for _, rec := range s.scores {
		players[rec.PlayerName] = struct{}{}
		sum += rec.Score
		if rec.Score > stats.HighestScore {
			stats.HighestScore = rec.Score
		}
		if rec.SnakeLength > stats.LongestSnake {
			stats.LongestSnake = rec.SnakeLength
		}
	}
	stats.TotalGames = len(s.scores)
	stats.TotalPlayers = len(players)
	stats.AverageScore = round1(float64(sum) / float64(len(s.scores)))
	return stats
}

// PutRunner registers a live session under its ID.
func (s *Store) PutRunner(id string, r *Runner) {
	s.mu.Lock()
	s.sessions[id] = r
	s.mu.Unlock()
}

// GetRunner returns the session runner for id, or nil if not found.
func (s *Store) GetRunner(id string) *Runner {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// SessionCount returns the number of registered sessions.
func (s *Store) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// pruneFinished drops sessions that ended and have outlived their TTL.
func (s *Store) pruneFinished() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, r := range s.sessions {
		select {
		case <-r.Done():
			if time.Since(r.Session().CreatedAt) > finishedSessionTTL {
				delete(s.sessions, id)
			}
		default:
		}
	}
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

func generateID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
