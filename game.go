package main

import (
	"math/rand"
	"sync"
	"time"
)

// Direction is one of the four movement directions of the snake.
type Direction uint8

const (
	DirUp Direction = iota
	DirRight
	DirDown
	DirLeft
)

// String returns the wire representation of a direction.
func (d Direction) String() string {
	switch d {
	case DirUp:
		return "up"
	case DirRight:
		return "right"
	case DirDown:
		return "down"
	case DirLeft:
		return "left"
	default:
		return "unknown"
	}
}

// Delta returns the (dx, dy) offset for one step in this direction.
// Up decreases Y, Down increases Y (screen coordinates).
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case DirUp:
		return 0, -1
	case DirRight:
		return 1, 0
	case DirDown:
		return 0, 1
	case DirLeft:
		return -1, 0
	default:
		return 0, 0
	}
}

// Opposite returns the 180° reverse of a direction.
func (d Direction) Opposite() Direction {
	switch d {
	case DirUp:
		return DirDown
	case DirRight:
		return DirLeft
	case DirDown:
		return DirUp
	default:
		return DirRight
	}
}

// ParseDirection maps a wire string to a Direction.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "up":
		return DirUp, true
	case "down":
		return DirDown, true
	case "left":
		return DirLeft, true
	case "right":
		return DirRight, true
	default:
		return 0, false
	}
}

// State is the lifecycle state of a game session.
type State uint8

const (
	StateRunning State = iota
	StatePaused
	StateOver
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateOver:
		return "over"
	default:
		return "unknown"
	}
}

// Cell is a single board coordinate.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Config holds the immutable tunables of a game session.
type Config struct {
	GridSize        int           // board is GridSize x GridSize cells
	InitialLength   int           // starting snake length
	FoodPoints      int           // score per food eaten
	SpeedEvery      int           // score multiple that triggers a ratchet step
	SpeedStep       time.Duration // how much the tick interval shrinks per step
	InitialInterval time.Duration // tick interval at session start
	MinInterval     time.Duration // ratchet floor
}

// DefaultConfig returns the standard game tunables.
func DefaultConfig() Config {
	return Config{
		GridSize:        20,
		InitialLength:   3,
		FoodPoints:      10,
		SpeedEvery:      50,
		SpeedStep:       5 * time.Millisecond,
		InitialInterval: 150 * time.Millisecond,
		MinInterval:     50 * time.Millisecond,
	}
}

// Summary is the final tally handed out exactly once when a session ends.
type Summary struct {
	GameID          string `json:"-"`
	PlayerName      string `json:"player_name"`
	Score           int    `json:"score"`
	SnakeLength     int    `json:"snake_length"`
	DurationSeconds int    `json:"duration_seconds"`
	Won             bool   `json:"won"`
}

// Snapshot is an immutable view of a session, produced once per committed
// tick. Rendering is an external concern subscribing to snapshots.
type Snapshot struct {
	ID         string `json:"id"`
	PlayerName string `json:"player_name"`
	State      string `json:"state"`
	GridSize   int    `json:"grid_size"`
	Snake      []Cell `json:"snake"`
	Food       Cell   `json:"food"`
	Direction  string `json:"direction"`
	Score      int    `json:"score"`
	Elapsed    int    `json:"elapsed_seconds"`
	IntervalMS int    `json:"interval_ms"`
	Won        bool   `json:"won,omitempty"`
}

// GameSession owns the authoritative state of one snake game. It is mutated
// only by Tick, AdvanceClock, SubmitDirection and TogglePause; once the
// terminal state is reached every call becomes a no-op.
type GameSession struct {
	ID         string
	PlayerName string
	CreatedAt  time.Time

	cfg Config
	rng *rand.Rand

	mu         sync.Mutex
	state      State
	snake      []Cell // head first, tail last
	food       Cell
	dir        Direction // committed direction
	pending    Direction // buffered next direction
	hasPending bool
	score      int
	elapsed    int // whole seconds while running
	interval   time.Duration
	won        bool
	onOver     func(Summary)
}

// NewGameSession creates a running session with a centered horizontal snake
// moving right and an initial food cell. rng may be nil; onOver (optional)
// fires exactly once when the session reaches its terminal state.
func NewGameSession(cfg Config, id, playerName string, rng *rand.Rand, onOver func(Summary)) *GameSession {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	s := &GameSession{
		ID:         id,
		PlayerName: playerName,
		CreatedAt:  time.Now(),
		cfg:        cfg,
		rng:        rng,
		state:      StateRunning,
		dir:        DirRight,
		interval:   cfg.InitialInterval,
		onOver:     onOver,
	}

	// Head at the center, body extending left.
	mid := cfg.GridSize / 2
	s.snake = make([]Cell, cfg.InitialLength)
	for i := range s.snake {
		s.snake[i] = Cell{X: mid - i, Y: mid}
	}
	s.spawnFoodLocked()

	return s
}

// SubmitDirection buffers d as the next direction (last writer wins between
// ticks). Ignored while paused or over; a 180° reversal of the committed
// direction is silently dropped.
func (s *GameSession) SubmitDirection(d Direction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return
	}
	if d == s.dir.Opposite() {
		return
	}
	s.pending = d
	s.hasPending = true
}

// TogglePause flips between running and paused and returns the new state.
// A no-op once the session is over.
func (s *GameSession) TogglePause() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateRunning:
		s.state = StatePaused
	case StatePaused:
		s.state = StateRunning
	}
	return s.state
}

// Tick advances the simulation by one step: commit the buffered direction,
// move the head, detect wall/self collision, eat food and re-evaluate speed.
// Returns true when this tick ended the session. Ticks while paused or over
// are no-ops.
func (s *GameSession) Tick() (over bool) {
	s.mu.Lock()

	if s.state != StateRunning {
		s.mu.Unlock()
		return false
	}

	if s.hasPending {
		s.dir = s.pending
		s.hasPending = false
	}

	dx, dy := s.dir.Delta()
	head := s.snake[0]
	newHead := Cell{X: head.X + dx, Y: head.Y + dy}

	// Wall collision.
	if newHead.X < 0 || newHead.X >= s.cfg.GridSize || newHead.Y < 0 || newHead.Y >= s.cfg.GridSize {
		return s.endLocked(false)
	}
	// Self collision, against the pre-move body including the current tail.
	for _, seg := range s.snake {
		if seg == newHead {
			return s.endLocked(false)
		}
	}

	if newHead == s.food {
		// Grow: new head, tail kept.
		s.snake = append([]Cell{newHead}, s.snake...)
		s.score += s.cfg.FoodPoints

		if len(s.snake) == s.cfg.GridSize*s.cfg.GridSize {
			// Board is full: nowhere left to place food.
			return s.endLocked(true)
		}
		s.spawnFoodLocked()

		// Speed ratchet: shrink the interval at every exact multiple of
		// SpeedEvery, clamped at the floor, never reversed.
		if s.cfg.SpeedEvery > 0 && s.score%s.cfg.SpeedEvery == 0 {
			s.interval -= s.cfg.SpeedStep
			if s.interval < s.cfg.MinInterval {
				s.interval = s.cfg.MinInterval
			}
		}
	} else {
		// Translate: new head, tail dropped.
		copy(s.snake[1:], s.snake)
		s.snake[0] = newHead
	}

	s.mu.Unlock()
	return false
}

// endLocked freezes the session and fires the exit summary. Called with the
// mutex held; releases it before invoking the handler.
func (s *GameSession) endLocked(won bool) bool {
	s.state = StateOver
	s.won = won
	handler := s.onOver
	s.onOver = nil
	sum := Summary{
		GameID:          s.ID,
		PlayerName:      s.PlayerName,
		Score:           s.score,
		SnakeLength:     len(s.snake),
		DurationSeconds: s.elapsed,
		Won:             won,
	}
	s.mu.Unlock()

	if handler != nil {
		handler(sum)
	}
	return true
}

// spawnFoodLocked places food on a uniformly random free cell by rejection
// sampling. Callers guarantee at least one free cell exists.
func (s *GameSession) spawnFoodLocked() {
	for {
		c := Cell{X: s.rng.Intn(s.cfg.GridSize), Y: s.rng.Intn(s.cfg.GridSize)}
		taken := false
		for _, seg := range s.snake {
			if seg == c {
				taken = true
				break
			}
		}
		if !taken {
			s.food = c
			return
		}
	}
}

// AdvanceClock adds one second of elapsed time. Frozen while paused and
// permanently frozen once over.
func (s *GameSession) AdvanceClock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning {
		s.elapsed++
	}
}

// Interval returns the current tick interval. The tick driver re-arms with
// this value after every tick so a ratchet step applies immediately.
func (s *GameSession) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Snapshot returns a copy of the current session state.
func (s *GameSession) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snake := make([]Cell, len(s.snake))
	copy(snake, s.snake)

	return Snapshot{
		ID:         s.ID,
		PlayerName: s.PlayerName,
		State:      s.state.String(),
		GridSize:   s.cfg.GridSize,
		Snake:      snake,
		Food:       s.food,
		Direction:  s.dir.String(),
		Score:      s.score,
		Elapsed:    s.elapsed,
		IntervalMS: int(s.interval / time.Millisecond),
		Won:        s.won,
	}
}
