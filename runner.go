package main

import (
	"sync"
	"time"
)

type runnerCmd uint8

const (
	cmdPauseToggle runnerCmd = iota
	cmdStop
)

// Runner drives one game session: a tick timer for movement and a one-second
// ticker for elapsed time, both owned by a single goroutine so the session
// only ever advances from one place. The tick timer is re-armed after every
// tick with the session's current interval, so a speed change takes effect
// on the very next tick. Pausing stops both drivers; game over stops them
// permanently.
type Runner struct {
	session    *GameSession
	onSnapshot func(Snapshot)

	cmds     chan runnerCmd
	done     chan struct{}
	stopOnce sync.Once
}

// NewRunner wraps a session. onSnapshot (optional) receives a snapshot after
// every committed tick, pause flip and clock advance.
func NewRunner(session *GameSession, onSnapshot func(Snapshot)) *Runner {
	return &Runner{
		session:    session,
		onSnapshot: onSnapshot,
		cmds:       make(chan runnerCmd, 4),
		done:       make(chan struct{}),
	}
}

// Session returns the underlying game session.
func (r *Runner) Session() *GameSession { return r.session }

// Snapshot returns the session's current state.
func (r *Runner) Snapshot() Snapshot { return r.session.Snapshot() }

// Done is closed when the driver goroutine has exited.
func (r *Runner) Done() <-chan struct{} { return r.done }

// Start launches the driver goroutine.
func (r *Runner) Start() { go r.loop() }

// SubmitDirection forwards a directional input to the session. Safe to call
// at any point in the lifecycle; illegal inputs are dropped by the session.
func (r *Runner) SubmitDirection(d Direction) {
	r.session.SubmitDirection(d)
}

// TogglePause asks the driver to flip the pause state. A no-op once the
// session is over.
func (r *Runner) TogglePause() {
	select {
	case r.cmds <- cmdPauseToggle:
	case <-r.done:
	}
}

// Stop shuts the driver down without waiting for a collision. Idempotent.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		select {
		case r.cmds <- cmdStop:
		case <-r.done:
		}
	})
}

func (r *Runner) loop() {
	defer close(r.done)

	tick := time.NewTimer(r.session.Interval())
	defer tick.Stop()
	clock := time.NewTicker(time.Second)
	defer clock.Stop()

	paused := false
	for {
		if paused {
			// Drivers are stopped; only a command can wake us.
			switch <-r.cmds {
			case cmdStop:
				return
			case cmdPauseToggle:
				if r.session.TogglePause() == StateRunning {
					paused = false
					tick.Reset(r.session.Interval())
					clock.Reset(time.Second)
					r.emit()
				}
			}
			continue
		}

		select {
		case <-tick.C:
			over := r.session.Tick()
			r.emit()
			if over {
				return
			}
			tick.Reset(r.session.Interval())

		case <-clock.C:
			r.session.AdvanceClock()
			r.emit()

		case cmd := <-r.cmds:
			switch cmd {
			case cmdStop:
				return
			case cmdPauseToggle:
				if r.session.TogglePause() == StatePaused {
					paused = true
					if !tick.Stop() {
						select {
						case <-tick.C:
						default:
						}
					}
					clock.Stop()
					r.emit()
				}
			}
		}
	}
}

func (r *Runner) emit() {
	if r.onSnapshot != nil {
		r.onSnapshot(r.session.Snapshot())
	}
}
