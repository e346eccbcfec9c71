// Package media guards one-shot audio playback for the listening
// section: a fixed warning interval, exactly one play-through, no
// pause, seek, or replay, and a terminal finished state that unlocks
// question interactivity.
package media

import (
	"errors"
	"sync"

	"github.com/ielts-sim/exam-service/internal/timer"
)

// State is the playback phase. Transitions are strictly forward:
// unplayed -> warning -> playing -> finished. Finished is terminal.
type State string

const (
	StateUnplayed State = "unplayed"
	StateWarning  State = "warning"
	StatePlaying  State = "playing"
	StateFinished State = "finished"
)

var (
	// ErrPlaybackLocked rejects pause/seek/replay requests.
	ErrPlaybackLocked = errors.New("playback controls are locked for one-shot audio")
	// ErrNotPlaying rejects an end-of-stream signal outside the playing state.
	ErrNotPlaying = errors.New("media is not playing")
)

// Option configures a Gate.
type Option func(*Gate)

// WithTimerInterval shrinks the warning countdown interval for tests.
func WithTimerInterval(opts ...timer.Option) Option {
	return func(g *Gate) { g.timerOpts = opts }
}

// Gate is the one-play media state machine for a single listening section.
type Gate struct {
	mu             sync.Mutex
	state          State
	warningSeconds int
	warning        *timer.Countdown
	timerOpts      []timer.Option
	onStateChange  func(State)
}

// NewGate returns a gate in the unplayed state. onStateChange, if not
// nil, observes every transition (used to persist runtime state).
func NewGate(warningSeconds int, onStateChange func(State), opts ...Option) *Gate {
	g := &Gate{
		state:          StateUnplayed,
		warningSeconds: warningSeconds,
		onStateChange:  onStateChange,
	}
	for _, o := range opts {
		o(g)
	}
	g.warning = timer.New(g.timerOpts...)
	return g
}

// RequestPlay handles the candidate's play request. The first request
// enters the warning interval, after which playback begins
// automatically; any later request is a no-op.
func (g *Gate) RequestPlay() State {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StateUnplayed {
		return g.state
	}
	g.setStateLocked(StateWarning)
	g.warning.Start(g.warningSeconds, nil, g.beginPlayback)
	return g.state
}

// beginPlayback is the warning countdown's expiry: the only transition
// that actually starts the audio.
func (g *Gate) beginPlayback() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateWarning {
		return
	}
	g.setStateLocked(StatePlaying)
}

// MediaEnded handles the natural end-of-stream signal.
func (g *Gate) MediaEnded() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == StateFinished {
		return nil
	}
	if g.state != StatePlaying {
		return ErrNotPlaying
	}
	g.setStateLocked(StateFinished)
	return nil
}

// Pause rejects the request; one-shot audio cannot be paused.
func (g *Gate) Pause() error { return ErrPlaybackLocked }

// Seek rejects the request; one-shot audio cannot be seeked.
func (g *Gate) Seek() error { return ErrPlaybackLocked }

// Replay rejects the request; finished is terminal within a session.
func (g *Gate) Replay() error { return ErrPlaybackLocked }

// State returns the current playback state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// InteractionUnlocked reports whether answer inputs for the section may
// accept input. Only the finished state unlocks them.
func (g *Gate) InteractionUnlocked() bool {
	return g.State() == StateFinished
}

// Restore forces the state during session resume. Backward transitions
// are ignored so a stale snapshot can never regress the gate.
func (g *Gate) Restore(s State) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if rank(s) <= rank(g.state) {
		return
	}
	// A restored warning or playing state re-enters playing directly:
	// the warning interval already elapsed in the previous process.
	if s == StateWarning {
		s = StatePlaying
	}
	g.setStateLocked(s)
}

func (g *Gate) setStateLocked(s State) {
	g.state = s
	if g.onStateChange != nil {
		go g.onStateChange(s)
	}
}

func rank(s State) int {
	switch s {
	case StateUnplayed:
		return 0
	case StateWarning:
		return 1
	case StatePlaying:
		return 2
	case StateFinished:
		return 3
	}
	return -1
}
