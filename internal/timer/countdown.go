// Package timer provides the ticking countdown shared by every exam
// section and sub-phase (listening audio warning, speaking preparation
// and response windows, whole-section limits).
package timer

import (
	"sync"
	"time"
)

// Option configures a Countdown.
type Option func(*Countdown)

// WithInterval overrides the tick interval. Production code keeps the
// one-second default; tests shrink it.
func WithInterval(d time.Duration) Option {
	return func(c *Countdown) { c.interval = d }
}

// Countdown ticks down from a duration, reporting the exact integer
// seconds remaining on each tick and firing the expiry callback exactly
// once when it reaches zero. Starting while running re-arms: the
// previous run is stopped and never fires again.
type Countdown struct {
	mu        sync.Mutex
	interval  time.Duration
	remaining int
	running   bool
	gen       uint64
}

// New returns a stopped countdown.
func New(opts ...Option) *Countdown {
	c := &Countdown{interval: time.Second}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start arms the countdown with the given duration. onTick receives the
// remaining seconds after each tick; onExpire fires once when remaining
// reaches zero. Either callback may be nil. A non-positive duration
// expires on the first tick.
func (c *Countdown) Start(seconds int, onTick func(remaining int), onExpire func()) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.remaining = seconds
	c.running = true
	c.mu.Unlock()

	go c.run(gen, onTick, onExpire)
}

// Stop halts the countdown before expiry, suppressing onExpire.
// Stopping an already-stopped countdown is a no-op.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.running = false
}

// Remaining returns the current remaining seconds.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Running reports whether the countdown is armed and ticking.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Countdown) run(gen uint64, onTick func(int), onExpire func()) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		if !c.running || c.gen != gen {
			c.mu.Unlock()
			return
		}
		c.remaining--
		remaining := c.remaining
		expired := remaining <= 0
		if expired {
			c.remaining = 0
			c.running = false
			remaining = 0
		}
		c.mu.Unlock()

		if onTick != nil {
			onTick(remaining)
		}
		if expired {
			if onExpire != nil {
				onExpire()
			}
			return
		}
	}
}
