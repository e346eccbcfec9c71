package timer

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const testInterval = 5 * time.Millisecond

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestCountdown_TicksDownToExpiry(t *testing.T) {
	c := New(WithInterval(testInterval))

	var mu sync.Mutex
	var ticks []int
	var expired atomic.Int32

	c.Start(3, func(remaining int) {
		mu.Lock()
		ticks = append(ticks, remaining)
		mu.Unlock()
	}, func() {
		expired.Add(1)
	})

	waitFor(t, func() bool { return expired.Load() == 1 })

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{2, 1, 0}, ticks)
	assert.False(t, c.Running())
	assert.Equal(t, 0, c.Remaining())
}

func TestCountdown_ExpireFiresExactlyOnce(t *testing.T) {
	c := New(WithInterval(testInterval))
	var expired atomic.Int32

	c.Start(1, nil, func() { expired.Add(1) })
	waitFor(t, func() bool { return !c.Running() })

	// Give a stale goroutine a chance to misfire.
	time.Sleep(10 * testInterval)
	assert.Equal(t, int32(1), expired.Load())
}

func TestCountdown_StopSuppressesExpiry(t *testing.T) {
	c := New(WithInterval(testInterval))
	var expired atomic.Int32

	c.Start(1000, nil, func() { expired.Add(1) })
	c.Stop()

	time.Sleep(10 * testInterval)
	assert.Equal(t, int32(0), expired.Load())
	assert.False(t, c.Running())
}

func TestCountdown_RearmStopsPreviousRun(t *testing.T) {
	c := New(WithInterval(testInterval))
	var firstExpired, secondExpired atomic.Int32

	// Preparation phase re-armed into a response phase.
	c.Start(1000, nil, func() { firstExpired.Add(1) })
	c.Start(2, nil, func() { secondExpired.Add(1) })

	waitFor(t, func() bool { return secondExpired.Load() == 1 })
	time.Sleep(10 * testInterval)

	assert.Equal(t, int32(0), firstExpired.Load(), "re-armed run must silence the previous one")
	assert.Equal(t, int32(1), secondExpired.Load())
}

func TestCountdown_NonPositiveDurationExpiresImmediately(t *testing.T) {
	c := New(WithInterval(testInterval))
	var expired atomic.Int32

	c.Start(0, nil, func() { expired.Add(1) })
	waitFor(t, func() bool { return expired.Load() == 1 })
	assert.Equal(t, 0, c.Remaining())
}
