// Package idle provides the inactivity deadline that ends a client session.
package idle

import (
	"sync"
	"time"
)

// DefaultInterval is how long a session may sit without activity.
const DefaultInterval = 120 * time.Second

// Timer is a single resettable deadline. When it elapses without a Reset
// or Cancel since it was armed, the expiry callback runs exactly once and
// the timer goes inert until Start is called again.
type Timer struct {
	mu       sync.Mutex
	interval time.Duration
	deadline time.Time
	timer    *time.Timer
	gen      uint64
	armed    bool
	fired    bool
	done     chan struct{}
	onExpire func()
}

// New creates an unarmed timer. onExpire may be nil.
func New(onExpire func()) *Timer {
	return &Timer{
		done:     make(chan struct{}),
		onExpire: onExpire,
	}
}

// Start arms the timer with interval, discarding any previous deadline.
// A non-positive interval leaves the timer disarmed.
func (t *Timer) Start(interval time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.interval = interval
	if t.fired {
		t.fired = false
		t.done = make(chan struct{})
	}
	if interval <= 0 {
		return
	}
	t.armLocked()
}

// Reset pushes the deadline to interval from now. No-op when the timer is
// not armed, including after it has fired.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.armed || t.fired {
		return
	}
	t.stopLocked()
	t.armLocked()
}

// Cancel disarms the timer without running the callback.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// Done is closed when the timer fires. Start after a fire hands out a new channel.
func (t *Timer) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Fired reports whether the deadline elapsed since the last Start.
func (t *Timer) Fired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}

// Armed reports whether a deadline is pending.
func (t *Timer) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed
}

// Interval returns the interval given to the last Start.
func (t *Timer) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interval
}

// Remaining returns the time left before the deadline, or 0 when disarmed.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.armed {
		return 0
	}
	if left := time.Until(t.deadline); left > 0 {
		return left
	}
	return 0
}

func (t *Timer) armLocked() {
	t.gen++
	gen := t.gen
	t.armed = true
	t.deadline = time.Now().Add(t.interval)
	t.timer = time.AfterFunc(t.interval, func() { t.expire(gen) })
}

// stopLocked also bumps the generation so a callback already in flight
// sees it is stale.
func (t *Timer) stopLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.armed = false
	t.gen++
}

func (t *Timer) expire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || !t.armed || t.fired {
		t.mu.Unlock()
		return
	}
	t.fired = true
	t.armed = false
	t.timer = nil
	close(t.done)
	cb := t.onExpire
	t.mu.Unlock()

	if cb != nil {
		cb()
	}
}
