package lineserver

import (
	"sync"
	"time"

	"github.com/lawnchairsociety/sockclient/internal/config"
)

// Throttle limits how many requests one IP may make inside a sliding
// window. It covers every transport, so a TCP client that opens a fresh
// connection per message is still counted as one source.
type Throttle struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	requests    map[string][]time.Time
	lastSweep   time.Time
}

// NewThrottle creates a throttle; MaxRequests of 0 disables it.
func NewThrottle(cfg config.RateLimitConfig) *Throttle {
	return &Throttle{
		maxRequests: cfg.MaxRequests,
		window:      time.Duration(cfg.WindowSeconds) * time.Second,
		requests:    make(map[string][]time.Time),
	}
}

// Allow records a request from ip at now. When the window is full it
// returns false and how long until the oldest request ages out.
func (t *Throttle) Allow(ip string, now time.Time) (bool, time.Duration) {
	if t.maxRequests <= 0 || t.window <= 0 {
		return true, 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if now.Sub(t.lastSweep) >= t.window {
		t.sweep(now)
	}

	times := prune(t.requests[ip], now.Add(-t.window))
	if len(times) >= t.maxRequests {
		t.requests[ip] = times
		return false, times[0].Add(t.window).Sub(now)
	}

	t.requests[ip] = append(times, now)
	return true, 0
}

// Tracked returns how many IPs currently hold requests in the window.
func (t *Throttle) Tracked() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.requests)
}

// sweep drops IPs whose requests have all aged out.
func (t *Throttle) sweep(now time.Time) {
	cutoff := now.Add(-t.window)
	for ip, times := range t.requests {
		if times = prune(times, cutoff); len(times) == 0 {
			delete(t.requests, ip)
		} else {
			t.requests[ip] = times
		}
	}
	t.lastSweep = now
}

func prune(times []time.Time, cutoff time.Time) []time.Time {
	kept := times[:0]
	for _, at := range times {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	return kept
}
