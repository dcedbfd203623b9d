package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAfter is the time left until the key's window rolls over.
	ResetAfter time.Duration
}

type windowCounter struct {
	start time.Time
	used  int
}

// Window is an in-memory fixed-window counter keyed by identity. Each key's
// window starts at its first request and lasts for the configured duration.
//
// It is safe for concurrent use.
type Window struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	counters map[string]*windowCounter
	now      func() time.Time
}

// NewWindow creates a limiter admitting limit requests per key per window.
func NewWindow(limit int, window time.Duration) *Window {
	if window <= 0 {
		window = time.Second
	}
	return &Window{
		limit:    limit,
		window:   window,
		counters: make(map[string]*windowCounter),
		now:      time.Now,
	}
}

// Allow counts one request against key.
func (w *Window) Allow(key string) Decision {
	now := w.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	c := w.counters[key]
	if c == nil || now.Sub(c.start) >= w.window {
		c = &windowCounter{start: now}
		w.counters[key] = c
	}

	allowed := c.used < w.limit
	if allowed {
		c.used++
	}

	resetAfter := c.start.Add(w.window).Sub(now)
	if resetAfter < 0 {
		resetAfter = 0
	}
	return Decision{
		Allowed:    allowed,
		Limit:      w.limit,
		Remaining:  max(0, w.limit-c.used),
		ResetAfter: resetAfter,
	}
}

// Sweep drops counters whose window has elapsed and returns how many were
// removed.
func (w *Window) Sweep() int {
	now := w.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	removed := 0
	for k, c := range w.counters {
		if now.Sub(c.start) >= w.window {
			delete(w.counters, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.counters)
}

// RunSweeper evicts expired counters every interval until ctx is done.
func (w *Window) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep()
		}
	}
}
