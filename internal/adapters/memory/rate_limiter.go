package memory

import (
	"context"
	"sync"
	"time"

	"CasaBid/internal/core/ports"
)

// RateLimiter is a fixed-window counter per key. Expired windows are swept
// at most once per window length, so idle keys do not accumulate.
type RateLimiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	windows   map[string]*window
	lastSweep time.Time
	now       func() time.Time
}

type window struct {
	start time.Time
	count int
}

var _ ports.RateLimiter = (*RateLimiter)(nil)

func NewRateLimiter(limit int, per time.Duration) *RateLimiter {
	return &RateLimiter{limit: limit, window: per, windows: make(map[string]*window), now: time.Now}
}

func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	w, ok := l.windows[key]
	if !ok || l.expired(w, now) {
		w = &window{start: now}
		l.windows[key] = w
	}
	w.count++
	if w.count > l.limit {
		return false, w.start.Add(l.window).Sub(now), nil
	}
	return true, 0, nil
}

func (l *RateLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for key, w := range l.windows {
		if l.expired(w, now) {
			delete(l.windows, key)
		}
	}
}

func (l *RateLimiter) expired(w *window, now time.Time) bool {
	return now.Sub(w.start) >= l.window
}
