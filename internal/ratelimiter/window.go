package ratelimiter

import (
	"sync"
	"time"
)

// record tracks attempts from one source inside the current window.
type record struct {
	count       int
	windowStart time.Time
}

// SourceLimiter bounds how many payment operations a network source may
// trigger per fixed window. State is process-local and mutex-guarded;
// concurrent increments from the same source never lose updates.
type SourceLimiter struct {
	mu      sync.Mutex
	records map[string]*record

	window time.Duration
	max    int
	now    func() time.Time
}

// New creates a SourceLimiter allowing max attempts per window per source.
func New(max int, window time.Duration) *SourceLimiter {
	return &SourceLimiter{
		records: make(map[string]*record),
		window:  window,
		max:     max,
		now:     time.Now,
	}
}

// NewWithClock is New with an injectable clock for tests.
func NewWithClock(max int, window time.Duration, now func() time.Time) *SourceLimiter {
	l := New(max, window)
	l.now = now
	return l
}

// Allow records one attempt from sourceID and reports whether it is within
// the limit, along with how many attempts remain in the current window.
//
// A window older than the configured length is reset rather than slid:
// the first attempt after expiry starts a fresh window with count 1.
func (l *SourceLimiter) Allow(sourceID string) (allowed bool, remaining int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec, ok := l.records[sourceID]
	if !ok || now.Sub(rec.windowStart) > l.window {
		l.records[sourceID] = &record{count: 1, windowStart: now}
		return true, l.max - 1
	}

	if rec.count < l.max {
		rec.count++
		return true, l.max - rec.count
	}
	return false, 0
}

// Prune drops records whose window has fully elapsed, bounding the map's
// growth over long uptimes. Safe to call from a background ticker.
func (l *SourceLimiter) Prune() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for id, rec := range l.records {
		if now.Sub(rec.windowStart) > l.window {
			delete(l.records, id)
		}
	}
}
