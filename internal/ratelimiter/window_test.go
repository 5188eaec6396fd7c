package ratelimiter_test

import (
	"sync"
	"testing"
	"time"

	"github.com/esperanza/donation-gateway/internal/ratelimiter"
)

func TestSourceLimiter_ExactlyMaxWithinWindow(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	l := ratelimiter.NewWithClock(5, time.Hour, func() time.Time { return now })

	for i := 0; i < 5; i++ {
		allowed, remaining := l.Allow("203.0.113.7")
		if !allowed {
			t.Fatalf("attempt %d: expected allowed", i+1)
		}
		if remaining != 5-(i+1) {
			t.Fatalf("attempt %d: remaining=%d, want %d", i+1, remaining, 5-(i+1))
		}
	}

	allowed, remaining := l.Allow("203.0.113.7")
	if allowed {
		t.Fatal("attempt 6 within the window must be denied")
	}
	if remaining != 0 {
		t.Fatalf("denied attempt: remaining=%d, want 0", remaining)
	}
}

func TestSourceLimiter_WindowExpiryResets(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	l := ratelimiter.NewWithClock(5, time.Hour, func() time.Time { return now })

	for i := 0; i < 5; i++ {
		l.Allow("198.51.100.2")
	}
	if allowed, _ := l.Allow("198.51.100.2"); allowed {
		t.Fatal("expected denial once the window is exhausted")
	}

	now = now.Add(time.Hour + time.Second)

	allowed, remaining := l.Allow("198.51.100.2")
	if !allowed {
		t.Fatal("expected a fresh allowance after window expiry")
	}
	if remaining != 4 {
		t.Fatalf("fresh window: remaining=%d, want 4", remaining)
	}
}

func TestSourceLimiter_SourcesAreIndependent(t *testing.T) {
	l := ratelimiter.New(1, time.Hour)

	if allowed, _ := l.Allow("a"); !allowed {
		t.Fatal("first source must be allowed")
	}
	if allowed, _ := l.Allow("a"); allowed {
		t.Fatal("first source must now be exhausted")
	}
	if allowed, _ := l.Allow("b"); !allowed {
		t.Fatal("second source must have its own window")
	}
}

func TestSourceLimiter_NoLostUpdatesUnderConcurrency(t *testing.T) {
	const max = 50
	l := ratelimiter.New(max, time.Hour)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowedCount := 0

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if allowed, _ := l.Allow("same-source"); allowed {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowedCount != max {
		t.Fatalf("allowed %d concurrent attempts, want exactly %d", allowedCount, max)
	}
}

func TestSourceLimiter_PruneDropsExpired(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	l := ratelimiter.NewWithClock(5, time.Hour, func() time.Time { return now })

	l.Allow("old")
	now = now.Add(2 * time.Hour)
	l.Prune()

	// The pruned source starts a fresh window.
	allowed, remaining := l.Allow("old")
	if !allowed || remaining != 4 {
		t.Fatalf("after prune: allowed=%v remaining=%d, want fresh window", allowed, remaining)
	}
}
