package storyline

import (
	"testing"
	"time"
)

func TestWriteLimiterBlocksAfterBurst(t *testing.T) {
	limiter := NewWriteLimiter(2, time.Minute)
	ip := "203.0.113.10"

	if !limiter.Allow(ip) {
		t.Fatalf("expected first request to be allowed")
	}
	if !limiter.Allow(ip) {
		t.Fatalf("expected second request to be allowed")
	}
	if limiter.Allow(ip) {
		t.Fatalf("expected third request to be blocked")
	}
}

func TestWriteLimiterRefills(t *testing.T) {
	limiter := NewWriteLimiter(60, time.Minute)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ip := "203.0.113.20"

	for i := 0; i < 60; i++ {
		if !limiter.Allow(ip) {
			t.Fatalf("request %d should fit in the burst", i)
		}
	}
	if limiter.Allow(ip) {
		t.Fatalf("expected request beyond burst to be blocked")
	}

	now = now.Add(time.Second)
	if !limiter.Allow(ip) {
		t.Fatalf("expected a token after one second")
	}
}

func TestWriteLimiterIsPerIP(t *testing.T) {
	limiter := NewWriteLimiter(1, time.Minute)

	if !limiter.Allow("203.0.113.30") {
		t.Fatalf("expected first ip to be allowed")
	}
	if !limiter.Allow("203.0.113.31") {
		t.Fatalf("expected second ip to be allowed independently")
	}
	if limiter.Allow("203.0.113.30") {
		t.Fatalf("expected first ip to be blocked after max")
	}
}

func TestWriteLimiterCleanup(t *testing.T) {
	limiter := NewWriteLimiter(5, time.Minute)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	limiter.Allow("203.0.113.40")
	now = now.Add(30 * time.Second)
	limiter.Allow("203.0.113.41")

	now = now.Add(45 * time.Second)
	limiter.Cleanup()
	if got := limiter.size(); got != 1 {
		t.Fatalf("expected 1 tracked client after cleanup, got %d", got)
	}
}
