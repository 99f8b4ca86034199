package gateway

import (
	"testing"
	"time"
)

func TestRateLimiter_Burst(t *testing.T) {
	limiter := newRateLimiter(3, 1)

	for i := 0; i < 3; i++ {
		if !limiter.allow() {
			t.Fatalf("allow() = false on request %d within burst", i)
		}
	}
	if limiter.allow() {
		t.Error("allow() = true after burst exhausted")
	}
}

func TestRateLimiter_Refill(t *testing.T) {
	limiter := newRateLimiter(1, 10)

	if !limiter.allow() {
		t.Fatal("allow() = false on first request")
	}
	if limiter.allow() {
		t.Fatal("allow() = true with empty bucket")
	}

	// Refill is computed from elapsed whole seconds
	limiter.lastRefill = time.Now().Add(-time.Second)
	if !limiter.allow() {
		t.Error("allow() = false after refill interval")
	}
}

func TestRateLimiter_CapsAtMax(t *testing.T) {
	limiter := newRateLimiter(2, 100)
	limiter.lastRefill = time.Now().Add(-time.Minute)

	allowed := 0
	for i := 0; i < 10; i++ {
		if limiter.allow() {
			allowed++
		}
	}
	if allowed != 2 {
		t.Errorf("allowed %d requests after long idle, want 2", allowed)
	}
}
