package handlers

import (
	"testing"
	"time"
)

func TestKeyedLimiter(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	limiter := newKeyedLimiter(2, time.Minute, func() time.Time { return now })

	if !limiter.Allow("10.0.0.1") || !limiter.Allow("10.0.0.1") {
		t.Fatalf("expected first two requests to pass")
	}
	if limiter.Allow("10.0.0.1") {
		t.Fatalf("expected third request in window to be rejected")
	}
	if !limiter.Allow("10.0.0.2") {
		t.Fatalf("expected other clients to have their own window")
	}

	now = now.Add(time.Minute + time.Second)
	if !limiter.Allow("10.0.0.1") {
		t.Fatalf("expected tokens to refill after a full window")
	}
}

func TestKeyedLimiter_BlankKeysShareBucket(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	limiter := newKeyedLimiter(1, time.Minute, func() time.Time { return now })

	if !limiter.Allow("") {
		t.Fatalf("expected first anonymous request to pass")
	}
	if limiter.Allow("  ") {
		t.Fatalf("expected blank keys to share the anonymous bucket")
	}
}

func TestNewKeyedLimiter_Disabled(t *testing.T) {
	if limiter := newKeyedLimiter(0, time.Minute, nil); limiter != nil {
		t.Fatalf("expected nil limiter when limit is zero")
	}
	if limiter := newKeyedLimiter(5, 0, nil); limiter != nil {
		t.Fatalf("expected nil limiter when window is zero")
	}
}
