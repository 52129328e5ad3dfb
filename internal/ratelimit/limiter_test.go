package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "10.0.0.1"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
	if err := limiter.Wait(ctx, "10.0.0.2"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
}

func TestLimiter_WaitCancelled(t *testing.T) {
	limiter := NewLimiter(0.01, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_ = limiter.Wait(ctx, "k")
	if err := limiter.Wait(ctx, "k"); err == nil {
		t.Error("expected wait to fail once the bucket is empty and ctx expires")
	}
}

func TestLimiter_WaitWithDelay(t *testing.T) {
	limiter := NewLimiter(100, 1)

	start := time.Now()
	if err := limiter.WaitWithDelay(context.Background(), "k", 50*time.Millisecond); err != nil {
		t.Fatalf("WaitWithDelay failed: %v", err)
	}

	if d := time.Since(start); d < 50*time.Millisecond {
		t.Errorf("expected delay >= 50ms, got %v", d)
	}
}

func TestLimiter_RateLimit(t *testing.T) {
	limiter := NewLimiter(1, 1)

	if !limiter.Allow("10.0.0.1") {
		t.Errorf("first request should pass")
	}
	if limiter.Allow("10.0.0.1") {
		t.Errorf("expected allow to fail (exhausted tokens)")
	}
	if !limiter.Allow("10.0.0.2") {
		t.Errorf("expected allow for another key")
	}
	if limiter.Len() != 2 {
		t.Errorf("expected 2 tracked keys, got %d", limiter.Len())
	}
}

func TestWindowLimiter(t *testing.T) {
	limiter := NewWindowLimiter(20, 10*time.Minute)

	for i := 0; i < 20; i++ {
		if !limiter.Allow("client") {
			t.Fatalf("request %d should pass within the window budget", i+1)
		}
	}
	if limiter.Allow("client") {
		t.Error("request 21 should be rejected")
	}

	retry := limiter.RetryAfter("client")
	if retry <= 0 || retry > 30*time.Second+time.Second {
		t.Errorf("expected retry-after of about 30s, got %v", retry)
	}
	if limiter.Allow("client") {
		t.Error("RetryAfter must not consume a token")
	}
}

func TestLimiter_SetKeyRate(t *testing.T) {
	limiter := NewLimiter(10, 10)
	limiter.SetKeyRate("slow.com", 0.1, 1)

	if !limiter.Allow("slow.com") {
		t.Errorf("first request should pass")
	}
	if limiter.Allow("slow.com") {
		t.Errorf("second request should fail")
	}
	if !limiter.Allow("fast.com") {
		t.Errorf("other key should pass")
	}
}

func TestHostKey(t *testing.T) {
	host, err := HostKey("http://example.com:8080/api/verify")
	if err != nil {
		t.Fatalf("HostKey failed: %v", err)
	}
	if host != "example.com:8080" {
		t.Errorf("expected example.com:8080, got %s", host)
	}

	if _, err := HostKey("::invalid"); err == nil {
		t.Errorf("expected error for invalid URL")
	}
}
