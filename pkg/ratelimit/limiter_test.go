package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestWaitConsumesTokens(t *testing.T) {
	limiter := NewRateLimiter(10, 2)

	// Полное ведро: два запроса проходят без ожидания
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	for i := 0; i < 2; i++ {
		if err := limiter.Wait(ctx); err != nil {
			t.Fatalf("Wait #%d: %v", i+1, err)
		}
	}

	if tokens := limiter.Tokens(); tokens >= 1 {
		t.Errorf("tokens = %v, want < 1 after draining burst", tokens)
	}
}

func TestWaitRespectsContextCancel(t *testing.T) {
	limiter := NewRateLimiter(0.1, 1) // медленное пополнение

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("first Wait: %v", err)
	}
	if err := limiter.Wait(ctx); err == nil {
		t.Fatal("second Wait: expected context error on empty bucket")
	}
}

func TestRefillCapsAtBurst(t *testing.T) {
	limiter := NewRateLimiter(1000, 5)

	time.Sleep(20 * time.Millisecond)

	if tokens := limiter.Tokens(); tokens > 5 {
		t.Errorf("tokens = %v, want <= burst 5", tokens)
	}
}

func TestNewRateLimiterDefaults(t *testing.T) {
	limiter := NewRateLimiter(0, 0)
	if limiter.rate != 10 {
		t.Errorf("rate = %v, want default 10", limiter.rate)
	}
	if limiter.burst != 20 {
		t.Errorf("burst = %v, want default 20", limiter.burst)
	}

	// burst ниже rate поднимается до rate
	limiter = NewRateLimiter(10, 3)
	if limiter.burst != 10 {
		t.Errorf("burst = %v, want 10", limiter.burst)
	}
}
