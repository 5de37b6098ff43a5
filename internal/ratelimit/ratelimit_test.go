package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterAllowsBurstThenDenies(t *testing.T) {
	limiter := New(Config{
		RequestsPerMinute: 60,
		BurstSize:         5,
		CleanupInterval:   time.Minute,
	})
	defer limiter.Stop()

	key := "203.0.113.9"
	for i := 0; i < 5; i++ {
		if !limiter.Allow(key) {
			t.Errorf("request %d should be allowed (within burst)", i)
		}
	}
	if limiter.Allow(key) {
		t.Error("request after burst should be denied")
	}

	// 1 second at 60/min replenishes one token.
	time.Sleep(1100 * time.Millisecond)
	if !limiter.Allow(key) {
		t.Error("request after waiting should be allowed")
	}
}

func TestLimiterIsolatesClients(t *testing.T) {
	limiter := New(Config{
		RequestsPerMinute: 60,
		BurstSize:         3,
		CleanupInterval:   time.Minute,
	})
	defer limiter.Stop()

	for i := 0; i < 3; i++ {
		limiter.Allow("client-a")
	}
	if limiter.Allow("client-a") {
		t.Error("client A should be rate limited")
	}
	if !limiter.Allow("client-b") {
		t.Error("client B has its own bucket")
	}
}

func TestLimiterReplenishment(t *testing.T) {
	limiter := New(Config{
		RequestsPerMinute: 600, // 10 per second
		BurstSize:         1,
		CleanupInterval:   time.Minute,
	})
	defer limiter.Stop()

	key := "replenish"
	if !limiter.Allow(key) {
		t.Error("first request should be allowed")
	}
	if limiter.Allow(key) {
		t.Error("second immediate request should be denied")
	}

	time.Sleep(110 * time.Millisecond)
	if !limiter.Allow(key) {
		t.Error("request after replenishment window should be allowed")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.RequestsPerMinute != 60 {
		t.Errorf("RequestsPerMinute = %d, want 60", cfg.RequestsPerMinute)
	}
	if cfg.BurstSize != 10 {
		t.Errorf("BurstSize = %d, want 10", cfg.BurstSize)
	}
}
