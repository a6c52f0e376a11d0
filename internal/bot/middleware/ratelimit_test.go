package middleware

import (
	"testing"
	"time"
)

func TestRateLimiterPerUser(t *testing.T) {
	rl := NewRateLimiter(3, time.Hour)
	defer rl.Close()

	for i := 0; i < 3; i++ {
		if !rl.Allow(1) {
			t.Fatalf("request %d denied", i)
		}
	}
	if rl.Allow(1) {
		t.Fatal("fourth request allowed")
	}
	if !rl.Allow(2) {
		t.Fatal("other user limited")
	}
}

func TestRateLimiterEvictsIdle(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Close()

	rl.Allow(1)
	rl.evictIdle(time.Now().Add(2 * time.Minute))
	if rl.Len() != 0 {
		t.Fatalf("len = %d after eviction", rl.Len())
	}
	if !rl.Allow(1) {
		t.Fatal("evicted user starts limited")
	}
}
