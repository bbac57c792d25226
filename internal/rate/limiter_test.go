package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiterTest(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return New(rdb, cfg), mr
}

func TestLimiterBlocksAfterMaxAttempts(t *testing.T) {
	l, _ := newLimiterTest(t, Config{MaxAttempts: 3, Cooldown: time.Minute})
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		if err := l.CheckLogin(ctx, "user:alice", ""); err != nil {
			t.Fatalf("attempt %d should be allowed: %v", i, err)
		}
		if err := l.IncrementLogin(ctx, "user:alice", ""); err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
	}
	if err := l.IncrementLogin(ctx, "user:alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("third failure should exhaust the budget, got %v", err)
	}
	if err := l.CheckLogin(ctx, "user:alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.CheckLogin(ctx, "user:bob", ""); err != nil {
		t.Fatalf("other identifiers must not be throttled: %v", err)
	}
}

func TestLimiterWindowExpires(t *testing.T) {
	l, mr := newLimiterTest(t, Config{MaxAttempts: 1, Cooldown: time.Minute})
	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "user:alice", "")
	if err := l.CheckLogin(ctx, "user:alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	mr.FastForward(time.Minute + time.Second)
	if err := l.CheckLogin(ctx, "user:alice", ""); err != nil {
		t.Fatalf("window should have expired: %v", err)
	}
}

func TestLimiterResetClearsIdentifier(t *testing.T) {
	l, _ := newLimiterTest(t, Config{MaxAttempts: 5, Cooldown: time.Minute})
	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "user:alice", "")
	_ = l.IncrementLogin(ctx, "user:alice", "")
	if n, err := l.Attempts(ctx, "user:alice"); err != nil || n != 2 {
		t.Fatalf("expected 2 attempts, got %d err=%v", n, err)
	}
	if err := l.ResetLogin(ctx, "user:alice"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n, _ := l.Attempts(ctx, "user:alice"); n != 0 {
		t.Fatalf("expected 0 attempts after reset, got %d", n)
	}
}

func TestLimiterIPThrottle(t *testing.T) {
	l, _ := newLimiterTest(t, Config{MaxAttempts: 2, Cooldown: time.Minute, EnableIPThrottle: true})
	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "user:alice", "10.0.0.1")
	_ = l.IncrementLogin(ctx, "user:bob", "10.0.0.1")

	if err := l.CheckLogin(ctx, "user:carol", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected IP to be throttled, got %v", err)
	}
	if err := l.CheckLogin(ctx, "user:carol", "10.0.0.2"); err != nil {
		t.Fatalf("other IPs must not be throttled: %v", err)
	}
}

func TestLimiterRedisUnavailable(t *testing.T) {
	l, mr := newLimiterTest(t, Config{MaxAttempts: 2, Cooldown: time.Minute})
	mr.Close()

	if err := l.CheckLogin(context.Background(), "user:alice", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if err := l.IncrementLogin(context.Background(), "user:alice", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
