package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	done := func() {
		_ = client.Close()
		mr.Close()
	}
	return New(client, cfg), mr, done
}

func signInConfig() Config {
	return Config{
		EnableSignInThrottle: true,
		EnableIPThrottle:     true,
		MaxSignInAttempts:    3,
		SignInCooldown:       time.Minute,
	}
}

func TestSignInWithinBudget(t *testing.T) {
	limiter, _, done := newTestLimiter(t, signInConfig())
	defer done()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := limiter.CheckSignIn(ctx, "alice", "10.0.0.1"); err != nil {
			t.Fatalf("check %d failed: %v", i+1, err)
		}
		if err := limiter.IncrementSignIn(ctx, "alice", "10.0.0.1"); err != nil {
			t.Fatalf("increment %d failed: %v", i+1, err)
		}
	}
}

func TestSignInBudgetExhausted(t *testing.T) {
	limiter, _, done := newTestLimiter(t, signInConfig())
	defer done()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_ = limiter.IncrementSignIn(ctx, "alice", "10.0.0.1")
	}

	// The increment crossing the budget reports the limit.
	if err := limiter.IncrementSignIn(ctx, "alice", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := limiter.CheckSignIn(ctx, "alice", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on check, got %v", err)
	}

	// A different identifier from the same IP shares the IP budget.
	if err := limiter.CheckSignIn(ctx, "bob", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited for shared IP, got %v", err)
	}
	// A different identifier from a different IP is unaffected.
	if err := limiter.CheckSignIn(ctx, "bob", "10.0.0.2"); err != nil {
		t.Fatalf("expected clean budget for other identifier/IP, got %v", err)
	}
}

func TestSignInResetClearsCounters(t *testing.T) {
	limiter, _, done := newTestLimiter(t, signInConfig())
	defer done()

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_ = limiter.IncrementSignIn(ctx, "alice", "10.0.0.1")
	}
	if err := limiter.CheckSignIn(ctx, "alice", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited before reset, got %v", err)
	}

	if err := limiter.ResetSignIn(ctx, "alice", "10.0.0.1"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if err := limiter.CheckSignIn(ctx, "alice", "10.0.0.1"); err != nil {
		t.Fatalf("expected clean budget after reset, got %v", err)
	}

	attempts, err := limiter.SignInAttempts(ctx, "alice")
	if err != nil {
		t.Fatalf("attempts failed: %v", err)
	}
	if attempts != 0 {
		t.Fatalf("expected zero attempts after reset, got %d", attempts)
	}
}

func TestSignInWindowExpires(t *testing.T) {
	limiter, mr, done := newTestLimiter(t, signInConfig())
	defer done()

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_ = limiter.IncrementSignIn(ctx, "alice", "")
	}
	if err := limiter.CheckSignIn(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if err := limiter.CheckSignIn(ctx, "alice", ""); err != nil {
		t.Fatalf("expected clean budget after window expiry, got %v", err)
	}
}

func TestRefreshBudget(t *testing.T) {
	limiter, mr, done := newTestLimiter(t, Config{
		EnableRefreshThrottle: true,
		MaxRefreshAttempts:    2,
		RefreshCooldown:       time.Minute,
	})
	defer done()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := limiter.CheckRefresh(ctx, "acct-1"); err != nil {
			t.Fatalf("refresh %d failed: %v", i+1, err)
		}
	}
	if err := limiter.CheckRefresh(ctx, "acct-1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	// Other accounts keep their own budget.
	if err := limiter.CheckRefresh(ctx, "acct-2"); err != nil {
		t.Fatalf("expected clean budget for other account, got %v", err)
	}

	mr.FastForward(2 * time.Minute)
	if err := limiter.CheckRefresh(ctx, "acct-1"); err != nil {
		t.Fatalf("expected clean budget after cooldown, got %v", err)
	}
}

func TestDisabledThrottlesAreNoOps(t *testing.T) {
	// Nil client: every call must short-circuit before touching Redis.
	limiter := New(nil, Config{})

	ctx := context.Background()
	if err := limiter.CheckSignIn(ctx, "alice", "10.0.0.1"); err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if err := limiter.IncrementSignIn(ctx, "alice", "10.0.0.1"); err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if err := limiter.ResetSignIn(ctx, "alice", "10.0.0.1"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if err := limiter.CheckRefresh(ctx, "acct-1"); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	attempts, err := limiter.SignInAttempts(ctx, "alice")
	if err != nil || attempts != 0 {
		t.Fatalf("expected zero attempts, got %d (%v)", attempts, err)
	}
}

func TestRedisOutageIsClassified(t *testing.T) {
	limiter, mr, done := newTestLimiter(t, signInConfig())
	defer done()

	mr.Close()

	err := limiter.IncrementSignIn(context.Background(), "alice", "10.0.0.1")
	if !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if errors.Is(err, ErrRateLimited) {
		t.Fatal("an outage must not look like a rate limit")
	}
}
