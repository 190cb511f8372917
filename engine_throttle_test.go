package oroauth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func throttleEngine(t *testing.T, store IdentityStore) (*Engine, func()) {
	t.Helper()
	mr, rdb := newTestRedis(t)
	engine := newTestEngine(t, newTestClock(), engineOptions{redis: rdb, store: store, mutate: func(c *Config) {
		c.Throttle.Enabled = true
		c.Throttle.MaxAttempts = 3
		c.Throttle.Window = time.Minute
	}})
	return engine, mr.Close
}

func TestThrottleRefusesAfterRepeatedFailures(t *testing.T) {
	store := demoStore(t)
	engine, _ := throttleEngine(t, store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := engine.Authenticate(ctx, Credentials{Identifier: "demo", Password: "wrongpass"})
		requireAuthKind(t, err, KindInvalidPassword)
	}

	_, textBefore := store.calls()
	_, err := engine.Authenticate(ctx, Credentials{Identifier: "DEMO", Password: "demo123"})
	if !errors.Is(err, ErrLoginThrottled) {
		t.Fatalf("expected ErrLoginThrottled, got %v", err)
	}
	if _, ok := AsAuthError(err); ok {
		t.Fatal("throttling must not be reported as an AuthError kind")
	}
	if _, textAfter := store.calls(); textAfter != textBefore {
		t.Fatal("a throttled attempt must not reach the identity store")
	}
	if got := engine.MetricsSnapshot().Counters[MetricLoginThrottled]; got != 1 {
		t.Fatalf("throttled metric = %d", got)
	}
}

func TestThrottleCountsUnknownIdentifiers(t *testing.T) {
	engine, _ := throttleEngine(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := engine.Authenticate(ctx, Credentials{Identifier: "ghost@example.com", Password: "x"})
		requireAuthKind(t, err, KindUnknownIdentifier)
	}
	if _, err := engine.Authenticate(ctx, Credentials{Identifier: "ghost@example.com", Password: "x"}); !errors.Is(err, ErrLoginThrottled) {
		t.Fatalf("expected ErrLoginThrottled, got %v", err)
	}
}

func TestThrottleResetOnSuccess(t *testing.T) {
	engine, _ := throttleEngine(t, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _ = engine.Authenticate(ctx, Credentials{Identifier: "demo", Password: "wrongpass"})
	}
	if _, err := engine.Authenticate(ctx, Credentials{Identifier: "demo", Password: "demo123"}); err != nil {
		t.Fatalf("expected success under the limit: %v", err)
	}
	for i := 0; i < 2; i++ {
		_, _ = engine.Authenticate(ctx, Credentials{Identifier: "demo", Password: "wrongpass"})
	}
	if _, err := engine.Authenticate(ctx, Credentials{Identifier: "demo", Password: "demo123"}); err != nil {
		t.Fatalf("success should have reset the counter: %v", err)
	}
}

func TestThrottleMissingCredentialsNotCounted(t *testing.T) {
	engine, _ := throttleEngine(t, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := engine.Authenticate(ctx, Credentials{Identifier: "demo", Password: ""})
		requireAuthKind(t, err, KindMissingCredentials)
	}
	if _, err := engine.Authenticate(ctx, Credentials{Identifier: "demo", Password: "demo123"}); err != nil {
		t.Fatalf("blank submissions must not spend the budget: %v", err)
	}
}

func TestThrottleBackendDownRefuses(t *testing.T) {
	engine, stop := throttleEngine(t, nil)
	stop()

	_, err := engine.Authenticate(context.Background(), Credentials{Identifier: "demo", Password: "demo123"})
	if !errors.Is(err, ErrLoginThrottled) {
		t.Fatalf("expected ErrLoginThrottled with redis down, got %v", err)
	}
}

func TestThrottleRequiresRedis(t *testing.T) {
	cfg := testConfig()
	cfg.Throttle.Enabled = true
	if _, err := New().WithConfig(cfg).WithIdentityStore(demoStore(t)).Build(); err == nil {
		t.Fatal("expected build to fail without redis")
	}
}
