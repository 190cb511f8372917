package oroauth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"
)

func login(t *testing.T, engine *Engine) *Session {
	t.Helper()
	sess, err := engine.Authenticate(context.Background(), Credentials{Identifier: "demo@example.com", Password: "demo123"})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	return sess
}

func TestValidateRoundTrip(t *testing.T) {
	engine := newTestEngine(t, newTestClock(), engineOptions{})
	issued := login(t, engine)

	got, err := engine.Validate(context.Background(), issued.Token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got.UserID != issued.UserID || got.Username != issued.Username || !got.IsValid {
		t.Fatalf("round trip mismatch: issued %+v got %+v", issued, got)
	}
	if !got.IssuedAt.Equal(issued.IssuedAt) || !got.ExpiresAt.Equal(issued.ExpiresAt) || got.TokenID != issued.TokenID {
		t.Fatalf("timestamps or id differ: issued %+v got %+v", issued, got)
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	engine := newTestEngine(t, newTestClock(), engineOptions{})
	token := login(t, engine).Token

	for i := 0; i < 3; i++ {
		if _, err := engine.Validate(context.Background(), token); err != nil {
			t.Fatalf("validate #%d: %v", i, err)
		}
	}
}

func TestValidateRejectsTamperedSignature(t *testing.T) {
	engine := newTestEngine(t, newTestClock(), engineOptions{})
	token := login(t, engine).Token

	sigStart := strings.LastIndex(token, ".") + 1
	b := []byte(token)
	if b[sigStart] == 'A' {
		b[sigStart] = 'B'
	} else {
		b[sigStart] = 'A'
	}

	sess, err := engine.Validate(context.Background(), string(b))
	if !errors.Is(err, ErrSessionInvalid) || sess != nil {
		t.Fatalf("expected invalid session, got sess=%v err=%v", sess, err)
	}
}

func TestValidateRejectsEverySingleCharacterMutation(t *testing.T) {
	engine := newTestEngine(t, newTestClock(), engineOptions{})
	token := login(t, engine).Token

	// Skip the last character of each segment: its trailing bits may be padding.
	segmentEnds := map[int]bool{len(token) - 1: true}
	for i, c := range token {
		if c == '.' {
			segmentEnds[i-1] = true
		}
	}

	for i := 0; i < len(token); i++ {
		if token[i] == '.' || segmentEnds[i] {
			continue
		}
		b := []byte(token)
		if b[i] == 'x' {
			b[i] = 'y'
		} else {
			b[i] = 'x'
		}
		if _, err := engine.Validate(context.Background(), string(b)); !errors.Is(err, ErrSessionInvalid) {
			t.Fatalf("mutation at %d accepted", i)
		}
	}
}

func TestValidateFailuresAreUndifferentiated(t *testing.T) {
	clock := newTestClock()
	engine := newTestEngine(t, clock, engineOptions{})
	token := login(t, engine).Token

	other := newTestEngine(t, clock, engineOptions{mutate: func(c *Config) {
		c.JWT.PrivateKey = []byte("ffffffffffffffffffffffffffffffff")
	}})
	foreign := login(t, other).Token

	inputs := map[string]string{
		"empty":     "",
		"garbage":   "not-a-token",
		"two parts": "a.b",
		"foreign":   foreign,
	}
	for name, input := range inputs {
		_, err := engine.Validate(context.Background(), input)
		if err != ErrSessionInvalid {
			t.Fatalf("%s: expected exactly ErrSessionInvalid, got %v", name, err)
		}
	}

	clock.Advance(9 * time.Hour)
	if _, err := engine.Validate(context.Background(), token); err != ErrSessionInvalid {
		t.Fatalf("expired: expected exactly ErrSessionInvalid, got %v", err)
	}
}

func TestValidateExpiryBoundary(t *testing.T) {
	clock := newTestClock()
	engine := newTestEngine(t, clock, engineOptions{})
	sess := login(t, engine)

	clock.Set(sess.ExpiresAt.Add(-time.Nanosecond))
	if _, err := engine.Validate(context.Background(), sess.Token); err != nil {
		t.Fatalf("expected valid 1ns before expiry: %v", err)
	}

	clock.Set(sess.ExpiresAt)
	if _, err := engine.Validate(context.Background(), sess.Token); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected invalid at exactly expiry, got %v", err)
	}
}

func TestValidateHonoursConfiguredTTL(t *testing.T) {
	clock := newTestClock()
	engine := newTestEngine(t, clock, engineOptions{mutate: func(c *Config) {
		c.JWT.SessionTTL = 2 * time.Second
	}})
	sess := login(t, engine)
	if got := sess.ExpiresAt.Sub(sess.IssuedAt); got != 2*time.Second {
		t.Fatalf("ttl = %v, want 2s", got)
	}
}

func TestRequireSessionRedirectsWhenExpired(t *testing.T) {
	clock := newTestClock()
	engine := newTestEngine(t, clock, engineOptions{})
	sess := login(t, engine)

	ok, err := engine.RequireSession(context.Background(), sess.Token)
	if err != nil || ok.UserID != "1" {
		t.Fatalf("expected guard to pass before expiry, sess=%v err=%v", ok, err)
	}

	clock.Set(sess.ExpiresAt.Add(time.Second))
	got, err := engine.RequireSession(context.Background(), sess.Token)
	if got != nil {
		t.Fatal("expected no session on redirect")
	}
	redirect, isRedirect := AsRedirect(err)
	if !isRedirect {
		t.Fatalf("expected redirect signal, got %v", err)
	}
	if redirect.Location != "/" {
		t.Fatalf("redirect location = %q, want /", redirect.Location)
	}
	if !errors.Is(err, ErrSessionInvalid) {
		t.Fatal("redirect must unwrap to ErrSessionInvalid")
	}
}

func TestRequireSessionCustomLoginPath(t *testing.T) {
	engine := newTestEngine(t, newTestClock(), engineOptions{mutate: func(c *Config) {
		c.Guard.LoginPath = "/login"
	}})
	_, err := engine.RequireSession(context.Background(), "")
	redirect, ok := AsRedirect(err)
	if !ok || redirect.Location != "/login" {
		t.Fatalf("expected redirect to /login, got %v", err)
	}
	if got := engine.MetricsSnapshot().Counters[MetricGuardRedirect]; got != 1 {
		t.Fatalf("guard redirect metric = %d", got)
	}
}

func TestValidateDoesNotConsultStore(t *testing.T) {
	store := demoStore(t)
	engine := newTestEngine(t, newTestClock(), engineOptions{store: store})
	token := login(t, engine).Token
	emailBefore, textBefore := store.calls()

	if _, err := engine.Validate(context.Background(), token); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if e, u := store.calls(); e != emailBefore || u != textBefore {
		t.Fatal("validate must not touch the identity store")
	}
}

func TestValidateWithEd25519(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	engine := newTestEngine(t, newTestClock(), engineOptions{mutate: func(c *Config) {
		c.JWT.SigningMethod = "ed25519"
		c.JWT.PrivateKey = priv
		c.JWT.PublicKey = pub
	}})
	sess := login(t, engine)
	if _, err := engine.Validate(context.Background(), sess.Token); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateLatencyHistogram(t *testing.T) {
	engine := newTestEngine(t, newTestClock(), engineOptions{mutate: func(c *Config) {
		c.Metrics.EnableLatencyHistograms = true
	}})
	sess := login(t, engine)
	_, _ = engine.Validate(context.Background(), sess.Token)

	snap := engine.MetricsSnapshot()
	var total uint64
	for _, v := range snap.Histograms[MetricValidateLatency] {
		total += v
	}
	if total != 1 {
		t.Fatalf("expected 1 validate latency sample, got %d", total)
	}
}
