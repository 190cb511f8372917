package oroauth

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/oroscan/oroauth/password"
	"github.com/redis/go-redis/v9"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeStore struct {
	mu         sync.Mutex
	users      []UserRecord
	err        error
	emailCalls int
	textCalls  int
	updated    map[string]string
}

func (s *fakeStore) FindByEmail(_ context.Context, email string) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emailCalls++
	if s.err != nil {
		return UserRecord{}, s.err
	}
	for _, u := range s.users {
		if u.Email != "" && strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return UserRecord{}, ErrUserNotFound
}

func (s *fakeStore) FindByUsernameOrEmail(_ context.Context, text string) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.textCalls++
	if s.err != nil {
		return UserRecord{}, s.err
	}
	for _, u := range s.users {
		if strings.EqualFold(u.Username, text) {
			return u, nil
		}
	}
	for _, u := range s.users {
		if u.Email != "" && strings.EqualFold(u.Email, text) {
			return u, nil
		}
	}
	return UserRecord{}, ErrUserNotFound
}

func (s *fakeStore) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updated == nil {
		s.updated = map[string]string{}
	}
	s.updated[userID] = hash
	for i := range s.users {
		if s.users[i].ID == userID {
			s.users[i].PasswordHash = hash
		}
	}
	return nil
}

func (s *fakeStore) calls() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emailCalls, s.textCalls
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = testSecret
	cfg.Password.BcryptCost = 4
	cfg.Environment = EnvTest
	return cfg
}

func hashFor(t testing.TB, plain string) string {
	t.Helper()
	b, err := password.NewBcrypt(4)
	if err != nil {
		t.Fatalf("new bcrypt: %v", err)
	}
	h, err := b.Hash(plain)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return h
}

func demoStore(t testing.TB) *fakeStore {
	t.Helper()
	return &fakeStore{users: []UserRecord{
		{ID: "1", Email: "demo@example.com", Username: "demo", PasswordHash: hashFor(t, "demo123"), DisplayName: "Demo User"},
		{ID: "2", Username: "nomail", PasswordHash: hashFor(t, "secret")},
	}}
}

type engineOptions struct {
	mutate func(*Config)
	store  IdentityStore
	redis  redis.UniversalClient
	sink   AuditSink
	logger *slog.Logger
}

func newTestEngine(t *testing.T, clock *testClock, opts engineOptions) *Engine {
	t.Helper()
	cfg := testConfig()
	if opts.mutate != nil {
		opts.mutate(&cfg)
	}
	store := opts.store
	if store == nil {
		store = demoStore(t)
	}
	b := New().WithConfig(cfg).WithIdentityStore(store).WithClock(clock.Now)
	if opts.redis != nil {
		b = b.WithRedis(opts.redis)
	}
	if opts.sink != nil {
		b = b.WithAuditSink(opts.sink)
	}
	if opts.logger != nil {
		b = b.WithLogger(opts.logger)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func newBufferLogger(level slog.Level) (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: level})), &buf
}

func requireAuthKind(t *testing.T, err error, want AuthErrorKind) *AuthError {
	t.Helper()
	ae, ok := AsAuthError(err)
	if !ok {
		t.Fatalf("expected *AuthError of kind %s, got %v", want, err)
	}
	if ae.Kind != want {
		t.Fatalf("kind = %s, want %s", ae.Kind, want)
	}
	return ae
}

var errStoreDown = errors.New("connection refused")
