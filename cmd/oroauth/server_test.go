package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/oroscan/oroauth"
	"github.com/oroscan/oroauth/store/memstore"
)

func testEnvConfig() envConfig {
	return envConfig{
		Environment: oroauth.EnvTest,
		JWTSecret:   "server-test-secret-server-test-s",
		SessionTTL:  oroauth.DefaultConfig().JWT.SessionTTL,
		Issuer:      "oroauth",
		BcryptCost:  4,
		PasswordAlg: "bcrypt",
		LoginPath:   "/",
		CookieName:  "oroauth_session",
		RedisPrefix: "oro",
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, store accountStore) http.Handler {
	t.Helper()
	cfg := testEnvConfig()
	engine, err := buildEngine(cfg, &deps{store: store}, discardLogger())
	if err != nil {
		t.Fatalf("buildEngine: %v", err)
	}
	t.Cleanup(engine.Close)

	h, err := newServer(engine, discardLogger())
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}
	return h
}

func seededStore(t *testing.T) *memstore.Store {
	t.Helper()
	store := memstore.New()
	hasher, err := newHasher(testEnvConfig())
	if err != nil {
		t.Fatalf("newHasher: %v", err)
	}
	if _, err := seedUser(context.Background(), store, hasher, demoUser()); err != nil {
		t.Fatalf("seedUser: %v", err)
	}
	return store
}

func postJSON(h http.Handler, path string, body any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var out errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return out
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "oroauth_session" {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestLoginJSONSetsCookieAndHomeAccepts(t *testing.T) {
	h := newTestServer(t, seededStore(t))

	rec := postJSON(h, "/login", loginRequest{Identifier: "Demo@Example.com", Password: "demo123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body loginResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Username != "demo" {
		t.Fatalf("expected username demo, got %q", body.Username)
	}

	cookie := sessionCookie(t, rec)
	if !cookie.HttpOnly || !cookie.Secure || cookie.SameSite != http.SameSiteLaxMode {
		t.Fatalf("unexpected cookie attributes: %+v", cookie)
	}

	req := httptest.NewRequest(http.MethodGet, "/home", nil)
	req.AddCookie(cookie)
	home := httptest.NewRecorder()
	h.ServeHTTP(home, req)
	if home.Code != http.StatusOK || !strings.Contains(home.Body.String(), `"username":"demo"`) {
		t.Fatalf("unexpected home response %d %s", home.Code, home.Body.String())
	}
}

func TestLoginFormEncoded(t *testing.T) {
	h := newTestServer(t, seededStore(t))

	form := url.Values{"identifier": {"demo"}, "password": {"demo123"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLoginFailureKinds(t *testing.T) {
	h := newTestServer(t, seededStore(t))

	tests := []struct {
		name       string
		req        loginRequest
		wantStatus int
		wantKind   oroauth.AuthErrorKind
	}{
		{"wrong password", loginRequest{"demo", "wrongpass"}, http.StatusUnauthorized, oroauth.KindInvalidPassword},
		{"unknown email", loginRequest{"ghost@example.com", "x"}, http.StatusUnauthorized, oroauth.KindUnknownIdentifier},
		{"missing identifier", loginRequest{"   ", "demo123"}, http.StatusBadRequest, oroauth.KindMissingCredentials},
		{"missing password", loginRequest{"demo", ""}, http.StatusBadRequest, oroauth.KindMissingCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(h, "/login", tt.req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if got := decodeError(t, rec); got.Kind != string(tt.wantKind) || got.Message == "" {
				t.Fatalf("unexpected error body %+v", got)
			}
			if len(rec.Result().Cookies()) != 0 {
				t.Fatal("failed login must not set a cookie")
			}
		})
	}
}

func TestLoginMalformedJSON(t *testing.T) {
	h := newTestServer(t, seededStore(t))

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

type downStore struct{ *memstore.Store }

func (downStore) FindByEmail(context.Context, string) (oroauth.UserRecord, error) {
	return oroauth.UserRecord{}, errors.New("connection refused")
}

func (downStore) FindByUsernameOrEmail(context.Context, string) (oroauth.UserRecord, error) {
	return oroauth.UserRecord{}, errors.New("connection refused")
}

func TestLoginStoreOutageIs503(t *testing.T) {
	h := newTestServer(t, downStore{memstore.New()})

	rec := postJSON(h, "/login", loginRequest{"demo", "demo123"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if got := decodeError(t, rec); got.Kind == string(oroauth.KindUnknownIdentifier) {
		t.Fatal("store outage must not be reported as an unknown identifier")
	}
}

func TestHomeRedirectsWithoutSession(t *testing.T) {
	h := newTestServer(t, seededStore(t))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/home", nil))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Fatalf("expected 303 to /, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	h := newTestServer(t, seededStore(t))
	login := postJSON(h, "/login", loginRequest{"demo", "demo123"})
	cookie := sessionCookie(t, login)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	cleared := sessionCookie(t, rec)
	if cleared.MaxAge >= 0 || cleared.Value != "" {
		t.Fatalf("expected cookie to be cleared, got %+v", cleared)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, seededStore(t))
	_ = postJSON(h, "/login", loginRequest{"demo", "demo123"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "oroauth_login_success_total 1") {
		t.Fatalf("expected login counter, got:\n%s", rec.Body.String())
	}
}

func TestLoginThrottledIs429(t *testing.T) {
	cfg := testEnvConfig()
	cfg.EmbeddedRedis = true
	cfg.Throttle = true
	cfg.ThrottleMaxAttempts = 1
	cfg.ThrottleWindow = time.Minute

	d, err := openDeps(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("openDeps: %v", err)
	}
	t.Cleanup(d.Close)
	d.store = seededStore(t)

	engine, err := buildEngine(cfg, d, discardLogger())
	if err != nil {
		t.Fatalf("buildEngine: %v", err)
	}
	t.Cleanup(engine.Close)
	h, err := newServer(engine, discardLogger())
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}

	if rec := postJSON(h, "/login", loginRequest{"demo", "wrongpass"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec := postJSON(h, "/login", loginRequest{"demo", "demo123"}); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}
