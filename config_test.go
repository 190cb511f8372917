package oroauth

import (
	"strings"
	"testing"
	"time"
)

func TestConfigValidateEnums(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "test defaults valid",
			mutate:    func(c *Config) {},
			wantValid: true,
		},
		{
			name: "jwt leeway valid",
			mutate: func(c *Config) {
				c.JWT.Leeway = 45 * time.Second
			},
			wantValid: true,
		},
		{
			name: "jwt leeway invalid",
			mutate: func(c *Config) {
				c.JWT.Leeway = 3 * time.Minute
			},
			wantValid: false,
		},
		{
			name: "session ttl below one second",
			mutate: func(c *Config) {
				c.JWT.SessionTTL = 999 * time.Millisecond
			},
			wantValid: false,
		},
		{
			name: "session ttl above thirty days",
			mutate: func(c *Config) {
				c.JWT.SessionTTL = 31 * 24 * time.Hour
			},
			wantValid: false,
		},
		{
			name: "missing secret",
			mutate: func(c *Config) {
				c.JWT.PrivateKey = nil
			},
			wantValid: false,
		},
		{
			name: "jwt signing invalid",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "rs256"
			},
			wantValid: false,
		},
		{
			name: "ed25519 without public key",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "ed25519"
			},
			wantValid: false,
		},
		{
			name: "bcrypt cost too low",
			mutate: func(c *Config) {
				c.Password.BcryptCost = 3
			},
			wantValid: false,
		},
		{
			name: "argon2id valid",
			mutate: func(c *Config) {
				c.Password.Algorithm = "argon2id"
			},
			wantValid: true,
		},
		{
			name: "argon2id memory too low",
			mutate: func(c *Config) {
				c.Password.Algorithm = "argon2id"
				c.Password.Memory = 1024
			},
			wantValid: false,
		},
		{
			name: "unknown password algorithm",
			mutate: func(c *Config) {
				c.Password.Algorithm = "md5"
			},
			wantValid: false,
		},
		{
			name: "relative login path",
			mutate: func(c *Config) {
				c.Guard.LoginPath = "login"
			},
			wantValid: false,
		},
		{
			name: "blank cookie name",
			mutate: func(c *Config) {
				c.Guard.CookieName = " "
			},
			wantValid: false,
		},
		{
			name: "revocation without prefix",
			mutate: func(c *Config) {
				c.Revocation.Enabled = true
				c.Revocation.RedisPrefix = ""
			},
			wantValid: false,
		},
		{
			name: "throttle without attempts",
			mutate: func(c *Config) {
				c.Throttle.Enabled = true
				c.Throttle.MaxAttempts = 0
			},
			wantValid: false,
		},
		{
			name: "throttle with sub-second window",
			mutate: func(c *Config) {
				c.Throttle.Enabled = true
				c.Throttle.Window = 500 * time.Millisecond
			},
			wantValid: false,
		},
		{
			name: "throttle defaults",
			mutate: func(c *Config) {
				c.Throttle.Enabled = true
			},
			wantValid: true,
		},
		{
			name: "audit without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "unknown environment",
			mutate: func(c *Config) {
				c.Environment = "staging"
			},
			wantValid: false,
		},
		{
			name: "production short secret",
			mutate: func(c *Config) {
				c.Environment = EnvProduction
				c.Password.BcryptCost = 10
				c.JWT.PrivateKey = []byte("short")
			},
			wantValid: false,
		},
		{
			name: "production low bcrypt cost",
			mutate: func(c *Config) {
				c.Environment = EnvProduction
			},
			wantValid: false,
		},
		{
			name: "production valid",
			mutate: func(c *Config) {
				c.Environment = EnvProduction
				c.Password.BcryptCost = 10
			},
			wantValid: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected invalid config")
			}
		})
	}
}

func TestDefaultConfigRequiresSecret(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("default config without a secret must not validate")
	}
	if cfg.JWT.SessionTTL != 8*time.Hour {
		t.Fatalf("default ttl = %v", cfg.JWT.SessionTTL)
	}
	if cfg.Guard.LoginPath != "/" {
		t.Fatalf("default login path = %q", cfg.Guard.LoginPath)
	}
	if cfg.DebugAttempts() {
		t.Fatal("debug attempts must be off by default")
	}
}

func TestLintFlagsIdentifierDisclosure(t *testing.T) {
	cfg := testConfig()
	joined := strings.Join(cfg.Lint(), "\n")
	if !strings.Contains(joined, "UniformFailureMessages") {
		t.Fatalf("expected identifier disclosure warning, got %q", joined)
	}
	if !strings.Contains(joined, "Revocation is off") {
		t.Fatalf("expected revocation warning, got %q", joined)
	}

	cfg.Login.UniformFailureMessages = true
	cfg.Revocation.Enabled = true
	for _, w := range cfg.Lint() {
		if strings.Contains(w, "UniformFailureMessages") || strings.Contains(w, "Revocation") {
			t.Fatalf("unexpected warning after hardening: %q", w)
		}
	}
}

func TestCloneConfigCopiesKeys(t *testing.T) {
	cfg := testConfig()
	clone := cloneConfig(cfg)
	clone.JWT.PrivateKey[0] = 'X'
	if cfg.JWT.PrivateKey[0] == 'X' {
		t.Fatal("clone must not alias key material")
	}
}

func TestHardenedConfigPresetValidates(t *testing.T) {
	cfg := HardenedConfig()
	cfg.JWT.PrivateKey = testSecret

	if !cfg.Login.UniformFailureMessages || !cfg.Login.EqualizeTiming {
		t.Fatal("expected identifier disclosure protections enabled")
	}
	if !cfg.Revocation.Enabled || !cfg.Throttle.Enabled {
		t.Fatal("expected revocation and throttle enabled")
	}
	if cfg.Environment != EnvProduction {
		t.Fatalf("expected production environment, got %q", cfg.Environment)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected hardened preset to validate, got %v", err)
	}
	if warnings := cfg.Lint(); len(warnings) != 0 {
		t.Fatalf("expected no lint warnings, got %v", warnings)
	}
}

func TestHardenedConfigBuildNeedsRedis(t *testing.T) {
	cfg := HardenedConfig()
	cfg.JWT.PrivateKey = testSecret
	cfg.Password.BcryptCost = 4
	cfg.Environment = EnvTest

	if _, err := New().WithConfig(cfg).WithIdentityStore(&fakeStore{}).Build(); err == nil {
		t.Fatal("expected build without redis to fail")
	}

	_, rdb := newTestRedis(t)
	engine, err := New().WithConfig(cfg).WithIdentityStore(&fakeStore{}).WithRedis(rdb).Build()
	if err != nil {
		t.Fatalf("build with redis: %v", err)
	}
	engine.Close()
}
