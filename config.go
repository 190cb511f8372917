package oroauth

import (
	"errors"
	"strings"
	"time"
)

// Environment values recognised by [Config.Environment].
const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"
)

// Config defines the full engine configuration.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	JWT        JWTConfig
	Password   PasswordConfig
	Login      LoginConfig
	Guard      GuardConfig
	Throttle   ThrottleConfig
	Revocation RevocationConfig
	Audit      AuditConfig
	Metrics    MetricsConfig

	// Environment gates verbose attempt logging. Only "development" enables it.
	Environment string
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls how session tokens are signed and how long they live.
type JWTConfig struct {
	SessionTTL    time.Duration
	SigningMethod string // "hs256" (default), "ed25519" optional
	PrivateKey    []byte // HS256 secret or Ed25519 private key
	PublicKey     []byte // Ed25519 only
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig selects the hash algorithm used for new hashes. Verification
// always accepts both bcrypt and argon2id encodings.
type PasswordConfig struct {
	Algorithm  string // "bcrypt" (default) or "argon2id"
	BcryptCost int

	Memory      uint32 // argon2id, in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	UpgradeOnLogin bool
}

/*
====================================
LOGIN CONFIG
====================================
*/

// LoginConfig tunes the authenticate flow.
type LoginConfig struct {
	// EqualizeTiming runs a throwaway hash comparison when the identifier
	// does not resolve, so response time does not reveal account existence.
	EqualizeTiming bool
	// UniformFailureMessages gives UnknownIdentifier and InvalidPassword the
	// same user-visible message. Kinds stay distinct.
	UniformFailureMessages bool
}

// GuardConfig controls where failed guards send the caller and which cookie
// carries the session token.
type GuardConfig struct {
	LoginPath  string
	CookieName string
}

// ThrottleConfig enables the Redis-backed failed-login throttle. After
// MaxAttempts failures for one identifier inside Window, further attempts are
// refused with [ErrLoginThrottled] until the window ends.
type ThrottleConfig struct {
	Enabled     bool
	MaxAttempts int
	Window      time.Duration
	PerIP       bool
	RedisPrefix string
}

// RevocationConfig enables the server-side revocation list.
type RevocationConfig struct {
	Enabled     bool
	RedisPrefix string
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a configuration with every field populated except
// the signing key, which has no default and must be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SessionTTL:    8 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "oroauth",
		},
		Password: PasswordConfig{
			Algorithm:      "bcrypt",
			BcryptCost:     10,
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: false,
		},
		Login: LoginConfig{
			EqualizeTiming:         true,
			UniformFailureMessages: false,
		},
		Guard: GuardConfig{
			LoginPath:  "/",
			CookieName: "oroauth_session",
		},
		Throttle: ThrottleConfig{
			Enabled:     false,
			MaxAttempts: 5,
			Window:      15 * time.Minute,
			PerIP:       false,
			RedisPrefix: "oro",
		},
		Revocation: RevocationConfig{
			Enabled:     false,
			RedisPrefix: "oro",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
		Environment: EnvProduction,
	}
}

// HardenedConfig returns the defaults with every protective switch turned on:
// uniform failure messages, the revocation list, the login throttle, auditing
// and a shorter session lifetime. It needs a Redis client at build time and a
// signing key like [DefaultConfig].
func HardenedConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.SessionTTL = time.Hour
	cfg.Password.BcryptCost = 12
	cfg.Password.UpgradeOnLogin = true
	cfg.Login.UniformFailureMessages = true
	cfg.Login.EqualizeTiming = true
	cfg.Throttle.Enabled = true
	cfg.Throttle.PerIP = true
	cfg.Revocation.Enabled = true
	cfg.Audit.Enabled = true
	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// DebugAttempts reports whether per-attempt debug logging is permitted.
func (c *Config) DebugAttempts() bool {
	return c.Environment == EnvDevelopment
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for values the engine cannot run with.
//
// Validate returns the first violation found. It does not mutate the receiver.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.SessionTTL < time.Second {
		return errors.New("JWT SessionTTL must be >= 1s")
	}
	if c.JWT.SessionTTL > 30*24*time.Hour {
		return errors.New("JWT SessionTTL must be <= 30d")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("hs256 requires a signing secret")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}

	// Password
	switch c.Password.Algorithm {
	case "bcrypt":
		if c.Password.BcryptCost < 4 || c.Password.BcryptCost > 31 {
			return errors.New("Password BcryptCost must be between 4 and 31")
		}
	case "argon2id":
		if c.Password.Memory < 8*1024 {
			return errors.New("Password Memory must be >= 8192 KB")
		}
		if c.Password.Time < 1 {
			return errors.New("Password Time must be >= 1")
		}
		if c.Password.Parallelism < 1 {
			return errors.New("Password Parallelism must be >= 1")
		}
		if c.Password.SaltLength < 16 {
			return errors.New("Password SaltLength must be >= 16")
		}
		if c.Password.KeyLength < 16 {
			return errors.New("Password KeyLength must be >= 16")
		}
	default:
		return errors.New("Password Algorithm must be bcrypt or argon2id")
	}

	// Guard
	if !strings.HasPrefix(c.Guard.LoginPath, "/") {
		return errors.New("Guard LoginPath must be an absolute path")
	}
	if strings.TrimSpace(c.Guard.CookieName) == "" {
		return errors.New("Guard CookieName is required")
	}

	// Throttle
	if c.Throttle.Enabled {
		if c.Throttle.MaxAttempts < 1 {
			return errors.New("Throttle MaxAttempts must be >= 1")
		}
		if c.Throttle.Window < time.Second {
			return errors.New("Throttle Window must be >= 1s")
		}
		if strings.TrimSpace(c.Throttle.RedisPrefix) == "" {
			return errors.New("Throttle RedisPrefix is required when throttling is enabled")
		}
	}

	// Revocation
	if c.Revocation.Enabled && strings.TrimSpace(c.Revocation.RedisPrefix) == "" {
		return errors.New("Revocation RedisPrefix is required when revocation is enabled")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	switch c.Environment {
	case EnvDevelopment, EnvTest, EnvProduction:
		// valid
	default:
		return errors.New("Environment must be development, test, or production")
	}

	if c.Environment == EnvProduction {
		if c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) < 32 {
			return errors.New("production requires hs256 key length >= 256 bits")
		}
		if c.Password.Algorithm == "bcrypt" && c.Password.BcryptCost < 10 {
			return errors.New("production requires Password BcryptCost >= 10")
		}
	}

	return nil
}

// Lint returns advisory warnings for configurations that are valid but weaken
// the security posture. An empty slice means nothing to report.
func (c *Config) Lint() []string {
	var warnings []string
	if !c.Login.UniformFailureMessages {
		warnings = append(warnings, "Login.UniformFailureMessages is off: unknown-identifier messages differ by identifier shape and reveal whether an account exists")
	}
	if !c.Login.EqualizeTiming {
		warnings = append(warnings, "Login.EqualizeTiming is off: unknown identifiers answer faster than wrong passwords")
	}
	if !c.Revocation.Enabled {
		warnings = append(warnings, "Revocation is off: logout cannot invalidate a token before it expires")
	}
	if c.JWT.SessionTTL > 24*time.Hour {
		warnings = append(warnings, "JWT.SessionTTL exceeds 24h")
	}
	if c.Environment == EnvDevelopment {
		warnings = append(warnings, "Environment is development: attempt debug logging is enabled")
	}
	return warnings
}
