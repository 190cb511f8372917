package main

import (
	"io"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/samber/oops"

	"github.com/oroscan/oroauth"
)

// envConfig is the process configuration, read from the environment.
type envConfig struct {
	Environment string        `env:"OROAUTH_ENV"               envDefault:"production"`
	Addr        string        `env:"OROAUTH_ADDR"              envDefault:":8080"`
	JWTSecret   string        `env:"OROAUTH_JWT_SECRET"`
	SessionTTL  time.Duration `env:"OROAUTH_SESSION_TTL"       envDefault:"8h"`
	Issuer      string        `env:"OROAUTH_JWT_ISSUER"        envDefault:"oroauth"`
	Audience    string        `env:"OROAUTH_JWT_AUDIENCE"`
	BcryptCost  int           `env:"OROAUTH_BCRYPT_COST"       envDefault:"10"`
	PasswordAlg string        `env:"OROAUTH_PASSWORD_ALGORITHM" envDefault:"bcrypt"`
	UpgradeHash bool          `env:"OROAUTH_UPGRADE_ON_LOGIN"  envDefault:"false"`

	UniformMessages bool   `env:"OROAUTH_UNIFORM_FAILURE_MESSAGES" envDefault:"false"`
	LoginPath       string `env:"OROAUTH_LOGIN_PATH"  envDefault:"/"`
	CookieName      string `env:"OROAUTH_COOKIE_NAME" envDefault:"oroauth_session"`

	DatabaseURL   string `env:"OROAUTH_DATABASE_URL"`
	RedisAddr     string `env:"OROAUTH_REDIS_ADDR"`
	EmbeddedRedis bool   `env:"OROAUTH_EMBEDDED_REDIS" envDefault:"false"`
	Revocation    bool   `env:"OROAUTH_REVOCATION"     envDefault:"false"`
	RedisPrefix   string `env:"OROAUTH_REDIS_PREFIX"   envDefault:"oro"`

	Throttle            bool          `env:"OROAUTH_THROTTLE"              envDefault:"false"`
	ThrottleMaxAttempts int           `env:"OROAUTH_THROTTLE_MAX_ATTEMPTS" envDefault:"5"`
	ThrottleWindow      time.Duration `env:"OROAUTH_THROTTLE_WINDOW"       envDefault:"15m"`
	ThrottlePerIP       bool          `env:"OROAUTH_THROTTLE_PER_IP"       envDefault:"false"`

	Audit    bool   `env:"OROAUTH_AUDIT"          envDefault:"false"`
	LogLevel string `env:"OROAUTH_LOG_LEVEL"`
}

// loadConfig parses the environment.
func loadConfig() (envConfig, error) {
	var cfg envConfig
	if err := env.Parse(&cfg); err != nil {
		return envConfig{}, oops.Code("CONFIG_INVALID").With("operation", "parse env").Wrap(err)
	}
	return cfg, nil
}

// engineConfig maps the environment onto an engine configuration.
func (c envConfig) engineConfig() oroauth.Config {
	cfg := oroauth.DefaultConfig()
	cfg.Environment = c.Environment
	cfg.JWT.PrivateKey = []byte(c.JWTSecret)
	cfg.JWT.SessionTTL = c.SessionTTL
	cfg.JWT.Issuer = c.Issuer
	cfg.JWT.Audience = c.Audience
	cfg.Password.Algorithm = c.PasswordAlg
	cfg.Password.BcryptCost = c.BcryptCost
	cfg.Password.UpgradeOnLogin = c.UpgradeHash
	cfg.Login.UniformFailureMessages = c.UniformMessages
	cfg.Guard.LoginPath = c.LoginPath
	cfg.Guard.CookieName = c.CookieName
	cfg.Revocation.Enabled = c.Revocation
	cfg.Revocation.RedisPrefix = c.RedisPrefix
	cfg.Throttle.Enabled = c.Throttle
	cfg.Throttle.MaxAttempts = c.ThrottleMaxAttempts
	cfg.Throttle.Window = c.ThrottleWindow
	cfg.Throttle.PerIP = c.ThrottlePerIP
	cfg.Throttle.RedisPrefix = c.RedisPrefix
	cfg.Audit.Enabled = c.Audit
	return cfg
}

// newLogger returns a JSON logger, or a text logger at debug level in
// development so per-attempt diagnostics are readable.
func newLogger(c envConfig, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if c.Environment == oroauth.EnvDevelopment {
		level = slog.LevelDebug
	}
	if c.LogLevel != "" {
		var parsed slog.Level
		if err := parsed.UnmarshalText([]byte(c.LogLevel)); err == nil {
			level = parsed
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Environment == oroauth.EnvDevelopment {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
