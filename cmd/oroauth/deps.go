package main

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/oroscan/oroauth"
	"github.com/oroscan/oroauth/store/memstore"
	"github.com/oroscan/oroauth/store/postgres"
)

// accountStore is what the commands need from an identity backend.
type accountStore interface {
	oroauth.IdentityStore
	oroauth.UserWriter
}

// deps holds the external resources a command opened.
type deps struct {
	store   accountStore
	db      *sql.DB
	redis   redis.UniversalClient
	closers []func()
}

// openDeps connects the identity store and, if configured, Redis. Without
// OROAUTH_DATABASE_URL accounts live in memory for the life of the process.
func openDeps(ctx context.Context, cfg envConfig, logger *slog.Logger) (*deps, error) {
	d := &deps{}

	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		d.db = db
		d.store = postgres.New(db)
		d.closers = append(d.closers, func() { _ = db.Close() })
	} else {
		logger.Info("using in-memory identity store")
		d.store = memstore.New()
	}

	switch {
	case cfg.RedisAddr != "":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			d.Close()
			_ = client.Close()
			return nil, oops.Code("REDIS_CONNECT_FAILED").With("addr", cfg.RedisAddr).Wrap(err)
		}
		d.redis = client
		d.closers = append(d.closers, func() { _ = client.Close() })
	case cfg.EmbeddedRedis:
		mr, err := miniredis.Run()
		if err != nil {
			d.Close()
			return nil, oops.Code("REDIS_START_FAILED").With("operation", "start embedded redis").Wrap(err)
		}
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		logger.Info("using embedded redis", slog.String("addr", mr.Addr()))
		d.redis = client
		d.closers = append(d.closers, func() {
			_ = client.Close()
			mr.Close()
		})
	}

	return d, nil
}

// Close releases resources in reverse order of acquisition.
func (d *deps) Close() {
	if d == nil {
		return
	}
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

// buildEngine assembles an engine over d.
func buildEngine(cfg envConfig, d *deps, logger *slog.Logger) (*oroauth.Engine, error) {
	b := oroauth.New().
		WithConfig(cfg.engineConfig()).
		WithIdentityStore(d.store).
		WithLogger(logger)
	if d.redis != nil {
		b = b.WithRedis(d.redis)
	}
	if cfg.Audit {
		b = b.WithAuditSink(oroauth.NewSlogSink(logger))
	}

	engine, err := b.Build()
	if err != nil {
		return nil, oops.Code("ENGINE_BUILD_FAILED").Wrap(err)
	}
	return engine, nil
}
