package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

type serveConfig struct {
	addr     string
	seedDemo bool
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cfg := &serveConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the login HTTP server",
		Long: `Serve POST /login, POST /logout, the guarded GET /home and GET /metrics.

Without OROAUTH_DATABASE_URL accounts are kept in memory; pass --seed-demo to
create the demo account at startup.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, args, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.addr, "addr", "", "listen address (overrides OROAUTH_ADDR)")
	cmd.Flags().BoolVar(&cfg.seedDemo, "seed-demo", false, "create the demo account before serving")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string, sc *serveConfig) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if sc.addr != "" {
		cfg.Addr = sc.addr
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := openDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	engine, err := buildEngine(cfg, d, logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	if sc.seedDemo {
		hasher, err := newHasher(cfg)
		if err != nil {
			return err
		}
		user, err := seedUser(ctx, d.store, hasher, demoUser())
		if err != nil {
			return err
		}
		logger.Info("seeded demo account", slog.String("user_id", user.ID), slog.String("username", user.Username))
	}

	handler, err := newServer(engine, logger)
	if err != nil {
		return oops.Code("SERVER_INIT_FAILED").Wrap(err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return oops.Code("SERVER_FAILED").With("addr", cfg.Addr).Wrap(err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return oops.Code("SERVER_SHUTDOWN_FAILED").Wrap(err)
	}
	return nil
}
