package main

import (
	"context"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/oroscan/oroauth"
	"github.com/oroscan/oroauth/password"
)

const defaultSeedTimeout = 30 * time.Second

type seedAccount struct {
	Email       string
	Username    string
	Password    string
	DisplayName string
}

func demoUser() seedAccount {
	return seedAccount{
		Email:       "demo@example.com",
		Username:    "demo",
		Password:    "demo123",
		DisplayName: "Demo User",
	}
}

type seedConfig struct {
	timeout time.Duration
	account seedAccount
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{account: demoUser()}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create or update an account",
		Long: `Upserts an account keyed by username. With no flags it creates the demo
account (demo@example.com / demo / demo123). Running it twice is safe.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, args, cfg)
		},
	}

	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations")
	cmd.Flags().StringVar(&cfg.account.Email, "email", cfg.account.Email, "account email (empty for none)")
	cmd.Flags().StringVar(&cfg.account.Username, "username", cfg.account.Username, "account username")
	cmd.Flags().StringVar(&cfg.account.Password, "password", cfg.account.Password, "account password")
	cmd.Flags().StringVar(&cfg.account.DisplayName, "name", cfg.account.DisplayName, "display name")

	return cmd
}

func runSeed(cmd *cobra.Command, _ []string, sc *seedConfig) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("OROAUTH_DATABASE_URL is required to seed a persistent store")
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	ctx, cancel := context.WithTimeout(cmd.Context(), sc.timeout)
	defer cancel()

	d, err := openDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	hasher, err := newHasher(cfg)
	if err != nil {
		return err
	}

	user, err := seedUser(ctx, d.store, hasher, sc.account)
	if err != nil {
		return err
	}

	cmd.Printf("Seeded user id=%s username=%s email=%s\n", user.ID, user.Username, user.Email)
	return nil
}

// seedUser hashes the account password and upserts the record.
func seedUser(ctx context.Context, store oroauth.UserWriter, hasher *password.Hasher, acct seedAccount) (oroauth.UserRecord, error) {
	if strings.TrimSpace(acct.Username) == "" || acct.Password == "" {
		return oroauth.UserRecord{}, oops.Code("SEED_INVALID").Errorf("username and password are required")
	}

	hash, err := hasher.Hash(acct.Password)
	if err != nil {
		return oroauth.UserRecord{}, oops.Code("SEED_HASH_FAILED").Wrap(err)
	}

	user, err := store.UpsertUser(ctx, oroauth.UserRecord{
		Email:        strings.TrimSpace(acct.Email),
		Username:     strings.TrimSpace(acct.Username),
		PasswordHash: hash,
		DisplayName:  acct.DisplayName,
	})
	if err != nil {
		return oroauth.UserRecord{}, oops.Code("SEED_FAILED").With("username", acct.Username).Wrap(err)
	}
	return user, nil
}

// newHasher builds the password hasher the engine would use, without
// requiring a signing key.
func newHasher(cfg envConfig) (*password.Hasher, error) {
	ec := cfg.engineConfig()
	h, err := password.NewHasher(
		password.Algorithm(ec.Password.Algorithm),
		ec.Password.BcryptCost,
		password.Config{
			Memory:      ec.Password.Memory,
			Time:        ec.Password.Time,
			Parallelism: ec.Password.Parallelism,
			SaltLength:  ec.Password.SaltLength,
			KeyLength:   ec.Password.KeyLength,
		},
	)
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "build password hasher").Wrap(err)
	}
	return h, nil
}
