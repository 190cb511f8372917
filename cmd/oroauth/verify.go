package main

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/oroscan/oroauth"
)

type verifyConfig struct {
	passwordStdin bool
}

// NewVerifyUserCmd creates the verify-user subcommand.
func NewVerifyUserCmd() *cobra.Command {
	cfg := &verifyConfig{}

	cmd := &cobra.Command{
		Use:   "verify-user <email-or-username>",
		Short: "Look up an account and optionally check a password",
		Long: `Resolves an identifier the same way login does and prints the account.
With --password-stdin the first line of stdin is checked against the stored
hash. The hash itself is never printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerifyUser(cmd, args, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.passwordStdin, "password-stdin", false, "read a password from stdin and verify it")

	return cmd
}

func runVerifyUser(cmd *cobra.Command, args []string, vc *verifyConfig) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("OROAUTH_DATABASE_URL is required")
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	ctx, cancel := context.WithTimeout(cmd.Context(), defaultSeedTimeout)
	defer cancel()

	d, err := openDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	var plain string
	if vc.passwordStdin {
		plain, err = readSecretLine(cmd.InOrStdin())
		if err != nil {
			return err
		}
	}

	return verifyUser(ctx, cmd, d.store, cfg, args[0], plain, vc.passwordStdin)
}

func verifyUser(ctx context.Context, cmd *cobra.Command, store oroauth.IdentityStore, cfg envConfig, identifier, plain string, checkPassword bool) error {
	user, found, err := oroauth.Resolve(ctx, store, identifier)
	if err != nil {
		return oops.Code("LOOKUP_FAILED").Wrap(err)
	}
	if !found {
		cmd.Printf("No account found for %q\n", strings.TrimSpace(identifier))
		return oops.Code("USER_NOT_FOUND").Wrap(oroauth.ErrUserNotFound)
	}

	cmd.Printf("id=%s username=%s email=%s\n", user.ID, user.Username, user.Email)
	if !checkPassword {
		return nil
	}

	hasher, err := newHasher(cfg)
	if err != nil {
		return err
	}
	ok := hasher.Verify(plain, user.PasswordHash)
	cmd.Printf("password valid: %t\n", ok)
	if !ok {
		return oops.Code("PASSWORD_MISMATCH").Wrap(oroauth.ErrInvalidPassword)
	}
	return nil
}

// readSecretLine reads the first line of r without its line terminator.
func readSecretLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", oops.Code("STDIN_READ_FAILED").Wrap(err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", oops.Code("PASSWORD_REQUIRED").Errorf("no password on stdin")
	}
	return line, nil
}
