package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewHashPasswordCmd creates the hash-password subcommand.
func NewHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Hash a password read from stdin",
		Long: `Reads one line from stdin and prints its hash using the configured
algorithm (OROAUTH_PASSWORD_ALGORITHM, OROAUTH_BCRYPT_COST).`,
		Args: cobra.NoArgs,
		RunE: runHashPassword,
	}
}

func runHashPassword(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	plain, err := readSecretLine(cmd.InOrStdin())
	if err != nil {
		return err
	}

	hasher, err := newHasher(cfg)
	if err != nil {
		return err
	}

	hash, err := hasher.Hash(plain)
	if err != nil {
		return oops.Code("HASH_FAILED").Wrap(err)
	}

	cmd.Println(hash)
	return nil
}
