package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the oroauth CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oroauth",
		Short: "Credential login and session service",
		Long: `oroauth authenticates users by email or username and password and
issues signed, time-bounded session tokens.

Configuration is read from OROAUTH_* environment variables.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewVerifyUserCmd())
	cmd.AddCommand(NewHashPasswordCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
