// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchday Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Matchday CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "matchday",
		Short: "Matchday credential service",
		Long: `Matchday is a credential and token lifecycle service: account
registration, password and passwordless login, email verification,
password reset, and signed session issuance.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}
