// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchday Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/matchday/matchday/internal/config"
	"github.com/matchday/matchday/internal/store"
)

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check database connectivity and schema version",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}
	if err := cfg.ValidateMigrate(); err != nil {
		return err
	}

	pool, err := store.Connect(cmd.Context(), cfg.Database.URL)
	if err != nil {
		return err
	}
	pool.Close()
	cmd.Println("database: reachable")

	m, err := store.NewMigrator(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			slog.Warn("error closing migrator", "error", closeErr)
		}
	}()

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	switch {
	case version == 0:
		cmd.Println("schema: no migrations applied")
	case dirty:
		cmd.Printf("schema: version %d (dirty)\n", version)
	default:
		cmd.Printf("schema: version %d\n", version)
	}
	return nil
}
