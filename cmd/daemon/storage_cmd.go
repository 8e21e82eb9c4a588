// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kuntrapaku/subway-social-link-sub000/internal/config"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/persistence/sqlite"
)

func newStorageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "Maintain the local catalog database",
	}
	var mode string
	verify := &cobra.Command{
		Use:   "verify",
		Short: "Check the catalog database for corruption",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewLoader(resolveConfigPath(configPath)).Load()
			if err != nil {
				return err
			}
			if cfg.Catalog.Store == "memory" {
				fmt.Fprintln(cmd.OutOrStdout(), "catalog store is in-memory; nothing to verify")
				return nil
			}
			return verifyDatabase(cmd.Context(), cmd.OutOrStdout(), catalogPath(cfg), mode)
		},
	}
	verify.Flags().StringVar(&mode, "mode", "quick", "check mode: quick or full")
	cmd.AddCommand(verify)
	return cmd
}

func verifyDatabase(ctx context.Context, w io.Writer, path, mode string) error {
	if mode != "quick" && mode != "full" {
		return fmt.Errorf("unknown mode %q (want quick or full)", mode)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("catalog database: %w", err)
	}
	db, err := sqlite.Open(path, sqlite.DefaultConfig())
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	issues, err := sqlite.VerifyIntegrity(ctx, db, mode)
	if err != nil {
		return err
	}
	if len(issues) > 0 {
		for _, issue := range issues {
			fmt.Fprintf(w, "  %s\n", issue)
		}
		return fmt.Errorf("%s: %d integrity problem(s) found", path, len(issues))
	}
	fmt.Fprintf(w, "✓ %s passed %s check\n", path, mode)
	return nil
}
