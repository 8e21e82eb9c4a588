// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command reelplayd serves playback sessions over HTTP and websockets.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kuntrapaku/subway-social-link-sub000/internal/config"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "reelplayd",
		Short: "reelplay playback session daemon",
		Long: `reelplayd owns playback sessions for short-form video feeds. Each session
drives one media element through load, play, pause and retry, reports a
render-ready view, and follows sign-in and catalog changes.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (YAML); defaults to $REELPLAY_DATA/config.yaml when present")

	root.AddCommand(
		newServeCmd(),
		newConfigCmd(),
		newProbeCmd(),
		newStorageCmd(),
		newHealthcheckCmd(),
		newVersionCmd(),
	)
	return root
}

// resolveConfigPath prefers --config, then an existing config.yaml in the
// data directory.
func resolveConfigPath(explicit string) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return p
	}
	dataDir := strings.TrimSpace(config.ParseString(config.EnvPrefix+"DATA", config.Default().DataDir))
	if dataDir == "" {
		return ""
	}
	autoPath := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(autoPath); err == nil {
		return autoPath
	}
	return ""
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
