// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/kuntrapaku/subway-social-link-sub000/internal/config"
	xglog "github.com/kuntrapaku/subway-social-link-sub000/internal/log"
)

// PerformStartupChecks validates the environment before the server starts.
// A missing ffprobe only disables the probe element, so it is a warning.
func PerformStartupChecks(ctx context.Context, cfg config.AppConfig) error {
	logger := xglog.WithComponent("startup-check")

	if err := checkDataDir(cfg.DataDir); err != nil {
		return fmt.Errorf("data directory check failed: %w", err)
	}
	if _, _, err := net.SplitHostPort(cfg.Server.ListenAddr); err != nil {
		return fmt.Errorf("listen address %q: %w", cfg.Server.ListenAddr, err)
	}
	checkFFprobe(logger, cfg.Probe.FFprobeBin)

	if err := ctx.Err(); err != nil {
		return err
	}
	logger.Info().Str(xglog.FieldEvent, "startup.checked").Msg("startup checks passed")
	return nil
}

func checkDataDir(path string) error {
	if path == "" {
		return fmt.Errorf("data directory is not set")
	}
	if err := os.MkdirAll(path, 0o750); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}
	probe := filepath.Join(path, ".write_test")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s: %w", path, err)
	}
	_ = os.Remove(probe)
	return nil
}

func checkFFprobe(logger zerolog.Logger, bin string) {
	if bin == "" {
		bin = "ffprobe"
	}
	if _, err := exec.LookPath(bin); err != nil {
		logger.Warn().Err(err).Str("bin", bin).Msg("ffprobe not found; probe sessions will fail to load")
	}
}
