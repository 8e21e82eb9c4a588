// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kuntrapaku/subway-social-link-sub000/internal/api"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/config"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/health"
	xglog "github.com/kuntrapaku/subway-social-link-sub000/internal/log"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/session"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/telemetry"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/version"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the playback session server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), resolveConfigPath(configPath))
		},
	}
}

func runServe(parent context.Context, path string) error {
	// Safe defaults until the config is loaded.
	xglog.Configure(xglog.Config{Level: "info", Service: "reelplay", Version: version.Version})
	logger := xglog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(path)
	cfg, err := loader.Load()
	if err != nil {
		logger.Error().Err(err).
			Str(xglog.FieldEvent, "config.load_failed").
			Str("config_path", path).
			Msg("failed to load configuration")
		return fmt.Errorf("load config: %w", err)
	}
	xglog.Configure(xglog.Config{Level: cfg.LogLevel, Service: "reelplay", Version: version.Version})

	if path != "" {
		logger.Info().Str(xglog.FieldEvent, "config.loaded").Str("source", "file").Str(xglog.FieldPath, path).Msg("loaded configuration from file")
	} else {
		logger.Info().Str(xglog.FieldEvent, "config.loaded").Str("source", "env+defaults").Msg("loaded configuration from environment and defaults")
	}

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "startup.check_failed").
			Msg("startup checks failed, verify configuration and permissions")
		return err
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version.Version,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(sctx); err != nil {
			logger.Warn().Err(err).Msg("failed to flush traces")
		}
	}()

	comps, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer comps.Close()

	logger.Info().
		Str(xglog.FieldEvent, "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("addr", cfg.Server.ListenAddr).
		Msg("starting reelplay")
	logSummary(logger, cfg, comps)

	srv := api.NewServer(cfg, api.Deps{
		Sessions: comps.sessions,
		Catalog:  comps.catalog,
		Blobs:    comps.blobs,
		Bus:      comps.bus,
		Auth:     comps.auth,
		Health:   comps.health,
	})

	holder := config.NewHolder(cfg, loader)
	updates := make(chan config.AppConfig, 1)
	holder.Subscribe(updates)
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return api.Serve(gctx, srv.NewHTTPServer(), cfg.Server.MaxConnections, cfg.Server.ShutdownTimeout) })
	g.Go(func() error { return comps.sessions.Run(gctx) })
	g.Go(func() error { return holder.Watch(gctx) })
	g.Go(func() error {
		followReloads(gctx, holder, updates, hup, comps.sessions)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "daemon.failed").Msg("daemon stopped with error")
		return err
	}
	logger.Info().Str(xglog.FieldEvent, "shutdown").Msg("server exiting")
	return nil
}

// followReloads applies reloaded settings to the live components and turns
// SIGHUP into an explicit reload.
func followReloads(ctx context.Context, holder *config.Holder, updates <-chan config.AppConfig, hup <-chan os.Signal, sessions *session.Manager) {
	logger := xglog.WithComponent("daemon")
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			// Reload logs its own failure and keeps the current config.
			_ = holder.Reload(ctx)
		case cfg := <-updates:
			if err := xglog.SetLevel(cfg.LogLevel); err != nil {
				logger.Warn().Err(err).Str("level", cfg.LogLevel).Msg("ignoring invalid log level")
			}
			sessions.Reconfigure(sessionConfig(cfg))
			logger.Info().Str(xglog.FieldEvent, "config.applied").Msg("applied reloaded configuration")
		}
	}
}
