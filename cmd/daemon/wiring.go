// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/kuntrapaku/subway-social-link-sub000/internal/auth"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/blob"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/bus"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/cache"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/catalog"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/config"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/element/probe"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/element/remote"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/health"
	xglog "github.com/kuntrapaku/subway-social-link-sub000/internal/log"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/resilience"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/session"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/storage"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/version"
)

// components is everything serve wires together. Close releases them in
// reverse dependency order.
type components struct {
	cache    cache.Cache
	blobs    *blob.Store
	store    catalog.Store
	storage  *storage.Storage
	catalog  *catalog.Catalog
	bus      *bus.MemoryBus
	sessions *session.Manager
	auth     *auth.Authenticator
	health   *health.Manager
}

func buildComponents(ctx context.Context, cfg config.AppConfig) (_ *components, err error) {
	c := &components{bus: bus.NewMemoryBus()}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	if c.cache, err = cache.New(cacheConfig(cfg), xglog.WithComponent("cache")); err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	if c.blobs, err = blob.Open(blob.Config{Origin: cfg.Blob.Origin, MaxBytes: cfg.Blob.MaxBytes}, xglog.WithComponent("blob")); err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}
	if c.store, err = openCatalogStore(ctx, cfg); err != nil {
		return nil, fmt.Errorf("catalog store: %w", err)
	}

	opts := catalog.Options{
		Cache:         c.cache,
		Bus:           c.bus,
		MaxStaleness:  cfg.Catalog.MaxStaleness,
		CacheTTL:      cfg.Catalog.CacheTTL,
		PresignExpiry: cfg.Catalog.PresignExpiry,
		Breaker:       resilience.NewCircuitBreaker("catalog", cfg.Catalog.BreakerThreshold, cfg.Catalog.BreakerReset),
	}
	c.storage, err = storage.New(ctx, storageConfig(cfg))
	switch {
	case errors.Is(err, storage.ErrDisabled):
		err = nil
	case err != nil:
		return nil, fmt.Errorf("object storage: %w", err)
	default:
		opts.Presigner = c.storage
	}
	c.catalog = catalog.New(c.store, opts)

	c.sessions = session.NewManager(sessionConfig(cfg), session.Deps{
		Catalog:     c.catalog,
		Blobs:       c.blobs,
		Bus:         c.bus,
		ProbeRunner: probe.ExecRunner(cfg.Probe.FFprobeBin),
	})
	c.auth = auth.NewAuthenticator(authTokens(cfg), cfg.Auth.AllowAnonymous)

	c.health = health.NewManager(version.Version)
	c.registerChecks()
	return c, nil
}

func (c *components) registerChecks() {
	c.health.RegisterChecker(health.NewFuncChecker("catalog", true, c.catalog.HealthCheck))
	c.health.RegisterChecker(health.NewFuncChecker("blobs", true, c.blobs.HealthCheck))
	if hc, ok := c.cache.(interface{ HealthCheck(context.Context) error }); ok {
		// The catalog falls back to its store, so a dead cache only degrades.
		c.health.RegisterChecker(health.NewFuncChecker("cache", false, hc.HealthCheck))
	}
	if c.storage != nil {
		c.health.RegisterChecker(health.NewFuncChecker("storage", false, c.storage.HealthCheck))
	}
	c.health.RegisterChecker(health.NewFuncChecker("sessions", false, func(context.Context) error {
		if n, limit := c.sessions.Count(), c.sessions.Limit(); limit > 0 && n >= limit {
			return fmt.Errorf("session limit reached (%d/%d)", n, limit)
		}
		return nil
	}))
}

// Close is safe on a partially built set.
func (c *components) Close() {
	logger := xglog.WithComponent("daemon")
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close catalog store")
		}
	}
	if c.blobs != nil {
		if err := c.blobs.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close blob store")
		}
	}
	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close cache")
		}
	}
}

func openCatalogStore(ctx context.Context, cfg config.AppConfig) (catalog.Store, error) {
	switch cfg.Catalog.Store {
	case "memory":
		return catalog.NewMemoryStore(), nil
	case "", "sqlite":
		return catalog.NewSQLiteStore(ctx, catalogPath(cfg))
	default:
		return nil, fmt.Errorf("unknown catalog store %q", cfg.Catalog.Store)
	}
}

func catalogPath(cfg config.AppConfig) string {
	if cfg.Catalog.Path != "" {
		return cfg.Catalog.Path
	}
	return filepath.Join(cfg.DataDir, "catalog.db")
}

func cacheConfig(cfg config.AppConfig) cache.Config {
	return cache.Config{
		Backend:         cfg.Cache.Backend,
		CleanupInterval: cfg.Cache.CleanupInterval,
		Redis: cache.RedisConfig{
			Addr:      cfg.Cache.Redis.Addr,
			Password:  cfg.Cache.Redis.Password,
			DB:        cfg.Cache.Redis.DB,
			KeyPrefix: cfg.Cache.Redis.KeyPrefix,
		},
	}
}

func storageConfig(cfg config.AppConfig) storage.Config {
	s := cfg.Storage
	return storage.Config{
		Endpoint:       s.Endpoint,
		PublicEndpoint: s.PublicEndpoint,
		Bucket:         s.Bucket,
		AccessKey:      s.AccessKey,
		SecretKey:      s.SecretKey,
		Region:         s.Region,
	}
}

func sessionConfig(cfg config.AppConfig) session.Config {
	return session.Config{
		MaxSessions:         cfg.Sessions.MaxSessions,
		MaxPerViewer:        cfg.Sessions.MaxPerViewer,
		IdleTimeout:         cfg.Sessions.IdleTimeout,
		SweepInterval:       cfg.Sessions.SweepInterval,
		GraceWindow:         cfg.Playback.GraceWindow,
		VisibilityThreshold: cfg.Playback.VisibilityThreshold,
		ProbeTimeout:        cfg.Probe.Timeout,
		Remote: remote.Options{
			MessagesPerSecond: cfg.Remote.MessagesPerSecond,
			Burst:             cfg.Remote.Burst,
			PingInterval:      cfg.Remote.PingInterval,
			WriteTimeout:      cfg.Remote.WriteTimeout,
		},
	}
}

func authTokens(cfg config.AppConfig) []auth.Token {
	out := make([]auth.Token, 0, len(cfg.Auth.Tokens))
	for _, t := range cfg.Auth.Tokens {
		out = append(out, auth.Token{Value: t.Token, ViewerID: t.ViewerID, Admin: t.Admin})
	}
	return out
}

// logSummary prints the effective setup once at startup. Secrets are never
// logged, only whether they are set.
func logSummary(logger zerolog.Logger, cfg config.AppConfig, c *components) {
	logger.Info().Msgf("→ Listen: %s", cfg.Server.ListenAddr)
	logger.Info().Msgf("→ Data dir: %s", cfg.DataDir)
	logger.Info().Msgf("→ Catalog: %s (max staleness %s)", cfg.Catalog.Store, cfg.Catalog.MaxStaleness)
	logger.Info().Msgf("→ Cache: %s", cfg.Cache.Backend)
	if c.storage != nil {
		logger.Info().Msgf("→ Object storage: bucket %s", cfg.Storage.Bucket)
	} else {
		logger.Info().Msg("→ Object storage: disabled (storage keys cannot be resolved)")
	}
	if len(cfg.Auth.Tokens) == 0 {
		logger.Warn().Str("security", "weak").Msg("→ API tokens: NOT configured. Every request is anonymous.")
	} else {
		logger.Info().Msgf("→ API tokens: %d configured (anonymous: %v)", len(cfg.Auth.Tokens), cfg.Auth.AllowAnonymous)
	}
	if cfg.Telemetry.Enabled {
		logger.Info().Msgf("→ Tracing: %s exporter to %s", cfg.Telemetry.Exporter, cfg.Telemetry.Endpoint)
	}
}
