// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate reports every problem at once, joined.
func Validate(cfg AppConfig) error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if cfg.Version != CurrentVersion {
		add("version", "unsupported config version %d (want %d)", cfg.Version, CurrentVersion)
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		add("logLevel", "unknown level %q", cfg.LogLevel)
	}
	if cfg.Server.ListenAddr == "" {
		add("server.listenAddr", "is required")
	}
	if cfg.Server.MaxConnections < 0 {
		add("server.maxConnections", "must not be negative")
	}
	if cfg.Server.RateLimit.Enabled && (cfg.Server.RateLimit.RPS <= 0 || cfg.Server.RateLimit.Burst <= 0) {
		add("server.rateLimit", "rps and burst must be positive when enabled")
	}
	for _, o := range cfg.Server.CORSOrigins {
		if o == "*" {
			continue
		}
		if u, err := url.Parse(o); err != nil || u.Scheme == "" || u.Host == "" {
			add("server.corsOrigins", "invalid origin %q", o)
		}
	}

	seen := map[string]bool{}
	for i, t := range cfg.Auth.Tokens {
		if t.Token == "" || t.ViewerID == "" {
			add(fmt.Sprintf("auth.tokens[%d]", i), "token and viewerId are required")
			continue
		}
		if seen[t.Token] {
			add(fmt.Sprintf("auth.tokens[%d]", i), "duplicate token")
		}
		seen[t.Token] = true
	}
	if len(cfg.Auth.Tokens) == 0 && !cfg.Auth.AllowAnonymous {
		add("auth", "no tokens configured and anonymous access disabled")
	}

	if cfg.Playback.GraceWindow <= 0 {
		add("playback.graceWindow", "must be positive")
	}
	if th := cfg.Playback.VisibilityThreshold; th <= 0 || th > 1 {
		add("playback.visibilityThreshold", "must be in (0, 1], got %v", th)
	}
	if cfg.Sessions.MaxSessions < 0 || cfg.Sessions.MaxPerViewer < 0 {
		add("sessions", "limits must not be negative")
	}
	if cfg.Sessions.IdleTimeout < 0 {
		add("sessions.idleTimeout", "must not be negative")
	}
	if cfg.Probe.Timeout <= 0 {
		add("probe.timeout", "must be positive")
	}
	if cfg.Remote.MessagesPerSecond <= 0 || cfg.Remote.Burst <= 0 {
		add("remote", "messagesPerSecond and burst must be positive")
	}

	switch cfg.Catalog.Store {
	case "memory":
	case "sqlite":
		if cfg.Catalog.Path == "" {
			add("catalog.path", "is required for the sqlite store")
		}
	default:
		add("catalog.store", "unknown store %q (want sqlite|memory)", cfg.Catalog.Store)
	}
	if cfg.Catalog.BreakerThreshold < 0 || cfg.Catalog.BreakerReset < 0 {
		add("catalog.breaker", "threshold and reset must not be negative")
	}
	if cfg.Catalog.MaxStaleness <= 0 {
		add("catalog.maxStaleness", "must be positive")
	}
	if cfg.Catalog.CacheTTL > 0 && cfg.Catalog.CacheTTL < cfg.Catalog.MaxStaleness {
		add("catalog.cacheTTL", "must not be shorter than maxStaleness")
	}

	switch cfg.Cache.Backend {
	case "memory", "none":
	case "redis":
		if cfg.Cache.Redis.Addr == "" {
			add("cache.redis.addr", "is required for the redis backend")
		}
	default:
		add("cache.backend", "unknown backend %q (want memory|redis|none)", cfg.Cache.Backend)
	}

	if cfg.Blob.MaxBytes <= 0 {
		add("blob.maxBytes", "must be positive")
	}
	if u, err := url.Parse(cfg.Blob.Origin); err != nil || u.Scheme == "" || u.Host == "" {
		add("blob.origin", "must be an absolute URL")
	}
	if cfg.Storage.Bucket != "" && (cfg.Storage.AccessKey == "") != (cfg.Storage.SecretKey == "") {
		add("storage", "accessKey and secretKey must be set together")
	}

	if cfg.Telemetry.Enabled {
		switch strings.ToLower(cfg.Telemetry.Exporter) {
		case "grpc", "http":
		default:
			add("telemetry.exporter", "unknown exporter %q (want grpc|http)", cfg.Telemetry.Exporter)
		}
		if cfg.Telemetry.Endpoint == "" {
			add("telemetry.endpoint", "is required when tracing is enabled")
		}
		if r := cfg.Telemetry.SamplingRate; r < 0 || r > 1 {
			add("telemetry.samplingRate", "must be in [0, 1]")
		}
	}

	return errors.Join(errs...)
}
