// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kuntrapaku/subway-social-link-sub000/internal/log"
)

// EnvPrefix is shared by every environment override.
const EnvPrefix = "REELPLAY_"

var sensitiveMarkers = []string{"token", "password", "secret", "access_key"}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, m := range sensitiveMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// parseEnv reads key and converts it with parse. Empty or unparsable values
// fall back to def. The chosen source is logged; sensitive values never are.
func parseEnv[T any](key string, def T, parse func(string) (T, error)) T {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok {
		logDefault(logger, key, "using default value")
		return def
	}
	if v == "" {
		logDefault(logger, key, "using default value (environment variable is empty)")
		return def
	}
	out, err := parse(v)
	if err != nil {
		ev := logger.Warn().Str("key", key)
		if !isSensitive(key) {
			ev = ev.Str("value", v)
		}
		ev.Msg("invalid value in environment variable, using default")
		return def
	}
	ev := logger.Debug().Str("key", key).Str("source", "environment")
	if isSensitive(key) {
		ev = ev.Bool("sensitive", true)
	} else {
		ev = ev.Interface("value", out)
	}
	ev.Msg("using environment variable")
	return out
}

func logDefault(logger zerolog.Logger, key, msg string) {
	logger.Debug().Str("key", key).Str("source", "default").Msg(msg)
}

// ParseString reads a string from the environment or returns defaultValue.
func ParseString(key, defaultValue string) string {
	return parseEnv(key, defaultValue, func(s string) (string, error) { return s, nil })
}

// ParseInt reads an integer; invalid input falls back to defaultValue.
func ParseInt(key string, defaultValue int) int {
	return parseEnv(key, defaultValue, strconv.Atoi)
}

func ParseInt64(key string, defaultValue int64) int64 {
	return parseEnv(key, defaultValue, func(s string) (int64, error) {
		return strconv.ParseInt(s, 10, 64)
	})
}

// ParseDuration reads a Go duration such as "5s".
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	return parseEnv(key, defaultValue, time.ParseDuration)
}

func ParseFloat(key string, defaultValue float64) float64 {
	return parseEnv(key, defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

// ParseBool accepts true/false, 1/0 and yes/no, case-insensitively.
func ParseBool(key string, defaultValue bool) bool {
	return parseEnv(key, defaultValue, func(s string) (bool, error) {
		switch strings.ToLower(s) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
		return false, strconv.ErrSyntax
	})
}

// ParseList reads a comma-separated list, dropping blank entries.
func ParseList(key string, defaultValue []string) []string {
	return parseEnv(key, defaultValue, func(s string) ([]string, error) {
		var out []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	})
}

// parseTokens reads "token=viewer" or "token=viewer:admin" pairs.
func parseTokens(s string) ([]TokenConfig, error) {
	var out []TokenConfig
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		token, viewer, ok := strings.Cut(entry, "=")
		if !ok || token == "" || viewer == "" {
			return nil, strconv.ErrSyntax
		}
		tc := TokenConfig{Token: token, ViewerID: viewer}
		if id, role, found := strings.Cut(viewer, ":"); found {
			tc.ViewerID = id
			tc.Admin = role == "admin"
		}
		out = append(out, tc)
	}
	return out, nil
}

func env(name string) string { return EnvPrefix + name }

// mergeEnv applies REELPLAY_* overrides. Environment wins over file values.
func mergeEnv(cfg *AppConfig) {
	cfg.DataDir = ParseString(env("DATA"), cfg.DataDir)
	cfg.LogLevel = ParseString(env("LOG_LEVEL"), cfg.LogLevel)

	s := &cfg.Server
	s.ListenAddr = ParseString(env("LISTEN"), s.ListenAddr)
	s.ShutdownTimeout = ParseDuration(env("SHUTDOWN_TIMEOUT"), s.ShutdownTimeout)
	s.MaxConnections = ParseInt(env("MAX_CONNECTIONS"), s.MaxConnections)
	s.CORSOrigins = ParseList(env("CORS_ORIGINS"), s.CORSOrigins)
	s.RateLimit.Enabled = ParseBool(env("RATELIMIT_ENABLED"), s.RateLimit.Enabled)
	s.RateLimit.RPS = ParseInt(env("RATELIMIT_RPS"), s.RateLimit.RPS)
	s.RateLimit.Burst = ParseInt(env("RATELIMIT_BURST"), s.RateLimit.Burst)

	cfg.Auth.Tokens = parseEnv(env("API_TOKENS"), cfg.Auth.Tokens, parseTokens)
	cfg.Auth.AllowAnonymous = ParseBool(env("ALLOW_ANONYMOUS"), cfg.Auth.AllowAnonymous)

	p := &cfg.Playback
	p.GraceWindow = ParseDuration(env("GRACE_WINDOW"), p.GraceWindow)
	p.VisibilityThreshold = ParseFloat(env("VISIBILITY_THRESHOLD"), p.VisibilityThreshold)
	p.AutoplayOnVisible = ParseBool(env("AUTOPLAY_ON_VISIBLE"), p.AutoplayOnVisible)

	ss := &cfg.Sessions
	ss.MaxSessions = ParseInt(env("SESSIONS_MAX"), ss.MaxSessions)
	ss.MaxPerViewer = ParseInt(env("SESSIONS_MAX_PER_VIEWER"), ss.MaxPerViewer)
	ss.IdleTimeout = ParseDuration(env("SESSION_IDLE_TIMEOUT"), ss.IdleTimeout)

	cfg.Probe.FFprobeBin = ParseString(env("FFPROBE_BIN"), cfg.Probe.FFprobeBin)
	cfg.Probe.Timeout = ParseDuration(env("PROBE_TIMEOUT"), cfg.Probe.Timeout)

	cfg.Remote.MessagesPerSecond = ParseFloat(env("WS_RATE"), cfg.Remote.MessagesPerSecond)
	cfg.Remote.Burst = ParseInt(env("WS_BURST"), cfg.Remote.Burst)

	c := &cfg.Catalog
	c.Store = ParseString(env("CATALOG_STORE"), c.Store)
	c.Path = ParseString(env("CATALOG_PATH"), c.Path)
	c.MaxStaleness = ParseDuration(env("CATALOG_MAX_STALENESS"), c.MaxStaleness)
	c.PresignExpiry = ParseDuration(env("CATALOG_PRESIGN_EXPIRY"), c.PresignExpiry)
	c.BreakerThreshold = ParseInt(env("CATALOG_BREAKER_THRESHOLD"), c.BreakerThreshold)
	c.BreakerReset = ParseDuration(env("CATALOG_BREAKER_RESET"), c.BreakerReset)

	cfg.Cache.Backend = ParseString(env("CACHE_BACKEND"), cfg.Cache.Backend)
	cfg.Cache.Redis.Addr = ParseString(env("REDIS_ADDR"), cfg.Cache.Redis.Addr)
	cfg.Cache.Redis.Password = ParseString(env("REDIS_PASSWORD"), cfg.Cache.Redis.Password)
	cfg.Cache.Redis.DB = ParseInt(env("REDIS_DB"), cfg.Cache.Redis.DB)

	cfg.Blob.Origin = ParseString(env("BLOB_ORIGIN"), cfg.Blob.Origin)
	cfg.Blob.MaxBytes = ParseInt64(env("BLOB_MAX_BYTES"), cfg.Blob.MaxBytes)

	st := &cfg.Storage
	st.Endpoint = ParseString(env("S3_ENDPOINT"), st.Endpoint)
	st.PublicEndpoint = ParseString(env("S3_PUBLIC_ENDPOINT"), st.PublicEndpoint)
	st.Bucket = ParseString(env("S3_BUCKET"), st.Bucket)
	st.AccessKey = ParseString(env("S3_ACCESS_KEY"), st.AccessKey)
	st.SecretKey = ParseString(env("S3_SECRET_KEY"), st.SecretKey)
	st.Region = ParseString(env("S3_REGION"), st.Region)

	t := &cfg.Telemetry
	t.Enabled = ParseBool(env("TRACING_ENABLED"), t.Enabled)
	t.Exporter = ParseString(env("TRACING_EXPORTER"), t.Exporter)
	t.Endpoint = ParseString(env("TRACING_ENDPOINT"), t.Endpoint)
	t.SamplingRate = ParseFloat(env("TRACING_SAMPLING_RATE"), t.SamplingRate)

	cfg.Metrics.Enabled = ParseBool(env("METRICS_ENABLED"), cfg.Metrics.Enabled)
}
