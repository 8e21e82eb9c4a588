// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsAreValid(t *testing.T) {
	t.Setenv("REELPLAY_DATA", t.TempDir())
	cfg, err := NewLoader("").Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Playback.GraceWindow)
	assert.Equal(t, 0.5, cfg.Playback.VisibilityThreshold)
	assert.Equal(t, filepath.Join(cfg.DataDir, "catalog.sqlite"), cfg.Catalog.Path)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, `
version: 1
dataDir: `+dir+`
logLevel: debug
playback:
  graceWindow: 3s
  visibilityThreshold: 0.75
sessions:
  maxSessions: 50
`)
	t.Setenv("REELPLAY_GRACE_WINDOW", "5s")
	t.Setenv("REELPLAY_API_TOKENS", "tok-a=viewer-a,tok-b=viewer-b:admin")

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel, "file beats default")
	assert.Equal(t, 5*time.Second, cfg.Playback.GraceWindow, "env beats file")
	assert.Equal(t, 0.75, cfg.Playback.VisibilityThreshold)
	assert.Equal(t, 50, cfg.Sessions.MaxSessions)
	assert.Equal(t, 16, cfg.Sessions.MaxPerViewer, "unset keys keep defaults")
	assert.Equal(t, []TokenConfig{
		{Token: "tok-a", ViewerID: "viewer-a"},
		{Token: "tok-b", ViewerID: "viewer-b", Admin: true},
	}, cfg.Auth.Tokens)
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	t.Setenv("REELPLAY_DATA", t.TempDir())
	t.Setenv("REELPLAY_GRACE_WINDOW", "soon")
	t.Setenv("REELPLAY_RATELIMIT_ENABLED", "maybe")
	cfg, err := NewLoader("").Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Playback.GraceWindow)
	assert.True(t, cfg.Server.RateLimit.Enabled)
}

func TestLoad_StrictFile(t *testing.T) {
	dir := t.TempDir()
	_, err := NewLoader(writeFile(t, dir, "version: 1\nplayback:\n  graceWindw: 3s\n")).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strict config parse error")

	_, err = NewLoader(writeFile(t, dir, "version: 1\n---\nversion: 1\n")).Load()
	require.Error(t, err)

	_, err = NewLoader(filepath.Join(dir, "config.json")).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only YAML")
}

func TestValidate(t *testing.T) {
	base := Default()
	base.Catalog.Path = "/tmp/catalog.sqlite"
	require.NoError(t, Validate(base))

	cases := []struct {
		name  string
		field string
		mut   func(*AppConfig)
	}{
		{"level", "logLevel", func(c *AppConfig) { c.LogLevel = "loud" }},
		{"grace", "playback.graceWindow", func(c *AppConfig) { c.Playback.GraceWindow = 0 }},
		{"threshold", "playback.visibilityThreshold", func(c *AppConfig) { c.Playback.VisibilityThreshold = 1.5 }},
		{"store", "catalog.store", func(c *AppConfig) { c.Catalog.Store = "postgres" }},
		{"redis", "cache.redis.addr", func(c *AppConfig) { c.Cache.Backend = "redis" }},
		{"cors", "server.corsOrigins", func(c *AppConfig) { c.Server.CORSOrigins = []string{"not a url"} }},
		{"tokens", "auth.tokens[1]", func(c *AppConfig) {
			c.Auth.Tokens = []TokenConfig{{Token: "a", ViewerID: "v"}, {Token: "a", ViewerID: "w"}}
		}},
		{"locked", "auth", func(c *AppConfig) { c.Auth.AllowAnonymous = false }},
		{"s3 keys", "storage", func(c *AppConfig) { c.Storage.Bucket = "reels"; c.Storage.AccessKey = "AK" }},
		{"tracing", "telemetry.endpoint", func(c *AppConfig) { c.Telemetry.Enabled = true }},
		{"connections", "server.maxConnections", func(c *AppConfig) { c.Server.MaxConnections = -1 }},
		{"breaker", "catalog.breaker", func(c *AppConfig) { c.Catalog.BreakerReset = -time.Second }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			cfg.Server.CORSOrigins = nil
			cfg.Auth.Tokens = nil
			tc.mut(&cfg)
			err := Validate(cfg)
			require.Error(t, err)
			var ve ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")
	cfg := Default()
	cfg.DataDir = dir
	cfg.Playback.GraceWindow = 1500 * time.Millisecond
	cfg.Auth.Tokens = []TokenConfig{{Token: "tok", ViewerID: "v1"}}
	require.NoError(t, Save(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, cfg.Playback, loaded.Playback)
	assert.Equal(t, cfg.Auth.Tokens, loaded.Auth.Tokens)
}

func TestHolder_ReloadAppliesReloadableOnly(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "version: 1\ndataDir: "+dir+"\n")
	loader := NewLoader(path)
	initial, err := loader.Load()
	require.NoError(t, err)
	h := NewHolder(initial, loader)

	updates := make(chan AppConfig, 1)
	h.Subscribe(updates)

	writeFile(t, dir, "version: 1\ndataDir: "+dir+"\nlogLevel: warn\nplayback:\n  graceWindow: 4s\nserver:\n  listenAddr: \":9999\"\n")
	require.NoError(t, h.Reload(context.Background()))

	got := h.Get()
	assert.Equal(t, "warn", got.LogLevel)
	assert.Equal(t, 4*time.Second, got.Playback.GraceWindow)
	assert.Equal(t, ":8088", got.Server.ListenAddr, "listen address needs a restart")
	select {
	case cfg := <-updates:
		assert.Equal(t, "warn", cfg.LogLevel)
	default:
		t.Fatal("listener not notified")
	}

	writeFile(t, dir, "version: 1\nlogLevel: shouting\n")
	require.Error(t, h.Reload(context.Background()))
	assert.Equal(t, "warn", h.Get().LogLevel, "invalid reload keeps current config")
}

func TestHolder_WatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "version: 1\ndataDir: "+dir+"\n")
	loader := NewLoader(path)
	initial, err := loader.Load()
	require.NoError(t, err)
	h := NewHolder(initial, loader)
	h.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Watch(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	cfg := initial
	cfg.LogLevel = "error"
	require.Eventually(t, func() bool {
		_ = Save(path, cfg)
		return h.Get().LogLevel == "error"
	}, 5*time.Second, 100*time.Millisecond)
}
