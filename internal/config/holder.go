// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	xglog "github.com/kuntrapaku/subway-social-link-sub000/internal/log"
)

const defaultDebounce = 500 * time.Millisecond

// Holder serves the live configuration and swaps it on reload. Only the
// reloadable subset changes at runtime; everything else needs a restart.
type Holder struct {
	mu      sync.RWMutex
	current AppConfig
	loader  *Loader
	logger  zerolog.Logger

	listenersMu sync.RWMutex
	listeners   []chan<- AppConfig

	debounce time.Duration
}

func NewHolder(initial AppConfig, loader *Loader) *Holder {
	return &Holder{
		current:  initial,
		loader:   loader,
		logger:   xglog.WithComponent("config"),
		debounce: defaultDebounce,
	}
}

func (h *Holder) Get() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Subscribe registers ch for successful reloads. Sends never block; a full
// channel misses the update.
func (h *Holder) Subscribe(ch chan<- AppConfig) {
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	h.listeners = append(h.listeners, ch)
}

// Reload re-reads file and environment. An invalid result leaves the current
// configuration untouched.
func (h *Holder) Reload(_ context.Context) error {
	h.logger.Info().Str(xglog.FieldEvent, "config.reload_start").Msg("reloading configuration")

	next, err := h.loader.Load()
	if err != nil {
		h.logger.Error().Err(err).Str(xglog.FieldEvent, "config.reload_failed").Msg("failed to load new configuration")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	old := h.current
	merged := applyReloadable(old, next)
	h.current = merged
	h.mu.Unlock()

	if restartOnly(old, next) {
		h.logger.Warn().Str(xglog.FieldEvent, "config.restart_required").
			Msg("configuration changes outside the reloadable set take effect after restart")
	}
	h.logChanges(old, merged)
	h.notify(merged)
	h.logger.Info().Str(xglog.FieldEvent, "config.reload_success").Msg("configuration reloaded")
	return nil
}

// applyReloadable copies the runtime-adjustable fields of next onto cur.
func applyReloadable(cur, next AppConfig) AppConfig {
	cur.LogLevel = next.LogLevel
	cur.Playback = next.Playback
	cur.Sessions.IdleTimeout = next.Sessions.IdleTimeout
	cur.Sessions.MaxSessions = next.Sessions.MaxSessions
	cur.Sessions.MaxPerViewer = next.Sessions.MaxPerViewer
	return cur
}

func restartOnly(old, next AppConfig) bool {
	return !reflect.DeepEqual(applyReloadable(old, next), next)
}

func (h *Holder) notify(cfg AppConfig) {
	h.listenersMu.RLock()
	defer h.listenersMu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- cfg:
		default:
			h.logger.Warn().Str(xglog.FieldEvent, "config.listener_skip").Msg("skipped notifying listener (channel full)")
		}
	}
}

func (h *Holder) logChanges(old, next AppConfig) {
	if old.LogLevel != next.LogLevel {
		h.logger.Info().Str("old", old.LogLevel).Str("new", next.LogLevel).Msg("config changed: logLevel")
	}
	if old.Playback != next.Playback {
		h.logger.Info().
			Dur("grace_window", next.Playback.GraceWindow).
			Float64("visibility_threshold", next.Playback.VisibilityThreshold).
			Bool("autoplay_on_visible", next.Playback.AutoplayOnVisible).
			Msg("config changed: playback")
	}
	if old.Sessions != next.Sessions {
		h.logger.Info().
			Dur("idle_timeout", next.Sessions.IdleTimeout).
			Int("max_sessions", next.Sessions.MaxSessions).
			Int("max_per_viewer", next.Sessions.MaxPerViewer).
			Msg("config changed: sessions")
	}
}

// Watch reloads on changes to the config file until ctx ends. The parent
// directory is watched so atomic replace-by-rename is seen too.
func (h *Holder) Watch(ctx context.Context) error {
	path := h.loader.Path()
	if path == "" {
		h.logger.Info().Str(xglog.FieldEvent, "config.watcher_disabled").Msg("config file watcher disabled (no config file)")
		<-ctx.Done()
		return nil
	}
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}
	h.logger.Info().Str(xglog.FieldEvent, "config.watcher_started").Str(xglog.FieldPath, path).Msg("watching config file for changes")

	timer := time.NewTimer(h.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str(xglog.FieldEvent, "config.watcher_stopped").Msg("config watcher stopped")
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				timer.Reset(h.debounce)
			}
		case <-timer.C:
			if err := h.Reload(ctx); err != nil {
				h.logger.Error().Err(err).Str(xglog.FieldEvent, "config.auto_reload_failed").Msg("automatic config reload failed")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.logger.Error().Err(err).Str(xglog.FieldEvent, "config.watcher_error").Msg("config watcher error")
		}
	}
}
