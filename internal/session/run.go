// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"errors"
	"time"

	"github.com/kuntrapaku/subway-social-link-sub000/internal/bus"
	xglog "github.com/kuntrapaku/subway-social-link-sub000/internal/log"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/media"
)

const shutdownTimeout = 5 * time.Second

// Run follows auth and media updates from the bus and sweeps idle sessions
// until ctx ends, then closes every session.
func (m *Manager) Run(ctx context.Context) error {
	var authC, mediaC <-chan bus.Event
	if m.deps.Bus != nil {
		authSub, err := m.deps.Bus.Subscribe(ctx, bus.KindAuthChanged)
		if err != nil {
			return err
		}
		defer func() { _ = authSub.Close() }()
		mediaSub, err := m.deps.Bus.Subscribe(ctx, bus.KindMediaUpdated)
		if err != nil {
			return err
		}
		defer func() { _ = mediaSub.Close() }()
		authC, mediaC = authSub.C(), mediaSub.C()
	}

	var tick <-chan time.Time
	if cfg := m.config(); cfg.SweepInterval > 0 {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		tick = ticker.C
		m.logger.Info().Dur("interval", cfg.SweepInterval).Dur("idle_timeout", cfg.IdleTimeout).Msg("session sweeper started")
	}

	for {
		select {
		case <-ctx.Done():
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			err := m.CloseAll(sctx)
			cancel()
			return err
		case ev, ok := <-authC:
			if !ok {
				authC = nil
				continue
			}
			m.handle(ctx, ev)
		case ev, ok := <-mediaC:
			if !ok {
				mediaC = nil
				continue
			}
			m.handle(ctx, ev)
		case <-tick:
			m.Sweep(ctx)
		}
	}
}

func (m *Manager) handle(ctx context.Context, ev bus.Event) {
	var err error
	switch e := ev.(type) {
	case bus.AuthChanged:
		auth := media.Anonymous
		if e.Authenticated {
			auth = media.Authenticated
		}
		err = m.ApplyAuth(ctx, e.ViewerID, auth)
	case bus.MediaUpdated:
		err = m.ApplyMediaUpdate(ctx, e.ItemID, e.Deleted)
	}
	if err != nil {
		m.logger.Warn().Err(err).Str(xglog.FieldEvent, string(ev.Kind())).Msg("session event handling failed")
	}
}

// Sweep closes sessions idle for longer than IdleTimeout and reports how
// many it closed.
func (m *Manager) Sweep(ctx context.Context) int {
	idle := m.config().IdleTimeout
	if idle <= 0 {
		return 0
	}
	cutoff := m.deps.Clock.Now().Add(-idle)
	closed := 0
	for _, s := range m.List("") {
		if !s.idleSince().Before(cutoff) {
			continue
		}
		err := m.closeSession(ctx, s.ID, "idle")
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			m.logger.Warn().Err(err).Str(xglog.FieldSessionID, s.ID).Msg("idle session close failed")
		}
		closed++
	}
	return closed
}
