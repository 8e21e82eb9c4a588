// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package session is the registry of live players. Each session owns exactly
// one controller and one element; nothing is shared between sessions.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kuntrapaku/subway-social-link-sub000/internal/bus"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/catalog"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/element/probe"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/element/remote"
	xglog "github.com/kuntrapaku/subway-social-link-sub000/internal/log"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/media"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/metrics"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/playback"
)

var (
	ErrNotFound       = errors.New("session not found")
	ErrLimit          = errors.New("session limit reached")
	ErrInvalidRequest = errors.New("invalid session request")
	ErrClosed         = errors.New("session manager closed")
)

const publishTimeout = 250 * time.Millisecond

// Resolver maps an item id to its durable reference.
type Resolver interface {
	Resolve(ctx context.Context, itemID string) (catalog.Resolved, error)
}

// BlobStore is the subset of blob.Store sessions need.
type BlobStore interface {
	probe.BlobOpener
	ReleaseFor(ctx context.Context, ref media.Reference, owner string) error
	ReleaseOwner(ctx context.Context, owner string) (int, error)
}

type Config struct {
	MaxSessions  int
	MaxPerViewer int
	// IdleTimeout closes sessions not touched for this long. 0 disables.
	IdleTimeout   time.Duration
	SweepInterval time.Duration

	GraceWindow         time.Duration
	VisibilityThreshold float64

	ProbeTimeout time.Duration
	Remote       remote.Options
}

type Deps struct {
	Catalog     Resolver
	Blobs       BlobStore
	Bus         bus.Bus
	Clock       playback.Clock
	ProbeRunner probe.Runner
	Logger      *zerolog.Logger
}

type CreateRequest struct {
	ViewerID string
	Auth     media.AuthState
	ItemID   string
	// Reference, when set, is used as-is instead of resolving ItemID.
	Reference         string
	Element           ElementKind
	AutoplayOnVisible bool
}

type Manager struct {
	cfg    Config
	deps   Deps
	logger zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
}

func NewManager(cfg Config, deps Deps) *Manager {
	if deps.Clock == nil {
		deps.Clock = playback.SystemClock()
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
		if cfg.IdleTimeout > 0 {
			cfg.SweepInterval = cfg.IdleTimeout / 2
		}
		if cfg.SweepInterval < 10*time.Second {
			cfg.SweepInterval = 10 * time.Second
		}
	}
	logger := xglog.WithComponent("session")
	if deps.Logger != nil {
		logger = *deps.Logger
	}
	return &Manager{
		cfg:      cfg,
		deps:     deps,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Create resolves the reference, builds the element and starts a controller.
// An unpresentable reference still yields a session; its view reports why.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*Session, error) {
	if req.ViewerID == "" {
		return nil, fmt.Errorf("%w: viewerId is required", ErrInvalidRequest)
	}
	if req.Element == "" {
		req.Element = ElementRemote
	}
	if !req.Element.Valid() {
		return nil, fmt.Errorf("%w: unknown element %q", ErrInvalidRequest, req.Element)
	}
	if req.Reference == "" && req.ItemID == "" {
		return nil, fmt.Errorf("%w: one of itemId or reference is required", ErrInvalidRequest)
	}
	if err := m.admit(req.ViewerID); err != nil {
		return nil, err
	}
	cfg := m.config()

	raw := req.Reference
	var expiresAt time.Time
	if raw == "" {
		if m.deps.Catalog == nil {
			return nil, fmt.Errorf("%w: no catalog configured", ErrInvalidRequest)
		}
		res, err := m.deps.Catalog.Resolve(ctx, req.ItemID)
		if err != nil {
			metrics.IncSessionRejected("resolve")
			return nil, fmt.Errorf("resolve %s: %w", req.ItemID, err)
		}
		raw = res.Reference.Source
		expiresAt = res.ExpiresAt
	}

	now := m.deps.Clock.Now()
	s := &Session{
		ID:          uuid.NewString(),
		ViewerID:    req.ViewerID,
		ItemID:      req.ItemID,
		Element:     req.Element,
		CreatedAt:   now,
		auth:        req.Auth,
		explicitRef: req.Reference != "",
		lastActive:  now,
		expiresAt:   expiresAt,
		state:       playback.StateIdle,
	}
	logger := m.logger.With().
		Str(xglog.FieldSessionID, s.ID).
		Str(xglog.FieldViewerID, s.ViewerID).
		Str(xglog.FieldItemID, s.ItemID).
		Logger()

	var el playback.Element
	switch req.Element {
	case ElementProbe:
		s.probe = probe.New(probe.Options{
			Runner:  m.deps.ProbeRunner,
			Blobs:   m.deps.Blobs,
			Owner:   req.ViewerID,
			Timeout: cfg.ProbeTimeout,
			Logger:  &logger,
		})
		el = s.probe
	default:
		ropts := cfg.Remote
		ropts.Logger = &logger
		s.remote = remote.New(ropts)
		el = s.remote
	}

	var releaser playback.Releaser
	if m.deps.Blobs != nil {
		releaser = sessionReleaser{m: m, s: s}
	}
	s.ctrl = playback.New(el, raw, req.Auth, playback.Options{
		ItemID:              req.ItemID,
		AutoplayOnVisible:   req.AutoplayOnVisible,
		GraceWindow:         cfg.GraceWindow,
		VisibilityThreshold: cfg.VisibilityThreshold,
		Logger:              &logger,
		Clock:               m.deps.Clock,
		Releaser:            releaser,
	}, m.callbacks(s, logger))

	m.mu.Lock()
	if err := m.admitLocked(req.ViewerID); err != nil {
		m.mu.Unlock()
		m.teardown(ctx, s)
		return nil, err
	}
	m.sessions[s.ID] = s
	n := len(m.sessions)
	m.mu.Unlock()

	metrics.SetActiveSessions(n)
	logger.Info().
		Str("element", string(s.Element)).
		Str(xglog.FieldRefKind, string(s.ctrl.Reference().Kind)).
		Msg("session created")
	return s, nil
}

// sessionReleaser frees a session-local binary on behalf of one session.
// Only the session's viewer may free it, and never while another open
// session is still bound to the same reference.
type sessionReleaser struct {
	m *Manager
	s *Session
}

func (r sessionReleaser) Release(ctx context.Context, ref media.Reference) error {
	if r.m.heldElsewhere(r.s, ref) {
		r.m.logger.Debug().
			Str(xglog.FieldSessionID, r.s.ID).
			Str(xglog.FieldReference, ref.Redacted()).
			Msg("release skipped: reference still bound by another session")
		return nil
	}
	return r.m.deps.Blobs.ReleaseFor(ctx, ref, r.s.ViewerID)
}

func (m *Manager) heldElsewhere(self *Session, ref media.Reference) bool {
	m.mu.RLock()
	others := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s != self {
			others = append(others, s)
		}
	}
	m.mu.RUnlock()
	for _, s := range others {
		if s.ctrl.Reference().Same(ref) {
			return true
		}
	}
	return false
}

func (m *Manager) config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Reconfigure swaps limits, timeouts and playback defaults. Running sessions
// keep the playback settings they were created with.
func (m *Manager) Reconfigure(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg.SweepInterval = m.cfg.SweepInterval
	m.cfg = cfg
}

func (m *Manager) admit(viewerID string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.admitLocked(viewerID)
}

func (m *Manager) admitLocked(viewerID string) error {
	if m.closed {
		return ErrClosed
	}
	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		metrics.IncSessionRejected("max_sessions")
		return fmt.Errorf("%w: %d sessions open", ErrLimit, len(m.sessions))
	}
	if m.cfg.MaxPerViewer > 0 {
		n := 0
		for _, s := range m.sessions {
			if s.ViewerID == viewerID {
				n++
			}
		}
		if n >= m.cfg.MaxPerViewer {
			metrics.IncSessionRejected("max_per_viewer")
			return fmt.Errorf("%w: viewer has %d sessions", ErrLimit, n)
		}
	}
	return nil
}

func (m *Manager) callbacks(s *Session, logger zerolog.Logger) playback.Callbacks {
	return playback.Callbacks{
		OnRetryRequested: func() {
			logger.Debug().Msg("retry requested")
		},
		OnErrorChanged: func(failed bool) {
			s.mu.Lock()
			s.failed = failed
			s.mu.Unlock()
			m.publishStatus(s)
		},
		OnPlayingChanged: func(playing bool) {
			s.mu.Lock()
			s.playing = playing
			s.mu.Unlock()
			m.publishStatus(s)
		},
		OnPlayRejected: func(err error) {
			s.mu.Lock()
			s.lastRejection = err.Error()
			s.mu.Unlock()
		},
		OnStateChanged: func(_, to playback.State) {
			s.mu.Lock()
			s.state = to
			s.mu.Unlock()
		},
	}
}

func (m *Manager) publishStatus(s *Session) {
	if m.deps.Bus == nil {
		return
	}
	s.mu.Lock()
	ev := bus.PlaybackStatus{
		SessionID: s.ID,
		ItemID:    s.ItemID,
		ViewerID:  s.ViewerID,
		State:     s.state.String(),
		Failed:    s.failed,
		Playing:   s.playing,
		At:        m.deps.Clock.Now().UTC(),
	}
	s.mu.Unlock()
	m.publish(ev)
}

func (m *Manager) publish(ev bus.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := m.deps.Bus.Publish(ctx, ev); err != nil {
		m.logger.Debug().Err(err).Str("kind", string(ev.Kind())).Msg("status publish dropped")
	}
}

// Get returns the session and marks it active.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.touch(m.deps.Clock.Now())
	return s, nil
}

// List returns the sessions of viewerID, or all sessions when it is empty,
// oldest first.
func (m *Manager) List(viewerID string) []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if viewerID == "" || s.ViewerID == viewerID {
			out = append(out, s)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Limit is the global session cap; 0 means unlimited.
func (m *Manager) Limit() int {
	return m.config().MaxSessions
}

// Close unmounts one session.
func (m *Manager) Close(ctx context.Context, id string) error {
	return m.closeSession(ctx, id, "client")
}

// CloseAll unmounts every session and refuses new ones.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := m.closeSession(ctx, id, "shutdown"); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) closeSession(ctx context.Context, id, cause string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	n := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	metrics.SetActiveSessions(n)
	metrics.IncSessionClosed(cause)
	err := m.teardown(ctx, s)
	m.logger.Info().Str(xglog.FieldSessionID, id).Str("cause", cause).Err(err).Msg("session closed")
	return err
}

func (m *Manager) teardown(ctx context.Context, s *Session) error {
	err := s.ctrl.Close(ctx)
	if s.remote != nil {
		s.remote.Shutdown()
	}
	if s.probe != nil {
		s.probe.Wait()
	}
	return err
}

// SetReference replaces a session's reference with an explicit one. The
// session stops following catalog updates for its item.
func (m *Manager) SetReference(ctx context.Context, id, raw string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.explicitRef = true
	s.expiresAt = time.Time{}
	s.mu.Unlock()
	return s.ctrl.SetReference(ctx, raw)
}

// ApplyAuth moves every session of viewerID to the new auth context. Signing
// out also drops the viewer's session-local binaries.
func (m *Manager) ApplyAuth(ctx context.Context, viewerID string, auth media.AuthState) error {
	var errs []error
	for _, s := range m.List(viewerID) {
		s.mu.Lock()
		s.auth = auth
		s.mu.Unlock()
		if err := s.ctrl.SetAuth(auth); err != nil && !errors.Is(err, playback.ErrClosed) {
			errs = append(errs, fmt.Errorf("session %s: %w", s.ID, err))
		}
	}
	if auth != media.Authenticated && m.deps.Blobs != nil {
		n, err := m.deps.Blobs.ReleaseOwner(ctx, viewerID)
		if err != nil {
			errs = append(errs, fmt.Errorf("release blobs of %s: %w", viewerID, err))
		} else if n > 0 {
			m.logger.Info().Str(xglog.FieldViewerID, viewerID).Int("released", n).Msg("released session-local media on sign-out")
		}
	}
	return errors.Join(errs...)
}

// ApplyMediaUpdate rebinds sessions that follow itemID through the catalog.
func (m *Manager) ApplyMediaUpdate(ctx context.Context, itemID string, deleted bool) error {
	var targets []*Session
	for _, s := range m.List("") {
		s.mu.Lock()
		follows := s.ItemID == itemID && !s.explicitRef
		s.mu.Unlock()
		if follows {
			targets = append(targets, s)
		}
	}
	if len(targets) == 0 {
		return nil
	}

	raw := ""
	var expiresAt time.Time
	if !deleted && m.deps.Catalog != nil {
		res, err := m.deps.Catalog.Resolve(ctx, itemID)
		switch {
		case errors.Is(err, catalog.ErrNotFound):
		case err != nil:
			return fmt.Errorf("resolve %s: %w", itemID, err)
		default:
			raw = res.Reference.Source
			expiresAt = res.ExpiresAt
		}
	}

	var errs []error
	for _, s := range targets {
		s.mu.Lock()
		s.expiresAt = expiresAt
		s.mu.Unlock()
		if err := s.ctrl.SetReference(ctx, raw); err != nil && !errors.Is(err, playback.ErrClosed) {
			errs = append(errs, fmt.Errorf("session %s: %w", s.ID, err))
		}
	}
	return errors.Join(errs...)
}
