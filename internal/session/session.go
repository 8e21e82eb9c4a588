// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"sync"
	"time"

	"github.com/kuntrapaku/subway-social-link-sub000/internal/element/probe"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/element/remote"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/media"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/playback"
)

// ElementKind selects the runtime that backs a session's media element.
type ElementKind string

const (
	ElementRemote ElementKind = "remote"
	ElementProbe  ElementKind = "probe"
)

func (k ElementKind) Valid() bool {
	return k == ElementRemote || k == ElementProbe
}

// Session is one player: one controller, one element, one reference.
type Session struct {
	ID        string
	ViewerID  string
	ItemID    string
	Element   ElementKind
	CreatedAt time.Time

	ctrl   *playback.Controller
	remote *remote.Element
	probe  *probe.Element

	mu            sync.Mutex
	auth          media.AuthState
	explicitRef   bool
	lastActive    time.Time
	expiresAt     time.Time
	state         playback.State
	failed        bool
	playing       bool
	lastRejection string
}

func (s *Session) Controller() *playback.Controller { return s.ctrl }

// Remote returns the websocket-bridged element, if the session uses one.
func (s *Session) Remote() (*remote.Element, bool) {
	return s.remote, s.remote != nil
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastActive = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) Auth() media.AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auth
}

// Info is the JSON representation served by the API.
type Info struct {
	ID                 string        `json:"id"`
	ViewerID           string        `json:"viewerId"`
	ItemID             string        `json:"itemId,omitempty"`
	Element            ElementKind   `json:"element"`
	CreatedAt          time.Time     `json:"createdAt"`
	LastActive         time.Time     `json:"lastActive"`
	ReferenceExpiresAt *time.Time    `json:"referenceExpiresAt,omitempty"`
	Attached           bool          `json:"attached"`
	LastPlayRejection  string        `json:"lastPlayRejection,omitempty"`
	View               playback.View `json:"view"`
}

func (s *Session) Info() Info {
	view := s.ctrl.View()
	s.mu.Lock()
	defer s.mu.Unlock()
	info := Info{
		ID:                s.ID,
		ViewerID:          s.ViewerID,
		ItemID:            s.ItemID,
		Element:           s.Element,
		CreatedAt:         s.CreatedAt,
		LastActive:        s.lastActive,
		LastPlayRejection: s.lastRejection,
		View:              view,
	}
	if !s.expiresAt.IsZero() {
		exp := s.expiresAt
		info.ReferenceExpiresAt = &exp
	}
	if s.remote != nil {
		info.Attached = s.remote.Attached()
	}
	return info
}
