// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bus

import "time"

// Kind names one of the event types the bus carries. The set is closed:
// publishing or subscribing to anything else fails with ErrUnknownKind.
type Kind string

const (
	KindPlaybackStatus Kind = "playback.status"
	KindAuthChanged    Kind = "viewer.auth_changed"
	KindMediaUpdated   Kind = "media.updated"
)

var Kinds = []Kind{KindPlaybackStatus, KindAuthChanged, KindMediaUpdated}

func (k Kind) Valid() bool {
	switch k {
	case KindPlaybackStatus, KindAuthChanged, KindMediaUpdated:
		return true
	}
	return false
}

// Event is implemented by every payload type below.
type Event interface {
	Kind() Kind
}

// PlaybackStatus mirrors the error/playing callbacks of one player session.
type PlaybackStatus struct {
	SessionID string    `json:"sessionId"`
	ItemID    string    `json:"itemId,omitempty"`
	ViewerID  string    `json:"viewerId,omitempty"`
	State     string    `json:"state"`
	Failed    bool      `json:"failed"`
	Playing   bool      `json:"playing"`
	At        time.Time `json:"at"`
}

func (PlaybackStatus) Kind() Kind { return KindPlaybackStatus }

// AuthChanged reports an ambient auth transition for a viewer.
type AuthChanged struct {
	ViewerID      string    `json:"viewerId"`
	Authenticated bool      `json:"authenticated"`
	At            time.Time `json:"at"`
}

func (AuthChanged) Kind() Kind { return KindAuthChanged }

// MediaUpdated reports that the durable reference of an item was replaced
// or removed.
type MediaUpdated struct {
	ItemID  string    `json:"itemId"`
	Deleted bool      `json:"deleted,omitempty"`
	At      time.Time `json:"at"`
}

func (MediaUpdated) Kind() Kind { return KindMediaUpdated }
