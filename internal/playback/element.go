// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import (
	"context"
	"errors"
)

// ErrPlayRejected is returned (wrapped) when the runtime refuses to start
// playback, e.g. because autoplay policy blocked it.
var ErrPlayRejected = errors.New("play rejected")

// LoadToken identifies one load issued to an element. Elements echo it on
// every lifecycle event so events from a superseded load can be dropped.
type LoadToken uint64

// ElementEventKind enumerates the lifecycle events a media element reports.
type ElementEventKind string

const (
	ElementCanPlay      ElementEventKind = "canplay"
	ElementDataLoaded   ElementEventKind = "loadeddata"
	ElementError        ElementEventKind = "error"
	ElementPlayRejected ElementEventKind = "play_rejected"
	ElementEnded        ElementEventKind = "ended"
)

// Valid reports whether k is one of the known event kinds.
func (k ElementEventKind) Valid() bool {
	switch k {
	case ElementCanPlay, ElementDataLoaded, ElementError, ElementPlayRejected, ElementEnded:
		return true
	}
	return false
}

// ElementEvent is one lifecycle notification from the element.
type ElementEvent struct {
	Kind   ElementEventKind
	Token  LoadToken
	Detail string
}

// Element is the addressable-source media element a controller drives.
// Any runtime exposing this contract is substitutable: a browser element
// bridged over a socket, a headless prober, or a test double.
//
// Implementations must deliver events asynchronously, never from inside one
// of their own method calls.
type Element interface {
	SetSource(src string) error
	Load(token LoadToken) error
	Play(ctx context.Context) error
	Pause() error
	SetMuted(muted bool) error
	// Detach stops playback and drops the source.
	Detach() error
	// Subscribe registers fn for lifecycle events and returns its cancel func.
	Subscribe(fn func(ElementEvent)) (cancel func())
}
