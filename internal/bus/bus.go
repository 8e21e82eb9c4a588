// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package bus carries typed cross-component notifications between the
// session registry, the catalog and the HTTP surface.
package bus

import (
	"context"
	"errors"
)

var (
	ErrUnknownKind = errors.New("unknown event kind")
	ErrNilEvent    = errors.New("nil event")
)

type Subscriber interface {
	// C returns a read-only event channel. It is closed by Close.
	C() <-chan Event
	// Close unsubscribes.
	Close() error
}

// Bus is the event transport abstraction.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context, kind Kind) (Subscriber, error)
}
