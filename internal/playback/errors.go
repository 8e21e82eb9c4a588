// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import (
	"errors"
	"fmt"
)

var (
	ErrClosed          = errors.New("controller closed")
	ErrRetryNotAllowed = errors.New("retry is only available after a load failure")
	ErrNotReady        = errors.New("media is not ready")
	ErrUnpresentable   = errors.New("reference is not presentable")
)

// IllegalTransitionError reports an intent the decision table forbids in the
// current state. Err, when set, is the sentinel callers match with errors.Is.
type IllegalTransitionError struct {
	From   State
	Event  EventKind
	Reason string
	Err    error
}

func (e *IllegalTransitionError) Error() string {
	msg := fmt.Sprintf("illegal transition: state=%s event=%s reason=%s", e.From, e.Event, e.Reason)
	if e.Err != nil {
		return e.Err.Error() + ": " + msg
	}
	return msg
}

func (e *IllegalTransitionError) Unwrap() error { return e.Err }
