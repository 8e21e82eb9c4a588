// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import "github.com/kuntrapaku/subway-social-link-sub000/internal/media"

// ViewKind is one of the four mutually exclusive panels a player renders.
type ViewKind string

const (
	// ViewUnavailable is rendered for references that never passed validation.
	// The element is never bound on this path.
	ViewUnavailable ViewKind = "unavailable"
	ViewLoading     ViewKind = "loading"
	ViewFailed      ViewKind = "failed"
	ViewReady       ViewKind = "ready"
)

const failedMessage = "This video could not be loaded."

// View is the presentational snapshot handed to the rendering layer.
type View struct {
	Kind         ViewKind      `json:"kind"`
	State        State         `json:"state"`
	ItemID       string        `json:"itemId,omitempty"`
	Problem      media.Problem `json:"problem,omitempty"`
	Message      string        `json:"message,omitempty"`
	Controls     bool          `json:"controls"`
	CanRetry     bool          `json:"canRetry"`
	Playing      bool          `json:"playing"`
	Muted        bool          `json:"muted"`
	AttemptCount int           `json:"attemptCount"`
}

func (c *Controller) viewLocked() View {
	v := View{
		State:        c.state,
		ItemID:       c.opts.ItemID,
		Muted:        c.muted,
		AttemptCount: c.attempts,
	}
	switch {
	case c.closed:
		v.Kind = ViewUnavailable
		v.Problem = media.ProblemEmpty
		v.Message = media.ProblemEmpty.Message()
	case c.state == StateIdle && c.problem != media.ProblemNone:
		v.Kind = ViewUnavailable
		v.Problem = c.problem
		v.Message = c.problem.Message()
	case c.state == StateFailed:
		v.Kind = ViewFailed
		v.Message = failedMessage
		v.CanRetry = true
	case c.state.Loaded():
		v.Kind = ViewReady
		v.Controls = true
		v.Playing = c.state == StatePlaying
	default:
		v.Kind = ViewLoading
	}
	return v
}
