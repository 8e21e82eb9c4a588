// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

// State is the lifecycle state of one controller.
type State string

const (
	StateIdle     State = "idle"
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StatePlaying  State = "playing"
	StatePaused   State = "paused"
	StateFailed   State = "failed"
	StateRetrying State = "retrying"
)

// States lists every state in declaration order.
var States = []State{
	StateIdle,
	StateLoading,
	StateReady,
	StatePlaying,
	StatePaused,
	StateFailed,
	StateRetrying,
}

// Loaded reports whether the element has reached readiness for the current load.
func (s State) Loaded() bool {
	return s == StateReady || s == StatePlaying || s == StatePaused
}

// Playable reports whether a play intent may be issued.
func (s State) Playable() bool {
	return s == StateReady || s == StatePaused
}

func (s State) String() string { return string(s) }
