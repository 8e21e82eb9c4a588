// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

// EventKind is a controller-level event in the playback lifecycle.
type EventKind int

const (
	EvUnknown EventKind = iota
	EvLoadIssued
	EvReady // "can play" or "data loaded", whichever fires first
	EvErrorConfirmed
	EvRetryRequested
	EvPlay
	EvPause
	EvPlayRejected
	EvEnded
	EvReset
	EvUnmount
)

// Events lists every event kind the transition table knows about.
var Events = []EventKind{
	EvLoadIssued,
	EvReady,
	EvErrorConfirmed,
	EvRetryRequested,
	EvPlay,
	EvPause,
	EvPlayRejected,
	EvEnded,
	EvReset,
	EvUnmount,
}

func (e EventKind) String() string {
	switch e {
	case EvLoadIssued:
		return "load_issued"
	case EvReady:
		return "ready"
	case EvErrorConfirmed:
		return "error_confirmed"
	case EvRetryRequested:
		return "retry_requested"
	case EvPlay:
		return "play"
	case EvPause:
		return "pause"
	case EvPlayRejected:
		return "play_rejected"
	case EvEnded:
		return "ended"
	case EvReset:
		return "reset"
	case EvUnmount:
		return "unmount"
	default:
		return "unknown"
	}
}
