// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

// Transition is a single allowed edge in the playback state machine.
type Transition struct {
	From  State
	To    State
	Event EventKind
}

// Decision records whether a transition is allowed and why it is forbidden.
type Decision struct {
	Allowed bool
	Reason  string
}

var transitionsTable = []Transition{
	// Load path
	{From: StateIdle, To: StateLoading, Event: EvLoadIssued},
	{From: StateRetrying, To: StateLoading, Event: EvLoadIssued},
	{From: StateLoading, To: StateReady, Event: EvReady},
	{From: StateLoading, To: StateFailed, Event: EvErrorConfirmed},

	// Manual retry
	{From: StateFailed, To: StateRetrying, Event: EvRetryRequested},

	// Transport
	{From: StateReady, To: StatePlaying, Event: EvPlay},
	{From: StatePaused, To: StatePlaying, Event: EvPlay},
	{From: StatePlaying, To: StatePaused, Event: EvPause},
	{From: StatePlaying, To: StatePaused, Event: EvPlayRejected},
	{From: StatePlaying, To: StatePaused, Event: EvEnded},

	// Reference or auth change
	{From: StateLoading, To: StateIdle, Event: EvReset},
	{From: StateReady, To: StateIdle, Event: EvReset},
	{From: StatePlaying, To: StateIdle, Event: EvReset},
	{From: StatePaused, To: StateIdle, Event: EvReset},
	{From: StateFailed, To: StateIdle, Event: EvReset},
	{From: StateRetrying, To: StateIdle, Event: EvReset},

	// Teardown
	{From: StateLoading, To: StateIdle, Event: EvUnmount},
	{From: StateReady, To: StateIdle, Event: EvUnmount},
	{From: StatePlaying, To: StateIdle, Event: EvUnmount},
	{From: StatePaused, To: StateIdle, Event: EvUnmount},
	{From: StateFailed, To: StateIdle, Event: EvUnmount},
	{From: StateRetrying, To: StateIdle, Event: EvUnmount},
}

// TransitionFor returns the allowed transition for a given state+event.
func TransitionFor(from State, ev EventKind) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}
