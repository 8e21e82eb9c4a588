// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

const (
	ForbiddenOutOfOrder     = "out_of_order"
	ForbiddenAlreadyInState = "already_in_state"
	ForbiddenRequiresLoad   = "requires_load"
	ForbiddenRequiresReady  = "requires_ready"
	ForbiddenRequiresFailed = "requires_failed"
	ForbiddenRequiresRetry  = "requires_retry"
	ForbiddenNotPlaying     = "not_playing"
)

func allowed() Decision        { return Decision{Allowed: true} }
func forbid(r string) Decision { return Decision{Allowed: false, Reason: r} }

// decisionTable defines an explicit decision for every State×Event combination.
var decisionTable = map[State]map[EventKind]Decision{
	StateIdle: {
		EvLoadIssued:     allowed(),
		EvReady:          forbid(ForbiddenRequiresLoad),
		EvErrorConfirmed: forbid(ForbiddenRequiresLoad),
		EvRetryRequested: forbid(ForbiddenRequiresFailed),
		EvPlay:           forbid(ForbiddenRequiresReady),
		EvPause:          forbid(ForbiddenNotPlaying),
		EvPlayRejected:   forbid(ForbiddenNotPlaying),
		EvEnded:          forbid(ForbiddenNotPlaying),
		EvReset:          forbid(ForbiddenAlreadyInState),
		EvUnmount:        forbid(ForbiddenAlreadyInState),
	},
	StateLoading: {
		EvLoadIssued:     forbid(ForbiddenAlreadyInState),
		EvReady:          allowed(),
		EvErrorConfirmed: allowed(),
		EvRetryRequested: forbid(ForbiddenRequiresFailed),
		EvPlay:           forbid(ForbiddenRequiresReady),
		EvPause:          forbid(ForbiddenNotPlaying),
		EvPlayRejected:   forbid(ForbiddenNotPlaying),
		EvEnded:          forbid(ForbiddenNotPlaying),
		EvReset:          allowed(),
		EvUnmount:        allowed(),
	},
	StateReady: {
		EvLoadIssued:     forbid(ForbiddenOutOfOrder),
		EvReady:          forbid(ForbiddenAlreadyInState),
		EvErrorConfirmed: forbid(ForbiddenOutOfOrder),
		EvRetryRequested: forbid(ForbiddenRequiresFailed),
		EvPlay:           allowed(),
		EvPause:          forbid(ForbiddenNotPlaying),
		EvPlayRejected:   forbid(ForbiddenNotPlaying),
		EvEnded:          forbid(ForbiddenNotPlaying),
		EvReset:          allowed(),
		EvUnmount:        allowed(),
	},
	StatePlaying: {
		EvLoadIssued:     forbid(ForbiddenOutOfOrder),
		EvReady:          forbid(ForbiddenAlreadyInState),
		EvErrorConfirmed: forbid(ForbiddenOutOfOrder),
		EvRetryRequested: forbid(ForbiddenRequiresFailed),
		EvPlay:           forbid(ForbiddenAlreadyInState),
		EvPause:          allowed(),
		EvPlayRejected:   allowed(),
		EvEnded:          allowed(),
		EvReset:          allowed(),
		EvUnmount:        allowed(),
	},
	StatePaused: {
		EvLoadIssued:     forbid(ForbiddenOutOfOrder),
		EvReady:          forbid(ForbiddenAlreadyInState),
		EvErrorConfirmed: forbid(ForbiddenOutOfOrder),
		EvRetryRequested: forbid(ForbiddenRequiresFailed),
		EvPlay:           allowed(),
		EvPause:          forbid(ForbiddenAlreadyInState),
		EvPlayRejected:   forbid(ForbiddenNotPlaying),
		EvEnded:          forbid(ForbiddenNotPlaying),
		EvReset:          allowed(),
		EvUnmount:        allowed(),
	},
	StateFailed: {
		EvLoadIssued:     forbid(ForbiddenRequiresRetry),
		EvReady:          forbid(ForbiddenOutOfOrder),
		EvErrorConfirmed: forbid(ForbiddenAlreadyInState),
		EvRetryRequested: allowed(),
		EvPlay:           forbid(ForbiddenRequiresReady),
		EvPause:          forbid(ForbiddenNotPlaying),
		EvPlayRejected:   forbid(ForbiddenNotPlaying),
		EvEnded:          forbid(ForbiddenNotPlaying),
		EvReset:          allowed(),
		EvUnmount:        allowed(),
	},
	StateRetrying: {
		EvLoadIssued:     allowed(),
		EvReady:          forbid(ForbiddenRequiresLoad),
		EvErrorConfirmed: forbid(ForbiddenRequiresLoad),
		EvRetryRequested: forbid(ForbiddenAlreadyInState),
		EvPlay:           forbid(ForbiddenRequiresReady),
		EvPause:          forbid(ForbiddenNotPlaying),
		EvPlayRejected:   forbid(ForbiddenNotPlaying),
		EvEnded:          forbid(ForbiddenNotPlaying),
		EvReset:          allowed(),
		EvUnmount:        allowed(),
	},
}

// DecisionFor returns the explicit decision for state+event.
func DecisionFor(from State, ev EventKind) (Decision, bool) {
	row, ok := decisionTable[from]
	if !ok {
		return Decision{}, false
	}
	d, ok := row[ev]
	return d, ok
}
