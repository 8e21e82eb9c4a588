// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package testkit

import (
	"fmt"
	"sync"

	"github.com/kuntrapaku/subway-social-link-sub000/internal/playback"
)

// Recorder captures every owner callback a controller invokes.
type Recorder struct {
	mu       sync.Mutex
	states   []playback.State
	status   []string
	errors   []bool
	playing  []bool
	rejected []error
	retries  int
}

func (r *Recorder) Callbacks() playback.Callbacks {
	return playback.Callbacks{
		OnRetryRequested: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.retries++
			r.status = append(r.status, "retry")
		},
		OnErrorChanged: func(failed bool) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errors = append(r.errors, failed)
			r.status = append(r.status, fmt.Sprintf("error:%t", failed))
		},
		OnPlayingChanged: func(playing bool) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.playing = append(r.playing, playing)
			r.status = append(r.status, fmt.Sprintf("playing:%t", playing))
		},
		OnPlayRejected: func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.rejected = append(r.rejected, err)
		},
		OnStateChanged: func(from, to playback.State) {
			r.mu.Lock()
			defer r.mu.Unlock()
			if len(r.states) == 0 {
				r.states = append(r.states, from)
			}
			r.states = append(r.states, to)
		},
	}
}

// States returns the observed state sequence, starting with the first
// from-state.
func (r *Recorder) States() []playback.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]playback.State(nil), r.states...)
}

// Status returns error/playing/retry callbacks in invocation order.
func (r *Recorder) Status() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.status...)
}

func (r *Recorder) ErrorCalls() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.errors...)
}

func (r *Recorder) PlayingCalls() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.playing...)
}

func (r *Recorder) Rejections() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.rejected...)
}

func (r *Recorder) RetryRequests() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retries
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states, r.status, r.errors, r.playing, r.rejected = nil, nil, nil, nil, nil
	r.retries = 0
}
