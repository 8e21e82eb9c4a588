// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fake provides a scriptable media element that records every call
// made against it.
package fake

import (
	"context"
	"sync"

	"github.com/kuntrapaku/subway-social-link-sub000/internal/playback"
)

const (
	OpSetSource = "set_source"
	OpLoad      = "load"
	OpPlay      = "play"
	OpPause     = "pause"
	OpSetMuted  = "set_muted"
	OpDetach    = "detach"
)

type Call struct {
	Op    string
	Src   string
	Token playback.LoadToken
	Muted bool
}

// Element never emits on its own; tests drive it with Emit.
type Element struct {
	mu      sync.Mutex
	calls   []Call
	subs    map[int]func(playback.ElementEvent)
	nextSub int
	token   playback.LoadToken
	source  string
	muted   bool
	playing bool

	playErr   error
	sourceErr error
	loadErr   error
}

var _ playback.Element = (*Element)(nil)

func New() *Element {
	return &Element{subs: make(map[int]func(playback.ElementEvent))}
}

// SetPlayErr makes every subsequent Play fail with err (nil clears it).
func (e *Element) SetPlayErr(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playErr = err
}

func (e *Element) SetSourceErr(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sourceErr = err
}

func (e *Element) SetLoadErr(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loadErr = err
}

func (e *Element) SetSource(src string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, Call{Op: OpSetSource, Src: src})
	if e.sourceErr != nil {
		return e.sourceErr
	}
	e.source = src
	return nil
}

func (e *Element) Load(token playback.LoadToken) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, Call{Op: OpLoad, Src: e.source, Token: token})
	if e.loadErr != nil {
		return e.loadErr
	}
	e.token = token
	return nil
}

func (e *Element) Play(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, Call{Op: OpPlay, Token: e.token})
	if e.playErr != nil {
		return e.playErr
	}
	e.playing = true
	return nil
}

func (e *Element) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, Call{Op: OpPause, Token: e.token})
	e.playing = false
	return nil
}

func (e *Element) SetMuted(muted bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, Call{Op: OpSetMuted, Muted: muted})
	e.muted = muted
	return nil
}

func (e *Element) Detach() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, Call{Op: OpDetach, Src: e.source})
	e.source = ""
	e.playing = false
	return nil
}

func (e *Element) Subscribe(fn func(playback.ElementEvent)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subs, id)
	}
}

// Emit delivers an event stamped with the token of the latest load.
func (e *Element) Emit(kind playback.ElementEventKind) {
	e.mu.Lock()
	token := e.token
	e.mu.Unlock()
	e.EmitEvent(playback.ElementEvent{Kind: kind, Token: token})
}

// EmitEvent delivers ev as-is, which lets tests replay superseded tokens.
func (e *Element) EmitEvent(ev playback.ElementEvent) {
	e.mu.Lock()
	subs := make([]func(playback.ElementEvent), 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	e.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func (e *Element) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// CallsOf filters the call log by operation.
func (e *Element) CallsOf(op string) []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []Call
	for _, c := range e.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (e *Element) Token() playback.LoadToken {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.token
}

func (e *Element) Source() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.source
}

func (e *Element) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

func (e *Element) Muted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muted
}

func (e *Element) Subscribers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}
