// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package probe implements a headless media element. Loading a source runs
// ffprobe against it; a playable stream reports readiness, anything else an
// error. Play and pause only move a virtual transport.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kuntrapaku/subway-social-link-sub000/internal/blob"
	xglog "github.com/kuntrapaku/subway-social-link-sub000/internal/log"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/media"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/playback"
)

const DefaultTimeout = 15 * time.Second

const stdinSource = "pipe:0"

var ErrNoSource = errors.New("no source set")

// BlobOpener streams session-local binaries. blob.Store satisfies it.
type BlobOpener interface {
	Open(ctx context.Context, ref media.Reference, owner string) (io.ReadCloser, blob.Meta, error)
}

type Options struct {
	Runner Runner
	// Blobs is required to probe session-local references.
	Blobs BlobOpener
	// Owner is the viewer the session-local binaries must belong to.
	Owner   string
	Timeout time.Duration
	Logger  *zerolog.Logger
}

type Element struct {
	opts   Options
	logger zerolog.Logger

	mu      sync.Mutex
	src     string
	token   playback.LoadToken
	info    *StreamInfo
	playing bool
	muted   bool
	cancel  context.CancelFunc
	subs    map[int]func(playback.ElementEvent)
	nextSub int

	wg sync.WaitGroup
}

var _ playback.Element = (*Element)(nil)

func New(opts Options) *Element {
	if opts.Runner == nil {
		opts.Runner = ExecRunner(DefaultBinary)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	logger := xglog.WithComponent("probe_element")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Element{opts: opts, logger: logger, subs: make(map[int]func(playback.ElementEvent))}
}

func (e *Element) SetSource(src string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
	e.src = src
	return nil
}

// Load starts a probe of the current source in the background. Completion is
// reported through subscribers, tagged with token.
func (e *Element) Load(token playback.LoadToken) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.src == "" {
		return ErrNoSource
	}
	e.stopLocked()
	e.token = token
	ctx, cancel := context.WithTimeout(context.Background(), e.opts.Timeout)
	e.cancel = cancel
	src := e.src
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()
		e.run(ctx, src, token)
	}()
	return nil
}

func (e *Element) run(ctx context.Context, src string, token playback.LoadToken) {
	info, err := e.probe(ctx, src)
	if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		// Superseded or detached.
		return
	}

	e.mu.Lock()
	if e.token != token || e.src != src {
		e.mu.Unlock()
		return
	}
	if err == nil {
		e.info = &info
	}
	e.mu.Unlock()

	if err != nil {
		e.logger.Debug().Err(err).Uint64(xglog.FieldLoadToken, uint64(token)).
			Str(xglog.FieldReference, media.Parse(src).Redacted()).Msg("probe failed")
		e.emit(playback.ElementEvent{Kind: playback.ElementError, Token: token, Detail: err.Error()})
		return
	}
	e.emit(playback.ElementEvent{Kind: playback.ElementDataLoaded, Token: token})
	e.emit(playback.ElementEvent{Kind: playback.ElementCanPlay, Token: token})
}

func (e *Element) probe(ctx context.Context, src string) (StreamInfo, error) {
	ref := media.Parse(src)
	if ref.Kind != media.KindSessionLocal {
		out, stderr, err := e.opts.Runner(ctx, src, nil)
		return Parse(out, stderr, err)
	}
	if e.opts.Blobs == nil {
		return StreamInfo{}, fmt.Errorf("session-local source without blob store")
	}
	rc, _, err := e.opts.Blobs.Open(ctx, ref, e.opts.Owner)
	if err != nil {
		return StreamInfo{}, fmt.Errorf("open blob: %w", err)
	}
	defer rc.Close()
	out, stderr, err := e.opts.Runner(ctx, stdinSource, rc)
	return Parse(out, stderr, err)
}

func (e *Element) Play(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.info == nil {
		return fmt.Errorf("%w: nothing loaded", playback.ErrPlayRejected)
	}
	e.playing = true
	return nil
}

func (e *Element) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playing = false
	return nil
}

func (e *Element) SetMuted(muted bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.muted = muted
	return nil
}

func (e *Element) Detach() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
	e.src = ""
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

// Info returns the stream info of the last successful probe.
func (e *Element) Info() (StreamInfo, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.info == nil {
		return StreamInfo{}, false
	}
	return *e.info, true
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

// Wait blocks until every in-flight probe has returned.
func (e *Element) Wait() { e.wg.Wait() }

func (e *Element) stopLocked() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.info = nil
	e.playing = false
}

func (e *Element) emit(ev playback.ElementEvent) {
	e.mu.Lock()
	fns := make([]func(playback.ElementEvent), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}
