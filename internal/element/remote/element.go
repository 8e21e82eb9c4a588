// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package remote bridges a browser's native media element over a websocket.
// The element keeps the desired state (source, load token, muted, playing)
// so a browser that attaches late, or reconnects, is brought up to date with
// a single snapshot.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	xglog "github.com/kuntrapaku/subway-social-link-sub000/internal/log"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/metrics"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/playback"
)

const (
	DefaultMessagesPerSecond = 20
	DefaultBurst             = 40
	DefaultPingInterval      = 30 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultReadLimit         = 64 * 1024
	DefaultSendBuffer        = 64
)

var (
	ErrNoSource = errors.New("no source set")
	ErrShutdown = errors.New("remote element shut down")

	errDetached = errors.New("attachment stopped")
)

type Options struct {
	MessagesPerSecond float64
	Burst             int
	PingInterval      time.Duration
	WriteTimeout      time.Duration
	ReadLimit         int64
	SendBuffer        int
	Logger            *zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.MessagesPerSecond <= 0 {
		o.MessagesPerSecond = DefaultMessagesPerSecond
	}
	if o.Burst <= 0 {
		o.Burst = DefaultBurst
	}
	if o.PingInterval <= 0 {
		o.PingInterval = DefaultPingInterval
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = DefaultReadLimit
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = DefaultSendBuffer
	}
	return o
}

type Element struct {
	opts   Options
	logger zerolog.Logger

	mu       sync.Mutex
	state    State
	att      *attachment
	shutdown bool
	subs     map[int]func(playback.ElementEvent)
	nextSub  int
}

var _ playback.Element = (*Element)(nil)

func New(opts Options) *Element {
	opts = opts.withDefaults()
	logger := xglog.WithComponent("remote_element")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Element{opts: opts, logger: logger, subs: make(map[int]func(playback.ElementEvent))}
}

// attachment is one live websocket. Commands are queued on send and written
// by a single writer goroutine.
type attachment struct {
	conn *websocket.Conn
	send chan Command
	done chan struct{}
	once sync.Once

	status websocket.StatusCode
	reason string
}

func (a *attachment) stop(status websocket.StatusCode, reason string) {
	a.once.Do(func() {
		a.status = status
		a.reason = reason
		close(a.done)
	})
}

// Serve attaches conn and blocks until the peer goes away, ctx ends, the
// attachment is superseded by a newer one, or the element shuts down. A
// previous attachment is closed first. The desired state is sent as a
// snapshot before any other command.
func (e *Element) Serve(ctx context.Context, conn *websocket.Conn) error {
	a := &attachment{
		conn: conn,
		send: make(chan Command, e.opts.SendBuffer),
		done: make(chan struct{}),
	}

	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		_ = conn.Close(websocket.StatusGoingAway, "element closed")
		return ErrShutdown
	}
	if e.att != nil {
		e.att.stop(websocket.StatusNormalClosure, "superseded")
		metrics.IncRemoteAttach("superseded")
	}
	a.send <- e.state.snapshot()
	e.att = a
	e.mu.Unlock()

	metrics.IncRemoteAttach("attached")
	metrics.IncRemoteAttached()
	defer metrics.DecRemoteAttached()
	e.logger.Debug().Msg("remote element attached")

	conn.SetReadLimit(e.opts.ReadLimit)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.readLoop(gctx, a) })
	g.Go(func() error { return e.writeLoop(gctx, a) })
	err := g.Wait()

	e.mu.Lock()
	if e.att == a {
		e.att = nil
	}
	e.mu.Unlock()
	a.stop(websocket.StatusNormalClosure, "closing")

	switch {
	case errors.Is(err, errDetached),
		websocket.CloseStatus(err) == websocket.StatusNormalClosure,
		websocket.CloseStatus(err) == websocket.StatusGoingAway:
		return nil
	case ctx.Err() != nil:
		return nil
	}
	return err
}

func (e *Element) readLoop(ctx context.Context, a *attachment) error {
	lim := rate.NewLimiter(rate.Limit(e.opts.MessagesPerSecond), e.opts.Burst)
	for {
		_, data, err := a.conn.Read(ctx)
		if err != nil {
			select {
			case <-a.done:
				return errDetached
			default:
			}
			return err
		}
		if !lim.Allow() {
			metrics.IncRemoteMessage("in", "rate_limited")
			e.reply(a, Command{Type: TypeError, Code: "rate_limited", Message: "too many messages"})
			continue
		}

		var r Report
		if err := json.Unmarshal(data, &r); err != nil {
			metrics.IncRemoteMessage("in", "invalid")
			e.reply(a, Command{Type: TypeError, Code: "invalid_json", Message: "failed to parse message"})
			continue
		}

		switch r.Type {
		case TypePing:
			metrics.IncRemoteMessage("in", "ok")
			e.reply(a, Command{Type: TypePong, ClientTime: r.ClientTime, ServerTime: time.Now().UnixMilli()})
		case TypeEvent:
			kind := playback.ElementEventKind(r.Event)
			if !kind.Valid() {
				metrics.IncRemoteMessage("in", "invalid")
				e.reply(a, Command{Type: TypeError, Code: "unknown_event", Message: "unknown event " + r.Event})
				continue
			}
			metrics.IncRemoteMessage("in", "ok")
			e.observe(a, kind)
			e.emit(playback.ElementEvent{Kind: kind, Token: playback.LoadToken(r.Token), Detail: r.Detail})
		default:
			metrics.IncRemoteMessage("in", "invalid")
			e.reply(a, Command{Type: TypeError, Code: "unknown_type", Message: "unknown message type " + r.Type})
		}
	}
}

func (e *Element) writeLoop(ctx context.Context, a *attachment) error {
	ticker := time.NewTicker(e.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = a.conn.Close(websocket.StatusGoingAway, "server shutdown")
			return ctx.Err()
		case <-a.done:
			_ = a.conn.Close(a.status, a.reason)
			return errDetached
		case cmd := <-a.send:
			wctx, cancel := context.WithTimeout(ctx, e.opts.WriteTimeout)
			err := wsjson.Write(wctx, a.conn, cmd)
			cancel()
			if err != nil {
				return err
			}
			metrics.IncRemoteMessage("out", "ok")
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, e.opts.WriteTimeout)
			err := a.conn.Ping(pctx)
			cancel()
			if err != nil {
				e.logger.Debug().Err(err).Msg("remote element ping failed")
				return err
			}
		}
	}
}

// enqueueLocked never blocks. A browser that cannot keep up is dropped; it
// gets a fresh snapshot when it reconnects.
func (e *Element) enqueueLocked(cmd Command) {
	if e.att == nil {
		return
	}
	select {
	case e.att.send <- cmd:
	default:
		metrics.IncRemoteMessage("out", "overflow")
		e.logger.Warn().Str("type", cmd.Type).Msg("remote element send buffer full, dropping connection")
		e.att.stop(websocket.StatusTryAgainLater, "send buffer overflow")
		e.att = nil
	}
}

func (e *Element) reply(a *attachment, cmd Command) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.att != a {
		return
	}
	e.enqueueLocked(cmd)
}

// observe folds browser-reported stops into the desired state so a
// reconnecting browser is not told to resume playback.
func (e *Element) observe(a *attachment, kind playback.ElementEventKind) {
	if kind != playback.ElementPlayRejected && kind != playback.ElementEnded {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.att != a {
		return
	}
	e.state.Playing = false
}

func (e *Element) SetSource(src string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Src = src
	e.state.Playing = false
	e.enqueueLocked(Command{Type: TypeSetSource, Src: src})
	return nil
}

func (e *Element) Load(token playback.LoadToken) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Src == "" {
		return ErrNoSource
	}
	e.state.Token = uint64(token)
	e.enqueueLocked(Command{Type: TypeLoad, Src: e.state.Src, Token: uint64(token)})
	return nil
}

// Play records the intent and forwards it. A browser refusing playback
// reports it back as a play_rejected event.
func (e *Element) Play(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.shutdown {
		return ErrShutdown
	}
	e.state.Playing = true
	e.enqueueLocked(Command{Type: TypePlay, Token: e.state.Token})
	return nil
}

func (e *Element) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Playing = false
	e.enqueueLocked(Command{Type: TypePause})
	return nil
}

func (e *Element) SetMuted(muted bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Muted = muted
	e.enqueueLocked(Command{Type: TypeSetMuted, Muted: muted})
	return nil
}

func (e *Element) Detach() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Src = ""
	e.state.Playing = false
	e.enqueueLocked(Command{Type: TypeDetach})
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

// Inject delivers an event that arrived through another channel, such as
// the HTTP events endpoint.
func (e *Element) Inject(ev playback.ElementEvent) error {
	if !ev.Kind.Valid() {
		return errors.New("unknown element event " + string(ev.Kind))
	}
	e.emit(ev)
	return nil
}

// Shutdown closes the live attachment and refuses new ones.
func (e *Element) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.shutdown {
		return
	}
	e.shutdown = true
	if e.att != nil {
		e.att.stop(websocket.StatusGoingAway, "session closed")
		metrics.IncRemoteAttach("shutdown")
		e.att = nil
	}
}

func (e *Element) Attached() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.att != nil
}

// Desired returns the state a newly attached browser would be sent.
func (e *Element) Desired() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
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
