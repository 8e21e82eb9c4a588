// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/kuntrapaku/subway-social-link-sub000/internal/log"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/media"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/metrics"
)

// DefaultGraceWindow is how long an element error is held before the load is
// declared failed.
const DefaultGraceWindow = 2 * time.Second

// Releaser frees the binary behind a session-local reference.
type Releaser interface {
	Release(ctx context.Context, ref media.Reference) error
}

// Callbacks are the owner's status hooks. Every field is optional. Hooks run
// outside the controller lock, in transition order, and are never awaited.
type Callbacks struct {
	OnRetryRequested func()
	OnErrorChanged   func(failed bool)
	OnPlayingChanged func(playing bool)
	// OnPlayRejected reports a refused play intent. The load state is unchanged.
	OnPlayRejected func(err error)
	OnStateChanged func(from, to State)
}

type Options struct {
	ItemID              string
	AutoplayOnVisible   bool
	GraceWindow         time.Duration
	VisibilityThreshold float64
	Logger              *zerolog.Logger
	Clock               Clock
	Releaser            Releaser
}

func (o Options) withDefaults() Options {
	if o.GraceWindow <= 0 {
		o.GraceWindow = DefaultGraceWindow
	}
	if o.VisibilityThreshold <= 0 {
		o.VisibilityThreshold = DefaultVisibilityThreshold
	}
	if o.Clock == nil {
		o.Clock = SystemClock()
	}
	return o
}

// Controller drives one media element through the playback lifecycle for a
// single reference. It owns the element exclusively.
type Controller struct {
	el     Element
	opts   Options
	cb     Callbacks
	logger zerolog.Logger

	mu          sync.Mutex
	ref         media.Reference
	auth        media.AuthState
	problem     media.Problem
	state       State
	token       LoadToken
	attempts    int
	muted       bool
	userPaused  bool
	vis         *VisibilityTracker
	grace       Timer
	loadStarted time.Time
	closed      bool
	unsubscribe func()
}

// notes collects owner callbacks while the lock is held.
type notes []func()

func (n *notes) add(f func()) { *n = append(*n, f) }

func (n notes) flush() {
	for _, f := range n {
		f()
	}
}

// New subscribes to el and then validates ref. A presentable reference is
// bound and loaded immediately; otherwise the controller stays Idle and the
// element is never touched.
func New(el Element, ref string, auth media.AuthState, opts Options, cb Callbacks) *Controller {
	opts = opts.withDefaults()
	var logger zerolog.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	} else {
		logger = xglog.WithComponent("playback")
	}
	if opts.ItemID != "" {
		logger = logger.With().Str(xglog.FieldItemID, opts.ItemID).Logger()
	}

	c := &Controller{
		el:     el,
		opts:   opts,
		cb:     cb,
		logger: logger,
		ref:    media.Parse(ref),
		auth:   auth,
		state:  StateIdle,
		vis:    NewVisibilityTracker(opts.VisibilityThreshold),
	}
	c.unsubscribe = el.Subscribe(c.handleElementEvent)

	var n notes
	c.mu.Lock()
	c.bindLocked(&n)
	c.mu.Unlock()
	n.flush()
	return c
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) AttemptCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

func (c *Controller) Reference() media.Reference {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ref
}

// Problem returns why the current reference was not bound, if it was not.
func (c *Controller) Problem() media.Problem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.problem
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// SetReference replaces the bound reference. Any state returns to Idle, the
// attempt count restarts at zero and the previous session-local reference is
// released. Setting the same reference again is a no-op. Only ErrClosed is
// returned.
func (c *Controller) SetReference(ctx context.Context, raw string) error {
	next := media.Parse(raw)

	var n notes
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if next.Same(c.ref) {
		c.mu.Unlock()
		return nil
	}
	old := c.ref
	c.resetLocked(&n)
	c.ref = next
	c.attempts = 0
	c.logger.Info().
		Str(xglog.FieldReference, next.Redacted()).
		Str(xglog.FieldRefKind, string(next.Kind)).
		Msg("playback.reference_changed")
	c.bindLocked(&n)
	c.mu.Unlock()
	n.flush()

	// The switch has happened; a failed release is logged by release and
	// must not be reported as a failed switch.
	if old.SessionLocal() {
		_ = c.release(ctx, old)
	}
	return nil
}

// SetAuth applies an ambient auth transition. The reference is re-validated
// from scratch even when its text is unchanged.
func (c *Controller) SetAuth(auth media.AuthState) error {
	var n notes
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if auth == c.auth {
		c.mu.Unlock()
		return nil
	}
	c.logger.Info().
		Str("from", c.auth.String()).
		Str("to", auth.String()).
		Msg("playback.auth_changed")
	c.auth = auth
	c.resetLocked(&n)
	c.bindLocked(&n)
	c.mu.Unlock()
	n.flush()
	return nil
}

// Retry re-issues the load after a confirmed failure. It is the only way out
// of Failed besides a reference or auth change.
func (c *Controller) Retry() error {
	var n notes
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateFailed {
		err := c.refusalLocked(EvRetryRequested, ErrRetryNotAllowed)
		c.mu.Unlock()
		return err
	}
	if !c.applyLocked(EvRetryRequested, &n) {
		err := c.refusalLocked(EvRetryRequested, ErrRetryNotAllowed)
		c.mu.Unlock()
		return err
	}
	c.attempts++
	c.userPaused = false
	metrics.IncPlaybackRetry()
	c.logger.Info().Int(xglog.FieldAttempt, c.attempts).Msg("playback.retry")
	if c.cb.OnRetryRequested != nil {
		n.add(c.cb.OnRetryRequested)
	}
	c.notifyErrorLocked(&n, false)
	c.issueLoadLocked(&n)
	c.mu.Unlock()
	n.flush()
	return nil
}

// Play asks the element to start. A runtime refusal is reported through
// OnPlayRejected and returned wrapped in ErrPlayRejected.
func (c *Controller) Play(ctx context.Context) error {
	var n notes
	c.mu.Lock()
	err := c.playLocked(ctx, false, &n)
	c.mu.Unlock()
	n.flush()
	return err
}

func (c *Controller) Pause() error {
	var n notes
	c.mu.Lock()
	err := c.pauseLocked(true, &n)
	c.mu.Unlock()
	n.flush()
	return err
}

// TogglePlay is the click-on-surface intent.
func (c *Controller) TogglePlay(ctx context.Context) error {
	var n notes
	c.mu.Lock()
	var err error
	if c.state == StatePlaying {
		err = c.pauseLocked(true, &n)
	} else {
		err = c.playLocked(ctx, false, &n)
	}
	c.mu.Unlock()
	n.flush()
	return err
}

func (c *Controller) SetMuted(muted bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.setMutedLocked(muted)
}

// ObserveVisibility feeds one intersection ratio. With autoplay enabled, an
// inward crossing starts muted playback and an outward crossing pauses.
func (c *Controller) ObserveVisibility(ratio float64) {
	var n notes
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	crossing := c.vis.Observe(ratio)
	if crossing != CrossNone && c.opts.AutoplayOnVisible {
		c.logger.Debug().Str("crossing", crossing.String()).Float64("ratio", ratio).Msg("playback.visibility")
		switch crossing {
		case CrossIn:
			c.autoplayLocked(&n)
		case CrossOut:
			// Leaving the viewport ends a manual pause hold.
			c.userPaused = false
			if c.state == StatePlaying {
				_ = c.pauseLocked(false, &n)
			}
		}
	}
	c.mu.Unlock()
	n.flush()
}

// Close unmounts the controller: playback stops, the source is detached, the
// grace timer is cleared, listeners are removed and a session-local binary is
// released. Only the first call does any work.
func (c *Controller) Close(ctx context.Context) error {
	var n notes
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.stopGraceLocked(metrics.GraceCancelled)
	if c.state != StateIdle {
		c.unbindLocked()
		wasPlaying := c.state == StatePlaying
		c.applyLocked(EvUnmount, &n)
		if wasPlaying {
			c.notifyPlayingLocked(&n, false)
		}
	}
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	ref := c.ref
	c.logger.Debug().Msg("playback.closed")
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	n.flush()

	if ref.SessionLocal() {
		return c.release(ctx, ref)
	}
	return nil
}

func (c *Controller) release(ctx context.Context, ref media.Reference) error {
	if c.opts.Releaser == nil {
		return nil
	}
	if err := c.opts.Releaser.Release(ctx, ref); err != nil {
		c.logger.Warn().Err(err).Str(xglog.FieldReference, ref.Redacted()).Msg("playback.release_failed")
		return fmt.Errorf("release %s: %w", ref.Redacted(), err)
	}
	return nil
}

func (c *Controller) handleElementEvent(ev ElementEvent) {
	var n notes
	c.mu.Lock()
	defer func() {
		c.mu.Unlock()
		n.flush()
	}()

	if c.closed || ev.Token != c.token {
		metrics.IncStaleElementEvent(string(ev.Kind))
		c.logger.Debug().
			Str(xglog.FieldElementEvent, string(ev.Kind)).
			Uint64(xglog.FieldLoadToken, uint64(ev.Token)).
			Uint64("current_token", uint64(c.token)).
			Bool("closed", c.closed).
			Msg("playback.stale_event_dropped")
		return
	}

	switch ev.Kind {
	case ElementCanPlay, ElementDataLoaded:
		c.readyLocked(ev.Kind, &n)
	case ElementError:
		c.elementErrorLocked(ev.Token, ev.Detail, &n)
	case ElementPlayRejected:
		err := ErrPlayRejected
		if ev.Detail != "" {
			err = fmt.Errorf("%w: %s", ErrPlayRejected, ev.Detail)
		}
		metrics.IncPlaybackPlayRejected()
		c.logger.Info().Str("detail", ev.Detail).Msg("playback.play_rejected")
		if c.state == StatePlaying && c.applyLocked(EvPlayRejected, &n) {
			c.notifyPlayingLocked(&n, false)
		}
		c.notifyRejectedLocked(&n, err)
	case ElementEnded:
		if c.state == StatePlaying && c.applyLocked(EvEnded, &n) {
			c.notifyPlayingLocked(&n, false)
		}
	default:
		c.logger.Warn().Str(xglog.FieldElementEvent, string(ev.Kind)).Msg("playback.unknown_element_event")
	}
}

func (c *Controller) readyLocked(kind ElementEventKind, n *notes) {
	// Whichever readiness signal arrives first wins; the other is a no-op.
	if c.state != StateLoading {
		return
	}
	recovered := c.grace != nil
	c.stopGraceLocked(metrics.GraceRecovered)
	if !c.applyLocked(EvReady, n) {
		return
	}
	metrics.ObserveTimeToReady(c.opts.Clock.Now().Sub(c.loadStarted))
	c.logger.Info().
		Str(xglog.FieldElementEvent, string(kind)).
		Bool("recovered", recovered).
		Int(xglog.FieldAttempt, c.attempts).
		Msg("playback.ready")
	c.notifyErrorLocked(n, false)
	if c.vis.Visible() {
		c.autoplayLocked(n)
	}
}

// elementErrorLocked arms the grace window. Further errors while it is armed
// do not extend it.
func (c *Controller) elementErrorLocked(token LoadToken, detail string, n *notes) {
	if c.state != StateLoading {
		c.logger.Debug().Str(xglog.FieldState, string(c.state)).Str("detail", detail).Msg("playback.error_ignored")
		return
	}
	if c.grace != nil {
		return
	}
	c.logger.Info().
		Str("detail", detail).
		Dur("grace", c.opts.GraceWindow).
		Uint64(xglog.FieldLoadToken, uint64(token)).
		Msg("playback.error_grace_started")
	c.grace = c.opts.Clock.AfterFunc(c.opts.GraceWindow, func() { c.graceExpired(token) })
}

func (c *Controller) graceExpired(token LoadToken) {
	var n notes
	c.mu.Lock()
	if c.closed || c.grace == nil || token != c.token || c.state != StateLoading {
		c.mu.Unlock()
		return
	}
	c.grace = nil
	metrics.RecordGraceOutcome(metrics.GraceExpired)
	if c.applyLocked(EvErrorConfirmed, &n) {
		c.logger.Warn().Int(xglog.FieldAttempt, c.attempts).Msg("playback.load_failed")
		c.notifyErrorLocked(&n, true)
	}
	c.mu.Unlock()
	n.flush()
}

func (c *Controller) stopGraceLocked(outcome string) {
	if c.grace == nil {
		return
	}
	c.grace.Stop()
	c.grace = nil
	metrics.RecordGraceOutcome(outcome)
}

// bindLocked validates the current reference and, if presentable, loads it.
func (c *Controller) bindLocked(n *notes) {
	c.problem = media.Validate(c.ref, c.auth)
	if c.problem != media.ProblemNone {
		metrics.IncUnpresentable(string(c.problem))
		c.logger.Info().
			Str(xglog.FieldProblem, string(c.problem)).
			Str(xglog.FieldReference, c.ref.Redacted()).
			Str("auth", c.auth.String()).
			Msg("playback.unpresentable")
		return
	}
	c.issueLoadLocked(n)
}

func (c *Controller) issueLoadLocked(n *notes) {
	c.token++
	token := c.token
	if !c.applyLocked(EvLoadIssued, n) {
		return
	}
	c.loadStarted = c.opts.Clock.Now()
	c.logger.Debug().
		Uint64(xglog.FieldLoadToken, uint64(token)).
		Str(xglog.FieldReference, c.ref.Redacted()).
		Msg("playback.load_issued")
	if err := c.el.SetSource(c.ref.Source); err != nil {
		c.elementErrorLocked(token, err.Error(), n)
		return
	}
	if err := c.el.Load(token); err != nil {
		c.elementErrorLocked(token, err.Error(), n)
	}
}

// resetLocked returns to Idle and invalidates every in-flight event.
func (c *Controller) resetLocked(n *notes) {
	c.stopGraceLocked(metrics.GraceCancelled)
	c.token++
	c.userPaused = false
	c.problem = media.ProblemNone
	if c.state == StateIdle {
		return
	}
	from := c.state
	c.unbindLocked()
	c.applyLocked(EvReset, n)
	switch from {
	case StatePlaying:
		c.notifyPlayingLocked(n, false)
	case StateFailed:
		c.notifyErrorLocked(n, false)
	}
}

func (c *Controller) unbindLocked() {
	if c.state == StatePlaying {
		if err := c.el.Pause(); err != nil {
			c.logger.Debug().Err(err).Msg("playback.pause_on_unbind_failed")
		}
	}
	if err := c.el.Detach(); err != nil {
		c.logger.Debug().Err(err).Msg("playback.detach_failed")
	}
}

func (c *Controller) playLocked(ctx context.Context, auto bool, n *notes) error {
	if c.closed {
		return ErrClosed
	}
	if c.state == StatePlaying {
		return nil
	}
	if !c.state.Playable() {
		if c.problem != media.ProblemNone {
			return c.refusalLocked(EvPlay, ErrUnpresentable)
		}
		return c.refusalLocked(EvPlay, ErrNotReady)
	}
	if err := c.el.Play(ctx); err != nil {
		if !errors.Is(err, ErrPlayRejected) {
			err = fmt.Errorf("%w: %w", ErrPlayRejected, err)
		}
		metrics.IncPlaybackPlayRejected()
		c.logger.Info().Err(err).Bool("auto", auto).Msg("playback.play_rejected")
		if !auto {
			c.notifyRejectedLocked(n, err)
		}
		return err
	}
	if !c.applyLocked(EvPlay, n) {
		return nil
	}
	c.userPaused = false
	c.notifyPlayingLocked(n, true)
	return nil
}

func (c *Controller) pauseLocked(manual bool, n *notes) error {
	if c.closed {
		return ErrClosed
	}
	if c.state != StatePlaying {
		return nil
	}
	if err := c.el.Pause(); err != nil {
		return fmt.Errorf("pause: %w", err)
	}
	if !c.applyLocked(EvPause, n) {
		return nil
	}
	if manual && c.opts.AutoplayOnVisible && c.vis.Visible() {
		c.userPaused = true
	}
	c.notifyPlayingLocked(n, false)
	return nil
}

// autoplayLocked starts muted playback for a visible, ready element unless a
// manual pause is holding it.
func (c *Controller) autoplayLocked(n *notes) {
	if !c.opts.AutoplayOnVisible || c.userPaused || !c.state.Playable() {
		return
	}
	if !c.muted {
		if err := c.setMutedLocked(true); err != nil {
			c.logger.Debug().Err(err).Msg("playback.autoplay_mute_failed")
			return
		}
	}
	_ = c.playLocked(context.Background(), true, n)
}

func (c *Controller) setMutedLocked(muted bool) error {
	if err := c.el.SetMuted(muted); err != nil {
		return fmt.Errorf("set muted: %w", err)
	}
	c.muted = muted
	return nil
}

// refusalLocked describes why ev cannot be applied in the current state.
func (c *Controller) refusalLocked(ev EventKind, sentinel error) error {
	reason := ForbiddenOutOfOrder
	if d, ok := DecisionFor(c.state, ev); ok && !d.Allowed {
		reason = d.Reason
	}
	if sentinel == ErrUnpresentable {
		reason = string(c.problem)
	}
	return &IllegalTransitionError{From: c.state, Event: ev, Reason: reason, Err: sentinel}
}

// applyLocked commits ev against the decision table.
func (c *Controller) applyLocked(ev EventKind, n *notes) bool {
	from := c.state
	d, ok := DecisionFor(from, ev)
	if !ok || !d.Allowed {
		reason := d.Reason
		if !ok {
			reason = "unknown_event"
		}
		metrics.RecordIllegalTransition(ev.String(), reason)
		c.logger.Warn().
			Str(xglog.FieldEvent, ev.String()).
			Str(xglog.FieldState, string(from)).
			Str("reason", reason).
			Msg("playback.transition_refused")
		return false
	}
	tr, ok := TransitionFor(from, ev)
	if !ok {
		return false
	}
	c.state = tr.To
	metrics.RecordPlaybackTransition(string(from), string(tr.To), ev.String())
	c.logger.Debug().
		Str(xglog.FieldOldState, string(from)).
		Str(xglog.FieldNewState, string(tr.To)).
		Str(xglog.FieldEvent, ev.String()).
		Msg("playback.transition")
	if c.cb.OnStateChanged != nil {
		cb := c.cb.OnStateChanged
		to := tr.To
		n.add(func() { cb(from, to) })
	}
	return true
}

func (c *Controller) notifyErrorLocked(n *notes, failed bool) {
	if cb := c.cb.OnErrorChanged; cb != nil {
		n.add(func() { cb(failed) })
	}
}

func (c *Controller) notifyPlayingLocked(n *notes, playing bool) {
	if cb := c.cb.OnPlayingChanged; cb != nil {
		n.add(func() { cb(playing) })
	}
}

func (c *Controller) notifyRejectedLocked(n *notes, err error) {
	if cb := c.cb.OnPlayRejected; cb != nil {
		n.add(func() { cb(err) })
	}
}
