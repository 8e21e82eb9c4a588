// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/kuntrapaku/subway-social-link-sub000/internal/element/fake"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/media"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/playback"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/playback/testkit"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	validBlob = "blob:abc1234567890123456"
	otherBlob = "blob:def6543210987654321"
	durable   = "https://media.example.com/reels/42.mp4"
)

type countingReleaser struct {
	mu    sync.Mutex
	count map[string]int
	err   error
}

func (r *countingReleaser) Release(_ context.Context, ref media.Reference) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == nil {
		r.count = map[string]int{}
	}
	r.count[ref.Source]++
	return r.err
}

func (r *countingReleaser) Count(src string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count[src]
}

type harness struct {
	el    *fake.Element
	clock *testkit.ManualClock
	rec   *testkit.Recorder
	rel   *countingReleaser
	ctrl  *playback.Controller
}

func newHarness(t *testing.T, ref string, auth media.AuthState, opts ...func(*playback.Options)) *harness {
	t.Helper()
	h := &harness{
		el:    fake.New(),
		clock: testkit.NewManualClock(),
		rec:   &testkit.Recorder{},
		rel:   &countingReleaser{},
	}
	logger := zerolog.Nop()
	o := playback.Options{
		ItemID:   "item-1",
		Logger:   &logger,
		Clock:    h.clock,
		Releaser: h.rel,
	}
	for _, fn := range opts {
		fn(&o)
	}
	h.ctrl = playback.New(h.el, ref, auth, o, h.rec.Callbacks())
	t.Cleanup(func() { _ = h.ctrl.Close(context.Background()) })
	return h
}

func withAutoplay(o *playback.Options) { o.AutoplayOnVisible = true }

func (h *harness) fail(t *testing.T) {
	t.Helper()
	h.el.Emit(playback.ElementError)
	h.clock.Advance(2100 * time.Millisecond)
	require.Equal(t, playback.StateFailed, h.ctrl.State())
}

func TestController_HappyPath(t *testing.T) {
	h := newHarness(t, validBlob, media.Authenticated)
	require.Equal(t, playback.StateLoading, h.ctrl.State())

	h.clock.Advance(50 * time.Millisecond)
	h.el.Emit(playback.ElementCanPlay)

	require.Equal(t, playback.StateReady, h.ctrl.State())
	want := []playback.State{playback.StateIdle, playback.StateLoading, playback.StateReady}
	if diff := cmp.Diff(want, h.rec.States()); diff != "" {
		t.Fatalf("state sequence mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"error:false"}, h.rec.Status())

	sets := h.el.CallsOf(fake.OpSetSource)
	require.Len(t, sets, 1)
	assert.Equal(t, validBlob, sets[0].Src)

	v := h.ctrl.View()
	assert.Equal(t, playback.ViewReady, v.Kind)
	assert.True(t, v.Controls)
	assert.False(t, v.Playing)
	assert.Equal(t, "item-1", v.ItemID)
}

func TestController_LoadingViewHidesControls(t *testing.T) {
	h := newHarness(t, durable, media.Anonymous)
	v := h.ctrl.View()
	assert.Equal(t, playback.ViewLoading, v.Kind)
	assert.False(t, v.Controls)
	assert.False(t, v.CanRetry)
}

func TestController_SecondReadinessSignalIsNoop(t *testing.T) {
	h := newHarness(t, validBlob, media.Authenticated)
	h.el.Emit(playback.ElementDataLoaded)
	h.el.Emit(playback.ElementCanPlay)

	require.Equal(t, playback.StateReady, h.ctrl.State())
	assert.Equal(t, []string{"error:false"}, h.rec.Status())
}

func TestController_TransientErrorWithinGrace(t *testing.T) {
	h := newHarness(t, validBlob, media.Authenticated)

	h.el.Emit(playback.ElementError)
	require.Equal(t, playback.StateLoading, h.ctrl.State())
	require.Equal(t, 1, h.clock.Pending())

	h.clock.Advance(500 * time.Millisecond)
	h.el.Emit(playback.ElementDataLoaded)
	require.Equal(t, playback.StateReady, h.ctrl.State())

	h.clock.Advance(3 * time.Second)
	assert.Equal(t, playback.StateReady, h.ctrl.State())
	assert.NotContains(t, h.rec.ErrorCalls(), true)
	assert.Zero(t, h.clock.Pending())
}

func TestController_RepeatedErrorsDoNotExtendGrace(t *testing.T) {
	h := newHarness(t, validBlob, media.Authenticated)

	h.el.Emit(playback.ElementError)
	h.clock.Advance(1500 * time.Millisecond)
	h.el.Emit(playback.ElementError)
	h.clock.Advance(600 * time.Millisecond)

	assert.Equal(t, playback.StateFailed, h.ctrl.State())
}

func TestController_GenuineFailureThenRetry(t *testing.T) {
	h := newHarness(t, validBlob, media.Authenticated)

	h.el.Emit(playback.ElementError)
	h.clock.Advance(2100 * time.Millisecond)
	require.Equal(t, playback.StateFailed, h.ctrl.State())
	assert.Equal(t, []bool{true}, h.rec.ErrorCalls())

	v := h.ctrl.View()
	assert.Equal(t, playback.ViewFailed, v.Kind)
	assert.True(t, v.CanRetry)
	assert.NotEmpty(t, v.Message)

	firstToken := h.el.Token()
	require.NoError(t, h.ctrl.Retry())
	assert.Equal(t, 1, h.ctrl.AttemptCount())
	assert.Equal(t, playback.StateLoading, h.ctrl.State())
	assert.Greater(t, h.el.Token(), firstToken)

	h.el.Emit(playback.ElementCanPlay)
	require.Equal(t, playback.StateReady, h.ctrl.State())

	want := []playback.State{
		playback.StateIdle,
		playback.StateLoading,
		playback.StateFailed,
		playback.StateRetrying,
		playback.StateLoading,
		playback.StateReady,
	}
	if diff := cmp.Diff(want, h.rec.States()); diff != "" {
		t.Fatalf("state sequence mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, h.rec.RetryRequests())
	assert.Equal(t, []string{"error:true", "retry", "error:false", "error:false"}, h.rec.Status())
	assert.Equal(t, 1, h.ctrl.View().AttemptCount)
}

func TestController_ShortBlobIsUnavailable(t *testing.T) {
	h := newHarness(t, "blob:x", media.Authenticated)

	assert.Equal(t, playback.StateIdle, h.ctrl.State())
	assert.Empty(t, h.el.Calls())
	assert.Empty(t, h.rec.States())

	v := h.ctrl.View()
	assert.Equal(t, playback.ViewUnavailable, v.Kind)
	assert.Equal(t, media.ProblemTruncated, v.Problem)
	assert.Equal(t, "No valid media available.", v.Message)
	assert.False(t, v.CanRetry)
	assert.False(t, v.Controls)
}

func TestController_RefusedIntentsDescribeTransition(t *testing.T) {
	h := newHarness(t, validBlob, media.Authenticated)
	ctx := context.Background()

	var illegal *playback.IllegalTransitionError
	err := h.ctrl.Play(ctx)
	require.ErrorAs(t, err, &illegal)
	assert.ErrorIs(t, err, playback.ErrNotReady)
	assert.Equal(t, playback.StateLoading, illegal.From)
	assert.Equal(t, playback.EvPlay, illegal.Event)
	assert.Equal(t, playback.ForbiddenRequiresReady, illegal.Reason)

	err = h.ctrl.Retry()
	require.ErrorAs(t, err, &illegal)
	assert.ErrorIs(t, err, playback.ErrRetryNotAllowed)
	assert.Equal(t, playback.EvRetryRequested, illegal.Event)
	assert.Equal(t, playback.ForbiddenRequiresFailed, illegal.Reason)
}

func TestController_PlayUnpresentable(t *testing.T) {
	h := newHarness(t, "blob:x", media.Authenticated)

	err := h.ctrl.Play(context.Background())
	assert.ErrorIs(t, err, playback.ErrUnpresentable)
	assert.NotErrorIs(t, err, playback.ErrNotReady)
	var illegal *playback.IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, playback.StateIdle, illegal.From)
	assert.Equal(t, string(media.ProblemTruncated), illegal.Reason)
	assert.Empty(t, h.el.CallsOf(fake.OpPlay))
}

func TestController_ValidationPrecedesBinding(t *testing.T) {
	refs := []string{
		"https://cdn.example.com/undefined.mp4",
		"https://cdn.example.com/v/null",
		"[object Object]",
		"blob:https://app.example.com/undefined-0000",
		"blob:[object Object]-1234567890",
		"",
		"ftp://cdn.example.com/a.mp4",
	}
	for _, ref := range refs {
		t.Run(ref, func(t *testing.T) {
			h := newHarness(t, ref, media.Authenticated)
			assert.Empty(t, h.el.CallsOf(fake.OpSetSource))
			assert.Empty(t, h.el.CallsOf(fake.OpLoad))
			assert.Equal(t, playback.ViewUnavailable, h.ctrl.View().Kind)
			assert.ErrorIs(t, h.ctrl.Retry(), playback.ErrRetryNotAllowed)
		})
	}
}

func TestController_SessionLocalRequiresSignIn(t *testing.T) {
	h := newHarness(t, validBlob, media.Anonymous)

	v := h.ctrl.View()
	assert.Equal(t, playback.ViewUnavailable, v.Kind)
	assert.Equal(t, media.ProblemSignInRequired, v.Problem)
	assert.Equal(t, "Sign in to view this media.", v.Message)
	assert.Empty(t, h.el.Calls())
}

func TestController_DurableIgnoresAuth(t *testing.T) {
	h := newHarness(t, durable, media.Anonymous)
	assert.Equal(t, playback.StateLoading, h.ctrl.State())
	require.Len(t, h.el.CallsOf(fake.OpSetSource), 1)
}

func TestController_CloseIsIdempotent(t *testing.T) {
	h := newHarness(t, validBlob, media.Authenticated)
	h.el.Emit(playback.ElementCanPlay)
	require.Equal(t, 1, h.el.Subscribers())

	require.NoError(t, h.ctrl.Close(context.Background()))
	calls := len(h.el.Calls())
	require.NoError(t, h.ctrl.Close(context.Background()))

	assert.Equal(t, 1, h.rel.Count(validBlob))
	assert.Equal(t, calls, len(h.el.Calls()), "second close must not touch the element")
	assert.Len(t, h.el.CallsOf(fake.OpDetach), 1)
	assert.Zero(t, h.el.Subscribers())
	assert.Equal(t, playback.StateIdle, h.ctrl.State())
	assert.Equal(t, playback.ViewUnavailable, h.ctrl.View().Kind)
}

func TestController_CloseReportsReleaseErrorOnce(t *testing.T) {
	h := newHarness(t, validBlob, media.Authenticated)
	h.rel.err = errors.New("store offline")

	err := h.ctrl.Close(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store offline")
	assert.NoError(t, h.ctrl.Close(context.Background()))
	assert.Equal(t, 1, h.rel.Count(validBlob))
}

func TestController_SetReferenceSucceedsWhenReleaseFails(t *testing.T) {
	h := newHarness(t, validBlob, media.Authenticated)
	h.rel.err = errors.New("store offline")

	require.NoError(t, h.ctrl.SetReference(context.Background(), durable))
	assert.Equal(t, 1, h.rel.Count(validBlob))
	assert.Equal(t, durable, h.ctrl.Reference().Source)
	assert.Equal(t, playback.StateLoading, h.ctrl.State())
}

func TestController_CloseDurableDoesNotRelease(t *testing.T) {
	h := newHarness(t, durable, media.Authenticated)
	require.NoError(t, h.ctrl.Close(context.Background()))
	assert.Zero(t, h.rel.Count(durable))
}

func TestController_CloseWhilePlaying(t *testing.T) {
	h := newHarness(t, validBlob, media.Authenticated)
	h.el.Emit(playback.ElementCanPlay)
	require.NoError(t, h.ctrl.Play(context.Background()))

	require.NoError(t, h.ctrl.Close(context.Background()))
	assert.Equal(t, []bool{true, false}, h.rec.PlayingCalls())
	assert.False(t, h.el.Playing())
	assert.Empty(t, h.el.Source())

	assert.ErrorIs(t, h.ctrl.Play(context.Background()), playback.ErrClosed)
	assert.ErrorIs(t, h.ctrl.Retry(), playback.ErrClosed)
	assert.ErrorIs(t, h.ctrl.SetReference(context.Background(), otherBlob), playback.ErrClosed)
	assert.ErrorIs(t, h.ctrl.SetAuth(media.Anonymous), playback.ErrClosed)
	assert.ErrorIs(t, h.ctrl.SetMuted(true), playback.ErrClosed)
}

func TestController_CloseClearsGraceTimer(t *testing.T) {
	h := newHarness(t, validBlob, media.Authenticated)
	h.el.Emit(playback.ElementError)
	require.Equal(t, 1, h.clock.Pending())

	require.NoError(t, h.ctrl.Close(context.Background()))
	assert.Zero(t, h.clock.Pending())
	h.clock.Advance(5 * time.Second)
	assert.NotContains(t, h.rec.ErrorCalls(), true)
}

func TestController_ReferenceChangeResetsAttemptCount(t *testing.T) {
	h := newHarness(t, validBlob, media.Authenticated)
	h.fail(t)
	require.NoError(t, h.ctrl.Retry())
	h.fail(t)
	require.NoError(t, h.ctrl.Retry())
	require.Equal(t, 2, h.ctrl.AttemptCount())

	require.NoError(t, h.ctrl.SetReference(context.Background(), otherBlob))
	assert.Equal(t, 0, h.ctrl.AttemptCount())
	assert.Equal(t, playback.StateLoading, h.ctrl.State())
	assert.Equal(t, otherBlob, h.ctrl.Reference().Source)
	assert.Equal(t, 1, h.rel.Count(validBlob))
	assert.Equal(t, otherBlob, h.el.Source())

	require.NoError(t, h.ctrl.Close(context.Background()))
	assert.Equal(t, 1, h.rel.Count(validBlob))
	assert.Equal(t, 1, h.rel.Count(otherBlob))
}

func TestController_SameReferenceIsNoop(t *testing.T) {
	h := newHarness(t, validBlob, media.Authenticated)
	h.el.Emit(playback.ElementCanPlay)

	require.NoError(t, h.ctrl.SetReference(context.Background(), "  "+validBlob+" "))
	assert.Equal(t, playback.StateReady, h.ctrl.State())
	assert.Zero(t, h.rel.Count(validBlob))
	assert.Len(t, h.el.CallsOf(fake.OpSetSource), 1)
}

func TestController_ReferenceChangeToUnpresentable(t *testing.T) {
	h := newHarness(t, durable, media.Authenticated)
	h.el.Emit(playback.ElementCanPlay)

	require.NoError(t, h.ctrl.SetReference(context.Background(), "undefined"))
	assert.Equal(t, playback.StateIdle, h.ctrl.State())
	assert.Equal(t, media.ProblemSentinel, h.ctrl.Problem())
	assert.Len(t, h.el.CallsOf(fake.OpDetach), 1)
	assert.Len(t, h.el.CallsOf(fake.OpSetSource), 1)
}

func TestController_RetryMonotonicity(t *testing.T) {
	h := newHarness(t, durable, media.Authenticated)

	for i := 1; i <= 3; i++ {
		h.fail(t)
		loadsBefore := len(h.el.CallsOf(fake.OpLoad))
		h.rec.Reset()

		require.NoError(t, h.ctrl.Retry())
		assert.Equal(t, i, h.ctrl.AttemptCount())
		assert.Equal(t, []bool{false}, h.rec.ErrorCalls(), "retry clears the error flag")
		assert.Len(t, h.el.CallsOf(fake.OpLoad), loadsBefore+1)
		assert.Equal(t, playback.StateLoading, h.ctrl.State())
	}

	h.el.Emit(playback.ElementCanPlay)
	require.Equal(t, playback.StateReady, h.ctrl.State())
	err := h.ctrl.Retry()
	assert.ErrorIs(t, err, playback.ErrRetryNotAllowed)
	assert.Equal(t, 3, h.ctrl.AttemptCount())
}

func TestController_StaleEventsAreDropped(t *testing.T) {
	h := newHarness(t, validBlob, media.Authenticated)
	staleToken := h.el.Token()

	require.NoError(t, h.ctrl.SetReference(context.Background(), otherBlob))
	require.NotEqual(t, staleToken, h.el.Token())

	h.el.EmitEvent(playback.ElementEvent{Kind: playback.ElementCanPlay, Token: staleToken})
	assert.Equal(t, playback.StateLoading, h.ctrl.State())

	h.el.EmitEvent(playback.ElementEvent{Kind: playback.ElementError, Token: staleToken})
	assert.Zero(t, h.clock.Pending())

	h.el.Emit(playback.ElementCanPlay)
	assert.Equal(t, playback.StateReady, h.ctrl.State())
}

func TestController_GraceTimerResetOnReferenceChange(t *testing.T) {
	h := newHarness(t, validBlob, media.Authenticated)
	h.el.Emit(playback.ElementError)
	h.clock.Advance(time.Second)

	require.NoError(t, h.ctrl.SetReference(context.Background(), otherBlob))
	h.clock.Advance(5 * time.Second)

	assert.Equal(t, playback.StateLoading, h.ctrl.State())
	assert.NotContains(t, h.rec.ErrorCalls(), true)
}

func TestController_ErrorOutsideLoadingIgnored(t *testing.T) {
	h := newHarness(t, validBlob, media.Authenticated)
	h.el.Emit(playback.ElementCanPlay)

	h.el.Emit(playback.ElementError)
	h.clock.Advance(5 * time.Second)
	assert.Equal(t, playback.StateReady, h.ctrl.State())
	assert.Zero(t, h.clock.Pending())
}

func TestController_SynchronousLoadErrorUsesGrace(t *testing.T) {
	el := fake.New()
	el.SetLoadErr(errors.New("decoder unavailable"))
	clock := testkit.NewManualClock()
	rec := &testkit.Recorder{}
	logger := zerolog.Nop()
	ctrl := playback.New(el, durable, media.Anonymous, playback.Options{Logger: &logger, Clock: clock}, rec.Callbacks())
	defer func() { _ = ctrl.Close(context.Background()) }()

	require.Equal(t, playback.StateLoading, ctrl.State())
	clock.Advance(playback.DefaultGraceWindow)
	assert.Equal(t, playback.StateFailed, ctrl.State())
	assert.Equal(t, []bool{true}, rec.ErrorCalls())
}

func TestController_AuthChangeRevalidates(t *testing.T) {
	h := newHarness(t, validBlob, media.Authenticated)
	h.fail(t)
	require.NoError(t, h.ctrl.Retry())
	h.el.Emit(playback.ElementCanPlay)
	require.Equal(t, 1, h.ctrl.AttemptCount())

	require.NoError(t, h.ctrl.SetAuth(media.Anonymous))
	assert.Equal(t, playback.StateIdle, h.ctrl.State())
	v := h.ctrl.View()
	assert.Equal(t, playback.ViewUnavailable, v.Kind)
	assert.Equal(t, media.ProblemSignInRequired, v.Problem)
	assert.Len(t, h.el.CallsOf(fake.OpDetach), 1)
	assert.Zero(t, h.rel.Count(validBlob), "auth change keeps the binary")

	require.NoError(t, h.ctrl.SetAuth(media.Anonymous))
	assert.Len(t, h.el.CallsOf(fake.OpDetach), 1, "same auth is not a transition")

	setsBefore := len(h.el.CallsOf(fake.OpSetSource))
	require.NoError(t, h.ctrl.SetAuth(media.Authenticated))
	assert.Equal(t, playback.StateLoading, h.ctrl.State())
	assert.Len(t, h.el.CallsOf(fake.OpSetSource), setsBefore+1)
	assert.Equal(t, 1, h.ctrl.AttemptCount())
}

func TestController_AuthChangeResetsDurableToo(t *testing.T) {
	h := newHarness(t, durable, media.Authenticated)
	h.el.Emit(playback.ElementCanPlay)
	require.NoError(t, h.ctrl.Play(context.Background()))

	require.NoError(t, h.ctrl.SetAuth(media.Anonymous))
	assert.Equal(t, playback.StateLoading, h.ctrl.State())
	assert.Equal(t, []bool{true, false}, h.rec.PlayingCalls())
	assert.Len(t, h.el.CallsOf(fake.OpSetSource), 2)
}

func TestController_PlayPauseToggle(t *testing.T) {
	h := newHarness(t, validBlob, media.Authenticated)
	ctx := context.Background()

	assert.ErrorIs(t, h.ctrl.Play(ctx), playback.ErrNotReady)

	h.el.Emit(playback.ElementCanPlay)
	require.NoError(t, h.ctrl.Play(ctx))
	assert.Equal(t, playback.StatePlaying, h.ctrl.State())
	assert.True(t, h.ctrl.View().Playing)

	require.NoError(t, h.ctrl.Pause())
	assert.Equal(t, playback.StatePaused, h.ctrl.State())

	require.NoError(t, h.ctrl.TogglePlay(ctx))
	assert.Equal(t, playback.StatePlaying, h.ctrl.State())
	require.NoError(t, h.ctrl.TogglePlay(ctx))
	assert.Equal(t, playback.StatePaused, h.ctrl.State())

	require.NoError(t, h.ctrl.Play(ctx))
	h.el.Emit(playback.ElementEnded)
	assert.Equal(t, playback.StatePaused, h.ctrl.State())

	assert.Equal(t, []bool{true, false, true, false, true, false}, h.rec.PlayingCalls())
}

func TestController_PlayRejectionKeepsLoadState(t *testing.T) {
	h := newHarness(t, validBlob, media.Authenticated)
	ctx := context.Background()
	h.el.Emit(playback.ElementCanPlay)

	h.el.SetPlayErr(errors.New("NotAllowedError"))
	err := h.ctrl.Play(ctx)
	require.ErrorIs(t, err, playback.ErrPlayRejected)
	assert.Equal(t, playback.StateReady, h.ctrl.State())
	assert.Len(t, h.rec.Rejections(), 1)
	assert.Empty(t, h.rec.PlayingCalls())
	assert.NotContains(t, h.rec.ErrorCalls(), true)

	h.el.SetPlayErr(nil)
	require.NoError(t, h.ctrl.Play(ctx))
	assert.Equal(t, playback.StatePlaying, h.ctrl.State())

	h.el.EmitEvent(playback.ElementEvent{Kind: playback.ElementPlayRejected, Token: h.el.Token(), Detail: "autoplay blocked"})
	assert.Equal(t, playback.StatePaused, h.ctrl.State())
	require.Len(t, h.rec.Rejections(), 2)
	assert.ErrorIs(t, h.rec.Rejections()[1], playback.ErrPlayRejected)
	assert.Equal(t, []bool{true, false}, h.rec.PlayingCalls())
}

func TestController_SetMuted(t *testing.T) {
	h := newHarness(t, validBlob, media.Authenticated)
	require.NoError(t, h.ctrl.SetMuted(true))
	assert.True(t, h.el.Muted())
	assert.True(t, h.ctrl.View().Muted)
}

func TestController_AutoplayOnVisibility(t *testing.T) {
	h := newHarness(t, validBlob, media.Authenticated, withAutoplay)

	h.ctrl.ObserveVisibility(0.8)
	assert.Equal(t, playback.StateLoading, h.ctrl.State(), "nothing to play before ready")

	h.el.Emit(playback.ElementCanPlay)
	assert.Equal(t, playback.StatePlaying, h.ctrl.State(), "ready while visible autoplays")
	assert.True(t, h.el.Muted())

	h.ctrl.ObserveVisibility(0.1)
	assert.Equal(t, playback.StatePaused, h.ctrl.State())

	h.ctrl.ObserveVisibility(0.7)
	assert.Equal(t, playback.StatePlaying, h.ctrl.State())
}

func TestController_ManualPauseHoldsUntilVisibilityLost(t *testing.T) {
	h := newHarness(t, validBlob, media.Authenticated, withAutoplay)
	h.el.Emit(playback.ElementCanPlay)
	h.ctrl.ObserveVisibility(0.9)
	require.Equal(t, playback.StatePlaying, h.ctrl.State())

	require.NoError(t, h.ctrl.Pause())
	h.ctrl.ObserveVisibility(0.95)
	h.ctrl.ObserveVisibility(0.6)
	assert.Equal(t, playback.StatePaused, h.ctrl.State())

	h.ctrl.ObserveVisibility(0.2)
	h.ctrl.ObserveVisibility(0.9)
	assert.Equal(t, playback.StatePlaying, h.ctrl.State())
}

func TestController_AutoplayRejectionIsQuiet(t *testing.T) {
	h := newHarness(t, validBlob, media.Authenticated, withAutoplay)
	h.el.SetPlayErr(errors.New("NotAllowedError"))
	h.el.Emit(playback.ElementCanPlay)

	h.ctrl.ObserveVisibility(1)
	assert.Equal(t, playback.StateReady, h.ctrl.State())
	assert.Empty(t, h.rec.Rejections())
}

func TestController_VisibilityIgnoredWithoutAutoplay(t *testing.T) {
	h := newHarness(t, validBlob, media.Authenticated)
	h.el.Emit(playback.ElementCanPlay)

	h.ctrl.ObserveVisibility(1)
	assert.Equal(t, playback.StateReady, h.ctrl.State())
	assert.Empty(t, h.el.CallsOf(fake.OpPlay))
}

func TestController_SystemClockGraceWindow(t *testing.T) {
	el := fake.New()
	rec := &testkit.Recorder{}
	logger := zerolog.Nop()
	ctrl := playback.New(el, durable, media.Anonymous, playback.Options{
		Logger:      &logger,
		GraceWindow: 20 * time.Millisecond,
	}, rec.Callbacks())
	defer func() { _ = ctrl.Close(context.Background()) }()

	el.Emit(playback.ElementError)
	require.Eventually(t, func() bool {
		return ctrl.State() == playback.StateFailed
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []bool{true}, rec.ErrorCalls())
}
