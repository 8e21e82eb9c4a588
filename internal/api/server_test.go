// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuntrapaku/subway-social-link-sub000/internal/auth"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/blob"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/bus"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/catalog"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/config"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/playback/testkit"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/session"
)

const (
	aliceToken = "alice-token"
	bobToken   = "bob-token"
	adminToken = "admin-token"

	durableURL = "https://cdn.example.com/reels/42.mp4"
)

type testEnv struct {
	srv      *Server
	handler  http.Handler
	sessions *session.Manager
	catalog  *catalog.Catalog
	blobs    *blob.Store
	bus      *bus.MemoryBus
	clock    *testkit.ManualClock
}

func newTestEnv(t *testing.T, mutate func(*config.AppConfig)) *testEnv {
	t.Helper()
	logger := zerolog.Nop()

	cfg := config.Default()
	cfg.Metrics.Enabled = true
	cfg.Auth.AllowAnonymous = false
	if mutate != nil {
		mutate(&cfg)
	}

	blobs, err := blob.Open(blob.Config{Origin: "https://reelplay.local", MaxBytes: 1024}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = blobs.Close() })

	env := &testEnv{
		blobs: blobs,
		bus:   bus.NewMemoryBus(),
		clock: testkit.NewManualClock(),
	}
	env.catalog = catalog.New(catalog.NewMemoryStore(), catalog.Options{Bus: env.bus, Logger: &logger})
	env.sessions = session.NewManager(session.Config{
		MaxSessions:  10,
		MaxPerViewer: 4,
		GraceWindow:  time.Second,
	}, session.Deps{
		Catalog: env.catalog,
		Blobs:   blobs,
		Bus:     env.bus,
		Clock:   env.clock,
		ProbeRunner: func(context.Context, string, io.Reader) ([]byte, string, error) {
			return nil, "", errors.New("no ffprobe in tests")
		},
		Logger: &logger,
	})
	t.Cleanup(func() { _ = env.sessions.CloseAll(context.Background()) })

	authn := auth.NewAuthenticator([]auth.Token{
		{Value: aliceToken, ViewerID: "alice"},
		{Value: bobToken, ViewerID: "bob"},
		{Value: adminToken, ViewerID: "ops", Admin: true},
	}, cfg.Auth.AllowAnonymous)

	env.srv = NewServer(cfg, Deps{
		Sessions: env.sessions,
		Catalog:  env.catalog,
		Blobs:    blobs,
		Bus:      env.bus,
		Auth:     authn,
	})
	env.handler = env.srv.Handler()
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		buf, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func requireProblem(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) map[string]any {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "application/problem+json"))
	body := decode[map[string]any](t, rec)
	assert.Equal(t, code, body["code"])
	assert.Equal(t, float64(status), body["status"])
	assert.NotEmpty(t, body["type"])
	assert.NotEmpty(t, body["title"])
	return body
}

func (e *testEnv) createSession(t *testing.T, token string, body map[string]any) session.Info {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/sessions", token, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	info := decode[session.Info](t, rec)
	assert.Equal(t, "/api/v1/sessions/"+info.ID, rec.Header().Get("Location"))
	return info
}

// markReady reports canplay for the session's current load, as the browser
// would.
func (e *testEnv) markReady(t *testing.T, id string) session.Info {
	t.Helper()
	sess, err := e.sessions.Get(id)
	require.NoError(t, err)
	el, ok := sess.Remote()
	require.True(t, ok)
	rec := e.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/events", aliceToken, map[string]any{
		"event": "canplay",
		"token": el.Desired().Token,
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	return decode[session.Info](t, rec)
}

func TestProbesAndUnknownRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/nope", aliceToken, nil)
	body := requireProblem(t, rec, http.StatusNotFound, "NOT_FOUND")
	assert.NotEmpty(t, body["requestId"])
	assert.Equal(t, body["requestId"], rec.Header().Get("X-Request-ID"))
}

func TestRequiresToken(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/sessions", "", map[string]any{"reference": durableURL})
	requireProblem(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")

	rec = env.do(t, http.MethodGet, "/api/v1/sessions", "forged", nil)
	requireProblem(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)

	info := env.createSession(t, aliceToken, map[string]any{
		"reference":         durableURL,
		"element":           "remote",
		"autoplayOnVisible": false,
	})
	assert.Equal(t, "alice", info.ViewerID)
	assert.Equal(t, "loading", info.View.State.String())

	info = env.markReady(t, info.ID)
	assert.Equal(t, "ready", info.View.State.String())
	assert.False(t, info.View.Playing)

	rec := env.do(t, http.MethodPost, "/api/v1/sessions/"+info.ID+"/intents", aliceToken, map[string]string{"intent": "play"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	info = decode[session.Info](t, rec)
	assert.Equal(t, "playing", info.View.State.String())
	assert.True(t, info.View.Playing)

	rec = env.do(t, http.MethodPost, "/api/v1/sessions/"+info.ID+"/intents", aliceToken, map[string]string{"intent": "toggle"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "paused", decode[session.Info](t, rec).View.State.String())

	rec = env.do(t, http.MethodPost, "/api/v1/sessions/"+info.ID+"/intents", aliceToken, map[string]string{"intent": "mute"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[session.Info](t, rec).View.Muted)

	rec = env.do(t, http.MethodPost, "/api/v1/sessions/"+info.ID+"/intents", aliceToken, map[string]string{"intent": "rewind"})
	requireProblem(t, rec, http.StatusBadRequest, "INVALID_REQUEST")

	rec = env.do(t, http.MethodGet, "/api/v1/sessions", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[sessionList](t, rec).Sessions, 1)

	rec = env.do(t, http.MethodDelete, "/api/v1/sessions/"+info.ID, aliceToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/"+info.ID, aliceToken, nil)
	requireProblem(t, rec, http.StatusNotFound, "SESSION_NOT_FOUND")
}

func TestIntentErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	info := env.createSession(t, aliceToken, map[string]any{"reference": durableURL, "autoplayOnVisible": false})

	rec := env.do(t, http.MethodPost, "/api/v1/sessions/"+info.ID+"/intents", aliceToken, map[string]string{"intent": "play"})
	body := requireProblem(t, rec, http.StatusConflict, "NOT_READY")
	assert.Equal(t, "loading", body["state"])
	assert.Equal(t, "requires_ready", body["reason"])

	rec = env.do(t, http.MethodPost, "/api/v1/sessions/"+info.ID+"/intents", aliceToken, map[string]string{"intent": "retry"})
	body = requireProblem(t, rec, http.StatusConflict, "RETRY_NOT_ALLOWED")
	assert.Equal(t, "requires_failed", body["reason"])

	rec = env.do(t, http.MethodPost, "/api/v1/sessions/"+info.ID+"/intents", aliceToken, `{"intent":"play","extra":1}`)
	requireProblem(t, rec, http.StatusBadRequest, "INVALID_REQUEST")
}

func TestFailedLoadCanBeRetried(t *testing.T) {
	env := newTestEnv(t, nil)
	info := env.createSession(t, aliceToken, map[string]any{"reference": durableURL, "autoplayOnVisible": false})

	sess, err := env.sessions.Get(info.ID)
	require.NoError(t, err)
	el, _ := sess.Remote()
	rec := env.do(t, http.MethodPost, "/api/v1/sessions/"+info.ID+"/events", aliceToken, map[string]any{
		"event":  "error",
		"token":  el.Desired().Token,
		"detail": "MEDIA_ERR_NETWORK",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	env.clock.Advance(time.Second)

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/"+info.ID, aliceToken, nil)
	info = decode[session.Info](t, rec)
	assert.Equal(t, "failed", info.View.State.String())
	assert.True(t, info.View.CanRetry)

	rec = env.do(t, http.MethodPost, "/api/v1/sessions/"+info.ID+"/intents", aliceToken, map[string]string{"intent": "retry"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	info = decode[session.Info](t, rec)
	assert.Equal(t, "loading", info.View.State.String())
	assert.Equal(t, 1, info.View.AttemptCount)
}

func TestSessionsAreScopedToViewer(t *testing.T) {
	env := newTestEnv(t, nil)
	info := env.createSession(t, aliceToken, map[string]any{"reference": durableURL})

	rec := env.do(t, http.MethodGet, "/api/v1/sessions/"+info.ID, bobToken, nil)
	requireProblem(t, rec, http.StatusNotFound, "SESSION_NOT_FOUND")

	rec = env.do(t, http.MethodDelete, "/api/v1/sessions/"+info.ID, bobToken, nil)
	requireProblem(t, rec, http.StatusNotFound, "SESSION_NOT_FOUND")

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/"+info.ID, adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/sessions?all=true", adminToken, nil)
	assert.Len(t, decode[sessionList](t, rec).Sessions, 1)
	rec = env.do(t, http.MethodGet, "/api/v1/sessions", bobToken, nil)
	assert.Empty(t, decode[sessionList](t, rec).Sessions)
}

func TestCreateSessionErrors(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/sessions", aliceToken, map[string]any{"element": "remote"})
	requireProblem(t, rec, http.StatusBadRequest, "INVALID_REQUEST")

	rec = env.do(t, http.MethodPost, "/api/v1/sessions", aliceToken, map[string]any{"reference": durableURL, "element": "flash"})
	requireProblem(t, rec, http.StatusBadRequest, "INVALID_REQUEST")

	rec = env.do(t, http.MethodPost, "/api/v1/sessions", aliceToken, map[string]any{"itemId": "missing"})
	requireProblem(t, rec, http.StatusNotFound, "MEDIA_NOT_FOUND")

	for i := 0; i < 4; i++ {
		env.createSession(t, aliceToken, map[string]any{"reference": durableURL})
	}
	rec = env.do(t, http.MethodPost, "/api/v1/sessions", aliceToken, map[string]any{"reference": durableURL})
	requireProblem(t, rec, http.StatusTooManyRequests, "SESSION_LIMIT")
}

func TestUnpresentableReferenceStillCreatesSession(t *testing.T) {
	env := newTestEnv(t, nil)
	info := env.createSession(t, aliceToken, map[string]any{"reference": "undefined"})
	assert.Equal(t, "sentinel", string(info.View.Problem))
	assert.False(t, info.View.Controls)

	rec := env.do(t, http.MethodPost, "/api/v1/sessions/"+info.ID+"/intents", aliceToken, map[string]string{"intent": "play"})
	body := requireProblem(t, rec, http.StatusUnprocessableEntity, "UNPRESENTABLE")
	assert.Equal(t, "sentinel", body["reason"])
}

func TestCatalogBackedSession(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPut, "/api/v1/media/reel-42", aliceToken, map[string]string{"sourceUrl": durableURL})
	requireProblem(t, rec, http.StatusForbidden, "FORBIDDEN")

	rec = env.do(t, http.MethodPut, "/api/v1/media/reel-42", adminToken, map[string]string{"sourceUrl": "ftp://nope"})
	requireProblem(t, rec, http.StatusBadRequest, "INVALID_MEDIA")

	rec = env.do(t, http.MethodPut, "/api/v1/media/reel-42", adminToken, map[string]string{"sourceUrl": durableURL})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, durableURL, decode[catalog.Record](t, rec).SourceURL)

	rec = env.do(t, http.MethodGet, "/api/v1/media/reel-42", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, durableURL, decode[catalog.Resolved](t, rec).Source)

	info := env.createSession(t, aliceToken, map[string]any{"itemId": "reel-42"})
	assert.Equal(t, "reel-42", info.ItemID)
	assert.Equal(t, "loading", info.View.State.String())

	rec = env.do(t, http.MethodDelete, "/api/v1/media/reel-42", adminToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/v1/media/reel-42", aliceToken, nil)
	requireProblem(t, rec, http.StatusNotFound, "MEDIA_NOT_FOUND")
}

func TestSetReferenceAndVisibility(t *testing.T) {
	env := newTestEnv(t, nil)
	info := env.createSession(t, aliceToken, map[string]any{"reference": durableURL})

	rec := env.do(t, http.MethodPost, "/api/v1/sessions/"+info.ID+"/visibility", aliceToken, map[string]any{"ratio": 1.5})
	requireProblem(t, rec, http.StatusBadRequest, "INVALID_REQUEST")

	rec = env.do(t, http.MethodPost, "/api/v1/sessions/"+info.ID+"/visibility", aliceToken, map[string]any{"ratio": 0.9})
	require.Equal(t, http.StatusOK, rec.Code)

	// Reaching ready while visible autoplays muted.
	info = env.markReady(t, info.ID)
	assert.True(t, info.View.Playing)
	assert.True(t, info.View.Muted)

	rec = env.do(t, http.MethodPut, "/api/v1/sessions/"+info.ID+"/reference", aliceToken, map[string]string{"reference": "https://cdn.example.com/reels/43.mp4"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	info = decode[session.Info](t, rec)
	assert.Equal(t, "loading", info.View.State.String())
	assert.False(t, info.View.Playing)
}

func TestSetReferenceSucceedsWhenReleaseFails(t *testing.T) {
	env := newTestEnv(t, nil)
	ref, _, err := env.blobs.Put(context.Background(), "alice", strings.NewReader("frame-data"), "video/mp4")
	require.NoError(t, err)
	info := env.createSession(t, aliceToken, map[string]any{"reference": ref.Source})

	// A closed store fails every release.
	require.NoError(t, env.blobs.Close())

	rec := env.do(t, http.MethodPut, "/api/v1/sessions/"+info.ID+"/reference", aliceToken, map[string]string{"reference": durableURL})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[session.Info](t, rec)
	assert.Equal(t, "loading", got.View.State.String())
}

func TestElementEventsRequireRemoteSession(t *testing.T) {
	env := newTestEnv(t, nil)
	info := env.createSession(t, aliceToken, map[string]any{"reference": durableURL, "element": "probe"})

	rec := env.do(t, http.MethodPost, "/api/v1/sessions/"+info.ID+"/events", aliceToken, map[string]any{"event": "canplay"})
	requireProblem(t, rec, http.StatusConflict, "NOT_REMOTE")

	remoteInfo := env.createSession(t, aliceToken, map[string]any{"reference": durableURL})
	rec = env.do(t, http.MethodPost, "/api/v1/sessions/"+remoteInfo.ID+"/events", aliceToken, map[string]any{"event": "exploded"})
	requireProblem(t, rec, http.StatusBadRequest, "INVALID_REQUEST")
}

func TestBlobRoundTrip(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/blobs", strings.NewReader("not really a video"))
	req.Header.Set("Authorization", "Bearer "+aliceToken)
	req.Header.Set("Content-Type", "video/mp4")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[blobResponse](t, rec)
	assert.True(t, strings.HasPrefix(created.Reference, "blob:"))
	assert.Equal(t, "alice", created.Meta.Owner)

	path := "/api/v1/blobs/" + created.Meta.ID
	rec = env.do(t, http.MethodGet, path, aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, "not really a video", rec.Body.String())

	rec = env.do(t, http.MethodGet, path, bobToken, nil)
	requireProblem(t, rec, http.StatusForbidden, "FORBIDDEN")
	rec = env.do(t, http.MethodDelete, path, bobToken, nil)
	requireProblem(t, rec, http.StatusForbidden, "FORBIDDEN")

	// The blob reference plays in a session like any other.
	info := env.createSession(t, aliceToken, map[string]any{"reference": created.Reference})
	assert.Equal(t, "loading", info.View.State.String())

	rec = env.do(t, http.MethodDelete, path, aliceToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, path, aliceToken, nil)
	requireProblem(t, rec, http.StatusNotFound, "BLOB_NOT_FOUND")

	rec = env.do(t, http.MethodGet, "/api/v1/blobs/not-a-uuid", aliceToken, nil)
	requireProblem(t, rec, http.StatusBadRequest, "INVALID_REQUEST")
}

func TestBlobTooLarge(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodPost, "/api/v1/blobs", aliceToken, strings.Repeat("x", 2048))
	requireProblem(t, rec, http.StatusRequestEntityTooLarge, "BLOB_TOO_LARGE")
}

func TestClosingSessionKeepsForeignAndSharedBlobs(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/blobs", strings.NewReader("frame-data"))
	req.Header.Set("Authorization", "Bearer "+aliceToken)
	req.Header.Set("Content-Type", "video/mp4")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[blobResponse](t, rec)
	path := "/api/v1/blobs/" + created.Meta.ID

	foreign := env.createSession(t, bobToken, map[string]any{"reference": created.Reference})
	rec = env.do(t, http.MethodDelete, "/api/v1/sessions/"+foreign.ID, bobToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, path, aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	first := env.createSession(t, aliceToken, map[string]any{"reference": created.Reference})
	second := env.createSession(t, aliceToken, map[string]any{"reference": created.Reference})
	rec = env.do(t, http.MethodDelete, "/api/v1/sessions/"+first.ID, aliceToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, path, aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodDelete, "/api/v1/sessions/"+second.ID, aliceToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, path, aliceToken, nil)
	requireProblem(t, rec, http.StatusNotFound, "BLOB_NOT_FOUND")
}

func TestViewerSignOutReachesSessions(t *testing.T) {
	env := newTestEnv(t, nil)
	info := env.createSession(t, aliceToken, map[string]any{"reference": durableURL})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.sessions.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	require.Eventually(t, func() bool {
		return env.bus.Subscribers(bus.KindAuthChanged) == 1
	}, 2*time.Second, 5*time.Millisecond)

	rec := env.do(t, http.MethodPut, "/api/v1/viewer/auth", aliceToken, map[string]bool{"authenticated": false})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[viewerAuthResponse](t, rec).Sessions)

	sess, err := env.sessions.Get(info.ID)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return sess.Auth().String() == "anonymous"
	}, 2*time.Second, 5*time.Millisecond)

	rec = env.do(t, http.MethodPut, "/api/v1/viewer/auth", aliceToken, `{}`)
	requireProblem(t, rec, http.StatusBadRequest, "INVALID_REQUEST")
}

func TestAnonymousViewerCannotSignIn(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.AppConfig) { cfg.Auth.AllowAnonymous = true })

	req := httptest.NewRequest(http.MethodPut, "/api/v1/viewer/auth", strings.NewReader(`{"authenticated":true}`))
	req.Header.Set(auth.ViewerHeader, "guest-7")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	requireProblem(t, rec, http.StatusForbidden, "FORBIDDEN")

	req = httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(`{"reference":"`+durableURL+`"}`))
	req.Header.Set(auth.ViewerHeader, "guest-7")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "guest-7", decode[session.Info](t, rec).ViewerID)
}

func TestSecurityHeadersApplied(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}
