// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/codes"

	xglog "github.com/kuntrapaku/subway-social-link-sub000/internal/log"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/metrics"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/playback"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/session"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/telemetry"
)

type createSessionRequest struct {
	ItemID    string `json:"itemId"`
	Reference string `json:"reference"`
	Element   string `json:"element"`
	// AutoplayOnVisible defaults to the configured playback setting.
	AutoplayOnVisible *bool `json:"autoplayOnVisible"`
}

type intentRequest struct {
	Intent string `json:"intent"`
}

type elementEventRequest struct {
	Event  string `json:"event"`
	Token  uint64 `json:"token"`
	Detail string `json:"detail"`
}

type referenceRequest struct {
	Reference string `json:"reference"`
}

type visibilityRequest struct {
	Ratio *float64 `json:"ratio"`
}

type sessionList struct {
	Sessions []session.Info `json:"sessions"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, r, probBadRequest, err.Error(), nil)
		return
	}
	p := principal(r)
	autoplay := s.cfg.Playback.AutoplayOnVisible
	if req.AutoplayOnVisible != nil {
		autoplay = *req.AutoplayOnVisible
	}

	ctx, span := telemetry.Tracer("reelplay/api").Start(r.Context(), "session.create")
	defer span.End()
	span.SetAttributes(telemetry.SessionAttributes("", req.ItemID, req.Element)...)

	sess, err := s.deps.Sessions.Create(ctx, session.CreateRequest{
		ViewerID:          p.ViewerID,
		Auth:              p.AuthState(),
		ItemID:            strings.TrimSpace(req.ItemID),
		Reference:         req.Reference,
		Element:           session.ElementKind(req.Element),
		AutoplayOnVisible: autoplay,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		writeError(w, r, err)
		return
	}
	info := sess.Info()
	span.SetAttributes(telemetry.SessionAttributes(sess.ID, "", "")...)
	span.SetAttributes(telemetry.PlaybackAttributes(info.View.State.String(), string(sess.Controller().Reference().Kind))...)

	w.Header().Set("Location", "/api/v1/sessions/"+sess.ID)
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	viewer := p.ViewerID
	if p.Admin && r.URL.Query().Get("all") == "true" {
		viewer = ""
	}
	list := sessionList{Sessions: []session.Info{}}
	for _, sess := range s.deps.Sessions.List(viewer) {
		list.Sessions = append(list.Sessions, sess.Info())
	}
	writeJSON(w, http.StatusOK, list)
}

// lookupSession resolves {id} and hides other viewers' sessions behind 404.
func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.deps.Sessions.Get(chi.URLParam(r, "id"))
	if err == nil {
		if p := principal(r); !p.Admin && sess.ViewerID != p.ViewerID {
			err = session.ErrNotFound
		}
	}
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Info())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	if err := s.deps.Sessions.Close(r.Context(), sess.ID); err != nil && !errors.Is(err, session.ErrNotFound) {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleIntent(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	var req intentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, r, probBadRequest, err.Error(), nil)
		return
	}

	ctrl := sess.Controller()
	var err error
	switch req.Intent {
	case "play":
		err = ctrl.Play(r.Context())
	case "pause":
		err = ctrl.Pause()
	case "toggle":
		err = ctrl.TogglePlay(r.Context())
	case "retry":
		err = ctrl.Retry()
	case "mute":
		err = ctrl.SetMuted(true)
	case "unmute":
		err = ctrl.SetMuted(false)
	default:
		writeProblem(w, r, probBadRequest, fmt.Sprintf("unknown intent %q", req.Intent), nil)
		return
	}
	outcome := "ok"
	switch {
	case errors.Is(err, playback.ErrPlayRejected):
		outcome = "rejected"
	case err != nil:
		outcome = "error"
	}
	metrics.IncIntent(req.Intent, outcome)
	info := sess.Info()
	telemetry.EmitIntent(r.Context(), telemetry.IntentObservation{
		SessionID: sess.ID,
		Intent:    req.Intent,
		Outcome:   outcome,
		State:     info.View.State.String(),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleElementEvent accepts element lifecycle events for clients that report
// over HTTP instead of the websocket bridge.
func (s *Server) handleElementEvent(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	el, isRemote := sess.Remote()
	if !isRemote {
		writeProblem(w, r, probNotRemote, "element events are only accepted for remote sessions", nil)
		return
	}
	var req elementEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, r, probBadRequest, err.Error(), nil)
		return
	}
	ev := playback.ElementEvent{
		Kind:   playback.ElementEventKind(req.Event),
		Token:  playback.LoadToken(req.Token),
		Detail: req.Detail,
	}
	if err := el.Inject(ev); err != nil {
		writeProblem(w, r, probBadRequest, err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusAccepted, sess.Info())
}

func (s *Server) handleSetReference(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	var req referenceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, r, probBadRequest, err.Error(), nil)
		return
	}
	if err := s.deps.Sessions.SetReference(r.Context(), sess.ID, req.Reference); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Info())
}

func (s *Server) handleVisibility(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	var req visibilityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, r, probBadRequest, err.Error(), nil)
		return
	}
	if req.Ratio == nil || *req.Ratio < 0 || *req.Ratio > 1 {
		writeProblem(w, r, probBadRequest, "ratio must be between 0 and 1", nil)
		return
	}
	sess.Controller().ObserveVisibility(*req.Ratio)
	writeJSON(w, http.StatusOK, sess.Info())
}

// handleSessionSocket bridges the browser's media element to the session's
// remote element. It blocks for the life of the connection.
func (s *Server) handleSessionSocket(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	el, isRemote := sess.Remote()
	if !isRemote {
		writeProblem(w, r, probNotRemote, "session does not use a remote element", nil)
		return
	}

	opts := &websocket.AcceptOptions{CompressionMode: websocket.CompressionContextTakeover}
	for _, origin := range s.cfg.Server.CORSOrigins {
		if origin == "*" {
			opts.InsecureSkipVerify = true
			break
		}
		opts.OriginPatterns = append(opts.OriginPatterns, hostPattern(origin))
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		// Accept has already written the failure response.
		return
	}

	logger := xglog.WithComponentFromContext(xglog.ContextWithSessionID(r.Context(), sess.ID), "ws")
	logger.Info().Str(xglog.FieldEvent, "ws.attached").Msg("remote element connected")
	if err := el.Serve(r.Context(), conn); err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "ws.closed").Msg("remote element connection ended with error")
		return
	}
	logger.Info().Str(xglog.FieldEvent, "ws.closed").Msg("remote element disconnected")
}

// hostPattern strips the scheme: websocket origin patterns match hosts.
func hostPattern(origin string) string {
	if i := strings.Index(origin, "://"); i >= 0 {
		origin = origin[i+3:]
	}
	return strings.TrimRight(origin, "/")
}
