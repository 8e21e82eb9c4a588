// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/kuntrapaku/subway-social-link-sub000/internal/api/middleware"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/auth"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/blob"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/catalog"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/element/remote"
	xglog "github.com/kuntrapaku/subway-social-link-sub000/internal/log"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/playback"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/resilience"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/session"
)

const maxJSONBody = 64 << 10

// problemSpec is the stable identity of one error class.
type problemSpec struct {
	status int
	typ    string
	title  string
	code   string
}

var (
	probBadRequest   = problemSpec{http.StatusBadRequest, "request/invalid", "Invalid Request", "INVALID_REQUEST"}
	probUnauthorized = problemSpec{http.StatusUnauthorized, "auth/unauthorized", "Unauthorized", "UNAUTHORIZED"}
	probForbidden    = problemSpec{http.StatusForbidden, "auth/forbidden", "Forbidden", "FORBIDDEN"}
	probNotFound     = problemSpec{http.StatusNotFound, "system/not_found", "Not Found", "NOT_FOUND"}
	probInternal     = problemSpec{http.StatusInternalServerError, "system/internal", "Internal Server Error", "INTERNAL"}
	probUnavailable  = problemSpec{http.StatusServiceUnavailable, "system/unavailable", "Subsystem Unavailable", "UNAVAILABLE"}
	probNotRemote    = problemSpec{http.StatusConflict, "session/not_remote", "Session Has No Remote Element", "NOT_REMOTE"}

	probIllegalTransition = problemSpec{http.StatusConflict, "playback/illegal_transition", "Illegal Transition", "ILLEGAL_TRANSITION"}
	probNotReady          = problemSpec{http.StatusConflict, "playback/not_ready", "Media Not Ready", "NOT_READY"}
	probRetryNotAllowed   = problemSpec{http.StatusConflict, "playback/retry_not_allowed", "Retry Not Allowed", "RETRY_NOT_ALLOWED"}
	probUnpresentable     = problemSpec{http.StatusUnprocessableEntity, "playback/unpresentable", "Reference Not Presentable", "UNPRESENTABLE"}
)

// writeProblem writes an RFC 7807 problem document. Extras land at the top
// level; reserved keys in extra are ignored.
func writeProblem(w http.ResponseWriter, r *http.Request, p problemSpec, detail string, extra map[string]any) {
	reqID := xglog.RequestIDFromContext(r.Context())
	if reqID == "" {
		reqID = w.Header().Get(middleware.HeaderRequestID)
	}

	res := map[string]any{
		"type":     p.typ,
		"title":    p.title,
		"status":   p.status,
		"code":     p.code,
		"instance": r.URL.EscapedPath(),
	}
	if reqID != "" {
		res["requestId"] = reqID
	}
	if detail != "" {
		res["detail"] = detail
	}
	for k, v := range extra {
		switch k {
		case "type", "title", "status", "detail", "instance", "code", "requestId":
			continue
		}
		res[k] = v
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.status)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		logger := xglog.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).
			Str("type", p.typ).Int("status", p.status).
			Msg("failed to encode problem response")
	}
}

// writeError maps a domain error onto its problem document. Unknown errors
// are logged and reported as 500 without leaking the message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	p, extra, known := classify(err)
	if !known {
		logger := xglog.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).
			Str(xglog.FieldPath, r.URL.Path).
			Msg("request failed")
		writeProblem(w, r, p, "", nil)
		return
	}
	writeProblem(w, r, p, err.Error(), extra)
}

func classify(err error) (problemSpec, map[string]any, bool) {
	var illegal *playback.IllegalTransitionError
	if errors.As(err, &illegal) {
		extra := map[string]any{"state": illegal.From.String(), "reason": illegal.Reason}
		switch {
		case errors.Is(err, playback.ErrUnpresentable):
			return probUnpresentable, extra, true
		case errors.Is(err, playback.ErrNotReady):
			return probNotReady, extra, true
		case errors.Is(err, playback.ErrRetryNotAllowed):
			return probRetryNotAllowed, extra, true
		}
		return probIllegalTransition, extra, true
	}
	switch {
	case errors.Is(err, playback.ErrPlayRejected):
		return problemSpec{http.StatusConflict, "playback/play_rejected", "Play Rejected", "PLAY_REJECTED"}, nil, true
	case errors.Is(err, playback.ErrNotReady):
		return probNotReady, nil, true
	case errors.Is(err, playback.ErrRetryNotAllowed):
		return probRetryNotAllowed, nil, true
	case errors.Is(err, playback.ErrUnpresentable):
		return probUnpresentable, nil, true
	case errors.Is(err, playback.ErrClosed), errors.Is(err, remote.ErrShutdown):
		return problemSpec{http.StatusGone, "session/closed", "Session Closed", "SESSION_CLOSED"}, nil, true

	case errors.Is(err, session.ErrNotFound):
		return problemSpec{http.StatusNotFound, "session/not_found", "Session Not Found", "SESSION_NOT_FOUND"}, nil, true
	case errors.Is(err, session.ErrLimit):
		return problemSpec{http.StatusTooManyRequests, "session/limit", "Session Limit Reached", "SESSION_LIMIT"}, nil, true
	case errors.Is(err, session.ErrInvalidRequest):
		return probBadRequest, nil, true
	case errors.Is(err, session.ErrClosed):
		return probUnavailable, nil, true

	case errors.Is(err, catalog.ErrNotFound):
		return problemSpec{http.StatusNotFound, "media/not_found", "Media Item Not Found", "MEDIA_NOT_FOUND"}, nil, true
	case errors.Is(err, catalog.ErrInvalidRecord):
		return problemSpec{http.StatusBadRequest, "media/invalid", "Invalid Media Record", "INVALID_MEDIA"}, nil, true
	case errors.Is(err, catalog.ErrNoStorage):
		return problemSpec{http.StatusUnprocessableEntity, "media/no_storage", "Object Storage Not Configured", "NO_STORAGE"}, nil, true
	case errors.Is(err, resilience.ErrCircuitOpen):
		return problemSpec{http.StatusServiceUnavailable, "media/catalog_unavailable", "Catalog Unavailable", "CATALOG_UNAVAILABLE"}, nil, true

	case errors.Is(err, blob.ErrNotFound):
		return problemSpec{http.StatusNotFound, "blob/not_found", "Blob Not Found", "BLOB_NOT_FOUND"}, nil, true
	case errors.Is(err, blob.ErrForbidden):
		return probForbidden, nil, true
	case errors.Is(err, blob.ErrTooLarge):
		return problemSpec{http.StatusRequestEntityTooLarge, "blob/too_large", "Blob Too Large", "BLOB_TOO_LARGE"}, nil, true
	case errors.Is(err, blob.ErrInvalidRef):
		return probBadRequest, nil, true

	case errors.Is(err, auth.ErrUnauthorized):
		return probUnauthorized, nil, true
	}
	return probInternal, nil, false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a single JSON object with unknown fields rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("decode body: trailing data after JSON object")
	}
	return nil
}
