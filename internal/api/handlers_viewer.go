// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/kuntrapaku/subway-social-link-sub000/internal/bus"
	xglog "github.com/kuntrapaku/subway-social-link-sub000/internal/log"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/media"
)

const authPublishTimeout = 2 * time.Second

type viewerAuthRequest struct {
	Authenticated *bool `json:"authenticated"`
}

type viewerAuthResponse struct {
	ViewerID      string `json:"viewerId"`
	Authenticated bool   `json:"authenticated"`
	Sessions      int    `json:"sessions"`
}

// handleViewerAuth records an ambient sign-in or sign-out from the web app.
// Every open session of the viewer follows it through the bus.
func (s *Server) handleViewerAuth(w http.ResponseWriter, r *http.Request) {
	var req viewerAuthRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, r, probBadRequest, err.Error(), nil)
		return
	}
	if req.Authenticated == nil {
		writeProblem(w, r, probBadRequest, "authenticated is required", nil)
		return
	}
	p := principal(r)
	if *req.Authenticated && p.Anonymous {
		writeProblem(w, r, probForbidden, "anonymous viewers cannot sign in through this endpoint", nil)
		return
	}

	ev := bus.AuthChanged{ViewerID: p.ViewerID, Authenticated: *req.Authenticated, At: s.deps.Now()}
	if s.deps.Bus != nil {
		ctx, cancel := context.WithTimeout(r.Context(), authPublishTimeout)
		defer cancel()
		if err := s.deps.Bus.Publish(ctx, ev); err != nil {
			writeError(w, r, err)
			return
		}
	} else {
		state := media.Anonymous
		if ev.Authenticated {
			state = media.Authenticated
		}
		if err := s.deps.Sessions.ApplyAuth(r.Context(), ev.ViewerID, state); err != nil {
			writeError(w, r, err)
			return
		}
	}

	logger := xglog.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str(xglog.FieldViewerID, p.ViewerID).
		Bool("authenticated", ev.Authenticated).
		Msg("viewer auth changed")
	writeJSON(w, http.StatusAccepted, viewerAuthResponse{
		ViewerID:      p.ViewerID,
		Authenticated: ev.Authenticated,
		Sessions:      len(s.deps.Sessions.List(p.ViewerID)),
	})
}
