// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"

	"github.com/kuntrapaku/subway-social-link-sub000/internal/auth"
	xglog "github.com/kuntrapaku/subway-social-link-sub000/internal/log"
)

// authenticate resolves the principal and stores it on the request context.
// allowQuery additionally accepts ?token= for websocket handshakes.
func (s *Server) authenticate(allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := s.deps.Auth.Authenticate(r, allowQuery)
			if err != nil {
				logger := xglog.WithComponentFromContext(r.Context(), "auth")
				logger.Debug().
					Str(xglog.FieldPath, r.URL.Path).
					Msg("request rejected: missing or unknown token")
				writeProblem(w, r, probUnauthorized, "a valid API token is required", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	}
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !principal(r).Admin {
			writeProblem(w, r, probForbidden, "admin token required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// principal is only called behind authenticate, which always sets one.
func principal(r *http.Request) *auth.Principal {
	if p, ok := auth.PrincipalFromContext(r.Context()); ok {
		return p
	}
	return &auth.Principal{Anonymous: true}
}
