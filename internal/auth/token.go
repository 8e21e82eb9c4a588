// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/kuntrapaku/subway-social-link-sub000/internal/log"
)

const (
	SessionCookie = "reelplay_session"
	TokenHeader   = "X-API-Token"
	// ViewerHeader names the anonymous viewer. It is trusted only for
	// anonymous requests.
	ViewerHeader = "X-Viewer-ID"
)

var ErrUnauthorized = errors.New("unauthorized")

// ExtractToken retrieves the API token from the request, in order:
// Authorization bearer, session cookie, X-API-Token header, and the token
// query parameter when allowQuery is set (browsers cannot set headers on a
// websocket handshake).
func ExtractToken(r *http.Request, allowQuery bool) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if t := r.Header.Get(TokenHeader); t != "" {
		return t
	}
	if allowQuery {
		if t := r.URL.Query().Get("token"); t != "" {
			log.L().Debug().Str(log.FieldPath, r.URL.Path).Msg("token taken from query parameter")
			return t
		}
	}
	return ""
}

// AuthorizeToken compares in constant time. Empty tokens never match.
func AuthorizeToken(got, expected string) bool {
	if strings.TrimSpace(expected) == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}

// Token is one configured credential.
type Token struct {
	Value    string
	ViewerID string
	Admin    bool
}

type Authenticator struct {
	tokens         []Token
	allowAnonymous bool
}

func NewAuthenticator(tokens []Token, allowAnonymous bool) *Authenticator {
	return &Authenticator{tokens: append([]Token(nil), tokens...), allowAnonymous: allowAnonymous}
}

// Authenticate resolves the request's principal. A presented but unknown
// token is always rejected, even when anonymous access is allowed.
func (a *Authenticator) Authenticate(r *http.Request, allowQuery bool) (*Principal, error) {
	got := ExtractToken(r, allowQuery)
	if got == "" {
		if !a.allowAnonymous {
			return nil, ErrUnauthorized
		}
		viewer := strings.TrimSpace(r.Header.Get(ViewerHeader))
		if viewer == "" {
			viewer = "anonymous"
		}
		return &Principal{ViewerID: viewer, Anonymous: true}, nil
	}
	var match *Token
	for i := range a.tokens {
		// No early exit so timing does not reveal the matching index.
		if AuthorizeToken(got, a.tokens[i].Value) && match == nil {
			match = &a.tokens[i]
		}
	}
	if match == nil {
		return nil, ErrUnauthorized
	}
	return NewPrincipal(match.Value, match.ViewerID, match.Admin), nil
}
