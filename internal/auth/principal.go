// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/kuntrapaku/subway-social-link-sub000/internal/media"
)

// Principal is the viewer behind a request.
type Principal struct {
	// ViewerID is stable per viewer. Token holders without a configured
	// viewer get an id derived from the token.
	ViewerID string
	Admin    bool
	// Anonymous principals carry no verified identity.
	Anonymous bool
}

// NewPrincipal builds an authenticated principal.
func NewPrincipal(token, viewerID string, admin bool) *Principal {
	id := viewerID
	if id == "" {
		hash := sha256.Sum256([]byte(token))
		id = "t_" + hex.EncodeToString(hash[:])[:16]
	}
	return &Principal{ViewerID: id, Admin: admin}
}

// AuthState is the ambient auth context controllers validate against.
func (p *Principal) AuthState() media.AuthState {
	if p == nil || p.Anonymous {
		return media.Anonymous
	}
	return media.Authenticated
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}
