// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package media models the address by which a video is located and decides
// whether that address is worth handing to a media element at all.
package media

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Kind classifies a media reference by lifetime.
type Kind string

const (
	KindEmpty Kind = "empty"
	// KindSessionLocal references are valid only inside the owning viewer
	// session and only while the underlying binary is retained.
	KindSessionLocal Kind = "session_local"
	// KindDurable references are remote URLs that outlive any session.
	KindDurable Kind = "durable"
	KindUnknown Kind = "unknown"
)

// SessionLocalScheme prefixes every session-local reference.
const SessionLocalScheme = "blob:"

// Reference is a parsed media address. The zero value is the empty reference.
type Reference struct {
	Source string
	Kind   Kind
}

// Parse normalises raw text and classifies it. It never fails: references that
// cannot be played are rejected later by Validate.
func Parse(raw string) Reference {
	src := norm.NFC.String(strings.TrimSpace(raw))
	return Reference{Source: src, Kind: classify(src)}
}

func classify(src string) Kind {
	if src == "" {
		return KindEmpty
	}
	lower := strings.ToLower(src)
	switch {
	case strings.HasPrefix(lower, SessionLocalScheme):
		return KindSessionLocal
	case strings.HasPrefix(lower, "https://"), strings.HasPrefix(lower, "http://"):
		return KindDurable
	default:
		return KindUnknown
	}
}

// IsEmpty reports whether the reference carries no address.
func (r Reference) IsEmpty() bool { return r.Source == "" }

// SessionLocal reports whether releasing the reference must free a retained binary.
func (r Reference) SessionLocal() bool { return r.Kind == KindSessionLocal }

// Same reports reference identity. Two references are the same media item only
// when their normalised sources match exactly.
func (r Reference) Same(other Reference) bool { return r.Source == other.Source }

func (r Reference) String() string { return r.Source }

// Redacted returns a form safe for logs: durable URLs lose their query string
// (presigned credentials live there).
func (r Reference) Redacted() string {
	if r.Kind != KindDurable {
		return r.Source
	}
	if i := strings.IndexByte(r.Source, '?'); i >= 0 {
		return r.Source[:i] + "?…"
	}
	return r.Source
}
