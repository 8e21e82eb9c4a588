// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import "strings"

// MinSessionLocalLength guards against truncated session-local references.
// Shorter references are not presentable.
const MinSessionLocalLength = 20

// sentinelTokens are the textual leftovers of a failed serialisation upstream.
var sentinelTokens = []string{"undefined", "null", "[object Object]"}

// AuthState is the ambient viewer context a controller runs under.
type AuthState int

const (
	Anonymous AuthState = iota
	Authenticated
)

func (a AuthState) String() string {
	if a == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Problem explains why a reference is not presentable.
type Problem string

const (
	ProblemNone              Problem = ""
	ProblemEmpty             Problem = "empty"
	ProblemSentinel          Problem = "sentinel"
	ProblemTruncated         Problem = "truncated"
	ProblemSignInRequired    Problem = "sign_in_required"
	ProblemUnsupportedScheme Problem = "unsupported_scheme"
)

// Validate runs the presentability check. Unpresentable references are never
// bound to an element.
func Validate(ref Reference, auth AuthState) Problem {
	if ref.IsEmpty() {
		return ProblemEmpty
	}
	for _, tok := range sentinelTokens {
		if strings.Contains(ref.Source, tok) {
			return ProblemSentinel
		}
	}
	switch ref.Kind {
	case KindSessionLocal:
		if len(ref.Source) < MinSessionLocalLength {
			return ProblemTruncated
		}
		// Policy, not a technical constraint: session-local binaries belong
		// to an authenticated session.
		if auth != Authenticated {
			return ProblemSignInRequired
		}
	case KindDurable:
	default:
		return ProblemUnsupportedScheme
	}
	return ProblemNone
}

// Presentable is shorthand for Validate(ref, auth) == ProblemNone.
func Presentable(ref Reference, auth AuthState) bool {
	return Validate(ref, auth) == ProblemNone
}

// Retryable is always false: retry only applies after an element was bound.
func (p Problem) Retryable() bool { return false }

// Message is the user-facing explanation rendered by the unavailable panel.
func (p Problem) Message() string {
	switch p {
	case ProblemNone:
		return ""
	case ProblemSignInRequired:
		return "Sign in to view this media."
	default:
		return "No valid media available."
	}
}
