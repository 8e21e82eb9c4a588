// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldRequestID = "request_id"
	FieldItemID    = "item_id"
	FieldViewerID  = "viewer_id"
	FieldBlobID    = "blob_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Playback fields
	FieldState        = "state"
	FieldOldState     = "old_state"
	FieldNewState     = "new_state"
	FieldAttempt      = "attempt"
	FieldLoadToken    = "load_token"
	FieldElementEvent = "element_event"
	FieldReference    = "reference"
	FieldRefKind      = "reference_kind"
	FieldProblem      = "problem"

	// Path / URL fields
	FieldPath = "path"
)
