// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by spans across reelplay.
const (
	HTTPMethodKey = "http.method"
	HTTPRouteKey  = "http.route"

	SessionIDKey  = "reelplay.session.id"
	ItemIDKey     = "reelplay.item.id"
	ElementKey    = "reelplay.element"
	RefKindKey    = "reelplay.reference.kind"
	StateKey      = "reelplay.playback.state"
	IntentKey     = "reelplay.intent"
	ElementEvtKey = "reelplay.element.event"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// RouteAttributes describes the matched HTTP route.
func RouteAttributes(method, route string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
	}
}

// SessionAttributes describes a player session. Empty values are omitted.
func SessionAttributes(sessionID, itemID, element string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if sessionID != "" {
		attrs = append(attrs, attribute.String(SessionIDKey, sessionID))
	}
	if itemID != "" {
		attrs = append(attrs, attribute.String(ItemIDKey, itemID))
	}
	if element != "" {
		attrs = append(attrs, attribute.String(ElementKey, element))
	}
	return attrs
}

// PlaybackAttributes describes the controller after an operation.
func PlaybackAttributes(state, refKind string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(StateKey, state),
		attribute.String(RefKindKey, refKind),
	}
}

// ErrorAttributes tags a span with a classified failure.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
