// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	xglog "github.com/kuntrapaku/subway-social-link-sub000/internal/log"
)

const (
	meterName = "reelplay.playback"

	IntentOutcomeKey = "reelplay.intent.outcome"
)

// intentAttributes is the closed set of keys an intent observation may carry.
var intentAttributes = map[attribute.Key]bool{
	IntentKey:        true,
	IntentOutcomeKey: true,
	StateKey:         true,
	SessionIDKey:     true,
}

// IntentObservation is one user intent applied to a session.
type IntentObservation struct {
	SessionID string
	Intent    string
	// Outcome is "ok", "rejected" or "error".
	Outcome string
	// State is the controller state after the intent.
	State string
}

// EmitIntent annotates the active span and counts the intent on the global
// meter provider. Providers are looked up per call so tests can swap them.
func EmitIntent(ctx context.Context, obs IntentObservation) {
	attrs := []attribute.KeyValue{
		attribute.String(IntentKey, obs.Intent),
		attribute.String(IntentOutcomeKey, obs.Outcome),
		attribute.String(StateKey, obs.State),
		attribute.String(SessionIDKey, obs.SessionID),
	}
	for _, kv := range attrs {
		if !intentAttributes[kv.Key] {
			xglog.L().Error().Str("key", string(kv.Key)).Msg("intent attribute not in allow-list")
			return
		}
	}

	meter := otel.GetMeterProvider().Meter(meterName)
	counter, err := meter.Int64Counter("reelplay_intent_observations_total",
		metric.WithDescription("Playback intents applied to sessions"))
	if err == nil {
		// Session ids are unbounded; keep them off the metric.
		counter.Add(ctx, 1, metric.WithAttributes(attrs[:3]...))
	}

	span := trace.SpanFromContext(ctx)
	span.AddEvent("playback.intent", trace.WithAttributes(attrs...))
}
