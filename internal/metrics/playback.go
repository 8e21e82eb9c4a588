// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics provides Prometheus metrics for the reelplay service.
// Labels are kept low-cardinality: no session, item or request ids.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	GraceRecovered = "recovered"
	GraceExpired   = "expired"
	GraceCancelled = "cancelled"
)

var (
	playbackTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelplay_playback_transitions_total",
		Help: "Playback lifecycle transitions by from/to state and event",
	}, []string{"from", "to", "event"})

	playbackIllegalTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelplay_playback_illegal_transitions_total",
		Help: "Playback events rejected by the decision table, by reason",
	}, []string{"event", "reason"})

	playbackGraceTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelplay_playback_grace_total",
		Help: "Grace window outcomes (recovered|expired|cancelled)",
	}, []string{"outcome"})

	playbackRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reelplay_playback_retries_total",
		Help: "Manual retries issued after a confirmed load failure",
	})

	playbackPlayRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reelplay_playback_play_rejected_total",
		Help: "Play intents rejected by the media runtime",
	})

	playbackStaleEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelplay_playback_stale_events_total",
		Help: "Element events dropped because they belong to a superseded load",
	}, []string{"kind"})

	playbackUnpresentableTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelplay_playback_unpresentable_total",
		Help: "References rejected before binding, by problem",
	}, []string{"problem"})

	playbackTimeToReady = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reelplay_playback_time_to_ready_seconds",
		Help:    "Time from load issued to first readiness event",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13},
	})
)

// RecordPlaybackTransition counts one applied lifecycle transition.
func RecordPlaybackTransition(from, to, event string) {
	playbackTransitionsTotal.WithLabelValues(from, to, event).Inc()
}

// RecordIllegalTransition counts an event refused by the decision table.
func RecordIllegalTransition(event, reason string) {
	if reason == "" {
		reason = "unknown"
	}
	playbackIllegalTotal.WithLabelValues(event, reason).Inc()
}

// RecordGraceOutcome counts how an armed grace window ended.
func RecordGraceOutcome(outcome string) {
	playbackGraceTotal.WithLabelValues(outcome).Inc()
}

func IncPlaybackRetry() { playbackRetriesTotal.Inc() }
func IncPlaybackPlayRejected() { playbackPlayRejectedTotal.Inc() }

func IncStaleElementEvent(kind string) {
	playbackStaleEventsTotal.WithLabelValues(kind).Inc()
}

func IncUnpresentable(problem string) {
	playbackUnpresentableTotal.WithLabelValues(problem).Inc()
}

// ObserveTimeToReady records load latency.
func ObserveTimeToReady(d time.Duration) {
	playbackTimeToReady.Observe(d.Seconds())
}
