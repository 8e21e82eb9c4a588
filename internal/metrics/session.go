// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reelplay_sessions_active",
		Help: "Current number of open playback sessions",
	})

	sessionsClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelplay_sessions_closed_total",
		Help: "Closed playback sessions by cause (client|idle|shutdown|limit)",
	}, []string{"cause"})

	sessionsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelplay_sessions_rejected_total",
		Help: "Session creations refused, by reason",
	}, []string{"reason"})

	intentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelplay_intents_total",
		Help: "Viewer intents received over the API, by intent and outcome (ok|rejected|error)",
	}, []string{"intent", "outcome"})
)

func SetActiveSessions(n int) { activeSessions.Set(float64(n)) }

func IncSessionClosed(cause string) {
	sessionsClosedTotal.WithLabelValues(cause).Inc()
}

func IncSessionRejected(reason string) {
	sessionsRejectedTotal.WithLabelValues(reason).Inc()
}

func IncIntent(intent, outcome string) {
	intentsTotal.WithLabelValues(intent, outcome).Inc()
}
