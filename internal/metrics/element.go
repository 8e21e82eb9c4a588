// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	remoteAttached = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reelplay_remote_elements_attached",
		Help: "Remote media elements with a live websocket",
	})

	remoteAttachTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelplay_remote_attach_total",
		Help: "Websocket attachments by outcome (attached|superseded|shutdown)",
	}, []string{"outcome"})

	remoteMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelplay_remote_messages_total",
		Help: "Websocket messages by direction (in|out) and result (ok|invalid|rate_limited|overflow)",
	}, []string{"direction", "result"})
)

func IncRemoteAttached() { remoteAttached.Inc() }
func DecRemoteAttached()   { remoteAttached.Dec() }

func IncRemoteAttach(outcome string) {
	remoteAttachTotal.WithLabelValues(outcome).Inc()
}

func IncRemoteMessage(direction, result string) {
	remoteMessagesTotal.WithLabelValues(direction, result).Inc()
}
