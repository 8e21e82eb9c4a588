// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BusDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelplay_bus_dropped_total",
		Help: "Total number of in-memory bus message drops by kind and reason",
	}, []string{"kind", "reason"})

	BusPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelplay_bus_published_total",
		Help: "Total number of in-memory bus messages published by kind",
	}, []string{"kind"})
)

// IncBusDrop records a dropped bus message for a full subscriber queue.
func IncBusDrop(kind string) {
	IncBusDropReason(kind, "full")
}

// IncBusDropReason records a dropped bus message with a concrete reason.
func IncBusDropReason(kind, reason string) {
	if kind == "" {
		kind = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	BusDroppedTotal.WithLabelValues(kind, reason).Inc()
}

func IncBusPublished(kind string) {
	BusPublishedTotal.WithLabelValues(kind).Inc()
}
