// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelplay_catalog_cache_lookups_total",
		Help: "Catalog cache lookups by result (hit|miss|stale)",
	}, []string{"result"})

	catalogResolveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelplay_catalog_resolve_total",
		Help: "Catalog reference resolutions by source (local|remote) and outcome",
	}, []string{"source", "outcome"})

	blobsHeld = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reelplay_blobs_held",
		Help: "Session-local blobs currently held in memory",
	})

	blobBytesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reelplay_blob_bytes_written_total",
		Help: "Bytes accepted into the session-local blob store",
	})

	blobReleasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelplay_blob_releases_total",
		Help: "Blob releases by outcome (released|foreign|unknown)",
	}, []string{"outcome"})
)

func IncCacheLookup(result string) { cacheLookupsTotal.WithLabelValues(result).Inc() }

func IncCatalogResolve(source, outcome string) {
	catalogResolveTotal.WithLabelValues(source, outcome).Inc()
}

func SetBlobsHeld(n int) { blobsHeld.Set(float64(n)) }
func AddBlobBytes(n int64) { blobBytesWritten.Add(float64(n)) }
func IncBlobRelease(o string) { blobReleasesTotal.WithLabelValues(o).Inc() }

var (
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "reelplay_circuit_breaker_state",
		Help: "Circuit breaker state; 1 on the active state label",
	}, []string{"name", "state"})

	breakerTripsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelplay_circuit_breaker_trips_total",
		Help: "Circuit breaker trips by reason",
	}, []string{"name", "reason"})

	breakerRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelplay_circuit_breaker_rejected_total",
		Help: "Calls refused while the breaker was open",
	}, []string{"name"})
)

func SetBreakerState(name, state string) {
	for _, s := range []string{"closed", "open", "half-open"} {
		v := 0.0
		if s == state {
			v = 1
		}
		breakerState.WithLabelValues(name, s).Set(v)
	}
}

func IncBreakerTrip(name, reason string) { breakerTripsTotal.WithLabelValues(name, reason).Inc() }
func IncBreakerRejected(name string)     { breakerRejectedTotal.WithLabelValues(name).Inc() }
