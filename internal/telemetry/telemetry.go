// Package telemetry exposes the Prometheus instrumentation for the
// pipeline. Counters live on the default registry and are served by the
// API server at /metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "classwatch",
		Name:      "events_ingested_total",
		Help:      "Events read from the broker and validated.",
	})
	eventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classwatch",
		Name:      "events_dropped_total",
		Help:      "Events dropped before reaching subscribers, by reason.",
	}, []string{"reason"})
	subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "classwatch",
		Name:      "broadcast_subscribers",
		Help:      "Currently registered live subscribers.",
	})
	broadcastDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "classwatch",
		Name:      "broadcast_dropped_total",
		Help:      "Frames dropped from slow subscriber queues.",
	})
	persistRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "classwatch",
		Name:      "persist_retries_total",
		Help:      "Storage write attempts that were retried.",
	})
	persistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "classwatch",
		Name:      "persist_failures_total",
		Help:      "Events dropped from the storage path after exhausting retries.",
	})
)

func EventIngested()             { eventsIngested.Inc() }
func EventDropped(reason string) { eventsDropped.WithLabelValues(reason).Inc() }
func SetSubscribers(n int)       { subscribers.Set(float64(n)) }
func BroadcastDropped()          { broadcastDropped.Inc() }
func PersistRetry()              { persistRetries.Inc() }
func PersistFailure()            { persistFailures.Inc() }
