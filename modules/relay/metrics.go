package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatrelay_connections_active",
			Help: "Currently registered live connections",
		},
	)

	// Event metrics
	EventsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_events_dispatched_total",
			Help: "Inbound events by kind and outcome",
		},
		[]string{"kind", "outcome"}, // outcome: "handled", "dropped", "closed"
	)

	BroadcastDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_broadcast_deliveries_total",
			Help: "Per-recipient broadcast writes by result",
		},
		[]string{"kind", "result"}, // result: "sent", "failed"
	)

	BroadcastDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatrelay_broadcast_duration_seconds",
			Help:    "Time to resolve and deliver one broadcast",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
	)

	// Cache metrics
	RoomCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_room_cache_lookups_total",
			Help: "Room cache lookups by result",
		},
		[]string{"result"}, // "hit", "miss", "error"
	)
)

// Dispatch outcomes.
const (
	outcomeHandled = "handled"
	outcomeDropped = "dropped"
	outcomeClosed  = "closed"
)
