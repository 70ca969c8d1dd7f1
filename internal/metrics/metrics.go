// Package metrics exposes relay counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "huddle"

type Metrics struct {
	Rooms          prometheus.Gauge
	Sessions       prometheus.Gauge
	EventsIn       *prometheus.CounterVec
	EventsOut      *prometheus.CounterVec
	SignalsDropped prometheus.Counter
	Backpressure   prometheus.Counter
	RateLimited    prometheus.Counter
	HostFailovers  prometheus.Counter
	Kicks          prometheus.Counter
}

// New registers every collector on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Rooms: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "rooms_active",
			Help: "Rooms with at least one member.",
		}),
		Sessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sessions_active",
			Help: "Open signaling connections.",
		}),
		EventsIn: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_received_total",
			Help: "Inbound relay events by name.",
		}, []string{"event"}),
		EventsOut: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_sent_total",
			Help: "Outbound relay events by name.",
		}, []string{"event"}),
		SignalsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "signals_dropped_total",
			Help: "Signals whose target was no longer in the room.",
		}),
		Backpressure: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "backpressure_total",
			Help: "Sends rejected because a session queue was full.",
		}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "rate_limited_total",
			Help: "Chat and caption events dropped by the rate limiter.",
		}),
		HostFailovers: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "host_failovers_total",
			Help: "Host reassignments after the host left.",
		}),
		Kicks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "moderation_removals_total",
			Help: "Members removed by a host.",
		}),
	}
}
