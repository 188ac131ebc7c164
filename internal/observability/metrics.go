// Package observability exposes Prometheus metrics for the ingestion
// pipeline: feed connection health, message throughput, and the fate of
// each event as it moves through dedup, gating and filtering.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	MessagesReceived  *prometheus.CounterVec
	ParseFailures     *prometheus.CounterVec
	EventsAccepted    *prometheus.CounterVec
	EventsSuppressed  *prometheus.CounterVec
	PushesDelivered   *prometheus.CounterVec
	DeliveryFailures  *prometheus.CounterVec
	ReconnectAttempts *prometheus.CounterVec
	ConnectionsActive prometheus.Gauge
}

// Suppression reasons recorded on EventsSuppressed.
const (
	ReasonDuplicate = "duplicate"
	ReasonReport    = "report_gate"
	ReasonSeverity  = "severity"
	ReasonStale     = "stale"
	ReasonLocal     = "local_intensity"
	ReasonKeyword   = "keyword"
)

// New registers the pipeline metrics on reg and returns them. Tests pass
// their own registry so parallel packages never collide.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feed_messages_received_total",
			Help: "Raw messages received from upstream feeds.",
		}, []string{"connection"}),
		ParseFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feed_parse_failures_total",
			Help: "Messages a handler could not normalize.",
		}, []string{"connection"}),
		EventsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_events_accepted_total",
			Help: "Events that passed all pipeline stages.",
		}, []string{"source"}),
		EventsSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_events_suppressed_total",
			Help: "Events dropped by a pipeline stage, by reason.",
		}, []string{"source", "reason"}),
		PushesDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "push_deliveries_total",
			Help: "Messages delivered to push destinations.",
		}, []string{"destination"}),
		DeliveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "push_delivery_failures_total",
			Help: "Delivery attempts that failed.",
		}, []string{"destination"}),
		ReconnectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feed_reconnect_attempts_total",
			Help: "Reconnection attempts per feed connection.",
		}, []string{"connection"}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "feed_connections_active",
			Help: "Feed connections currently in the connected state.",
		}),
	}

	reg.MustRegister(
		m.MessagesReceived,
		m.ParseFailures,
		m.EventsAccepted,
		m.EventsSuppressed,
		m.PushesDelivered,
		m.DeliveryFailures,
		m.ReconnectAttempts,
		m.ConnectionsActive,
	)

	return m
}

// NewForTesting returns metrics backed by a throwaway registry.
func NewForTesting() *Metrics {
	return New(prometheus.NewRegistry())
}
