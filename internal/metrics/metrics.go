// Package metrics exposes Prometheus collectors for the group session
// engine. As in pkg/p2pnet/metrics.go, every collector is registered on an
// isolated prometheus.Registry rather than the global default registry, so
// multiple engine instances (or test cases) never collide.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all groupwire Prometheus collectors.
type Metrics struct {
	Registry *prometheus.Registry

	PeersConfirmedTotal *prometheus.CounterVec
	PeersDroppedTotal   *prometheus.CounterVec
	PeersActive         *prometheus.GaugeVec

	MessagesSentTotal        *prometheus.CounterVec
	MessagesRetransmitted    *prometheus.CounterVec
	MessagesDeliveredTotal   *prometheus.CounterVec
	SendQueueDepth           *prometheus.GaugeVec

	PingRTTSeconds *prometheus.HistogramVec

	AnnounceRequestsServedTotal *prometheus.CounterVec
	AnnounceEntriesActive       prometheus.Gauge

	SyncRoundsTotal *prometheus.CounterVec
}

// New creates a Metrics instance with all collectors registered on a fresh
// registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		PeersConfirmedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "groupwire_peers_confirmed_total",
				Help: "Total number of peer handshakes that reached the confirmed state.",
			},
			[]string{"chat_id"},
		),
		PeersDroppedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "groupwire_peers_dropped_total",
				Help: "Total number of peers removed from the roster, by reason.",
			},
			[]string{"chat_id", "reason"},
		),
		PeersActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "groupwire_peers_active",
				Help: "Current number of roster members.",
			},
			[]string{"chat_id"},
		),
		MessagesSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "groupwire_messages_sent_total",
				Help: "Total lossless and lossy packets sent, by type.",
			},
			[]string{"chat_id", "packet_type"},
		),
		MessagesRetransmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "groupwire_messages_retransmitted_total",
				Help: "Total lossless packets retransmitted due to missing ACK.",
			},
			[]string{"chat_id"},
		),
		MessagesDeliveredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "groupwire_messages_delivered_total",
				Help: "Total lossless packets delivered to the application in order.",
			},
			[]string{"chat_id"},
		),
		SendQueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "groupwire_send_queue_depth",
				Help: "Current number of unacknowledged entries in a peer's send queue.",
			},
			[]string{"chat_id", "peer_id"},
		),
		PingRTTSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "groupwire_ping_rtt_seconds",
				Help:    "Observed round-trip time for PING/PONG keepalives.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"chat_id"},
		),
		AnnounceRequestsServedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "groupwire_onion_announce_requests_served_total",
				Help: "Total onion announce requests handled by the responder, by status.",
			},
			[]string{"status"},
		),
		AnnounceEntriesActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "groupwire_onion_announce_entries_active",
				Help: "Current number of entries held in the onion announce responder table.",
			},
		),
		SyncRoundsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "groupwire_sync_rounds_total",
				Help: "Total SYNC_REQUEST/RESPONSE rounds completed.",
			},
			[]string{"chat_id"},
		),
	}

	reg.MustRegister(
		m.PeersConfirmedTotal,
		m.PeersDroppedTotal,
		m.PeersActive,
		m.MessagesSentTotal,
		m.MessagesRetransmitted,
		m.MessagesDeliveredTotal,
		m.SendQueueDepth,
		m.PingRTTSeconds,
		m.AnnounceRequestsServedTotal,
		m.AnnounceEntriesActive,
		m.SyncRoundsTotal,
	)

	return m
}
