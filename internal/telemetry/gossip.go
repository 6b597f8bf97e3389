package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for the gossip counters.
const (
	GossipOK       = "ok"
	GossipError    = "error"
	GossipRejected = "rejected"
)

var (
	GossipSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gossip",
			Name:      "sends_total",
			Help:      "Page deliveries to peers, by outcome.",
		},
		[]string{"result"},
	)

	GossipReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gossip",
			Name:      "received_total",
			Help:      "Pages received from peers, by outcome.",
		},
		[]string{"result"},
	)

	GossipBroadcastDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gossip",
			Name:      "broadcast_duration_seconds",
			Help:      "Time for one fan-out to every peer to settle.",
			Buckets:   latencyBuckets,
		},
	)
)

func init() {
	Registry.MustRegister(GossipSends, GossipReceived, GossipBroadcastDuration)
}

// RecordGossipSend counts one delivery attempt; err is the transport result.
func RecordGossipSend(err error) {
	if err != nil {
		GossipSends.WithLabelValues(GossipError).Inc()
		return
	}
	GossipSends.WithLabelValues(GossipOK).Inc()
}

func RecordGossipReceived(result string) {
	GossipReceived.WithLabelValues(result).Inc()
}

func ObserveBroadcast(d time.Duration) {
	GossipBroadcastDuration.Observe(d.Seconds())
}
