package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nexus",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nexus",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	relayConnections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nexus",
			Subsystem: "relay",
			Name:      "connections_total",
			Help:      "Relay connections accepted.",
		},
		[]string{"transport"},
	)
	relayConnectionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "nexus",
			Subsystem: "relay",
			Name:      "connections_active",
			Help:      "Relay connections currently open.",
		},
		[]string{"transport"},
	)
	relayCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nexus",
			Subsystem: "relay",
			Name:      "commands_total",
			Help:      "Relay commands received, by command name.",
		},
		[]string{"command"},
	)
	relayAuthFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nexus",
			Subsystem: "relay",
			Name:      "auth_failures_total",
			Help:      "Failed relay authentication attempts.",
		},
	)
	relayPushDrops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nexus",
			Subsystem: "relay",
			Name:      "push_drops_total",
			Help:      "Sessions closed because their push queue overflowed.",
		},
	)
	relayFramesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nexus",
			Subsystem: "relay",
			Name:      "frames_sent_total",
			Help:      "Outbound relay frames.",
		},
		[]string{"transport"},
	)
	relayBytesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nexus",
			Subsystem: "relay",
			Name:      "bytes_sent_total",
			Help:      "Outbound relay frame bytes, headers included.",
		},
		[]string{"transport"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			relayConnections, relayConnectionsActive, relayCommands,
			relayAuthFailures, relayPushDrops, relayFramesSent, relayBytesSent,
		)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordConnectionOpened(transport string) {
	RegisterMetrics()
	relayConnections.WithLabelValues(transport).Inc()
	relayConnectionsActive.WithLabelValues(transport).Inc()
}

func RecordConnectionClosed(transport string) {
	RegisterMetrics()
	relayConnectionsActive.WithLabelValues(transport).Dec()
}

func RecordCommand(name string) {
	RegisterMetrics()
	relayCommands.WithLabelValues(name).Inc()
}

func RecordAuthFailure() {
	RegisterMetrics()
	relayAuthFailures.Inc()
}

func RecordPushDrop() {
	RegisterMetrics()
	relayPushDrops.Inc()
}

func RecordFrameSent(transport string, n int) {
	RegisterMetrics()
	relayFramesSent.WithLabelValues(transport).Inc()
	relayBytesSent.WithLabelValues(transport).Add(float64(n))
}
