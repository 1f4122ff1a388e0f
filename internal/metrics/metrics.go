// Package metrics provides Prometheus metrics for the vru-mesh core
// transport, trimmed from the teacher's (postalsys-Muti-Metroo)
// internal/metrics down to the handshake, cipher, and Sphinx counters this
// module owns — the teacher's peer/stream/SOCKS5/exit/routing metrics
// belong to the node runtime spec.md §1 puts out of scope.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vru_mesh"

// Metrics holds the core transport's Prometheus instruments.
type Metrics struct {
	HandshakesStarted  *prometheus.CounterVec
	HandshakeLatency   *prometheus.HistogramVec
	HandshakeErrors    *prometheus.CounterVec
	CipherRekeys       *prometheus.CounterVec
	CipherMessages     *prometheus.CounterVec
	SphinxHopLatency   prometheus.Histogram
	SphinxHopErrors    *prometheus.CounterVec
	SphinxPacketsExit  prometheus.Counter
}

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// Default returns the process-wide default Metrics instance, registered
// against prometheus.DefaultRegisterer.
func Default() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = NewMetrics()
	})
	return defaultMetrics
}

// NewMetrics registers a Metrics instance against the default registerer.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry registers a Metrics instance against reg, so
// tests can use their own registry instead of the process-wide default.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HandshakesStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshakes_started_total",
			Help:      "Total handshakes started, by pattern (xk, xx) and role (initiator, responder)",
		}, []string{"pattern", "role"}),
		HandshakeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handshake_latency_seconds",
			Help:      "Histogram of handshake completion latency, by pattern",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"pattern"}),
		HandshakeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshake_errors_total",
			Help:      "Total handshake errors, by pattern and error type",
		}, []string{"pattern", "error_type"}),
		CipherRekeys: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cipher_rekeys_total",
			Help:      "Total record-cipher rotor rotations, by direction",
		}, []string{"direction"}),
		CipherMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cipher_messages_total",
			Help:      "Total record-cipher Seal/Open calls, by direction",
		}, []string{"direction"}),
		SphinxHopLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sphinx_hop_latency_seconds",
			Help:      "Histogram of per-hop Sphinx packet processing latency",
			Buckets:   []float64{.0001, .0005, .001, .0025, .005, .01, .025, .05},
		}),
		SphinxHopErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sphinx_hop_errors_total",
			Help:      "Total per-hop Sphinx processing errors, by type",
		}, []string{"error_type"}),
		SphinxPacketsExit: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sphinx_packets_exit_total",
			Help:      "Total Sphinx packets reaching their exit hop",
		}),
	}
}

// RecordHandshakeStart records a handshake beginning.
func (m *Metrics) RecordHandshakeStart(pattern, role string) {
	m.HandshakesStarted.WithLabelValues(pattern, role).Inc()
}

// RecordHandshake records a completed handshake's latency.
func (m *Metrics) RecordHandshake(pattern string, latencySeconds float64) {
	m.HandshakeLatency.WithLabelValues(pattern).Observe(latencySeconds)
}

// RecordHandshakeError records a handshake failure.
func (m *Metrics) RecordHandshakeError(pattern, errorType string) {
	m.HandshakeErrors.WithLabelValues(pattern, errorType).Inc()
}

// RecordCipherRekey records a rotor rotation for one cipher direction.
func (m *Metrics) RecordCipherRekey(direction string) {
	m.CipherRekeys.WithLabelValues(direction).Inc()
}

// RecordCipherMessage records a Seal or Open call for one cipher direction.
func (m *Metrics) RecordCipherMessage(direction string) {
	m.CipherMessages.WithLabelValues(direction).Inc()
}

// RecordSphinxHop records one hop's packet-processing latency.
func (m *Metrics) RecordSphinxHop(latencySeconds float64) {
	m.SphinxHopLatency.Observe(latencySeconds)
}

// RecordSphinxHopError records a per-hop Sphinx processing error.
func (m *Metrics) RecordSphinxHopError(errorType string) {
	m.SphinxHopErrors.WithLabelValues(errorType).Inc()
}

// RecordSphinxExit records a packet reaching its exit hop.
func (m *Metrics) RecordSphinxExit() {
	m.SphinxPacketsExit.Inc()
}
