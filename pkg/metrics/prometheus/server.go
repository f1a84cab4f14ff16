package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dirserve/pkg/metrics"
)

// serverMetrics is the Prometheus implementation of metrics.ServerMetrics.
type serverMetrics struct {
	connectionsAccepted    prometheus.Counter
	connectionsClosed      prometheus.Counter
	connectionsForceClosed prometheus.Counter
	activeConnections      prometheus.Gauge
	requestsTotal          *prometheus.CounterVec
	requestDuration        *prometheus.HistogramVec
	bytesSent              *prometheus.CounterVec
	responseSize           prometheus.Histogram
}

// NewServerMetrics creates a Prometheus-backed ServerMetrics registered on
// the process registry.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewServerMetrics() metrics.ServerMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	return NewServerMetricsWith(metrics.GetRegistry())
}

// NewServerMetricsWith registers the server collectors on reg.
func NewServerMetricsWith(reg prometheus.Registerer) metrics.ServerMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		connectionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "dirserve_connections_accepted_total",
			Help: "Total number of accepted client connections",
		}),
		connectionsClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "dirserve_connections_closed_total",
			Help: "Total number of client connections closed",
		}),
		connectionsForceClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "dirserve_connections_force_closed_total",
			Help: "Connections force-closed after the shutdown timeout elapsed",
		}),
		activeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dirserve_connections_active",
			Help: "Number of connections currently being served",
		}),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dirserve_requests_total",
				Help: "Total number of requests by outcome",
			},
			[]string{"outcome"}, // "listing", "file", "forbidden", "not_found", "malformed", "error"
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dirserve_request_duration_milliseconds",
				Help: "Time from accept to close in milliseconds",
				Buckets: []float64{
					0.1, // 100us - cached stat + 403/404
					0.5,
					1,
					5,
					10,
					50,
					100,
					500,
					1000, // 1s - large downloads
					5000,
				},
			},
			[]string{"outcome"},
		),
		bytesSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dirserve_bytes_sent_total",
				Help: "Total response bytes written, headers included",
			},
			[]string{"outcome"},
		),
		responseSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name: "dirserve_response_size_bytes",
			Help: "Distribution of response sizes",
			Buckets: []float64{
				256,      // error pages
				4096,     // 4KB - small listings
				65536,    // 64KB
				1048576,  // 1MB
				10485760, // 10MB
				104857600,
			},
		}),
	}
}

func (m *serverMetrics) RecordConnectionAccepted() {
	m.connectionsAccepted.Inc()
}

func (m *serverMetrics) RecordConnectionClosed() {
	m.connectionsClosed.Inc()
}

func (m *serverMetrics) RecordConnectionForceClosed() {
	m.connectionsForceClosed.Inc()
}

func (m *serverMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

func (m *serverMetrics) RecordRequest(outcome string, duration time.Duration) {
	m.requestsTotal.WithLabelValues(outcome).Inc()
	m.requestDuration.WithLabelValues(outcome).Observe(float64(duration.Microseconds()) / 1000.0)
}

func (m *serverMetrics) RecordBytesSent(outcome string, bytes int64) {
	if bytes <= 0 {
		return
	}
	m.bytesSent.WithLabelValues(outcome).Add(float64(bytes))
	m.responseSize.Observe(float64(bytes))
}
