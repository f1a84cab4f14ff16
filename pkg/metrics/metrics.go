// Package metrics defines the observability hooks used by the acceptor and
// the request handler, plus the shared Prometheus registry and the HTTP
// endpoint that exposes it.
//
// Collectors are optional everywhere: components accept a nil interface and
// skip recording entirely, so a disabled metrics config costs nothing.
package metrics

import "time"

// ConnectionMetrics records connection lifecycle events from the acceptor.
type ConnectionMetrics interface {
	// RecordConnectionAccepted increments the accepted connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the closed connections counter.
	RecordConnectionClosed()

	// RecordConnectionForceClosed counts connections closed by the shutdown
	// timeout rather than by their handler.
	RecordConnectionForceClosed()

	// SetActiveConnections updates the in-flight connections gauge.
	SetActiveConnections(count int32)
}

// RequestMetrics records per-request outcomes from the handler.
//
// outcome is one of the handler outcome labels: "listing", "file",
// "forbidden", "not_found", "malformed" or "error".
type RequestMetrics interface {
	// RecordRequest records a finished request and how long it took from
	// accept to close.
	RecordRequest(outcome string, duration time.Duration)

	// RecordBytesSent records the bytes written for one response.
	RecordBytesSent(outcome string, bytes int64)
}

// ServerMetrics is the full set of hooks used by a running daemon.
type ServerMetrics interface {
	ConnectionMetrics
	RequestMetrics
}
