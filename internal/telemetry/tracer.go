package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys. Client keys follow OpenTelemetry semantic conventions;
// request keys use the "fs." prefix.
const (
	AttrClientIP     = "client.address"
	AttrConnectionID = "dirserve.conn_id"
	AttrMethod       = "fs.method"
	AttrPath         = "fs.path"
	AttrOutcome      = "fs.outcome"
	AttrStatus       = "fs.status"
	AttrSize         = "fs.size"
	AttrEntries      = "fs.entries"
)

// Span names.
const (
	// Root span for one connection, from accept to close
	SpanRequest = "fileserver.request"

	SpanResolve = "fileserver.resolve"
	SpanListing = "fileserver.listing"
	SpanRead    = "fileserver.read"
)

func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

func ConnectionID(id string) attribute.KeyValue {
	return attribute.String(AttrConnectionID, id)
}

func Method(m string) attribute.KeyValue {
	return attribute.String(AttrMethod, m)
}

func Path(p string) attribute.KeyValue {
	return attribute.String(AttrPath, p)
}

func Outcome(o string) attribute.KeyValue {
	return attribute.String(AttrOutcome, o)
}

func Status(code int) attribute.KeyValue {
	return attribute.Int(AttrStatus, code)
}

func Size(n int64) attribute.KeyValue {
	return attribute.Int64(AttrSize, n)
}

func Entries(n int) attribute.KeyValue {
	return attribute.Int(AttrEntries, n)
}

// StartRequestSpan starts the server span covering one connection.
func StartRequestSpan(ctx context.Context, connID, clientIP string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanRequest,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(ConnectionID(connID), ClientIP(clientIP)),
	)
}
