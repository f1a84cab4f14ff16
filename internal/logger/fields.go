package logger

import (
	"log/slog"
)

// Standard field keys. Use these consistently so access and operational logs
// can be queried together.
const (
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	KeyConnectionID = "conn_id"
	KeyClientAddr   = "client"
	KeyRemoteAddr   = "remote_addr"
	KeyActive       = "active"

	KeyPath     = "path"
	KeyResolved = "resolved"
	KeyRoot     = "root"
	KeyFilename = "filename"
	KeySize     = "size"
	KeyEntries  = "entries"

	KeyMethod    = "method"
	KeyStatus    = "status"
	KeyOutcome   = "outcome"
	KeyBytesSent = "bytes_sent"

	KeyPort       = "port"
	KeyAddress    = "address"
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
)

// ConnID returns a slog.Attr for a connection identifier
func ConnID(id string) slog.Attr {
	return slog.String(KeyConnectionID, id)
}

// ClientAddr returns a slog.Attr for the remote peer address
func ClientAddr(addr string) slog.Attr {
	return slog.String(KeyClientAddr, addr)
}

// Path returns a slog.Attr for a requested path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Status returns a slog.Attr for a response status code
func Status(code int) slog.Attr {
	return slog.Int(KeyStatus, code)
}

// Size returns a slog.Attr for a byte size
func Size(n int64) slog.Attr {
	return slog.Int64(KeySize, n)
}

// Err returns a slog.Attr for an error. A nil error yields an empty attr,
// which the handlers drop.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// DurationMs returns a slog.Attr for an elapsed time in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}
