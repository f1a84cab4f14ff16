package logger

import (
	"context"
	"time"
)

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds connection-scoped logging fields.
type LogContext struct {
	TraceID    string
	SpanID     string
	ConnID     string // per-connection UUID assigned by the acceptor
	ClientAddr string // remote address as reported by the socket
	Path       string // decoded request path, once parsed
	StartTime  time.Time
}

// WithContext returns a new context carrying lc.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from ctx, or nil if not present.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a LogContext for a freshly accepted connection.
func NewLogContext(connID, clientAddr string) *LogContext {
	return &LogContext{
		ConnID:     connID,
		ClientAddr: clientAddr,
		StartTime:  time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	return &c
}

// WithPath returns a copy with the request path set
func (lc *LogContext) WithPath(path string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Path = path
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return Duration(lc.StartTime)
}
