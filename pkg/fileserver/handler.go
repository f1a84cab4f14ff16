package fileserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path"
	"runtime/debug"
	"time"

	"github.com/marmos91/dirserve/internal/logger"
	"github.com/marmos91/dirserve/internal/telemetry"
	"github.com/marmos91/dirserve/pkg/accesslog"
	"github.com/marmos91/dirserve/pkg/bufpool"
	"github.com/marmos91/dirserve/pkg/metrics"
)

// Outcome labels how a connection ended. It is used as the metrics label
// and span attribute.
type Outcome string

const (
	OutcomeListing   Outcome = "listing"
	OutcomeFile      Outcome = "file"
	OutcomeForbidden Outcome = "forbidden"
	OutcomeNotFound  Outcome = "not_found"
	OutcomeMalformed Outcome = "malformed"
	OutcomeError     Outcome = "error"
)

// RequestLogger records accepted requests. *accesslog.Logger implements it.
type RequestLogger interface {
	LogRequest(client, path string) error
}

// Config tunes per-connection behaviour. Zero timeouts disable the
// corresponding deadline.
type Config struct {
	RequestBufferSize int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
}

// Handler serves exactly one request per connection.
//
// A Handler holds no per-connection state and is safe for concurrent use by
// any number of connection goroutines.
type Handler struct {
	resolver *Resolver
	log      RequestLogger
	metrics  metrics.RequestMetrics
	config   Config
	buffers  *bufpool.Pool
}

// NewHandler creates a Handler serving files under resolver's root. log and
// m may be nil.
func NewHandler(resolver *Resolver, log RequestLogger, m metrics.RequestMetrics, cfg Config) *Handler {
	if cfg.RequestBufferSize <= 0 {
		cfg.RequestBufferSize = DefaultRequestBufferSize
	}
	return &Handler{
		resolver: resolver,
		log:      log,
		metrics:  m,
		config:   cfg,
		buffers:  bufpool.New(cfg.RequestBufferSize),
	}
}

// ServeConn reads one request from conn, writes at most one response and
// closes conn. It never returns an error: failures are logged and end the
// connection without a response. Panics are recovered here so a single bad
// request cannot take the daemon down.
//
// ctx may carry a logger.LogContext set by the acceptor.
func (h *Handler) ServeConn(ctx context.Context, conn net.Conn) {
	start := time.Now()
	outcome := OutcomeError
	var sent int64

	client := conn.RemoteAddr().String()
	lc := logger.FromContext(ctx)
	if lc == nil {
		lc = logger.NewLogContext("", client)
	}

	ctx, span := telemetry.StartRequestSpan(ctx, lc.ConnID, accesslog.ClientIP(client))
	ctx = logger.WithContext(ctx, lc.WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx)))

	defer func() {
		if r := recover(); r != nil {
			outcome = OutcomeError
			err := fmt.Errorf("panic: %v", r)
			telemetry.RecordError(ctx, err)
			logger.ErrorCtx(ctx, "Connection handler panicked",
				logger.Err(err),
				"stack", string(debug.Stack()))
		}

		if err := conn.Close(); err != nil {
			logger.DebugCtx(ctx, "Error closing connection", logger.Err(err))
		}

		span.SetAttributes(telemetry.Outcome(string(outcome)))
		span.End()

		if h.metrics != nil {
			h.metrics.RecordRequest(string(outcome), time.Since(start))
			h.metrics.RecordBytesSent(string(outcome), sent)
		}
	}()

	outcome, sent = h.serve(ctx, conn)
}

func (h *Handler) serve(ctx context.Context, conn net.Conn) (Outcome, int64) {
	if h.config.ReadTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout)); err != nil {
			logger.DebugCtx(ctx, "Failed to set read deadline", logger.Err(err))
		}
	}

	// A single read. Whatever arrived is all the request we look at.
	buf := h.buffers.Get()
	n, readErr := conn.Read(buf)

	req, err := ParseRequest(buf[:n], len(buf))
	h.buffers.Put(buf)
	if err != nil {
		logger.DebugCtx(ctx, "Dropping malformed request",
			"bytes", n,
			logger.Err(readErr))
		return OutcomeMalformed, 0
	}

	ctx = logger.WithContext(ctx, logger.FromContext(ctx).WithPath(req.Path))
	telemetry.SetAttributes(ctx, telemetry.Method(req.Method), telemetry.Path(req.Path))

	if h.log != nil {
		if err := h.log.LogRequest(conn.RemoteAddr().String(), req.Path); err != nil {
			logger.WarnCtx(ctx, "Failed to write access log", logger.Err(err))
		}
	}

	resp, outcome, err := h.Respond(ctx, req.Path)
	if err != nil {
		telemetry.RecordError(ctx, err)
		logger.ErrorCtx(ctx, "Request failed, closing connection", logger.Err(err))
		return OutcomeError, 0
	}
	telemetry.SetAttributes(ctx, telemetry.Status(resp.StatusCode))

	if h.config.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout)); err != nil {
			logger.DebugCtx(ctx, "Failed to set write deadline", logger.Err(err))
		}
	}

	sent, err := resp.WriteTo(conn)
	if err != nil {
		telemetry.RecordError(ctx, err)
		logger.WarnCtx(ctx, "Failed to write response",
			logger.Status(resp.StatusCode),
			logger.KeyBytesSent, sent,
			logger.Err(err))
		return OutcomeError, sent
	}

	logger.DebugCtx(ctx, "Request served",
		logger.KeyMethod, req.Method,
		logger.Status(resp.StatusCode),
		logger.KeyOutcome, string(outcome),
		logger.KeyBytesSent, sent,
		logger.DurationMs(logger.FromContext(ctx).DurationMs()))

	return outcome, sent
}

// Respond builds the response for a decoded request path.
//
// Paths escaping the root produce 403. Directories produce a listing and
// regular files a download. Anything else, including missing targets,
// produces 404. A non-nil error means the target exists but could not be
// read; the caller must close the connection without responding.
func (h *Handler) Respond(ctx context.Context, reqPath string) (*Response, Outcome, error) {
	_, span := telemetry.StartSpan(ctx, telemetry.SpanResolve)
	target, err := h.resolver.Resolve(reqPath)
	span.End()
	if err != nil {
		logger.InfoCtx(ctx, "Rejected path outside root")
		return NewForbiddenResponse(), OutcomeForbidden, nil
	}

	info, err := os.Stat(target)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, OutcomeError, fmt.Errorf("failed to stat %q: %w", target, err)
		}
		return NewNotFoundResponse(), OutcomeNotFound, nil
	}

	switch {
	case info.IsDir():
		return h.respondListing(ctx, target, requestedRel(reqPath))
	case info.Mode().IsRegular():
		return h.respondFile(ctx, target, downloadName(reqPath))
	default:
		return NewNotFoundResponse(), OutcomeNotFound, nil
	}
}

func (h *Handler) respondListing(ctx context.Context, dir, rel string) (*Response, Outcome, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanListing)
	defer span.End()

	listing, err := listingFor(dir, rel)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, OutcomeError, err
	}
	span.SetAttributes(telemetry.Entries(len(listing.Entries)))
	logger.DebugCtx(ctx, "Listing directory",
		logger.KeyResolved, h.resolver.Rel(dir),
		logger.KeyEntries, len(listing.Entries))

	var body bytes.Buffer
	if err := RenderListing(&body, listing); err != nil {
		return nil, OutcomeError, fmt.Errorf("failed to render listing: %w", err)
	}
	return NewListingResponse(body.Bytes()), OutcomeListing, nil
}

func (h *Handler) respondFile(ctx context.Context, file, name string) (*Response, Outcome, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanRead)
	defer span.End()

	data, err := os.ReadFile(file)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, OutcomeError, fmt.Errorf("failed to read %q: %w", file, err)
	}
	span.SetAttributes(telemetry.Size(int64(len(data))))

	return NewFileResponse(name, data), OutcomeFile, nil
}

// downloadName is the last element of the path the client asked for, so a
// symlinked file downloads under the link's name.
func downloadName(reqPath string) string {
	return path.Base(path.Clean("/" + reqPath))
}
