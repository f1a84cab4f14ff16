// Package accesslog writes one line per served request to a shared sink.
//
// Lines look like:
//
//	[2026-01-02 15:04:05] 192.0.2.10 requested docs/readme.txt
//
// or, in JSON format:
//
//	{"time":"2026-01-02 15:04:05","client":"192.0.2.10","path":"docs/readme.txt"}
//
// A Logger is safe for concurrent use; every line is emitted with a single
// Write while holding the logger's mutex, so lines from concurrent handlers
// never interleave.
package accesslog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"
)

// TimestampLayout is the local-time layout used in every access log line.
const TimestampLayout = "2006-01-02 15:04:05"

// Format selects the line encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat returns the Format named by s. Empty selects text.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown access log format %q (expected text or json)", s)
	}
}

// Logger is the access log sink.
type Logger struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	format Format
	now    func() time.Time
}

// New returns a Logger writing to w. The caller keeps ownership of w.
func New(w io.Writer, format Format) *Logger {
	if format == "" {
		format = FormatText
	}
	return &Logger{w: w, format: format, now: time.Now}
}

// Open returns a Logger for target, which is "stdout", "stderr" or a file
// path. Files are created if needed and appended to; Close releases them.
func Open(target string, format Format) (*Logger, error) {
	switch strings.ToLower(target) {
	case "", "stdout":
		return New(os.Stdout, format), nil
	case "stderr":
		return New(os.Stderr, format), nil
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open access log %q: %w", target, err)
	}
	l := New(f, format)
	l.closer = f
	return l, nil
}

type jsonLine struct {
	Time   string `json:"time"`
	Client string `json:"client"`
	Path   string `json:"path"`
}

// LogRequest records that client requested path. client may be a bare IP or
// a host:port address; only the host part is written.
func (l *Logger) LogRequest(client, path string) error {
	ts := l.now().Local().Format(TimestampLayout)
	host := ClientIP(client)

	var line []byte
	switch l.format {
	case FormatJSON:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(jsonLine{Time: ts, Client: host, Path: path}); err != nil {
			return fmt.Errorf("failed to encode access log line: %w", err)
		}
		line = buf.Bytes()
	default:
		line = []byte(fmt.Sprintf("[%s] %s requested %s\n", ts, host, sanitize(path)))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.w.Write(line); err != nil {
		return fmt.Errorf("failed to write access log: %w", err)
	}
	return nil
}

// Close closes the underlying file when the Logger was opened on one.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	return err
}

// ClientIP strips the port from a host:port address. Addresses without a
// port are returned unchanged.
func ClientIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// sanitize keeps a decoded path from breaking the one-line-per-request
// framing of the text format.
func sanitize(path string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return '_'
		}
		return r
	}, path)
}
