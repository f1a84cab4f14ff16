package fileserver

import (
	"bytes"
	"strings"
)

// DefaultRequestBufferSize is the read budget for the request line.
const DefaultRequestBufferSize = 1024

// Request is a parsed request line.
type Request struct {
	Method string
	Target string // raw path token as sent
	Proto  string

	// Path is Target percent-decoded with leading slashes removed.
	Path string
}

// ParseRequest parses the first line of data, which is the result of a
// single read into a buffer of size limit. Headers after the first line are
// ignored.
//
// The request is malformed when data is empty, when the buffer filled up
// without a line terminator, or when the first line does not split into
// exactly three whitespace separated tokens.
func ParseRequest(data []byte, limit int) (*Request, error) {
	if len(data) == 0 {
		return nil, ErrMalformedRequest
	}

	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	} else if len(data) >= limit {
		return nil, ErrMalformedRequest
	}

	fields := strings.Fields(string(line))
	if len(fields) != 3 {
		return nil, ErrMalformedRequest
	}

	return &Request{
		Method: fields[0],
		Target: fields[1],
		Proto:  fields[2],
		Path:   DecodePath(fields[1]),
	}, nil
}

// DecodePath percent-decodes a request target and strips leading slashes.
// Each valid %XX escape is decoded on its own; malformed escapes are kept
// literally. Decoded bytes are not required to form valid UTF-8.
func DecodePath(target string) string {
	return strings.TrimLeft(unescapePercent(target), "/")
}

func unescapePercent(s string) string {
	if strings.IndexByte(s, '%') < 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			hi, okHi := unhex(s[i+1])
			lo, okLo := unhex(s[i+2])
			if okHi && okLo {
				b.WriteByte(hi<<4 | lo)
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
