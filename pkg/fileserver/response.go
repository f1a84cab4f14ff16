package fileserver

import (
	"bytes"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
)

// Header is a single response header. Order is preserved on the wire.
type Header struct {
	Name  string
	Value string
}

// Response is a fully buffered response. Content-Length and Connection are
// added by WriteTo and must not be set by callers.
type Response struct {
	StatusCode int
	Headers    []Header
	Body       []byte
}

// Head renders the status line and header block, including the trailing
// blank line.
func (r *Response) Head() []byte {
	var b bytes.Buffer
	b.WriteString("HTTP/1.1 ")
	b.WriteString(strconv.Itoa(r.StatusCode))
	b.WriteByte(' ')
	b.WriteString(http.StatusText(r.StatusCode))
	b.WriteString("\r\n")

	for _, h := range r.Headers {
		writeHeader(&b, h.Name, h.Value)
	}
	writeHeader(&b, "Content-Length", strconv.Itoa(len(r.Body)))
	writeHeader(&b, "Connection", "close")
	b.WriteString("\r\n")
	return b.Bytes()
}

// WriteTo writes the head and body to w, using a vectored write when w
// supports it.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	bufs := net.Buffers{r.Head(), r.Body}
	return bufs.WriteTo(w)
}

func writeHeader(b *bytes.Buffer, name, value string) {
	b.WriteString(name)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\r\n")
}

// NewListingResponse wraps a rendered listing document.
func NewListingResponse(body []byte) *Response {
	return &Response{
		StatusCode: http.StatusOK,
		Headers:    []Header{{"Content-Type", "text/html"}},
		Body:       body,
	}
}

// NewFileResponse returns a download response for data named filename.
func NewFileResponse(filename string, data []byte) *Response {
	return &Response{
		StatusCode: http.StatusOK,
		Headers: []Header{
			{"Content-Type", "application/octet-stream"},
			{"Content-Disposition", `attachment; filename="` + quoteFilename(filename) + `"`},
		},
		Body: data,
	}
}

const forbiddenBody = "<!DOCTYPE html>\n<html>\n<head><title>403 Forbidden</title></head>\n<body>\n" +
	"<h2>403 Forbidden</h2>\n<p>You are not allowed to access this path.</p>\n</body>\n</html>\n"

// NewForbiddenResponse is sent when a path resolves outside the root.
func NewForbiddenResponse() *Response {
	return &Response{
		StatusCode: http.StatusForbidden,
		Headers:    []Header{{"Content-Type", "text/html"}},
		Body:       []byte(forbiddenBody),
	}
}

// NewNotFoundResponse is sent for targets that are neither a directory nor a
// regular file. The body never mentions the requested path.
func NewNotFoundResponse() *Response {
	return &Response{
		StatusCode: http.StatusNotFound,
		Headers:    []Header{{"Content-Type", "text/plain"}},
		Body:       []byte("404 Not Found"),
	}
}

// quoteFilename makes name safe inside a quoted-string header parameter.
// Control characters would let a crafted filename inject headers, so they
// are replaced.
func quoteFilename(name string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return '_'
		}
		return r
	}, strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(name))
}
