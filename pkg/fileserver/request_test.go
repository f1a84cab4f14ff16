package fileserver

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		method string
		target string
		proto  string
		path   string
	}{
		{"Root", "GET / HTTP/1.1\r\nHost: example\r\n\r\n", "GET", "/", "HTTP/1.1", ""},
		{"Encoded", "GET /a%20b/c.txt HTTP/1.0\r\n", "GET", "/a%20b/c.txt", "HTTP/1.0", "a b/c.txt"},
		{"ManySlashes", "GET ///sub HTTP/1.1\n", "GET", "///sub", "HTTP/1.1", "sub"},
		{"InvalidEscape", "GET /bad%zz HTTP/1.1\r\n", "GET", "/bad%zz", "HTTP/1.1", "bad%zz"},
		{"NoTerminator", "GET /x HTTP/1.1", "GET", "/x", "HTTP/1.1", "x"},
		{"AnyMethod", "DELETE /x HTTP/1.1\r\n", "DELETE", "/x", "HTTP/1.1", "x"},
		{"ExtraWhitespace", "  GET\t/x   HTTP/1.1 \r\n", "GET", "/x", "HTTP/1.1", "x"},
		{"EncodedTraversal", "GET /%2e%2e/secret HTTP/1.1\r\n", "GET", "/%2e%2e/secret", "HTTP/1.1", "../secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseRequest([]byte(tt.data), DefaultRequestBufferSize)
			require.NoError(t, err)
			assert.Equal(t, tt.method, req.Method)
			assert.Equal(t, tt.target, req.Target)
			assert.Equal(t, tt.proto, req.Proto)
			assert.Equal(t, tt.path, req.Path)
		})
	}
}

func TestParseRequestMalformed(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		limit int
	}{
		{"Empty", nil, DefaultRequestBufferSize},
		{"BlankLine", []byte("\r\n"), DefaultRequestBufferSize},
		{"TwoTokens", []byte("GET /\r\n"), DefaultRequestBufferSize},
		{"FourTokens", []byte("GET / HTTP/1.1 extra\r\n"), DefaultRequestBufferSize},
		{"HeaderOnlyFirstLineCounts", []byte("GET\r\n/ HTTP/1.1\r\n"), DefaultRequestBufferSize},
		{"BufferFull", bytes.Repeat([]byte("A"), 16), 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseRequest(tt.data, tt.limit)
			assert.ErrorIs(t, err, ErrMalformedRequest)
			assert.Nil(t, req)
		})
	}
}

func TestParseRequestLineFitsExactly(t *testing.T) {
	line := []byte("GET /abc HTTP/1.1\n")
	req, err := ParseRequest(line, len(line))
	require.NoError(t, err)
	assert.Equal(t, "abc", req.Path)
}

func TestDecodePath(t *testing.T) {
	assert.Equal(t, "", DecodePath("/"))
	assert.Equal(t, "a/b", DecodePath("//a/b"))
	assert.Equal(t, "a+b", DecodePath("/a+b"))
	assert.Equal(t, "ü", DecodePath("/%C3%BC"))
	assert.Equal(t, "%", DecodePath("/%"))
}

func TestDecodePathMixedEscapes(t *testing.T) {
	tests := []struct {
		target string
		want   string
	}{
		{"/my%20file%zz", "my file%zz"},
		{"/%zz%41", "%zzA"},
		{"/a%2", "a%2"},
		{"/100%", "100%"},
		{"/%2f%2Fetc", "etc"},
		{"/x%2e%2E", "x.."},
		{"/%ff", "\xff"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodePath(tt.target))
		})
	}
}
