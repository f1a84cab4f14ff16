//go:build !windows

package fileserver

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestRespondSpecialFileNotFound(t *testing.T) {
	r := newTestRoot(t)
	require.NoError(t, unix.Mkfifo(filepath.Join(r.Root(), "pipe"), 0o644))

	h := NewHandler(r, nil, nil, Config{})
	resp, outcome, err := h.Respond(context.Background(), "pipe")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, OutcomeNotFound, outcome)

	entries, err := ReadListing(r.Root())
	require.NoError(t, err)
	assert.Contains(t, entries, Entry{Name: "pipe", Kind: KindFile}, "special files are listed as files")
}
