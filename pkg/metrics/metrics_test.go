package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLifecycle(t *testing.T) {
	t.Cleanup(resetRegistry)
	resetRegistry()

	assert.False(t, IsEnabled())
	assert.Nil(t, GetRegistry())

	reg := InitRegistry()
	require.NotNil(t, reg)
	assert.True(t, IsEnabled())
	assert.Same(t, reg, GetRegistry())
	assert.Same(t, reg, InitRegistry(), "second call returns the same registry")
}

func TestRouterEndpoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "dirserve_test_total",
		Help: "test counter",
	}).Add(3)

	srv := httptest.NewServer(NewRouter(reg))
	defer srv.Close()

	t.Run("Metrics", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/metrics")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "dirserve_test_total 3")
	})

	t.Run("Health", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/health")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "ok\n", string(body))
	})

	t.Run("UnknownPath", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/nope")
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestServerStopIdempotent(t *testing.T) {
	s := NewServer(0, prometheus.NewRegistry())
	assert.Equal(t, 0, s.Port())
	require.NoError(t, s.Stop(t.Context()))
	require.NoError(t, s.Stop(t.Context()))
}
