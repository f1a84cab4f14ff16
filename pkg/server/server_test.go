package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dirserve/internal/logger"
	"github.com/marmos91/dirserve/pkg/fileserver"
	"github.com/marmos91/dirserve/pkg/metrics"
)

type fakeConnMetrics struct {
	accepted    atomic.Int32
	closed      atomic.Int32
	forceClosed atomic.Int32
	active      atomic.Int32
}

func (f *fakeConnMetrics) RecordConnectionAccepted()    { f.accepted.Add(1) }
func (f *fakeConnMetrics) RecordConnectionClosed()      { f.closed.Add(1) }
func (f *fakeConnMetrics) RecordConnectionForceClosed() { f.forceClosed.Add(1) }
func (f *fakeConnMetrics) SetActiveConnections(n int32) { f.active.Store(n) }

// blockingHandler holds every connection open until release is closed.
type blockingHandler struct {
	calls   atomic.Int32
	release chan struct{}

	mu      sync.Mutex
	connIDs []string
}

func newBlockingHandler() *blockingHandler {
	return &blockingHandler{release: make(chan struct{})}
}

func (h *blockingHandler) ServeConn(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()
	h.calls.Add(1)

	if lc := logger.FromContext(ctx); lc != nil {
		h.mu.Lock()
		h.connIDs = append(h.connIDs, lc.ConnID)
		h.mu.Unlock()
	}
	<-h.release
}

func fileHandler(t *testing.T) *fileserver.Handler {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hello, world\n"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "docs"), 0o755))

	r, err := fileserver.NewResolver(root)
	require.NoError(t, err)
	return fileserver.NewHandler(r, nil, nil, fileserver.Config{})
}

type runningServer struct {
	*Server
	cancel context.CancelFunc
	errCh  chan error
}

func startServer(t *testing.T, cfg Config, h ConnectionHandler, m metrics.ConnectionMetrics) *runningServer {
	t.Helper()
	cfg.BindAddress = "127.0.0.1"
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 2 * time.Second
	}

	srv := New(cfg, h, m)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx) }()

	require.NotEmpty(t, srv.Addr(), "server failed to bind")

	t.Cleanup(func() {
		cancel()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		_ = srv.Stop(stopCtx)
	})

	return &runningServer{Server: srv, cancel: cancel, errCh: errCh}
}

func (rs *runningServer) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-rs.errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
		return nil
	}
}

// rawRequest sends data on a fresh connection and returns everything the
// server wrote before closing.
func rawRequest(addr, data string) (string, error) {
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		return "", err
	}
	defer func() { _ = conn.Close() }()

	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := conn.Write([]byte(data)); err != nil {
		return "", err
	}
	out, err := io.ReadAll(conn)
	return string(out), err
}

func httpClient() *http.Client {
	return &http.Client{
		Timeout:   5 * time.Second,
		Transport: &http.Transport{DisableKeepAlives: true},
	}
}

func TestServeFiles(t *testing.T) {
	rs := startServer(t, Config{}, fileHandler(t), nil)
	base := "http://" + rs.Addr()

	resp, err := httpClient().Get(base + "/hello.txt")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello, world\n", string(body))
	assert.Equal(t, `attachment; filename="hello.txt"`, resp.Header.Get("Content-Disposition"))

	resp, err = httpClient().Get(base + "/")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `<a href="docs/">docs/</a>`)
	assert.Contains(t, string(body), `<a href="hello.txt">hello.txt</a>`)

	resp, err = httpClient().Get(base + "/missing")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeForbidden(t *testing.T) {
	rs := startServer(t, Config{}, fileHandler(t), nil)

	out, err := rawRequest(rs.Addr(), "GET /../../etc/passwd HTTP/1.1\r\n\r\n")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "HTTP/1.1 403 Forbidden\r\n"), out)
}

func TestMalformedRequestTolerated(t *testing.T) {
	rs := startServer(t, Config{}, fileHandler(t), nil)

	for _, junk := range []string{"garbage\r\n", "GET\r\n", "\r\n"} {
		out, err := rawRequest(rs.Addr(), junk)
		require.NoError(t, err)
		assert.Empty(t, out, "malformed request %q must get no response", junk)
	}

	out, err := rawRequest(rs.Addr(), "GET /hello.txt HTTP/1.1\r\n\r\n")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n"))
	assert.True(t, strings.HasSuffix(out, "\r\n\r\nhello, world\n"))
}

func TestConcurrentClients(t *testing.T) {
	m := &fakeConnMetrics{}
	rs := startServer(t, Config{}, fileHandler(t), m)
	url := "http://" + rs.Addr() + "/hello.txt"

	const n = 16
	errs := make([]error, n)
	statuses := make([]int, n)

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := httpClient().Get(url)
			if err != nil {
				errs[i] = err
				return
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			statuses[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i])
		assert.Equal(t, http.StatusOK, statuses[i])
	}

	require.Eventually(t, func() bool { return m.closed.Load() == n }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(n), m.accepted.Load())
	assert.Equal(t, int32(0), m.active.Load())
	assert.Equal(t, int32(0), rs.ActiveConnections())
}

func TestBindFailure(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = occupied.Close() }()

	port := occupied.Addr().(*net.TCPAddr).Port
	srv := New(Config{BindAddress: "127.0.0.1", Port: port}, newBlockingHandler(), nil)

	err = srv.Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), strconv.Itoa(port))
	assert.Empty(t, srv.Addr())
}

func TestGracefulShutdown(t *testing.T) {
	rs := startServer(t, Config{}, fileHandler(t), nil)
	addr := rs.Addr()

	rs.cancel()
	require.NoError(t, rs.wait(t))

	_, err := net.DialTimeout("tcp", addr, time.Second)
	assert.Error(t, err, "listener must be closed after shutdown")
}

func TestShutdownForceClosesStragglers(t *testing.T) {
	m := &fakeConnMetrics{}
	h := newBlockingHandler()
	defer close(h.release)

	rs := startServer(t, Config{ShutdownTimeout: 100 * time.Millisecond}, h, m)

	conn, err := net.Dial("tcp", rs.Addr())
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	require.Eventually(t, func() bool { return rs.ActiveConnections() == 1 }, 5*time.Second, 10*time.Millisecond)

	rs.cancel()
	err = rs.wait(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "force-closed")
	assert.Equal(t, int32(1), m.forceClosed.Load())

	// The client sees the close.
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = conn.Read(make([]byte, 1))
	assert.Error(t, err)
}

func TestMaxConnections(t *testing.T) {
	h := newBlockingHandler()
	rs := startServer(t, Config{MaxConnections: 1}, h, nil)

	first, err := net.Dial("tcp", rs.Addr())
	require.NoError(t, err)
	defer func() { _ = first.Close() }()
	require.Eventually(t, func() bool { return h.calls.Load() == 1 }, 5*time.Second, 10*time.Millisecond)

	second, err := net.Dial("tcp", rs.Addr())
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), h.calls.Load(), "second connection must wait for a free slot")
	assert.Equal(t, int32(1), rs.ActiveConnections())

	close(h.release)
	require.Eventually(t, func() bool { return h.calls.Load() == 2 }, 5*time.Second, 10*time.Millisecond)
}

func TestConnectionContextCarriesID(t *testing.T) {
	h := newBlockingHandler()
	close(h.release)
	rs := startServer(t, Config{}, h, nil)

	for range 3 {
		conn, err := net.Dial("tcp", rs.Addr())
		require.NoError(t, err)
		_ = conn.Close()
	}
	require.Eventually(t, func() bool { return h.calls.Load() == 3 }, 5*time.Second, 10*time.Millisecond)

	h.mu.Lock()
	ids := append([]string(nil), h.connIDs...)
	h.mu.Unlock()

	require.Len(t, ids, 3)
	seen := make(map[string]bool)
	for _, id := range ids {
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
		assert.False(t, seen[id], "connection IDs must be unique")
		seen[id] = true
	}
}

func TestStopBeforeServe(t *testing.T) {
	srv := New(Config{BindAddress: "127.0.0.1"}, newBlockingHandler(), nil)
	require.NoError(t, srv.Stop(context.Background()))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(context.Background()) }()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve kept running after Stop")
	}
}

func TestZeroShutdownTimeoutCleanStop(t *testing.T) {
	srv := New(Config{BindAddress: "127.0.0.1"}, newBlockingHandler(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx) }()
	require.NotEmpty(t, srv.Addr())

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	assert.NoError(t, srv.Stop(context.Background()))
}

func TestZeroShutdownTimeoutWaitsForConnections(t *testing.T) {
	m := &fakeConnMetrics{}
	h := newBlockingHandler()
	srv := New(Config{BindAddress: "127.0.0.1"}, h, m)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx) }()
	require.NotEmpty(t, srv.Addr())

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	require.Eventually(t, func() bool { return srv.ActiveConnections() == 1 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		t.Fatalf("Serve returned before the connection finished: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	close(h.release)
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after the connection finished")
	}
	assert.Zero(t, m.forceClosed.Load())
}

func TestStopIdempotent(t *testing.T) {
	rs := startServer(t, Config{}, fileHandler(t), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, rs.Stop(ctx))
	require.NoError(t, rs.Stop(ctx))
	require.NoError(t, rs.wait(t))
}

func TestPortReportsBoundPort(t *testing.T) {
	srv := New(Config{BindAddress: "127.0.0.1"}, newBlockingHandler(), nil)
	assert.Equal(t, 0, srv.Port())

	rs := startServer(t, Config{}, fileHandler(t), nil)
	_, portStr, err := net.SplitHostPort(rs.Addr())
	require.NoError(t, err)
	assert.Equal(t, portStr, strconv.Itoa(rs.Port()))
	assert.NotZero(t, rs.Port())
}
