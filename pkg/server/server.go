// Package server owns the listening socket and hands every accepted
// connection to its own goroutine.
package server

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/dirserve/internal/logger"
	"github.com/marmos91/dirserve/pkg/metrics"
)

// ConnectionHandler serves one accepted connection. ServeConn owns conn and
// must close it before returning. ctx carries a logger.LogContext with the
// connection ID and is cancelled when shutdown begins.
type ConnectionHandler interface {
	ServeConn(ctx context.Context, conn net.Conn)
}

// Config holds the acceptor settings.
type Config struct {
	// BindAddress is the IP address to bind to.
	// Empty string or "0.0.0.0" binds to all interfaces.
	BindAddress string

	// Port is the TCP port to listen on. 0 picks a free port.
	Port int

	// MaxConnections limits the number of concurrent client connections.
	// 0 means unlimited.
	MaxConnections int

	// ShutdownTimeout is how long in-flight connections may run after
	// shutdown begins before they are force-closed. 0 waits without a
	// deadline.
	ShutdownTimeout time.Duration

	// MetricsLogInterval is the interval at which to log the active
	// connection count. 0 disables periodic logging.
	MetricsLogInterval time.Duration
}

// Server accepts TCP connections and dispatches each one to the handler on
// its own goroutine. The accept loop never waits on handler work.
//
// Thread safety:
// All exported methods are safe for concurrent use. Shutdown is initiated at
// most once no matter how many times Stop is called or the serve context is
// cancelled.
type Server struct {
	config  Config
	handler ConnectionHandler
	metrics metrics.ConnectionMetrics

	listener   net.Listener
	listenerMu sync.RWMutex

	// ready is closed once Serve has either bound the listener or failed to.
	ready     chan struct{}
	readyOnce sync.Once

	// shutdown is closed when graceful shutdown begins.
	shutdown     chan struct{}
	shutdownOnce sync.Once

	activeConns sync.WaitGroup
	connCount   atomic.Int32

	// connSemaphore bounds concurrent connections; nil when unlimited.
	connSemaphore chan struct{}

	// connections maps connection ID to net.Conn for forced closure.
	connections sync.Map

	// shutdownCtx is handed to every handler and cancelled on shutdown.
	shutdownCtx    context.Context
	cancelRequests context.CancelFunc
}

// New creates a stopped Server. m may be nil.
func New(config Config, handler ConnectionHandler, m metrics.ConnectionMetrics) *Server {
	var connSemaphore chan struct{}
	if config.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, config.MaxConnections)
		logger.Debug("Connection limit", "max_connections", config.MaxConnections)
	} else {
		logger.Debug("Connection limit", "max_connections", "unlimited")
	}

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	return &Server{
		config:         config,
		handler:        handler,
		metrics:        m,
		ready:          make(chan struct{}),
		shutdown:       make(chan struct{}),
		connSemaphore:  connSemaphore,
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancelRequests,
	}
}

// Serve binds the listener and runs the accept loop until ctx is cancelled
// or Stop is called.
//
// Returns:
//   - an error if the listener cannot be created (the caller should exit)
//   - nil after a graceful shutdown
//   - an error if the shutdown timeout forced connections closed
func (s *Server) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.BindAddress, strconv.Itoa(s.config.Port))

	lc := net.ListenConfig{Control: controlSocket}
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		s.readyOnce.Do(func() { close(s.ready) })
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listenerMu.Lock()
	s.listener = listener
	select {
	case <-s.shutdown:
		// Stop ran before the listener existed.
		_ = listener.Close()
	default:
	}
	s.listenerMu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })

	logger.Info("Server listening", logger.KeyAddress, listener.Addr().String())

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received", logger.Err(ctx.Err()))
			s.initiateShutdown()
		case <-s.shutdown:
		}
	}()

	if s.config.MetricsLogInterval > 0 {
		go s.logMetrics()
	}

	for {
		if s.connSemaphore != nil {
			select {
			case s.connSemaphore <- struct{}{}:
			case <-s.shutdown:
				return s.gracefulShutdown()
			}
		}

		conn, err := listener.Accept()
		if err != nil {
			if s.connSemaphore != nil {
				<-s.connSemaphore
			}

			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
				logger.Warn("Error accepting connection", logger.Err(err))
				continue
			}
		}

		s.dispatch(conn)
	}
}

// dispatch tracks conn and starts its handler goroutine.
func (s *Server) dispatch(conn net.Conn) {
	connID := uuid.NewString()
	remote := conn.RemoteAddr().String()

	s.activeConns.Add(1)
	current := s.connCount.Add(1)
	s.connections.Store(connID, conn)

	if s.metrics != nil {
		s.metrics.RecordConnectionAccepted()
		s.metrics.SetActiveConnections(current)
	}

	logger.Debug("Connection accepted",
		logger.ConnID(connID),
		logger.KeyRemoteAddr, remote,
		logger.KeyActive, current)

	lc := logger.NewLogContext(connID, remote)
	ctx := logger.WithContext(s.shutdownCtx, lc)

	go func() {
		defer func() {
			s.connections.Delete(connID)
			remaining := s.connCount.Add(-1)
			s.activeConns.Done()
			if s.connSemaphore != nil {
				<-s.connSemaphore
			}

			if s.metrics != nil {
				s.metrics.RecordConnectionClosed()
				s.metrics.SetActiveConnections(remaining)
			}

			logger.Debug("Connection closed",
				logger.ConnID(connID),
				logger.KeyActive, remaining,
				logger.DurationMs(lc.DurationMs()))
		}()

		s.handler.ServeConn(ctx, conn)
	}()
}

// initiateShutdown closes the listener, interrupts connections still waiting
// for their request and cancels the handler context. Safe to call many times.
func (s *Server) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		logger.Debug("Shutdown initiated")
		close(s.shutdown)

		s.listenerMu.Lock()
		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				logger.Debug("Error closing listener", logger.Err(err))
			}
		}
		s.listenerMu.Unlock()

		s.interruptBlockingReads()
		s.cancelRequests()
	})
}

// interruptBlockingReads puts a short read deadline on every tracked
// connection so handlers still waiting for a request line give up.
func (s *Server) interruptBlockingReads() {
	deadline := time.Now().Add(100 * time.Millisecond)

	s.connections.Range(func(key, value any) bool {
		if conn, ok := value.(net.Conn); ok {
			if err := conn.SetReadDeadline(deadline); err != nil {
				logger.Debug("Error setting shutdown deadline on connection",
					logger.KeyConnectionID, key, logger.Err(err))
			}
		}
		return true
	})
}

// gracefulShutdown waits for in-flight connections up to ShutdownTimeout,
// then force-closes the rest.
func (s *Server) gracefulShutdown() error {
	active := s.connCount.Load()
	if active == 0 {
		s.activeConns.Wait()
		logger.Info("Graceful shutdown complete")
		return nil
	}
	logger.Info("Graceful shutdown: waiting for active connections",
		logger.KeyActive, active, "timeout", s.config.ShutdownTimeout)

	done := s.connectionsDone()

	// A nil channel never fires, so a zero timeout waits for done only.
	var deadline <-chan time.Time
	if s.config.ShutdownTimeout > 0 {
		timer := time.NewTimer(s.config.ShutdownTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case <-done:
		logger.Info("Graceful shutdown complete")
		return nil

	case <-deadline:
		remaining := s.connCount.Load()
		logger.Warn("Shutdown timeout exceeded, forcing closure",
			logger.KeyActive, remaining, "timeout", s.config.ShutdownTimeout)

		s.forceCloseConnections()
		return fmt.Errorf("shutdown timeout: %d connections force-closed", remaining)
	}
}

// connectionsDone returns a channel closed once every dispatched
// connection has finished.
func (s *Server) connectionsDone() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()
	return done
}

func (s *Server) forceCloseConnections() {
	closed := 0
	s.connections.Range(func(key, value any) bool {
		conn := value.(net.Conn)
		if err := conn.Close(); err != nil {
			logger.Debug("Error force-closing connection", logger.KeyConnectionID, key, logger.Err(err))
			return true
		}
		closed++
		if s.metrics != nil {
			s.metrics.RecordConnectionForceClosed()
		}
		return true
	})

	if closed > 0 {
		logger.Info("Force-closed connections", "count", closed)
	}
}

// Stop begins graceful shutdown and waits until in-flight connections finish
// or ctx is done. It is safe to call before, during or after Serve.
func (s *Server) Stop(ctx context.Context) error {
	s.initiateShutdown()

	if s.connCount.Load() == 0 {
		s.activeConns.Wait()
		return nil
	}

	select {
	case <-s.connectionsDone():
		return nil
	case <-ctx.Done():
		logger.Warn("Shutdown context cancelled",
			logger.KeyActive, s.connCount.Load(), logger.Err(ctx.Err()))
		return ctx.Err()
	}
}

func (s *Server) logMetrics() {
	ticker := time.NewTicker(s.config.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			logger.Info("Server metrics", "active_connections", s.connCount.Load())
		}
	}
}

// ActiveConnections returns the number of connections being served.
func (s *Server) ActiveConnections() int32 {
	return s.connCount.Load()
}

// Addr returns the bound address. It blocks until Serve has bound the
// listener, and returns "" if binding failed.
func (s *Server) Addr() string {
	<-s.ready

	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Port returns the bound TCP port once listening, which differs from the
// configured one when that was 0. Before Serve binds it returns the
// configured port.
func (s *Server) Port() int {
	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()

	if s.listener != nil {
		if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
			return addr.Port
		}
	}
	return s.config.Port
}
