// Package tcp owns the listening socket shared by worker and client sessions.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"gitlab.com/distbuild.net/internal/core/ports/primary"
	"gitlab.com/distbuild.net/internal/tcp/connectionmanager"
	"gitlab.com/distbuild.net/internal/tcp/defs"
)

// TCPServer accepts connections and hands each one to a session handler
type TCPServer struct {
	address          string
	acceptRetryDelay time.Duration
	logger           primary.Logger
	listener         net.Listener
	connectionMgr    *connectionmanager.ConnectionManager
	sessions         sync.WaitGroup
	liveMu           sync.Mutex
	live             map[net.Conn]struct{}
	stopOnce         sync.Once
	stopCh           chan struct{}
}

// TCPServerOption configures a TCPServer
type TCPServerOption func(*TCPServer)

// WithAddress sets the server address
func WithAddress(address string) TCPServerOption {
	return func(s *TCPServer) {
		s.address = address
	}
}

// WithAcceptRetryDelay sets the pause after a failed accept in serve mode
func WithAcceptRetryDelay(delay time.Duration) TCPServerOption {
	return func(s *TCPServer) {
		s.acceptRetryDelay = delay
	}
}

// WithConnectionManager shares a connection manager with the session handlers
func WithConnectionManager(cm *connectionmanager.ConnectionManager) TCPServerOption {
	return func(s *TCPServer) {
		s.connectionMgr = cm
	}
}

// NewTCPServer creates a new TCP server
func NewTCPServer(logger primary.Logger, options ...TCPServerOption) *TCPServer {
	server := &TCPServer{
		address:          defs.DefaultAddress,
		acceptRetryDelay: defs.AcceptRetryDelay,
		logger:           logger,
		live:             make(map[net.Conn]struct{}),
		stopCh:           make(chan struct{}),
	}

	// Apply options
	for _, option := range options {
		option(server)
	}
	if server.connectionMgr == nil {
		server.connectionMgr = connectionmanager.NewConnectionManager(logger)
	}

	return server
}

// Listen binds the server address. A bind failure is fatal for the caller.
func (s *TCPServer) Listen() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start TCP server: %w", err)
	}
	s.listener = listener

	s.logger.Info("TCP server listening", "address", listener.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Listen
func (s *TCPServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ConnectionManager returns the manager tracking worker connections
func (s *TCPServer) ConnectionManager() *connectionmanager.ConnectionManager {
	return s.connectionMgr
}

// AcceptWorkers accepts exactly n connections and starts a session for each.
// It returns once all n are accepted; any accept error aborts.
func (s *TCPServer) AcceptWorkers(ctx context.Context, n int, handler primary.SessionHandler) error {
	// unblock Accept when ctx is cancelled
	stop := context.AfterFunc(ctx, func() { s.listener.Close() })
	defer stop()

	for i := 0; i < n; i++ {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to accept worker %d of %d: %w", i+1, n, err)
		}
		s.logger.Info("Worker connected", "addr", conn.RemoteAddr().String(), "accepted", i+1, "expected", n)
		s.startSession(ctx, conn, handler)
	}
	return nil
}

// Serve accepts connections until Stop is called. Accept errors are logged
// and retried after a pause.
func (s *TCPServer) Serve(ctx context.Context, handler primary.SessionHandler) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.stopped() {
				return nil
			}
			s.logger.Error("Failed to accept connection", "error", err)

			// Avoid tight loop on error
			select {
			case <-s.stopCh:
				return nil
			case <-time.After(s.acceptRetryDelay):
			}
			continue
		}

		s.startSession(ctx, conn, handler)
	}
}

// Wait blocks until every started session has ended
func (s *TCPServer) Wait() {
	s.sessions.Wait()
}

// Stop closes the listener, tells connected workers to shut down, closes every
// other live connection and waits for sessions to finish or ctx to expire.
func (s *TCPServer) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })

	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Error("Failed to close listener", "error", err)
		}
	}

	s.connectionMgr.ShutdownAll()
	s.closeLive()

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *TCPServer) startSession(ctx context.Context, conn net.Conn, handler primary.SessionHandler) {
	s.liveMu.Lock()
	s.live[conn] = struct{}{}
	s.liveMu.Unlock()

	s.sessions.Add(1)
	go func() {
		defer s.sessions.Done()
		defer s.forget(conn)
		if err := handler.HandleSession(ctx, conn); err != nil {
			s.logger.Error("Session ended with error", "addr", conn.RemoteAddr().String(), "error", err)
		}
	}()
}

func (s *TCPServer) forget(conn net.Conn) {
	s.liveMu.Lock()
	delete(s.live, conn)
	s.liveMu.Unlock()
}

// closeLive unblocks sessions still reading, such as idle clients
func (s *TCPServer) closeLive() {
	s.liveMu.Lock()
	defer s.liveMu.Unlock()

	for conn := range s.live {
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Debug("Failed to close connection", "addr", conn.RemoteAddr().String(), "error", err)
		}
	}
}

func (s *TCPServer) stopped() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}
