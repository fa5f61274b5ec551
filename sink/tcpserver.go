package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/niclasankar/nmea-gps-emulator/metrics"
)

// DefaultMaxClients caps concurrent TCP server clients.
const DefaultMaxClients = 10

// TCPServer accepts clients and gives each one its own worker in the group.
type TCPServer struct {
	listener   net.Listener
	group      *Group
	config     WorkerConfig
	maxClients int
	logger     *slog.Logger
	metrics    *metrics.Metrics

	mu      sync.Mutex
	clients int
}

// ListenTCP starts listening on addr. Clients beyond maxClients are closed
// on accept; maxClients <= 0 means DefaultMaxClients.
func (g *Group) ListenTCP(addr string, maxClients int, config WorkerConfig, logger *slog.Logger, m *metrics.Metrics) (*TCPServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen tcp %s: %w", addr, err)
	}
	if maxClients <= 0 {
		maxClients = DefaultMaxClients
	}
	if logger == nil {
		logger = discardLogger()
	}
	return &TCPServer{
		listener:   ln,
		group:      g,
		config:     config,
		maxClients: maxClients,
		logger:     logger.With("listener", ln.Addr().String()),
		metrics:    m,
	}, nil
}

// Addr returns the listening address.
func (s *TCPServer) Addr() net.Addr {
	return s.listener.Addr()
}

// Clients returns the number of connected clients.
func (s *TCPServer) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clients
}

// Serve accepts clients until ctx is cancelled, then closes the listener
// and waits for client workers to stop. A client failure only drops that
// client.
func (s *TCPServer) Serve(ctx context.Context) error {
	s.logger.Info("tcp server listening", "max_clients", s.maxClients)

	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		if !s.acquire() {
			s.logger.Warn("client rejected, server full", "remote", conn.RemoteAddr().String())
			conn.Close()
			continue
		}

		remote := conn.RemoteAddr().String()
		s.logger.Info("client connected", "remote", remote)
		w := s.group.NewWorker(NewStream("tcp-client:"+remote, conn, 5*time.Second), s.config, s.logger, s.metrics)

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.release()
			if err := w.Run(ctx); err != nil {
				s.logger.Info("client disconnected", "remote", remote, "error", err)
			}
		}()
	}
}

func (s *TCPServer) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clients >= s.maxClients {
		return false
	}
	s.clients++
	return true
}

func (s *TCPServer) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients--
}
