// Package web serves the HTTP control and status API, a websocket feed of
// every rendered batch and the Prometheus metrics endpoint.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/niclasankar/nmea-gps-emulator/gps"
	"github.com/niclasankar/nmea-gps-emulator/metrics"
)

const writeWait = 5 * time.Second

// Engine is the navigation engine as used by the web server.
type Engine interface {
	Status() gps.Status
	Current() []string
	UpdateTargets(u gps.TargetUpdate) (gps.Targets, error)
	AddCallback(callback func(gps.NMEAData))
}

// Server is the emulator web server.
type Server struct {
	engine    Engine
	logger    *slog.Logger
	metrics   *metrics.Metrics
	upgrader  websocket.Upgrader
	router    *mux.Router
	broadcast chan gps.NMEAData

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// TargetRequest is the body of POST /api/target. Omitted fields keep the
// active target.
type TargetRequest struct {
	Heading  *float64 `json:"heading"`
	Speed    *float64 `json:"speed"`
	Altitude *float64 `json:"altitude"`
}

// NewServer creates a server for engine and subscribes to its batches.
func NewServer(engine Engine, logger *slog.Logger, m *metrics.Metrics) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		engine:  engine,
		logger:  logger,
		metrics: m,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		broadcast: make(chan gps.NMEAData, 16),
		clients:   make(map[*websocket.Conn]bool),
	}

	engine.AddCallback(func(data gps.NMEAData) {
		select {
		case s.broadcast <- data:
		default:
			// Channel full, skip this update
		}
	})

	r := mux.NewRouter()
	r.Use(mux.MiddlewareFunc(m.Middleware(routeLabel)))

	api := r.PathPrefix("/api").Subrouter()
	// Subrouters answer a method mismatch with 404, so the handlers check
	// the method themselves.
	api.HandleFunc("/status", s.handleStatus)
	api.HandleFunc("/sentences", s.handleSentences)
	api.HandleFunc("/target", s.handleTarget)
	api.HandleFunc("/ws", s.handleWebSocket)
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	s.router = r
	return s
}

// routeLabel keeps metric cardinality bounded by labelling with the route
// template instead of the raw path.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully and
// disconnects websocket clients.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       15 * time.Second,
	}

	go s.broadcastToClients(ctx)

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("web server listening", "addr", ln.Addr().String())
		errc <- server.Serve(ln)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("web server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.closeClients()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web server shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleSentences(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"sentences": s.engine.Current()})
}

func (s *Server) handleTarget(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req TargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	t, err := s.engine.UpdateTargets(gps.TargetUpdate(req))
	if err != nil {
		s.logger.Warn("target update rejected", "error", err)
		http.Error(w, fmt.Sprintf("Failed to set targets: %v", err), http.StatusBadRequest)
		return
	}

	s.logger.Info("targets updated from web",
		"heading", t.Heading,
		"speed", t.Speed,
		"altitude", t.Altitude)
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// The status goes out before the client is registered, so the
	// broadcaster stays the only writer afterwards.
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(map[string]any{
		"type": "status",
		"data": s.engine.Status(),
	}); err != nil {
		s.logger.Warn("error sending status", "error", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = true
	n := len(s.clients)
	s.mu.Unlock()
	s.logger.Info("websocket client connected", "clients", n)

	// Incoming messages are ignored; reading detects the disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.mu.Lock()
	delete(s.clients, conn)
	n = len(s.clients)
	s.mu.Unlock()
	s.logger.Info("websocket client disconnected", "clients", n)
}

func (s *Server) broadcastToClients(ctx context.Context) {
	for {
		var data gps.NMEAData
		select {
		case <-ctx.Done():
			return
		case data = <-s.broadcast:
		}

		message := map[string]any{
			"type": "nmea_data",
			"data": data,
		}

		s.mu.Lock()
		for client := range s.clients {
			client.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.WriteJSON(message); err != nil {
				s.logger.Warn("websocket write error", "error", err)
				client.Close()
				delete(s.clients, client)
			}
		}
		s.mu.Unlock()
	}
}

func (s *Server) clientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		client.Close()
		delete(s.clients, client)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
