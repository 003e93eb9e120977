package localws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/openvibe-core/internal/device"
	"github.com/nerrad567/openvibe-core/internal/infrastructure/config"
	"github.com/nerrad567/openvibe-core/internal/infrastructure/logging"
	"github.com/nerrad567/openvibe-core/internal/status"
	"github.com/nerrad567/openvibe-core/internal/transport"
)

// StatusFunc returns the last reported snapshot.
type StatusFunc func() (s status.Snapshot, at time.Time, ok bool)

// Options configures a Server.
type Options struct {
	Config     config.LocalConfig
	Inbox      *transport.Inbox
	Generation uint64
	Status     StatusFunc
	Logger     *logging.Logger
}

// Server is the local network channel: a websocket endpoint that accepts
// any number of clients and broadcasts every payload to all of them.
type Server struct {
	cfg    config.LocalConfig
	inbox  *transport.Inbox
	gen    uint64
	status StatusFunc
	logger *logging.Logger

	upgrader websocket.Upgrader
	hub      *hub

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	live     atomic.Bool
}

// New creates a Server. It does not listen until BringUp.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{
		cfg:    opts.Config,
		inbox:  opts.Inbox,
		gen:    opts.Generation,
		status: opts.Status,
		logger: logger.With("channel", "local"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
		hub: newHub(),
	}
}

// Kind implements transport.Channel.
func (s *Server) Kind() device.TransportMode { return device.ModeLocalNetwork }

// BringUp binds the listener and serves in the background.
func (s *Server) BringUp(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Address(), err)
	}

	s.listener = ln
	s.hub.reopen()
	s.server = &http.Server{
		Handler:           s.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.live.Store(true)

	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("local server stopped", "error", err)
			s.live.Store(false)
		}
	}(s.server)

	s.logger.Info("local server listening", "address", ln.Addr().String(), "path", s.cfg.Path)
	return nil
}

// TearDown closes the listener and every client connection.
func (s *Server) TearDown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.live.Store(false)
	if s.server == nil {
		return nil
	}
	err := s.server.Close()
	s.hub.closeAll()
	s.server = nil
	s.listener = nil
	return err
}

// Send implements transport.Channel.
func (s *Server) Send(payload []byte) error {
	if !s.live.Load() {
		return transport.ErrChannelDown
	}
	n := s.hub.broadcast(payload)
	s.logger.Debug("broadcast", "recipients", n)
	return nil
}

// Live implements transport.Channel.
func (s *Server) Live() bool {
	return s.live.Load()
}

// Addr returns the bound address, or nil before BringUp.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ClientCount returns the number of connected websocket clients.
func (s *Server) ClientCount() int {
	return s.hub.count()
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get(s.cfg.Path, s.handleWebSocket)
	return r
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c, ok := s.hub.register(conn)
	if !ok {
		s.logger.Debug("rejecting client, server shutting down", "remote", r.RemoteAddr)
		conn.Close()
		return
	}
	s.post(transport.Event{Type: transport.EventConnected, ClientID: c.id})
	s.logger.Debug("local client connected", "client_id", c.id, "remote", r.RemoteAddr)

	go s.writePump(c)
	go s.readPump(c)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.hub.count(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	if s.status == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "status unavailable"})
		return
	}
	snap, at, ok := s.status()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no status reported yet"})
		return
	}
	w.Header().Set("Last-Modified", at.UTC().Format(http.TimeFormat))
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) post(ev transport.Event) {
	ev.Source = transport.SourceLocal
	ev.Generation = s.gen
	if err := s.inbox.Post(ev); err != nil {
		s.logger.Warn("dropping local event", "type", ev.Type.String(), "error", err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	//nolint:errcheck // Client may have gone away
	json.NewEncoder(w).Encode(v)
}
