package localws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/openvibe-core/internal/transport"
)

// sendBufferSize is the per-client outbound queue length.
const sendBufferSize = 32

// hub tracks connected clients and fans out broadcasts. Once closed it
// refuses new clients until reopened.
type hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

func newHub() *hub {
	return &hub{clients: make(map[*client]struct{})}
}

// register adds conn as a client. It returns false if the hub is closed;
// the caller owns conn in that case.
func (h *hub) register(conn *websocket.Conn) (*client, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	h.clients[c] = struct{}{}
	return c, true
}

// unregister removes c. Only the caller that removes it closes c.send.
func (h *hub) unregister(c *client) bool {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		close(c.send)
	}
	return ok
}

func (h *hub) broadcast(data []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clients {
		select {
		case c.send <- data:
			n++
		default:
			// slow client, drop
		}
	}
	return n
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *hub) reopen() {
	h.mu.Lock()
	h.closed = false
	h.mu.Unlock()
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		close(c.send)
		c.conn.Close()
		delete(h.clients, c)
	}
}

// readPump forwards every text frame to the inbox until the connection
// drops, then unregisters the client.
func (s *Server) readPump(c *client) {
	defer func() {
		if s.hub.unregister(c) {
			s.post(transport.Event{Type: transport.EventDisconnected, ClientID: c.id})
		}
		c.conn.Close()
	}()

	ping := s.cfg.PingIntervalDuration()
	pong := s.cfg.PongTimeoutDuration()

	c.conn.SetReadLimit(int64(s.cfg.MaxMessageSize))
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(ping + pong))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ping + pong))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("local client read error", "client_id", c.id, "error", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(ping + pong))
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		s.post(transport.Event{Type: transport.EventMessage, ClientID: c.id, Payload: data})
	}
}

// writePump drains c.send and keeps the connection alive with pings.
func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(s.cfg.PingIntervalDuration())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	writeWait := s.cfg.PongTimeoutDuration()
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				//nolint:errcheck // Best-effort close frame
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
