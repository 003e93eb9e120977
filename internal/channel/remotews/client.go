package remotews

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/openvibe-core/internal/device"
	"github.com/nerrad567/openvibe-core/internal/infrastructure/logging"
	"github.com/nerrad567/openvibe-core/internal/transport"
)

const (
	defaultPingInterval = 15 * time.Second
	defaultPongTimeout  = 3 * time.Second
	defaultMaxMessage   = 4096
	sendBufferSize      = 32
)

// Options configures a Client.
type Options struct {
	// Target is the full registration URL to dial.
	Target     string
	Inbox      *transport.Inbox
	Generation uint64

	PingInterval   time.Duration
	PongTimeout    time.Duration
	MaxMessageSize int64

	Dialer *websocket.Dialer
	Logger *logging.Logger
}

// Client is the remote relay channel. BringUp starts an asynchronous dial;
// the outcome arrives in the inbox as EventConnected or EventConnectFailed.
type Client struct {
	opts   Options
	logger *logging.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	conn   *websocket.Conn
	send   chan []byte
	closed bool

	live atomic.Bool
}

// New creates a Client. Nothing is dialled until BringUp.
func New(opts Options) *Client {
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.PongTimeout <= 0 {
		opts.PongTimeout = defaultPongTimeout
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaultMaxMessage
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Client{
		opts:   opts,
		logger: logger.With("channel", "remote", "generation", opts.Generation),
		send:   make(chan []byte, sendBufferSize),
	}
}

// Kind implements transport.Channel.
func (c *Client) Kind() device.TransportMode { return device.ModeRemote }

// BringUp starts dialling the relay and returns immediately.
func (c *Client) BringUp(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return transport.ErrChannelDown
	}
	if c.cancel != nil {
		return nil
	}

	dialCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go c.dial(dialCtx)
	return nil
}

func (c *Client) dial(ctx context.Context) {
	conn, _, err := c.opts.Dialer.DialContext(ctx, c.opts.Target, nil)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.post(transport.Event{
			Type: transport.EventConnectFailed,
			Err:  fmt.Errorf("%w: %w", transport.ErrRemoteUnreachable, err),
		})
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.mu.Unlock()

	c.live.Store(true)
	c.logger.Info("remote relay connected", "url", c.opts.Target)
	c.post(transport.Event{Type: transport.EventConnected})

	go c.writePump(ctx, conn)
	c.readPump(conn)
}

func (c *Client) readPump(conn *websocket.Conn) {
	wait := c.opts.PingInterval + c.opts.PongTimeout
	conn.SetReadLimit(c.opts.MaxMessageSize)
	//nolint:errcheck // Best-effort deadline on connection setup
	conn.SetReadDeadline(time.Now().Add(wait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.live.Store(false)
			conn.Close()

			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				c.post(transport.Event{
					Type: transport.EventDisconnected,
					Err:  fmt.Errorf("%w: %w", transport.ErrRemoteUnreachable, err),
				})
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		conn.SetReadDeadline(time.Now().Add(wait))
		c.post(transport.Event{Type: transport.EventMessage, Payload: data})
	}
}

func (c *Client) writePump(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			//nolint:errcheck // Best-effort close frame
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
			return
		case data := <-c.send:
			//nolint:errcheck // Write error caught below
			conn.SetWriteDeadline(time.Now().Add(c.opts.PongTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				conn.Close()
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Ping error caught below
			conn.SetWriteDeadline(time.Now().Add(c.opts.PongTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}

// TearDown cancels any dial in flight and closes the connection.
func (c *Client) TearDown() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.live.Store(false)
	if c.cancel != nil {
		// The write pump sends a close frame and closes the connection.
		c.cancel()
	}
	return nil
}

// Send queues payload for the relay. Drops it when the queue is full.
func (c *Client) Send(payload []byte) error {
	if !c.live.Load() {
		return transport.ErrChannelDown
	}
	select {
	case c.send <- payload:
	default:
		c.logger.Debug("remote send queue full, dropping payload")
	}
	return nil
}

// Live implements transport.Channel.
func (c *Client) Live() bool {
	return c.live.Load()
}

func (c *Client) post(ev transport.Event) {
	ev.Source = transport.SourceRemote
	ev.Generation = c.opts.Generation
	if err := c.opts.Inbox.Post(ev); err != nil {
		c.logger.Warn("dropping remote event", "type", ev.Type.String(), "error", err)
	}
}
