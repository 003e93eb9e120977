package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/openvibe-core/internal/infrastructure/config"
)

// Client is the device's broker session.
//
// A device usually boots before any network is attached, so Connect returns
// at once and paho keeps dialling in the background. Subscriptions made in
// the meantime are remembered and (re)applied on every connect.
//
// All methods are safe for concurrent use.
type Client struct {
	client  pahomqtt.Client
	cfg     config.MQTTConfig
	topics  Topics
	qos     byte
	started bool

	connected atomic.Bool

	mu           sync.Mutex
	subs         map[string]subscription
	onConnect    func()
	onDisconnect func(err error)
	logger       Logger
}

// Logger is satisfied by *logging.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// MessageHandler receives one message. It runs on a paho goroutine and must
// not block; a returned error is only logged.
type MessageHandler func(topic string, payload []byte) error

func newClient(cfg config.MQTTConfig, deviceID string) *Client {
	c := &Client{
		cfg:    cfg,
		topics: NewTopics(cfg.TopicPrefix, deviceID),
		qos:    byte(cfg.QoS),
		subs:   make(map[string]subscription),
		logger: noopLogger{},
	}

	opts := buildClientOptions(cfg, clientIDFor(cfg, deviceID))
	configureLWT(opts, c.topics, c.qos)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.handleConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleDisconnect(err) })

	c.client = pahomqtt.NewClient(opts)
	return c
}

// Connect validates cfg and starts a background connection for deviceID.
// Every successful connect republishes "online" (retained) on the
// availability topic.
func Connect(cfg config.MQTTConfig, deviceID string) (*Client, error) {
	switch {
	case deviceID == "":
		return nil, ErrInvalidDeviceID
	case cfg.Broker.Host == "":
		return nil, fmt.Errorf("%w: broker host is empty", ErrConnectionFailed)
	case cfg.QoS < 0 || cfg.QoS > maxQoS:
		return nil, ErrInvalidQoS
	}

	c := newClient(cfg, deviceID)
	token := c.client.Connect()
	c.started = true

	// With ConnectRetry set the token only completes on success or on a
	// configuration error paho will not retry.
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			c.log().Error("mqtt connect aborted", "broker", brokerURL(cfg), "error", err)
		}
	}()
	return c, nil
}

// Topics returns the topic builder for this device.
func (c *Client) Topics() Topics {
	return c.topics
}

func (c *Client) handleConnect() {
	c.connected.Store(true)

	c.mu.Lock()
	subs := make(map[string]subscription, len(c.subs))
	for topic, sub := range c.subs {
		subs[topic] = sub
	}
	onConnect := c.onConnect
	c.mu.Unlock()

	for topic, sub := range subs {
		token := c.client.Subscribe(topic, sub.qos, c.wrapHandler(sub.handler))
		go c.logTokenError(token, "mqtt resubscribe failed", topic)
	}
	c.client.Publish(c.topics.Availability(), c.qos, true, AvailabilityOnline)

	if onConnect != nil {
		onConnect()
	}
}

func (c *Client) handleDisconnect(err error) {
	c.connected.Store(false)
	c.log().Warn("mqtt connection lost", "error", err)

	c.mu.Lock()
	onDisconnect := c.onDisconnect
	c.mu.Unlock()
	if onDisconnect != nil {
		onDisconnect(err)
	}
}

// Close announces "offline" when connected and disconnects. A client that
// was never started is left alone.
func (c *Client) Close() error {
	if c.client == nil || !c.started {
		return nil
	}
	if c.IsConnected() {
		c.client.Publish(c.topics.Availability(), c.qos, true, AvailabilityOffline).WaitTimeout(defaultPublishTimeout)
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
	c.started = false
	c.connected.Store(false)
	return nil
}

// HealthCheck returns ErrNotConnected while the broker is unreachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether the session is up. Safe on a zero Client.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.connected.Load() && c.client.IsConnected()
}

// SetOnConnect registers fn to run after every connect.
func (c *Client) SetOnConnect(fn func()) {
	c.mu.Lock()
	c.onConnect = fn
	c.mu.Unlock()
}

// SetOnDisconnect registers fn to run when the connection drops.
func (c *Client) SetOnDisconnect(fn func(err error)) {
	c.mu.Lock()
	c.onDisconnect = fn
	c.mu.Unlock()
}

// SetLogger sets the logger. nil restores the silent default.
func (c *Client) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) log() Logger {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.logger == nil {
		return noopLogger{}
	}
	return c.logger
}

// logTokenError waits for token and logs a failure or timeout. Call it on
// its own goroutine.
func (c *Client) logTokenError(token pahomqtt.Token, msg, topic string) {
	if !token.WaitTimeout(defaultPublishTimeout) {
		c.log().Warn(msg, "topic", topic, "error", "timeout")
		return
	}
	if err := token.Error(); err != nil {
		c.log().Warn(msg, "topic", topic, "error", err)
	}
}

// wrapHandler adapts handler to paho and keeps a panicking handler from
// taking down paho's router goroutine.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		topic := msg.Topic()
		defer func() {
			if r := recover(); r != nil {
				c.log().Error("mqtt handler panicked", "topic", topic, "panic", r)
			}
		}()
		if err := handler(topic, msg.Payload()); err != nil {
			c.log().Warn("mqtt handler rejected message", "topic", topic, "error", err)
		}
	}
}
