package transport

import (
	"context"
	"time"

	"github.com/nerrad567/openvibe-core/internal/device"
)

// Default retry policy for the remote channel.
const (
	DefaultRetryInterval = 10 * time.Second
	DefaultMaxRetries    = 5
	DefaultRegisterPath  = "register"
)

// Logger defines the logging interface for the coordinator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config wires a Coordinator to its collaborators.
type Config struct {
	State *device.State
	Inbox *Inbox

	// Peripheral is the short-range channel. Nil when disabled.
	Peripheral Channel

	NewLocal  LocalFactory
	NewRemote RemoteFactory

	DeviceID      string
	RegisterPath  string
	RetryInterval time.Duration
	MaxRetries    int

	// Clock is used for actions outside Tick. Defaults to time.Now.
	Clock func() time.Time
}

type retryState struct {
	count       int
	lastAttempt time.Time
	pending     bool
	frozen      bool
}

// Coordinator owns the outbound channels and decides which one is live.
//
// All methods must be called from the agent tick goroutine. Channel
// goroutines communicate only through the Inbox.
type Coordinator struct {
	cfg    Config
	state  *device.State
	inbox  *Inbox
	logger Logger

	ctx context.Context

	peripheral Channel
	network    Channel
	generation uint64
	attached   bool
	retry      retryState
	pending    [][]byte

	announce func(target device.TransportMode, endpoint string)
	onLinkUp func(kind device.TransportMode)
}

// NewCoordinator creates a Coordinator. Call Start before the first Tick.
func NewCoordinator(cfg Config) *Coordinator {
	if cfg.RegisterPath == "" {
		cfg.RegisterPath = DefaultRegisterPath
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.State == nil {
		cfg.State = device.NewState()
	}
	if cfg.Inbox == nil {
		cfg.Inbox = NewInbox(64)
	}

	return &Coordinator{
		cfg:        cfg,
		state:      cfg.State,
		inbox:      cfg.Inbox,
		logger:     noopLogger{},
		ctx:        context.Background(),
		peripheral: cfg.Peripheral,
	}
}

// SetLogger sets the logger for the coordinator.
func (c *Coordinator) SetLogger(logger Logger) {
	c.logger = logger
}

// SetAnnouncer registers the function that sends the confirmation snapshot
// on a transport switch. It runs before any channel is torn down, so the
// snapshot travels over the channels live at call time.
func (c *Coordinator) SetAnnouncer(fn func(target device.TransportMode, endpoint string)) {
	c.announce = fn
}

// SetOnLinkUp registers a callback fired when a network channel becomes live.
func (c *Coordinator) SetOnLinkUp(fn func(kind device.TransportMode)) {
	c.onLinkUp = fn
}

// Restore sets the boot transport without announcing or bringing anything
// up. Only valid before Start.
func (c *Coordinator) Restore(mode device.TransportMode, endpoint string) {
	c.state.Transport = mode
	if mode == device.ModeRemote {
		c.state.RemoteEndpoint = endpoint
	}
}

// Start brings up the peripheral channel. Network channels follow once
// the network attaches.
func (c *Coordinator) Start(ctx context.Context) error {
	c.ctx = ctx
	if c.peripheral == nil {
		return nil
	}
	if err := c.peripheral.BringUp(ctx); err != nil {
		return err
	}
	c.logger.Info("peripheral channel up")
	return nil
}

// Close tears down every channel.
func (c *Coordinator) Close() {
	c.tearDownNetwork("shutdown")
	if c.peripheral != nil {
		if err := c.peripheral.TearDown(); err != nil {
			c.logger.Warn("peripheral teardown failed", "error", err)
		}
	}
}

// SwitchTransport makes mode the authoritative transport.
//
// Switching to the current mode is a no-op, except that a frozen remote
// retry state is cleared and the remote connect is attempted again. A
// REMOTE switch with a different endpoint reconnects to the new endpoint.
// The returned error is ErrMalformedEndpoint when the endpoint cannot be
// parsed; the mode still changes.
func (c *Coordinator) SwitchTransport(mode device.TransportMode, endpoint string) error {
	now := c.cfg.Clock()
	current := c.state.Transport

	if mode == current {
		if mode != device.ModeRemote || endpoint == "" || endpoint == c.state.RemoteEndpoint {
			if mode == device.ModeRemote && c.retry.frozen {
				c.logger.Info("remote retries re-armed")
				c.resetRetry()
				return c.bringUp(now)
			}
			return nil
		}
	}

	target := c.state.RemoteEndpoint
	if mode == device.ModeRemote && endpoint != "" {
		target = endpoint
	}
	if mode != device.ModeRemote {
		target = ""
	}

	if c.announce != nil {
		c.announce(mode, target)
	}

	c.tearDownNetwork("transport switch")
	c.resetRetry()

	c.state.Transport = mode
	c.state.RemoteEndpoint = target

	c.logger.Info("transport switched",
		"from", current.String(),
		"to", mode.String(),
		"endpoint", target,
	)

	return c.bringUp(now)
}

// Send writes payload to every live channel. Nothing live is not an error.
func (c *Coordinator) Send(payload []byte) {
	if c.peripheral != nil && c.peripheral.Live() {
		if err := c.peripheral.Send(payload); err != nil {
			c.logger.Debug("peripheral send failed", "error", err)
		}
	}
	if c.network != nil && c.network.Live() {
		if err := c.network.Send(payload); err != nil {
			c.logger.Debug("network send failed",
				"channel", c.network.Kind().String(),
				"error", err,
			)
		}
	}
}

// OnNetworkAttached brings up the channel matching the current mode.
func (c *Coordinator) OnNetworkAttached() {
	c.attached = true
	if !c.state.Transport.RequiresNetwork() {
		return
	}
	c.resetRetry()
	if err := c.bringUp(c.cfg.Clock()); err != nil {
		c.logger.Warn("channel bring-up after attach failed", "error", err)
	}
}

// OnNetworkDetached tears down the network-dependent channel.
func (c *Coordinator) OnNetworkDetached() {
	c.attached = false
	c.retry.pending = false
	c.tearDownNetwork("network detached")
}

// Tick drains channel events and runs the remote retry policy.
func (c *Coordinator) Tick(now time.Time) {
	c.inbox.Drain(func(ev Event) {
		c.handleEvent(ev)
	})
	c.serviceRetry(now)
}

// TakeCommands returns and clears the inbound messages collected by Tick.
func (c *Coordinator) TakeCommands() [][]byte {
	cmds := c.pending
	c.pending = nil
	return cmds
}

// NetworkLive reports whether the network channel for the current mode is live.
func (c *Coordinator) NetworkLive() bool {
	return c.network != nil && c.network.Live()
}

// RetryCount returns the number of remote connect attempts since the last
// successful connect, counting the first one after a switch or attach.
func (c *Coordinator) RetryCount() int {
	return c.retry.count
}

// RetriesFrozen reports whether automatic remote reconnects have stopped.
func (c *Coordinator) RetriesFrozen() bool {
	return c.retry.frozen
}

func (c *Coordinator) bringUp(now time.Time) error {
	switch c.state.Transport {
	case device.ModeLocalNetwork:
		if !c.attached || c.cfg.NewLocal == nil {
			c.logger.Debug("local channel deferred until network attaches")
			return nil
		}
		c.tearDownNetwork("replace local channel")
		ch := c.cfg.NewLocal(c.generation)
		if err := ch.BringUp(c.ctx); err != nil {
			c.logger.Error("local channel bring-up failed", "error", err)
			_ = ch.TearDown()
			return err
		}
		c.network = ch
		c.logger.Info("local channel up")
		c.linkUp(device.ModeLocalNetwork)
		return nil

	case device.ModeRemote:
		if !c.attached || c.cfg.NewRemote == nil {
			c.logger.Debug("remote channel deferred until network attaches")
			return nil
		}
		if c.state.RemoteEndpoint == "" {
			c.logger.Warn("remote transport selected without endpoint")
			return nil
		}
		return c.connectRemote(now)

	default:
		return nil
	}
}

func (c *Coordinator) connectRemote(now time.Time) error {
	c.tearDownNetwork("replace remote channel")

	ep, err := ParseEndpoint(c.state.RemoteEndpoint)
	if err != nil {
		c.retry.pending = false
		c.logger.Warn("remote endpoint rejected",
			"endpoint", c.state.RemoteEndpoint,
			"error", err,
		)
		return err
	}

	target := ep.RegistrationURL(c.cfg.RegisterPath, c.cfg.DeviceID)
	ch := c.cfg.NewRemote(target, c.generation)
	c.network = ch
	c.retry.count++
	c.retry.lastAttempt = now

	c.logger.Info("connecting to remote",
		"url", target,
		"attempt", c.retry.count,
	)

	if err := ch.BringUp(c.ctx); err != nil {
		c.logger.Warn("remote bring-up failed", "error", err)
		c.scheduleRetry()
	}
	return nil
}

func (c *Coordinator) tearDownNetwork(reason string) {
	c.generation++
	if c.network == nil {
		return
	}
	kind := c.network.Kind()
	if err := c.network.TearDown(); err != nil {
		c.logger.Warn("channel teardown failed",
			"channel", kind.String(),
			"error", err,
		)
	}
	c.network = nil
	c.logger.Info("network channel down",
		"channel", kind.String(),
		"reason", reason,
	)
}

func (c *Coordinator) handleEvent(ev Event) {
	switch ev.Source {
	case SourceLocal, SourceRemote:
		if ev.Generation != c.generation {
			c.logger.Debug("discarding stale channel event",
				"source", ev.Source.String(),
				"type", ev.Type.String(),
				"generation", ev.Generation,
			)
			return
		}
	}

	if ev.Type == EventMessage {
		c.pending = append(c.pending, ev.Payload)
		return
	}

	switch ev.Source {
	case SourcePeripheral:
		c.state.PeripheralConnected = ev.Type == EventConnected
		c.logger.Info("peripheral link changed", "connected", c.state.PeripheralConnected)

	case SourceLocal:
		c.logger.Debug("local client event", "type", ev.Type.String(), "client_id", ev.ClientID)

	case SourceRemote:
		switch ev.Type {
		case EventConnected:
			c.resetRetry()
			c.logger.Info("remote connected")
			c.linkUp(device.ModeRemote)
		case EventDisconnected, EventConnectFailed:
			c.logger.Warn("remote link lost", "type", ev.Type.String(), "error", ev.Err)
			c.scheduleRetry()
		}
	}
}

func (c *Coordinator) scheduleRetry() {
	if c.state.Transport != device.ModeRemote || !c.attached {
		return
	}
	if c.retry.count >= c.cfg.MaxRetries {
		if !c.retry.frozen {
			c.logger.Warn("remote retries exhausted", "max_retries", c.cfg.MaxRetries)
		}
		c.retry.frozen = true
		c.retry.pending = false
		return
	}
	c.retry.pending = true
}

func (c *Coordinator) serviceRetry(now time.Time) {
	if !c.retry.pending || c.retry.frozen {
		return
	}
	if c.state.Transport != device.ModeRemote || !c.attached {
		c.retry.pending = false
		return
	}
	if now.Sub(c.retry.lastAttempt) < c.cfg.RetryInterval {
		return
	}

	c.retry.pending = false
	c.logger.Info("retrying remote connection",
		"attempt", c.retry.count+1,
		"max_retries", c.cfg.MaxRetries,
	)
	_ = c.connectRemote(now)
}

func (c *Coordinator) resetRetry() {
	c.retry = retryState{}
}

func (c *Coordinator) linkUp(kind device.TransportMode) {
	if c.onLinkUp != nil {
		c.onLinkUp(kind)
	}
}
