package netattach

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/openvibe-core/internal/device"
)

// DefaultTimeout bounds a single attach attempt.
const DefaultTimeout = 15 * time.Second

// State is the attach state machine's position.
type State int

const (
	StateIdle State = iota
	StateAttaching
	StateAttached
	StateAttachFailed
	StateDetached
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAttaching:
		return "ATTACHING"
	case StateAttached:
		return "ATTACHED"
	case StateAttachFailed:
		return "ATTACH_FAILED"
	case StateDetached:
		return "DETACHED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// LinkStatus is a polled view of the network link.
type LinkStatus struct {
	Up      bool
	Address string
}

// Link drives the platform's wireless network. Connect and Disconnect
// must return without waiting for the link to change; progress is
// observed through Status.
type Link interface {
	Connect(ctx context.Context, ssid, password string) error
	Disconnect() error
	Status() LinkStatus
}

// Credentials supplies the stored wireless credentials.
type Credentials interface {
	WiFiCredentials(ctx context.Context) (ssid, password string, err error)
}

// Listener is told when the network becomes usable or goes away.
type Listener interface {
	OnNetworkAttached()
	OnNetworkDetached()
}

// Logger defines the logging interface for the controller.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

type intent int

const (
	intentNone intent = iota
	intentAttach
	intentDetach
)

// Controller runs the network attach state machine.
//
// RequestAttach and RequestDetach only record intent. Tick applies it and
// is the only place state transitions happen. All methods must be called
// from the agent tick goroutine.
type Controller struct {
	ctx      context.Context
	link     Link
	creds    Credentials
	listener Listener
	device   *device.State
	timeout  time.Duration
	logger   Logger

	state   State
	since   time.Time
	reason  string
	err     error
	pending intent
	heal    bool
}

// NewController creates a Controller in StateIdle.
func NewController(ctx context.Context, link Link, creds Credentials, dev *device.State, timeout time.Duration) *Controller {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Controller{
		ctx:     ctx,
		link:    link,
		creds:   creds,
		device:  dev,
		timeout: timeout,
		logger:  noopLogger{},
		state:   StateIdle,
	}
}

// SetLogger sets the logger for the controller.
func (c *Controller) SetLogger(logger Logger) {
	c.logger = logger
}

// SetListener registers the component notified on attach and detach.
func (c *Controller) SetListener(l Listener) {
	c.listener = l
}

// RequestAttach asks for an attach with the stored credentials. An attach
// already in progress, or an attached link, restarts with the current
// credentials.
func (c *Controller) RequestAttach() {
	c.pending = intentAttach
}

// RequestDetach asks for the link to be torn down. No automatic re-attach
// follows.
func (c *Controller) RequestDetach() {
	c.pending = intentDetach
}

// IsAttached reports whether the state is StateAttached.
func (c *Controller) IsAttached() bool {
	return c.state == StateAttached
}

// State returns the current state.
func (c *Controller) State() State {
	return c.state
}

// Reason returns why the controller last entered StateAttachFailed or
// StateDetached.
func (c *Controller) Reason() string {
	return c.reason
}

// Err returns the error behind the last StateAttachFailed, or nil.
// Use errors.Is with ErrNoCredentials or ErrAttachTimeout.
func (c *Controller) Err() error {
	return c.err
}

// Since returns when the current state was entered.
func (c *Controller) Since() time.Time {
	return c.since
}

// Tick advances the state machine once.
func (c *Controller) Tick(now time.Time) {
	switch c.pending {
	case intentAttach:
		c.pending = intentNone
		c.startAttach(now)
		return
	case intentDetach:
		c.pending = intentNone
		c.detach(now)
		return
	}

	switch c.state {
	case StateAttaching:
		st := c.link.Status()
		if st.Up {
			c.enterAttached(now, st.Address)
			return
		}
		if now.Sub(c.since) >= c.timeout {
			if err := c.link.Disconnect(); err != nil {
				c.logger.Warn("disconnect after timeout failed", "error", err)
			}
			c.fail(now, ErrAttachTimeout)
		}

	case StateAttached:
		st := c.link.Status()
		if !st.Up {
			c.leave(now, StateDetached, "link lost")
			c.heal = true
			return
		}
		if st.Address != c.device.LocalAddress {
			c.logger.Info("network address changed", "address", st.Address)
			c.device.LocalAddress = st.Address
		}

	case StateDetached:
		if c.heal {
			c.heal = false
			c.logger.Info("re-attaching after link loss")
			c.startAttach(now)
		}
	}
}

func (c *Controller) startAttach(now time.Time) {
	if c.state == StateAttached {
		c.leave(now, StateDetached, "re-attach requested")
	}
	c.heal = false

	ssid, password, err := c.creds.WiFiCredentials(c.ctx)
	if err != nil {
		c.fail(now, fmt.Errorf("reading credentials: %w", err))
		return
	}
	if ssid == "" {
		c.fail(now, ErrNoCredentials)
		return
	}

	if err := c.link.Connect(c.ctx, ssid, password); err != nil {
		c.fail(now, fmt.Errorf("connect: %w", err))
		return
	}

	c.transition(now, StateAttaching, "")
	c.logger.Info("attaching to network", "ssid", ssid, "timeout", c.timeout)
}

func (c *Controller) detach(now time.Time) {
	c.heal = false
	if err := c.link.Disconnect(); err != nil {
		c.logger.Warn("disconnect failed", "error", err)
	}
	c.leave(now, StateDetached, "detach requested")
}

func (c *Controller) enterAttached(now time.Time, addr string) {
	c.transition(now, StateAttached, "")
	c.device.NetworkConnected = true
	c.device.LocalAddress = addr
	c.logger.Info("network attached", "address", addr)
	if c.listener != nil {
		c.listener.OnNetworkAttached()
	}
}

func (c *Controller) fail(now time.Time, err error) {
	c.leave(now, StateAttachFailed, err.Error())
	c.err = err
}

// leave moves to a non-attached state and tells the listener when the
// network was up before.
func (c *Controller) leave(now time.Time, next State, reason string) {
	wasAttached := c.state == StateAttached
	wasAttaching := c.state == StateAttaching
	c.transition(now, next, reason)
	c.device.NetworkConnected = false
	c.device.LocalAddress = ""

	c.logger.Warn("network not attached", "state", next.String(), "reason", reason)
	if (wasAttached || wasAttaching) && c.listener != nil {
		c.listener.OnNetworkDetached()
	}
}

func (c *Controller) transition(now time.Time, next State, reason string) {
	if c.state != next {
		c.logger.Debug("attach state", "from", c.state.String(), "to", next.String())
	}
	c.state = next
	c.since = now
	c.reason = reason
	c.err = nil
}
