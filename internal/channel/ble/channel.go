package ble

import (
	"bytes"
	"context"
	"sync/atomic"

	"github.com/nerrad567/openvibe-core/internal/device"
	"github.com/nerrad567/openvibe-core/internal/infrastructure/logging"
	"github.com/nerrad567/openvibe-core/internal/transport"
)

// statusShortcut is a bare write that requests a status push.
var statusShortcut = []byte("STATUS")

// Radio is the GATT peripheral underneath the channel.
type Radio interface {
	// Start advertises name and serves the command and status
	// characteristics. onWrite receives command characteristic writes;
	// onConnect reports central connects and disconnects.
	Start(name string, onWrite func([]byte), onConnect func(connected bool)) error

	// Notify pushes p on the status characteristic.
	Notify(p []byte) error

	// Stop stops advertising.
	Stop() error
}

// Channel is the short-range peripheral channel. It stays up for the life
// of the process and is live while a central is connected.
type Channel struct {
	radio  Radio
	name   string
	inbox  *transport.Inbox
	logger *logging.Logger

	up        atomic.Bool
	connected atomic.Bool
}

// New creates a Channel advertising as name.
func New(radio Radio, name string, inbox *transport.Inbox, logger *logging.Logger) *Channel {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Channel{
		radio:  radio,
		name:   name,
		inbox:  inbox,
		logger: logger.With("channel", "peripheral"),
	}
}

// Kind implements transport.Channel.
func (c *Channel) Kind() device.TransportMode { return device.ModePeripheral }

// BringUp starts advertising.
func (c *Channel) BringUp(context.Context) error {
	if c.up.Load() {
		return nil
	}
	if err := c.radio.Start(c.name, c.onWrite, c.onConnect); err != nil {
		return err
	}
	c.up.Store(true)
	c.logger.Info("advertising", "name", c.name)
	return nil
}

// TearDown stops advertising.
func (c *Channel) TearDown() error {
	if !c.up.Swap(false) {
		return nil
	}
	c.connected.Store(false)
	return c.radio.Stop()
}

// Send notifies the connected central.
func (c *Channel) Send(payload []byte) error {
	if !c.Live() {
		return transport.ErrChannelDown
	}
	return c.radio.Notify(payload)
}

// Live reports whether a central is connected.
func (c *Channel) Live() bool {
	return c.up.Load() && c.connected.Load()
}

func (c *Channel) onWrite(value []byte) {
	payload := bytes.Clone(value)
	if bytes.Equal(bytes.TrimSpace(payload), statusShortcut) {
		payload = []byte(`{"requestType":"STATUS"}`)
	}
	c.post(transport.Event{Type: transport.EventMessage, Payload: payload})
}

func (c *Channel) onConnect(connected bool) {
	c.connected.Store(connected)
	typ := transport.EventDisconnected
	if connected {
		typ = transport.EventConnected
	}
	c.post(transport.Event{Type: typ})
}

func (c *Channel) post(ev transport.Event) {
	ev.Source = transport.SourcePeripheral
	if err := c.inbox.Post(ev); err != nil {
		c.logger.Warn("dropping peripheral event", "type", ev.Type.String(), "error", err)
	}
}
