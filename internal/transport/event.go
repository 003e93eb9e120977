package transport

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Source identifies where an event originated.
type Source int

const (
	SourcePeripheral Source = iota
	SourceLocal
	SourceRemote
	// SourceExternal covers ingress outside the channel set, such as the
	// MQTT command topic.
	SourceExternal
)

func (s Source) String() string {
	switch s {
	case SourcePeripheral:
		return "peripheral"
	case SourceLocal:
		return "local"
	case SourceRemote:
		return "remote"
	case SourceExternal:
		return "external"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// EventType is the kind of channel event.
type EventType int

const (
	EventConnected EventType = iota
	EventDisconnected
	EventMessage
	EventConnectFailed
)

func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventMessage:
		return "message"
	case EventConnectFailed:
		return "connect_failed"
	default:
		return fmt.Sprintf("event(%d)", int(t))
	}
}

// Event is posted by channel goroutines and consumed on the agent tick.
type Event struct {
	Source     Source
	Type       EventType
	Generation uint64
	ClientID   string
	Payload    []byte
	Err        error
}

// Inbox carries events from channel goroutines to the agent tick.
//
// Messages go through a bounded queue and are dropped when it is full.
// Connect, disconnect and connect-failed events use a separate lane that
// never drops, since the retry policy and link flags need every one.
type Inbox struct {
	messages chan Event
	dropped  atomic.Uint64

	mu        sync.Mutex
	lifecycle []Event
}

// NewInbox creates an inbox holding up to size queued messages.
func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = 1
	}
	return &Inbox{messages: make(chan Event, size)}
}

// Post enqueues ev. A message is dropped with ErrInboxFull when the queue
// is full; lifecycle events are always accepted.
func (i *Inbox) Post(ev Event) error {
	if ev.Type != EventMessage {
		i.mu.Lock()
		i.lifecycle = append(i.lifecycle, ev)
		i.mu.Unlock()
		return nil
	}
	select {
	case i.messages <- ev:
		return nil
	default:
		i.dropped.Add(1)
		return ErrInboxFull
	}
}

// Drain hands queued lifecycle events to fn, then queued messages. Events
// posted while draining are left for the next call.
func (i *Inbox) Drain(fn func(Event)) {
	i.mu.Lock()
	lifecycle := i.lifecycle
	i.lifecycle = nil
	i.mu.Unlock()
	for _, ev := range lifecycle {
		fn(ev)
	}

	for n := len(i.messages); n > 0; n-- {
		select {
		case ev := <-i.messages:
			fn(ev)
		default:
			return
		}
	}
}

// Len returns the number of queued events.
func (i *Inbox) Len() int {
	i.mu.Lock()
	n := len(i.lifecycle)
	i.mu.Unlock()
	return n + len(i.messages)
}

// Dropped returns how many messages have been discarded since creation.
func (i *Inbox) Dropped() uint64 {
	return i.dropped.Load()
}
