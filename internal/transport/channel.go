package transport

import (
	"context"

	"github.com/nerrad567/openvibe-core/internal/device"
)

// Channel is one outbound communication path.
//
// BringUp must not block on network I/O: it starts whatever background
// work the channel needs and reports progress through the Inbox. TearDown
// releases every resource the channel holds and is safe to call twice.
type Channel interface {
	Kind() device.TransportMode
	BringUp(ctx context.Context) error
	TearDown() error
	Send(payload []byte) error
	Live() bool
}

// LocalFactory creates a local socket server channel tagged with generation.
type LocalFactory func(generation uint64) Channel

// RemoteFactory creates a remote socket client channel that will dial
// target, tagged with generation.
type RemoteFactory func(target string, generation uint64) Channel
