package telemetry

import (
	"bytes"

	"github.com/nerrad567/openvibe-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/openvibe-core/internal/transport"
)

// CommandSource delivers command payloads from outside the device's own
// transports. *mqtt.Client satisfies it.
type CommandSource interface {
	SubscribeCommands(handler mqtt.MessageHandler) error
}

// RouteCommands posts every payload received from src into inbox as an
// external message. The dispatcher handles them exactly like commands from
// the peripheral or network channels.
func RouteCommands(src CommandSource, inbox *transport.Inbox) error {
	return src.SubscribeCommands(func(_ string, payload []byte) error {
		return inbox.Post(transport.Event{
			Source:  transport.SourceExternal,
			Type:    transport.EventMessage,
			Payload: bytes.Clone(payload),
		})
	})
}
