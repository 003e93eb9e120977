package mqtt

import "strings"

// DefaultTopicPrefix is used when the configured prefix is empty.
const DefaultTopicPrefix = "openvibe"

// Availability payloads published on the availability topic.
const (
	AvailabilityOnline  = "online"
	AvailabilityOffline = "offline"
)

// Topics builds the device-scoped topic tree:
//
//	<prefix>/<deviceId>/status        retained status snapshot
//	<prefix>/<deviceId>/command       inbound command payloads
//	<prefix>/<deviceId>/availability  online/offline (LWT)
type Topics struct {
	Prefix   string
	DeviceID string
}

// NewTopics returns a topic builder, trimming stray slashes from prefix.
func NewTopics(prefix, deviceID string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix, DeviceID: deviceID}
}

func (t Topics) base() string {
	return t.Prefix + "/" + t.DeviceID
}

// Status returns the retained status topic.
func (t Topics) Status() string { return t.base() + "/status" }

// Command returns the topic the device listens on for commands.
func (t Topics) Command() string { return t.base() + "/command" }

// Availability returns the online/offline topic used for the LWT.
func (t Topics) Availability() string { return t.base() + "/availability" }

// AllDevices returns a wildcard matching every device's status topic.
// Useful for dashboards observing a fleet.
func (t Topics) AllDevices() string { return t.Prefix + "/+/status" }
