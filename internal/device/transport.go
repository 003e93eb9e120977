package device

import (
	"fmt"
	"strings"
)

// TransportMode selects which outbound channel is authoritative.
type TransportMode int

// Transport modes. The numeric values are persisted in settings.
const (
	ModePeripheral TransportMode = iota
	ModeLocalNetwork
	ModeRemote
)

// String returns the wire label used in status payloads.
func (m TransportMode) String() string {
	switch m {
	case ModePeripheral:
		return "BLE"
	case ModeLocalNetwork:
		return "WIFI"
	case ModeRemote:
		return "REMOTE"
	default:
		return fmt.Sprintf("TransportMode(%d)", int(m))
	}
}

// RequiresNetwork reports whether the mode's channel needs an attached network.
func (m TransportMode) RequiresNetwork() bool {
	return m == ModeLocalNetwork || m == ModeRemote
}

// Valid reports whether m is a known mode.
func (m TransportMode) Valid() bool {
	return m >= ModePeripheral && m <= ModeRemote
}

// ParseTransportMode accepts both the wire labels (BLE, WIFI, REMOTE) and
// the long names (PERIPHERAL, LOCAL_NETWORK). Matching is case-insensitive.
func ParseTransportMode(s string) (TransportMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BLE", "PERIPHERAL":
		return ModePeripheral, nil
	case "WIFI", "LOCAL_NETWORK":
		return ModeLocalNetwork, nil
	case "REMOTE":
		return ModeRemote, nil
	default:
		return ModePeripheral, fmt.Errorf("%w: %q", ErrInvalidTransport, s)
	}
}

// TransportModeFromIndex converts a persisted index back to a mode.
func TransportModeFromIndex(i int) (TransportMode, error) {
	m := TransportMode(i)
	if !m.Valid() {
		return ModePeripheral, fmt.Errorf("%w: index %d", ErrInvalidTransport, i)
	}
	return m, nil
}
