package device

import (
	"encoding/base64"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// advertisedSuffixLen is the number of encoded MAC characters appended to
// the advertised peripheral name.
const advertisedSuffixLen = 8

// Identity holds the values that identify this unit on the wire.
type Identity struct {
	MAC      net.HardwareAddr
	DeviceID string
	Version  string
}

// NewIdentity derives an Identity from a hardware address. A non-empty
// override replaces the derived device ID.
func NewIdentity(mac net.HardwareAddr, version, override string) Identity {
	id := override
	if id == "" {
		id = DeviceIDFromMAC(mac)
	}
	return Identity{MAC: mac, DeviceID: id, Version: version}
}

// MACString returns the hardware address as upper-case colon-separated hex.
func (i Identity) MACString() string {
	return FormatMAC(i.MAC)
}

// DeviceIDFromMAC returns the lower-case hex of the first four address bytes
// read little-endian, without zero padding.
func DeviceIDFromMAC(mac net.HardwareAddr) string {
	var v uint32
	for i := 0; i < 4 && i < len(mac); i++ {
		v |= uint32(mac[i]) << (8 * i)
	}
	return strconv.FormatUint(uint64(v), 16)
}

// FormatMAC renders mac as AA:BB:CC:DD:EE:FF.
func FormatMAC(mac net.HardwareAddr) string {
	return strings.ToUpper(mac.String())
}

// AdvertisedName builds the peripheral advertising name from the stored
// device name and a short encoding of the hardware address.
func AdvertisedName(devName string, mac net.HardwareAddr) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(FormatMAC(mac)))
	if len(encoded) > advertisedSuffixLen {
		encoded = encoded[:advertisedSuffixLen]
	}
	return devName + "-" + encoded
}

// MACFromInterface reads the hardware address of a named network interface.
func MACFromInterface(name string) (net.HardwareAddr, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNoHardwareAddress, name, err)
	}
	if len(iface.HardwareAddr) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoHardwareAddress, name)
	}
	return iface.HardwareAddr, nil
}
