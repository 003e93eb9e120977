// Package device holds the runtime state and identity of an OpenVibe unit.
//
// State is plain data: intensity, power readings, link flags, the selected
// TransportMode and the remote endpoint. It has no behaviour beyond
// clamping, and no synchronisation. The agent loop is its only goroutine.
//
// Identity derives the device ID and advertised name from the unit's
// hardware address:
//
//	mac, _ := device.MACFromInterface("wlan0")
//	id := device.NewIdentity(mac, version, "")
//	id.DeviceID // "ddccbbaa" for aa:bb:cc:dd:ee:ff
package device
