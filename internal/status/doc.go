// Package status builds the device status snapshot and routes it to
// whichever channels are live.
package status
