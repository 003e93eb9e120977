// Package ble implements the short-range peripheral channel.
//
// The device advertises as <name>-<suffix> and exposes one GATT service
// with a writable command characteristic and a notifying status
// characteristic. Writes are posted to the transport inbox as commands; a
// bare "STATUS" write is shorthand for {"requestType":"STATUS"}. Status
// payloads are pushed as notifications while a central is connected.
//
// BlueZRadio drives the host adapter through tinygo.org/x/bluetooth.
package ble
