// Package telemetry connects device status and commands to the optional
// MQTT broker and InfluxDB history. Neither is required for the device to
// operate; both are fed without blocking the device loop.
package telemetry
