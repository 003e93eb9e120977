// Package influxdb records OpenVibe device status history in InfluxDB v2.
//
// Two measurements are written:
//
//	openvibe_status     tags device_id, transport; fields intensity, battery, charging, ...
//	openvibe_transport  tags device_id, transport; fields from, endpoint
//
// Writes go through the library's non-blocking batched API and are safe to
// issue from the device loop.
package influxdb
