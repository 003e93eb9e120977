// Package localws implements the local network channel: a websocket
// server on the device's own address (port 6969 by default).
//
// Every connected client receives every status payload, and every frame a
// client sends is posted to the transport inbox as a command. Alongside the
// websocket path the server answers GET /status with the last reported
// snapshot and GET /healthz for liveness probes.
package localws
