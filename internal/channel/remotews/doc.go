// Package remotews implements the remote relay channel, a websocket client
// that registers with a relay server at <endpoint>/register?id=<deviceId>.
//
// A Client dials once. Reconnects are the transport coordinator's
// business: it tears the client down and creates a new one with a fresh
// generation, so late events from an abandoned dial are recognisable.
package remotews
