// Package transport arbitrates between the device's outbound channels.
//
// Three channel kinds exist: the short-range peripheral link, a local
// websocket server, and a remote websocket client that registers with a
// relay. The peripheral channel is brought up once and stays up. The two
// network channels are mutually exclusive and follow the selected
// device.TransportMode, subject to the network being attached:
//
//	mode           bring-up                          teardown
//	PERIPHERAL     at Start                          never by a switch
//	LOCAL_NETWORK  network attached                  switch away, detach
//	REMOTE         network attached, endpoint set    switch away, detach
//
// # Threading
//
// Coordinator is not safe for concurrent use. The agent calls it from one
// goroutine. Channels run their own I/O goroutines and report back by
// posting Events to the Inbox, tagged with the generation the coordinator
// gave them at creation. Every teardown bumps the generation, so events
// from a channel that has since been replaced are discarded on arrival.
//
// # Remote retries
//
// A remote disconnect or failed dial schedules a reconnect once
// RetryInterval has passed since the previous attempt. Each automatic
// attempt increments the retry count; a successful connect resets it.
// When the count reaches MaxRetries the coordinator stops reconnecting
// until the transport is switched again, the endpoint changes, or the
// network re-attaches.
package transport
