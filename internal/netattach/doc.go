// Package netattach joins the local wireless network without blocking the
// agent loop.
//
// Controller is a polled state machine:
//
//	IDLE --RequestAttach--> ATTACHING --link up--> ATTACHED
//	ATTACHING --timeout--> ATTACH_FAILED
//	ATTACHED --link lost--> DETACHED --next tick--> ATTACHING
//	ATTACH_FAILED --RequestAttach--> ATTACHING
//
// The platform side is a Link. WPALink supervises wpa_supplicant (and an
// optional DHCP client) through the process package; HostLink watches an
// interface the operating system already manages.
package netattach
