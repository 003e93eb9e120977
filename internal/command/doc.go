// Package command decodes and applies inbound JSON commands.
//
// Every channel (peripheral writes, local websocket messages, remote relay
// messages, the MQTT command topic) feeds the same Dispatcher from the
// agent tick:
//
//	{"requestType":"INTENSITY","intensity":55}
//	{"requestType":"WIFI_CREDENTIALS","ssid":"home","password":"secret"}
//	{"requestType":"SWITCH_TRANSPORT","transport":"REMOTE","serverAddress":"ws://relay:9000"}
//	{"requestType":"STATUS"}
//
// Malformed or incomplete commands are dropped without touching device
// state. Unknown request types are ignored.
package command
