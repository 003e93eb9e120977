// Package settings is the agent's persistent configuration namespace.
//
// Values that change at runtime (wireless credentials, the last selected
// transport, the remote relay URL, the advertised device name) live here
// rather than in config.yaml. The backing Store is a flat string key/value
// map; SQLiteStore persists it across reboots and MemoryStore keeps it in
// process.
package settings
