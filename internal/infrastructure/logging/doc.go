// Package logging is a thin layer over log/slog shared by every agent
// component.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Components receive a child logger tagged with their name:
//
//	log := logging.New(cfg.Logging, version)
//	coordinator.SetLogger(log.With("component", "transport"))
//
// Wireless passwords and broker credentials are never logged; log the SSID.
package logging
