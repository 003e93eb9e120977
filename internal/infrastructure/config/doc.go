// Package config loads the agent's config.yaml.
//
// Values are resolved in three layers: built-in defaults, the YAML file,
// then OPENVIBE_* environment variables. Validate runs last and rejects
// out-of-range ports, empty paths and unknown link kinds.
//
// Broker passwords and the InfluxDB token belong in the environment.
// Wireless credentials are not configuration at all; the WIFI_CREDENTIALS
// command writes them to the settings store at runtime.
//
//	cfg, err := config.Load(os.Getenv("OPENVIBE_CONFIG"))
package config
