package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
device:
  version: "2.1.0"
settings:
  path: "/tmp/openvibe-test.db"
network:
  driver: "host"
  interface: "eth0"
  attach_timeout: "20s"
local:
  port: 7070
remote:
  retry_interval: "15s"
  max_retries: 100
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Device.Version != "2.1.0" {
		t.Errorf("Device.Version = %q, want %q", cfg.Device.Version, "2.1.0")
	}
	if cfg.Settings.Path != "/tmp/openvibe-test.db" {
		t.Errorf("Settings.Path = %q, want %q", cfg.Settings.Path, "/tmp/openvibe-test.db")
	}
	if cfg.Network.AttachTimeout != 20*time.Second {
		t.Errorf("Network.AttachTimeout = %v, want 20s", cfg.Network.AttachTimeout)
	}
	if cfg.Local.Port != 7070 {
		t.Errorf("Local.Port = %d, want 7070", cfg.Local.Port)
	}
	if cfg.Remote.MaxRetries != 100 {
		t.Errorf("Remote.MaxRetries = %d, want 100", cfg.Remote.MaxRetries)
	}
	// Untouched sections keep their defaults.
	if cfg.Local.Path != "/" {
		t.Errorf("Local.Path = %q, want default %q", cfg.Local.Path, "/")
	}
	if cfg.Peripheral.ServiceUUID != "ec2e0883-782d-433b-9a0c-6d5df5565410" {
		t.Errorf("Peripheral.ServiceUUID = %q, want default", cfg.Peripheral.ServiceUUID)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
network:
  driver: "nmcli"
local:
  port: 0
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	for _, want := range []string{"network.driver", "local.port"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("OPENVIBE_SETTINGS_PATH", "/var/lib/openvibe/settings.db")
	t.Setenv("OPENVIBE_LOCAL_PORT", "8181")
	t.Setenv("OPENVIBE_NETWORK_DRIVER", "host")

	cfg, err := Load(writeConfig(t, "device:\n  version: \"1.0.0\"\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Settings.Path != "/var/lib/openvibe/settings.db" {
		t.Errorf("Settings.Path = %q, want env override", cfg.Settings.Path)
	}
	if cfg.Local.Port != 8181 {
		t.Errorf("Local.Port = %d, want 8181", cfg.Local.Port)
	}
	if cfg.Network.Driver != "host" {
		t.Errorf("Network.Driver = %q, want %q", cfg.Network.Driver, "host")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"empty settings path", func(c *Config) { c.Settings.Path = "" }, "settings.path"},
		{"zero retries", func(c *Config) { c.Remote.MaxRetries = 0 }, "remote.max_retries"},
		{"zero retry interval", func(c *Config) { c.Remote.RetryInterval = 0 }, "remote.retry_interval"},
		{"relative ws path", func(c *Config) { c.Local.Path = "ws" }, "local.path"},
		{"mqtt bad qos", func(c *Config) { c.MQTT.Enabled = true; c.MQTT.QoS = 3 }, "mqtt.qos"},
		{"influx without url", func(c *Config) { c.InfluxDB.Enabled = true }, "influxdb.url"},
		{"wpa without binary", func(c *Config) { c.Network.WPABinary = "" }, "network.wpa_binary"},
		{"host driver skips wpa checks", func(c *Config) { c.Network.Driver = "host"; c.Network.WPABinary = "" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLocalConfig_Durations(t *testing.T) {
	c := LocalConfig{Host: "0.0.0.0", Port: 6969, PingInterval: 15, PongTimeout: 3}

	if got := c.PingIntervalDuration(); got != 15*time.Second {
		t.Errorf("PingIntervalDuration() = %v, want 15s", got)
	}
	if got := c.PongTimeoutDuration(); got != 3*time.Second {
		t.Errorf("PongTimeoutDuration() = %v, want 3s", got)
	}
	if got := c.Address(); got != "0.0.0.0:6969" {
		t.Errorf("Address() = %q, want %q", got, "0.0.0.0:6969")
	}
}
