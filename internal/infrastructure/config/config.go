package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the OpenVibe device agent.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device     DeviceConfig     `yaml:"device"`
	Settings   SettingsConfig   `yaml:"settings"`
	Network    NetworkConfig    `yaml:"network"`
	Peripheral PeripheralConfig `yaml:"peripheral"`
	Local      LocalConfig      `yaml:"local"`
	Remote     RemoteConfig     `yaml:"remote"`
	Loop       LoopConfig       `yaml:"loop"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Actuator   ActuatorConfig   `yaml:"actuator"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DeviceConfig contains device identity settings.
type DeviceConfig struct {
	// Version is reported in every status snapshot.
	Version string `yaml:"version"`

	// ID overrides the MAC-derived device identifier. Leave empty in production.
	ID string `yaml:"id"`

	// Interface is the network interface whose MAC identifies the device.
	Interface string `yaml:"interface"`
}

// SettingsConfig contains the persistent settings store (SQLite) settings.
type SettingsConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// NetworkConfig contains local wireless network attach settings.
type NetworkConfig struct {
	// Driver selects the link implementation: "wpa_supplicant" or "host".
	// "host" treats an already configured interface as the link (development).
	Driver string `yaml:"driver"`

	// Interface is the wireless interface to attach (e.g. "wlan0").
	Interface string `yaml:"interface"`

	// AttachTimeout bounds a single attach attempt.
	// Default: 15s
	AttachTimeout time.Duration `yaml:"attach_timeout"`

	// WPABinary is the path to the wpa_supplicant executable.
	WPABinary string `yaml:"wpa_binary"`

	// WPAConfigPath is where the generated supplicant config is written.
	WPAConfigPath string `yaml:"wpa_config_path"`

	// DHCPBinary is an optional DHCP client run alongside the supplicant.
	DHCPBinary string   `yaml:"dhcp_binary,omitempty"`
	DHCPArgs   []string `yaml:"dhcp_args,omitempty"`
}

// PeripheralConfig contains short-range wireless (BLE) peripheral settings.
type PeripheralConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceUUID string `yaml:"service_uuid"`
	CommandUUID string `yaml:"command_uuid"`
	StatusUUID  string `yaml:"status_uuid"`
}

// LocalConfig contains the local-network WebSocket server settings.
type LocalConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// RemoteConfig contains remote relay client settings.
type RemoteConfig struct {
	// RetryInterval is the fixed delay between automatic reconnect attempts.
	RetryInterval time.Duration `yaml:"retry_interval"`

	// MaxRetries caps consecutive automatic reconnect attempts.
	MaxRetries int `yaml:"max_retries"`

	// RegisterPath is appended to the endpoint path before connecting.
	RegisterPath string `yaml:"register_path"`
}

// LoopConfig contains main loop scheduling settings.
type LoopConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`

	// StatusInterval enables periodic status pushes. 0 disables them.
	StatusInterval time.Duration `yaml:"status_interval"`

	// InboxSize bounds the queue between channel goroutines and the tick loop.
	InboxSize int `yaml:"inbox_size"`
}

// MQTTConfig contains the optional MQTT status mirror settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains the optional status time-series settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// ActuatorConfig contains motor PWM and indicator LED settings.
type ActuatorConfig struct {
	Enabled bool `yaml:"enabled"`

	// PWMChip is the sysfs PWM chip directory (e.g. "/sys/class/pwm/pwmchip0").
	PWMChip    string `yaml:"pwm_chip"`
	PWMChannel int    `yaml:"pwm_channel"`

	// PWMPeriod is the PWM period in nanoseconds.
	PWMPeriod int `yaml:"pwm_period"`

	// LEDChip and LEDLine select the indicator GPIO line.
	LEDChip string `yaml:"led_chip"`
	LEDLine int    `yaml:"led_line"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: OPENVIBE_SECTION_KEY
// For example: OPENVIBE_SETTINGS_PATH, OPENVIBE_LOCAL_PORT
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Version:   "1.0.0",
			Interface: "wlan0",
		},
		Settings: SettingsConfig{
			Path:        "./data/openvibe.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Network: NetworkConfig{
			Driver:        "wpa_supplicant",
			Interface:     "wlan0",
			AttachTimeout: 15 * time.Second,
			WPABinary:     "/usr/sbin/wpa_supplicant",
			WPAConfigPath: "./data/wpa_supplicant.conf",
		},
		Peripheral: PeripheralConfig{
			Enabled:     true,
			ServiceUUID: "ec2e0883-782d-433b-9a0c-6d5df5565410",
			CommandUUID: "c2433dd7-137e-4e82-845e-a40f70dc4a8d",
			StatusUUID:  "c2433dd7-137e-4e82-845e-a40f70dc4a8e",
		},
		Local: LocalConfig{
			Host:           "0.0.0.0",
			Port:           6969,
			Path:           "/",
			MaxMessageSize: 4096,
			PingInterval:   15,
			PongTimeout:    3,
		},
		Remote: RemoteConfig{
			RetryInterval: 10 * time.Second,
			MaxRetries:    5,
			RegisterPath:  "register",
		},
		Loop: LoopConfig{
			TickInterval:   20 * time.Millisecond,
			StatusInterval: 5 * time.Second,
			InboxSize:      256,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			QoS:         1,
			TopicPrefix: "openvibe",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     50,
			FlushInterval: 10,
		},
		Actuator: ActuatorConfig{
			PWMChip:   "/sys/class/pwm/pwmchip0",
			PWMPeriod: 1000000,
			LEDChip:   "gpiochip0",
			LEDLine:   2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENVIBE_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}
	if v := os.Getenv("OPENVIBE_SETTINGS_PATH"); v != "" {
		cfg.Settings.Path = v
	}
	if v := os.Getenv("OPENVIBE_NETWORK_DRIVER"); v != "" {
		cfg.Network.Driver = v
	}
	if v := os.Getenv("OPENVIBE_NETWORK_INTERFACE"); v != "" {
		cfg.Network.Interface = v
	}
	if v := os.Getenv("OPENVIBE_LOCAL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Local.Port = port
		}
	}
	if v := os.Getenv("OPENVIBE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("OPENVIBE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("OPENVIBE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("OPENVIBE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("OPENVIBE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Settings.Path == "" {
		errs = append(errs, "settings.path is required")
	}

	switch c.Network.Driver {
	case "wpa_supplicant":
		if c.Network.WPABinary == "" {
			errs = append(errs, "network.wpa_binary is required for the wpa_supplicant driver")
		}
		if c.Network.WPAConfigPath == "" {
			errs = append(errs, "network.wpa_config_path is required for the wpa_supplicant driver")
		}
	case "host":
	default:
		errs = append(errs, fmt.Sprintf("network.driver %q must be wpa_supplicant or host", c.Network.Driver))
	}
	if c.Network.Interface == "" {
		errs = append(errs, "network.interface is required")
	}
	if c.Network.AttachTimeout <= 0 {
		errs = append(errs, "network.attach_timeout must be positive")
	}

	if c.Local.Port < 1 || c.Local.Port > 65535 {
		errs = append(errs, "local.port must be between 1 and 65535")
	}
	if !strings.HasPrefix(c.Local.Path, "/") {
		errs = append(errs, "local.path must start with /")
	}

	if c.Remote.RetryInterval <= 0 {
		errs = append(errs, "remote.retry_interval must be positive")
	}
	if c.Remote.MaxRetries < 1 {
		errs = append(errs, "remote.max_retries must be at least 1")
	}

	if c.Loop.TickInterval <= 0 {
		errs = append(errs, "loop.tick_interval must be positive")
	}
	if c.Loop.StatusInterval < 0 {
		errs = append(errs, "loop.status_interval cannot be negative")
	}
	if c.Loop.InboxSize < 1 {
		errs = append(errs, "loop.inbox_size must be at least 1")
	}

	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.Actuator.Enabled && c.Actuator.PWMPeriod <= 0 {
		errs = append(errs, "actuator.pwm_period must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// PingIntervalDuration returns the local WebSocket heartbeat interval as a Duration.
func (c LocalConfig) PingIntervalDuration() time.Duration {
	return time.Duration(c.PingInterval) * time.Second
}

// PongTimeoutDuration returns the local WebSocket pong timeout as a Duration.
func (c LocalConfig) PongTimeoutDuration() time.Duration {
	return time.Duration(c.PongTimeout) * time.Second
}

// Address returns the host:port the local server listens on.
func (c LocalConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
