// OpenVibe device agent.
//
// Runs the connectivity and transport-arbitration loop of an OpenVibe
// device: the short-range peripheral link, the local wireless network
// attach, the local websocket server and the remote relay client.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/openvibe-core/migrations"

	"github.com/nerrad567/openvibe-core/internal/actuator"
	"github.com/nerrad567/openvibe-core/internal/agent"
	"github.com/nerrad567/openvibe-core/internal/channel/ble"
	"github.com/nerrad567/openvibe-core/internal/device"
	"github.com/nerrad567/openvibe-core/internal/infrastructure/config"
	"github.com/nerrad567/openvibe-core/internal/infrastructure/database"
	"github.com/nerrad567/openvibe-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/openvibe-core/internal/infrastructure/logging"
	"github.com/nerrad567/openvibe-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/openvibe-core/internal/netattach"
	"github.com/nerrad567/openvibe-core/internal/settings"
	"github.com/nerrad567/openvibe-core/internal/status"
	"github.com/nerrad567/openvibe-core/internal/telemetry"
	"github.com/nerrad567/openvibe-core/internal/transport"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // startup wiring: sequential optional components
	log := logging.Default()
	log.Info("starting OpenVibe agent",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath)

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Settings.Path,
		WALMode:     cfg.Settings.WALMode,
		BusyTimeout: cfg.Settings.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening settings database: %w", err)
	}
	defer func() {
		log.Info("closing settings database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing settings database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	if healthErr := db.HealthCheck(ctx); healthErr != nil {
		return fmt.Errorf("settings database: %w", healthErr)
	}
	store := settings.New(settings.NewSQLiteStore(db.DB))
	log.Info("settings store ready", "path", cfg.Settings.Path)

	identity, err := loadIdentity(cfg)
	if err != nil {
		return err
	}
	log = log.With("device_id", identity.DeviceID)
	log.Info("device identity", "mac", identity.MACString(), "version", identity.Version)

	link, err := netattach.NewLink(cfg.Network)
	if err != nil {
		return fmt.Errorf("network link: %w", err)
	}
	switch l := link.(type) {
	case *netattach.WPALink:
		l.SetLogger(log.With("component", "wpa_supplicant"))
		defer func() {
			if closeErr := l.Close(); closeErr != nil {
				log.Error("error stopping wpa_supplicant", "error", closeErr)
			}
		}()
	case *netattach.HostLink:
		l.SetLogger(log.With("component", "link"))
	}

	var radio ble.Radio
	if cfg.Peripheral.Enabled {
		bz, radioErr := ble.NewBlueZRadio(cfg.Peripheral)
		if radioErr != nil {
			return fmt.Errorf("peripheral radio: %w", radioErr)
		}
		bz.SetLogger(log.With("component", "ble"))
		radio = bz
	} else {
		log.Info("peripheral disabled")
	}

	inbox := transport.NewInbox(cfg.Loop.InboxSize)

	var (
		publisher telemetry.StatusPublisher
		writer    telemetry.StatusWriter
	)

	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT, identity.DeviceID)
		if mqttErr != nil {
			return fmt.Errorf("mqtt: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.With("component", "mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT connected", "status_topic", mqttClient.Topics().Status())
		})
		if routeErr := telemetry.RouteCommands(mqttClient, inbox); routeErr != nil {
			return fmt.Errorf("mqtt command subscription: %w", routeErr)
		}
		publisher = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("influxdb: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB client")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Warn("InfluxDB write error", "error", err)
		})
		writer = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	var mirrors []status.Mirror
	if publisher != nil || writer != nil {
		mirror := telemetry.NewMirror(publisher, writer)
		mirror.SetLogger(log.With("component", "telemetry"))
		mirrors = append(mirrors, mirror)
	}

	motor, indicator := openActuators(cfg.Actuator, log)

	a, err := agent.New(ctx, agent.Deps{
		Config:    cfg,
		Identity:  identity,
		Settings:  store,
		Link:      link,
		Radio:     radio,
		Motor:     motor,
		Indicator: indicator,
		Mirrors:   mirrors,
		Inbox:     inbox,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("building agent: %w", err)
	}

	log.Info("initialisation complete")
	if err := a.Run(ctx); err != nil {
		return fmt.Errorf("agent: %w", err)
	}

	log.Info("OpenVibe agent stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses OPENVIBE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("OPENVIBE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadIdentity reads the MAC of the configured interface. A configured
// device id lets the agent run on hosts without that interface.
func loadIdentity(cfg *config.Config) (device.Identity, error) {
	deviceVersion := cfg.Device.Version
	if deviceVersion == "" {
		deviceVersion = version
	}

	mac, err := device.MACFromInterface(cfg.Device.Interface)
	if err != nil {
		if cfg.Device.ID == "" || !errors.Is(err, device.ErrNoHardwareAddress) {
			return device.Identity{}, fmt.Errorf("device identity: %w", err)
		}
		mac = nil
	}
	return device.NewIdentity(mac, deviceVersion, cfg.Device.ID), nil
}

// openActuators opens the motor and LED when enabled. A missing output is
// logged and left nil; the agent runs without it.
func openActuators(cfg config.ActuatorConfig, log *logging.Logger) (actuator.Motor, actuator.Indicator) {
	if !cfg.Enabled {
		return nil, nil
	}

	var (
		motor     actuator.Motor
		indicator actuator.Indicator
	)

	pwm, err := actuator.NewPWMMotor(cfg.PWMChip, cfg.PWMChannel, cfg.PWMPeriod)
	if err != nil {
		log.Warn("motor unavailable", "chip", cfg.PWMChip, "channel", cfg.PWMChannel, "error", err)
	} else {
		motor = pwm
	}

	led, err := actuator.NewGPIOIndicator(cfg.LEDChip, cfg.LEDLine)
	if err != nil {
		log.Warn("indicator unavailable", "chip", cfg.LEDChip, "line", cfg.LEDLine, "error", err)
	} else {
		indicator = led
	}

	return motor, indicator
}
