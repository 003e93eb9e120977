package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/openvibe-core/internal/device"
	"github.com/nerrad567/openvibe-core/internal/infrastructure/config"
	"github.com/nerrad567/openvibe-core/internal/infrastructure/logging"
)

func TestGetConfigPath(t *testing.T) {
	t.Setenv("OPENVIBE_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("OPENVIBE_CONFIG", "/etc/openvibe/config.yaml")
	if got := getConfigPath(); got != "/etc/openvibe/config.yaml" {
		t.Errorf("getConfigPath() = %q", got)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("OPENVIBE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil || !strings.Contains(err.Error(), "loading config") {
		t.Fatalf("run() = %v, want config load error", err)
	}
}

func TestRun_UnknownInterfaceWithoutID(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	content := `
device:
  interface: ovtest-missing0
settings:
  path: ` + filepath.Join(dir, "openvibe.db") + `
network:
  driver: host
  interface: ovtest-missing0
peripheral:
  enabled: false
logging:
  level: error
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("OPENVIBE_CONFIG", cfgPath)
	t.Setenv("OPENVIBE_DEVICE_ID", "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if !errors.Is(err, device.ErrNoHardwareAddress) {
		t.Fatalf("run() = %v, want ErrNoHardwareAddress", err)
	}
}

func TestRun_HostDriverShutsDownCleanly(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	content := `
device:
  id: bench01
  interface: ovtest-missing0
settings:
  path: ` + filepath.Join(dir, "openvibe.db") + `
network:
  driver: host
  interface: ovtest-missing0
peripheral:
  enabled: false
local:
  host: 127.0.0.1
  port: 16969
loop:
  tick_interval: 5ms
logging:
  level: error
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("OPENVIBE_CONFIG", cfgPath)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "openvibe.db")); err != nil {
		t.Errorf("settings database not created: %v", err)
	}
}

func TestLoadIdentity_Override(t *testing.T) {
	cfg := config.Default()
	cfg.Device.Interface = "ovtest-missing0"
	cfg.Device.ID = "bench01"
	cfg.Device.Version = ""

	id, err := loadIdentity(cfg)
	if err != nil {
		t.Fatalf("loadIdentity() = %v", err)
	}
	if id.DeviceID != "bench01" || id.Version != version {
		t.Errorf("identity = %+v", id)
	}
}

func TestOpenActuators_Disabled(t *testing.T) {
	cfg := config.Default().Actuator
	cfg.Enabled = false

	motor, indicator := openActuators(cfg, logging.Discard())
	if motor != nil || indicator != nil {
		t.Error("outputs opened while disabled")
	}
}

func TestOpenActuators_MissingHardware(t *testing.T) {
	cfg := config.Default().Actuator
	cfg.Enabled = true
	cfg.PWMChip = filepath.Join(t.TempDir(), "absent")
	cfg.LEDChip = "gpiochip-openvibe-missing"

	motor, indicator := openActuators(cfg, logging.Discard())
	if motor != nil || indicator != nil {
		t.Error("outputs returned for missing hardware")
	}
}
