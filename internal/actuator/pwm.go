package actuator

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nerrad567/openvibe-core/internal/device"
)

// exportSettle is how long the kernel may take to create the channel
// directory after a write to export.
const exportSettle = 100 * time.Millisecond

// PWMMotor drives the vibration motor through the sysfs PWM interface:
//
//	<chip>/export
//	<chip>/pwm<N>/period
//	<chip>/pwm<N>/duty_cycle
//	<chip>/pwm<N>/enable
type PWMMotor struct {
	channelDir string
	period     int
	duty       int
}

// NewPWMMotor exports channel on chip (when needed), sets the period in
// nanoseconds and enables the output at zero duty.
func NewPWMMotor(chip string, channel, period int) (*PWMMotor, error) {
	if period <= 0 {
		return nil, fmt.Errorf("%w: period must be positive", ErrPWMUnavailable)
	}

	dir := filepath.Join(chip, "pwm"+strconv.Itoa(channel))
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		if err := writeSysfs(filepath.Join(chip, "export"), channel); err != nil {
			return nil, fmt.Errorf("%w: export channel %d: %w", ErrPWMUnavailable, channel, err)
		}
		if !waitForDir(dir, exportSettle) {
			return nil, fmt.Errorf("%w: %s did not appear after export", ErrPWMUnavailable, dir)
		}
	}

	m := &PWMMotor{channelDir: dir, period: period, duty: -1}

	// duty_cycle must never exceed period, so clear it first.
	if err := writeSysfs(filepath.Join(dir, "duty_cycle"), 0); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPWMUnavailable, err)
	}
	if err := writeSysfs(filepath.Join(dir, "period"), period); err != nil {
		return nil, fmt.Errorf("%w: set period: %w", ErrPWMUnavailable, err)
	}
	if err := writeSysfs(filepath.Join(dir, "enable"), 1); err != nil {
		return nil, fmt.Errorf("%w: enable: %w", ErrPWMUnavailable, err)
	}
	m.duty = 0

	return m, nil
}

// DutyFor maps an intensity (0-100) to a duty cycle in nanoseconds.
func DutyFor(intensity, period int) int {
	intensity = device.ClampIntensity(intensity)
	return period * intensity / device.MaxIntensity
}

// SetIntensity writes the duty cycle for intensity. Unchanged values are not rewritten.
func (m *PWMMotor) SetIntensity(intensity int) error {
	duty := DutyFor(intensity, m.period)
	if duty == m.duty {
		return nil
	}
	if err := writeSysfs(filepath.Join(m.channelDir, "duty_cycle"), duty); err != nil {
		return fmt.Errorf("set duty cycle: %w", err)
	}
	m.duty = duty
	return nil
}

// Close stops the motor and disables the channel.
func (m *PWMMotor) Close() error {
	if err := writeSysfs(filepath.Join(m.channelDir, "duty_cycle"), 0); err != nil {
		return fmt.Errorf("stop motor: %w", err)
	}
	m.duty = 0
	if err := writeSysfs(filepath.Join(m.channelDir, "enable"), 0); err != nil {
		return fmt.Errorf("disable pwm: %w", err)
	}
	return nil
}

func writeSysfs(path string, v int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(v)), 0o644) // #nosec G306 -- sysfs attribute
}

func waitForDir(dir string, limit time.Duration) bool {
	deadline := time.Now().Add(limit)
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(10 * time.Millisecond)
	}
}
