package actuator

import (
	"github.com/nerrad567/openvibe-core/internal/device"
)

// Motor sets the vibration output.
type Motor interface {
	SetIntensity(intensity int) error
	Close() error
}

// Indicator is the connection LED.
type Indicator interface {
	Set(on bool) error
	Close() error
}

// Logger defines the logging interface for the actuator driver.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Driver applies device state to the hardware once per tick.
// Either output may be nil.
type Driver struct {
	motor     Motor
	indicator Indicator
	logger    Logger

	lastIntensity int
	lastLit       bool
	primed        bool
	motorFailed   bool
}

// NewDriver creates a Driver over the given outputs.
func NewDriver(motor Motor, indicator Indicator) *Driver {
	return &Driver{motor: motor, indicator: indicator, logger: noopLogger{}}
}

// SetLogger sets the logger for the driver.
func (d *Driver) SetLogger(logger Logger) {
	d.logger = logger
}

// Lit reports whether the LED should be on for s: any controller link is up.
func Lit(s *device.State) bool {
	return s.PeripheralConnected || s.NetworkConnected
}

// Apply pushes s to the outputs. Only changed values are written.
func (d *Driver) Apply(s *device.State) {
	intensity := s.Intensity
	lit := Lit(s)

	if d.motor != nil && (!d.primed || intensity != d.lastIntensity || d.motorFailed) {
		if err := d.motor.SetIntensity(intensity); err != nil {
			if !d.motorFailed {
				d.logger.Warn("motor write failed", "intensity", intensity, "error", err)
			}
			d.motorFailed = true
		} else {
			d.motorFailed = false
		}
	}

	if d.indicator != nil && (!d.primed || lit != d.lastLit) {
		if err := d.indicator.Set(lit); err != nil {
			d.logger.Warn("indicator write failed", "on", lit, "error", err)
		}
	}

	d.lastIntensity = intensity
	d.lastLit = lit
	d.primed = true
}

// Close stops the motor and turns the LED off.
func (d *Driver) Close() error {
	var first error
	if d.motor != nil {
		first = d.motor.Close()
	}
	if d.indicator != nil {
		if err := d.indicator.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
