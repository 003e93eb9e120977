package actuator

import "errors"

var (
	// ErrPWMUnavailable is returned when the PWM chip or channel cannot be set up.
	ErrPWMUnavailable = errors.New("actuator: pwm unavailable")

	// ErrIndicatorUnavailable is returned when the indicator GPIO line cannot be requested.
	ErrIndicatorUnavailable = errors.New("actuator: indicator unavailable")
)
