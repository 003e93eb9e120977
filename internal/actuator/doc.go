// Package actuator drives the vibration motor (sysfs PWM) and the
// connection LED (GPIO character device) from device state.
package actuator
