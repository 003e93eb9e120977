package actuator

import (
	"fmt"

	gpiod "github.com/warthog618/go-gpiocdev"
)

// GPIOIndicator drives the status LED through the GPIO character device.
type GPIOIndicator struct {
	chip *gpiod.Chip
	line *gpiod.Line
}

// NewGPIOIndicator requests offset on chipName as an output, initially off.
func NewGPIOIndicator(chipName string, offset int) (*GPIOIndicator, error) {
	chip, err := gpiod.NewChip(chipName, gpiod.WithConsumer("openvibe"))
	if err != nil {
		return nil, fmt.Errorf("%w: open chip %s: %w", ErrIndicatorUnavailable, chipName, err)
	}

	line, err := chip.RequestLine(offset, gpiod.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("%w: request line %d: %w", ErrIndicatorUnavailable, offset, err)
	}

	return &GPIOIndicator{chip: chip, line: line}, nil
}

// Set switches the LED.
func (g *GPIOIndicator) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := g.line.SetValue(v); err != nil {
		return fmt.Errorf("set indicator: %w", err)
	}
	return nil
}

// Close turns the LED off and releases the line and chip.
func (g *GPIOIndicator) Close() error {
	var errs []error
	if err := g.line.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("clear indicator: %w", err))
	}
	if err := g.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close line: %w", err))
	}
	if err := g.chip.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close chip: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}
	return nil
}
