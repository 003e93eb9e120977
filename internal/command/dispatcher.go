package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/nerrad567/openvibe-core/internal/device"
	"github.com/nerrad567/openvibe-core/internal/settings"
)

// Switcher changes the active transport.
type Switcher interface {
	SwitchTransport(mode device.TransportMode, endpoint string) error
}

// Attacher starts a network attach with the stored credentials.
type Attacher interface {
	RequestAttach()
}

// StatusRequester schedules a status report.
type StatusRequester interface {
	Request()
}

// Logger defines the logging interface for the dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Dispatcher applies inbound commands. It does not know which channel a
// command arrived on.
type Dispatcher struct {
	state     *device.State
	settings  *settings.Settings
	attach    Attacher
	transport Switcher
	status    StatusRequester
	logger    Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(state *device.State, store *settings.Settings, attach Attacher, transport Switcher, status StatusRequester) *Dispatcher {
	return &Dispatcher{
		state:     state,
		settings:  store,
		attach:    attach,
		transport: transport,
		status:    status,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// Handle parses and applies one command.
//
// Failures are logged and returned for inspection; nothing is reported
// back to the sender and the device state is left unchanged.
func (d *Dispatcher) Handle(ctx context.Context, raw []byte) error {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			err = fmt.Errorf("%w: %s: %w", ErrValidation, typeErr.Field, err)
		} else {
			err = fmt.Errorf("%w: %w", ErrParse, err)
		}
		d.logger.Warn("dropping command", "error", err, "bytes", len(raw))
		return err
	}

	err := d.apply(ctx, req)
	switch {
	case err == nil:
	case errors.Is(err, ErrUnknownRequest):
		d.logger.Debug("ignoring command", "request_type", req.RequestType)
	default:
		d.logger.Warn("dropping command", "request_type", req.RequestType, "error", err)
	}
	return err
}

func (d *Dispatcher) apply(ctx context.Context, req Request) error {
	switch req.RequestType {
	case TypeStatus:
		d.status.Request()
		return nil
	case TypeIntensity:
		return d.applyIntensity(req)
	case TypeWiFiCredentials:
		return d.applyCredentials(ctx, req)
	case TypeSwitchTransport:
		return d.applySwitch(ctx, req)
	case "":
		return fmt.Errorf("%w: requestType is required", ErrValidation)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRequest, req.RequestType)
	}
}

func (d *Dispatcher) applyIntensity(req Request) error {
	if req.Intensity == nil {
		return fmt.Errorf("%w: intensity is required", ErrValidation)
	}

	v := math.Max(device.MinIntensity, math.Min(device.MaxIntensity, *req.Intensity))
	before := d.state.Intensity
	d.state.SetIntensity(int(v))

	if d.state.Intensity != before {
		d.logger.Debug("intensity set", "intensity", d.state.Intensity)
		d.status.Request()
	}
	return nil
}

func (d *Dispatcher) applyCredentials(ctx context.Context, req Request) error {
	if req.SSID == nil || *req.SSID == "" {
		return fmt.Errorf("%w: ssid is required", ErrValidation)
	}
	var password string
	if req.Password != nil {
		password = *req.Password
	}

	if err := d.settings.SetWiFiCredentials(ctx, *req.SSID, password); err != nil {
		return fmt.Errorf("storing credentials: %w", err)
	}

	d.logger.Info("wireless credentials updated", "ssid", *req.SSID)
	d.attach.RequestAttach()
	return nil
}

func (d *Dispatcher) applySwitch(ctx context.Context, req Request) error {
	if req.Transport == nil {
		return fmt.Errorf("%w: transport is required", ErrValidation)
	}
	mode, err := device.ParseTransportMode(*req.Transport)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	var endpoint string
	if req.ServerAddress != nil {
		endpoint = *req.ServerAddress
	}
	if mode == device.ModeRemote && endpoint == "" {
		return fmt.Errorf("%w: serverAddress is required for REMOTE", ErrValidation)
	}

	if endpoint != "" {
		if err := d.settings.SetRemoteServer(ctx, endpoint); err != nil {
			d.logger.Warn("persisting server address failed", "error", err)
		}
	}

	switchErr := d.transport.SwitchTransport(mode, endpoint)

	if err := d.settings.SetLastTransport(ctx, int(d.state.Transport)); err != nil {
		d.logger.Warn("persisting transport failed", "error", err)
	}
	return switchErr
}
