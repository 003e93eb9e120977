package ble

import (
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/nerrad567/openvibe-core/internal/infrastructure/config"
	"github.com/nerrad567/openvibe-core/internal/infrastructure/logging"
)

// BlueZRadio serves the command/status GATT service on the default
// adapter.
type BlueZRadio struct {
	adapter *bluetooth.Adapter
	service bluetooth.UUID
	command bluetooth.UUID
	status  bluetooth.UUID

	mu     sync.Mutex
	adv    *bluetooth.Advertisement
	notify bluetooth.Characteristic
	added  bool

	logger *logging.Logger
}

// NewBlueZRadio parses the configured UUIDs.
func NewBlueZRadio(cfg config.PeripheralConfig) (*BlueZRadio, error) {
	svc, err := bluetooth.ParseUUID(cfg.ServiceUUID)
	if err != nil {
		return nil, fmt.Errorf("service uuid: %w", err)
	}
	cmd, err := bluetooth.ParseUUID(cfg.CommandUUID)
	if err != nil {
		return nil, fmt.Errorf("command uuid: %w", err)
	}
	st, err := bluetooth.ParseUUID(cfg.StatusUUID)
	if err != nil {
		return nil, fmt.Errorf("status uuid: %w", err)
	}
	return &BlueZRadio{
		adapter: bluetooth.DefaultAdapter,
		service: svc,
		command: cmd,
		status:  st,
		logger:  logging.Discard(),
	}, nil
}

// SetLogger sets the logger used for adapter events outside a call.
func (r *BlueZRadio) SetLogger(logger *logging.Logger) {
	if logger == nil {
		logger = logging.Discard()
	}
	r.mu.Lock()
	r.logger = logger
	r.mu.Unlock()
}

type advertiser interface {
	Start() error
}

// readvertise restarts adv after a central disconnects. A failure leaves
// the device undiscoverable until the next bring-up, so it is logged.
func readvertise(adv advertiser, logger *logging.Logger) {
	if adv == nil {
		return
	}
	if err := adv.Start(); err != nil {
		logger.Warn("restarting advertisement failed", "error", err)
	}
}

// Start implements Radio.
func (r *BlueZRadio) Start(name string, onWrite func([]byte), onConnect func(bool)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.adapter.Enable(); err != nil {
		return fmt.Errorf("enabling adapter: %w", err)
	}

	r.adapter.SetConnectHandler(func(_ bluetooth.Device, connected bool) {
		onConnect(connected)
		if !connected {
			// BlueZ stops advertising once a central connects.
			r.mu.Lock()
			adv, logger := r.adv, r.logger
			r.mu.Unlock()
			if adv != nil {
				readvertise(adv, logger)
			}
		}
	})

	if !r.added {
		err := r.adapter.AddService(&bluetooth.Service{
			UUID: r.service,
			Characteristics: []bluetooth.CharacteristicConfig{
				{
					UUID:  r.command,
					Flags: bluetooth.CharacteristicWritePermission | bluetooth.CharacteristicWriteWithoutResponsePermission,
					WriteEvent: func(_ bluetooth.Connection, _ int, value []byte) {
						onWrite(value)
					},
				},
				{
					Handle: &r.notify,
					UUID:   r.status,
					Flags:  bluetooth.CharacteristicReadPermission | bluetooth.CharacteristicNotifyPermission,
				},
			},
		})
		if err != nil {
			return fmt.Errorf("adding service: %w", err)
		}
		r.added = true
	}

	adv := r.adapter.DefaultAdvertisement()
	if err := adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    name,
		ServiceUUIDs: []bluetooth.UUID{r.service},
	}); err != nil {
		return fmt.Errorf("configuring advertisement: %w", err)
	}
	if err := adv.Start(); err != nil {
		return fmt.Errorf("starting advertisement: %w", err)
	}
	r.adv = adv
	return nil
}

// Notify implements Radio.
func (r *BlueZRadio) Notify(p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.notify.Write(p)
	return err
}

// Stop implements Radio.
func (r *BlueZRadio) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.adv == nil {
		return nil
	}
	err := r.adv.Stop()
	r.adv = nil
	return err
}
