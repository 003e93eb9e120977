package netattach

import (
	"fmt"

	"github.com/nerrad567/openvibe-core/internal/infrastructure/config"
)

// Driver names accepted in network.driver.
const (
	DriverWPASupplicant = "wpa_supplicant"
	DriverHost          = "host"
)

// NewLink builds the Link selected by cfg.Driver.
func NewLink(cfg config.NetworkConfig) (Link, error) {
	switch cfg.Driver {
	case DriverWPASupplicant:
		return NewWPALink(WPAConfig{
			Interface:  cfg.Interface,
			Binary:     cfg.WPABinary,
			ConfigPath: cfg.WPAConfigPath,
			DHCPBinary: cfg.DHCPBinary,
			DHCPArgs:   cfg.DHCPArgs,
		}), nil
	case DriverHost:
		return NewHostLink(cfg.Interface), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
