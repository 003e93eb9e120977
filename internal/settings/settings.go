package settings

import (
	"context"
	"strconv"
)

// Keys in the single settings namespace.
const (
	KeyWiFiSSID      = "wifi_ssid"
	KeyWiFiPassword  = "wifi_pass"
	KeyDeviceName    = "dev_name"
	KeyLastTransport = "transport"
	KeyRemoteURL     = "remote_url"
)

// DefaultDeviceName is used when no name has been stored.
const DefaultDeviceName = "OpenVibe"

// Settings provides typed accessors over a Store.
type Settings struct {
	store Store
}

// New wraps store with typed accessors.
func New(store Store) *Settings {
	return &Settings{store: store}
}

// WiFiCredentials returns the stored SSID and password. An empty SSID means
// no credentials are stored.
func (s *Settings) WiFiCredentials(ctx context.Context) (ssid, password string, err error) {
	ssid, err = s.store.GetString(ctx, KeyWiFiSSID, "")
	if err != nil {
		return "", "", err
	}
	password, err = s.store.GetString(ctx, KeyWiFiPassword, "")
	if err != nil {
		return "", "", err
	}
	return ssid, password, nil
}

// SetWiFiCredentials persists wireless credentials.
func (s *Settings) SetWiFiCredentials(ctx context.Context, ssid, password string) error {
	if err := s.store.PutString(ctx, KeyWiFiSSID, ssid); err != nil {
		return err
	}
	return s.store.PutString(ctx, KeyWiFiPassword, password)
}

// HasWiFiCredentials reports whether a non-empty SSID is stored.
func (s *Settings) HasWiFiCredentials(ctx context.Context) (bool, error) {
	ssid, _, err := s.WiFiCredentials(ctx)
	return ssid != "", err
}

// ClearWiFiCredentials removes the stored SSID and password.
func (s *Settings) ClearWiFiCredentials(ctx context.Context) error {
	if err := s.store.Remove(ctx, KeyWiFiSSID); err != nil {
		return err
	}
	return s.store.Remove(ctx, KeyWiFiPassword)
}

// DeviceName returns the advertised device name.
func (s *Settings) DeviceName(ctx context.Context) (string, error) {
	return s.store.GetString(ctx, KeyDeviceName, DefaultDeviceName)
}

// SetDeviceName stores the advertised device name.
func (s *Settings) SetDeviceName(ctx context.Context, name string) error {
	return s.store.PutString(ctx, KeyDeviceName, name)
}

// LastTransport returns the stored transport index, 0 when absent or corrupt.
func (s *Settings) LastTransport(ctx context.Context) (int, error) {
	raw, err := s.store.GetString(ctx, KeyLastTransport, "0")
	if err != nil {
		return 0, err
	}
	v, convErr := strconv.Atoi(raw)
	if convErr != nil {
		return 0, nil
	}
	return v, nil
}

// SetLastTransport stores the transport index.
func (s *Settings) SetLastTransport(ctx context.Context, transport int) error {
	return s.store.PutString(ctx, KeyLastTransport, strconv.Itoa(transport))
}

// RemoteServer returns the stored remote relay URL.
func (s *Settings) RemoteServer(ctx context.Context) (string, error) {
	return s.store.GetString(ctx, KeyRemoteURL, "")
}

// SetRemoteServer stores the remote relay URL.
func (s *Settings) SetRemoteServer(ctx context.Context, url string) error {
	return s.store.PutString(ctx, KeyRemoteURL, url)
}
