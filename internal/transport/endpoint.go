package transport

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

const (
	defaultPort       = 80
	defaultSecurePort = 443
)

// Endpoint is a parsed remote relay address.
type Endpoint struct {
	Scheme string
	Host   string
	Port   int
	Path   string
}

// ParseEndpoint parses scheme://host[:port][/path]. The port defaults to 80
// (443 for wss and https) and the path to "/". http and https are mapped to
// their websocket equivalents.
func ParseEndpoint(raw string) (Endpoint, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		return Endpoint{}, fmt.Errorf("%w: missing scheme in %q", ErrMalformedEndpoint, raw)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %w", ErrMalformedEndpoint, err)
	}

	ep := Endpoint{Host: u.Hostname(), Path: u.Path}
	if ep.Host == "" {
		return Endpoint{}, fmt.Errorf("%w: empty host in %q", ErrMalformedEndpoint, raw)
	}

	switch strings.ToLower(u.Scheme) {
	case "ws", "http":
		ep.Scheme, ep.Port = "ws", defaultPort
	case "wss", "https":
		ep.Scheme, ep.Port = "wss", defaultSecurePort
	default:
		return Endpoint{}, fmt.Errorf("%w: unsupported scheme %q", ErrMalformedEndpoint, u.Scheme)
	}

	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return Endpoint{}, fmt.Errorf("%w: invalid port %q", ErrMalformedEndpoint, p)
		}
		ep.Port = port
	}

	if ep.Path == "" {
		ep.Path = "/"
	}
	return ep, nil
}

// RegistrationPath returns the endpoint path with the device registration
// query appended, e.g. "/base/register?id=ddccbbaa".
func (e Endpoint) RegistrationPath(registerPath, deviceID string) string {
	base := strings.TrimSuffix(e.Path, "/")
	return base + "/" + strings.Trim(registerPath, "/") + "?id=" + url.QueryEscape(deviceID)
}

// RegistrationURL returns the full URL the remote client dials.
func (e Endpoint) RegistrationURL(registerPath, deviceID string) string {
	return fmt.Sprintf("%s://%s%s",
		e.Scheme,
		net.JoinHostPort(e.Host, strconv.Itoa(e.Port)),
		e.RegistrationPath(registerPath, deviceID),
	)
}
