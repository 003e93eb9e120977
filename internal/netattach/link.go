package netattach

import (
	"context"
	"net"
)

// interfaceStatus reports a link as up when the named interface is up and
// holds a routable IPv4 address. An empty name matches any interface.
func interfaceStatus(name string) LinkStatus {
	var ifaces []net.Interface
	if name == "" {
		all, err := net.Interfaces()
		if err != nil {
			return LinkStatus{}
		}
		ifaces = all
	} else {
		iface, err := net.InterfaceByName(name)
		if err != nil {
			return LinkStatus{}
		}
		ifaces = []net.Interface{*iface}
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if addr := ipv4Address(iface); addr != "" {
			return LinkStatus{Up: true, Address: addr}
		}
	}
	return LinkStatus{}
}

func ipv4Address(iface net.Interface) string {
	addrs, err := iface.Addrs()
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipnet.IP.To4()
		if ip == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
			continue
		}
		return ip.String()
	}
	return ""
}

// HostLink is used when the operating system already manages the network.
// Connect and Disconnect only log; Status follows the interface.
type HostLink struct {
	iface  string
	logger Logger
	status func(string) LinkStatus
}

// NewHostLink creates a HostLink watching iface. An empty iface watches
// every non-loopback interface.
func NewHostLink(iface string) *HostLink {
	return &HostLink{iface: iface, logger: noopLogger{}, status: interfaceStatus}
}

// SetLogger sets the logger for the link.
func (h *HostLink) SetLogger(logger Logger) {
	h.logger = logger
}

// Connect implements Link.
func (h *HostLink) Connect(_ context.Context, ssid, _ string) error {
	h.logger.Info("host-managed network, credentials not applied", "ssid", ssid)
	return nil
}

// Disconnect implements Link.
func (h *HostLink) Disconnect() error {
	return nil
}

// Status implements Link.
func (h *HostLink) Status() LinkStatus {
	return h.status(h.iface)
}
