// Package process supervises the long-running helper daemons the agent
// depends on for network attach, such as wpa_supplicant and a DHCP client.
//
// A Manager spawns one daemon in its own process group, logs its output
// line by line, restarts it after unexpected exits and stops it with
// SIGTERM followed by SIGKILL:
//
//	mgr := process.NewManager(process.Config{
//	    Name:             "wpa_supplicant",
//	    Binary:           "/sbin/wpa_supplicant",
//	    Args:             []string{"-i", "wlan0", "-c", "/run/openvibe/wpa.conf"},
//	    RestartOnFailure: true,
//	})
//	if err := mgr.Start(ctx); err != nil {
//	    return err
//	}
//	defer mgr.Stop()
package process
