package netattach

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/openvibe-core/internal/infrastructure/config"
)

func TestSupplicantConfig(t *testing.T) {
	tests := []struct {
		name     string
		ssid     string
		password string
		contains []string
		wantErr  bool
	}{
		{
			name:     "wpa network",
			ssid:     "home",
			password: "secret123",
			contains: []string{"ssid=686f6d65", `psk="secret123"`},
		},
		{
			name:     "open network",
			ssid:     "cafe",
			contains: []string{"ssid=63616665", "key_mgmt=NONE"},
		},
		{name: "empty ssid", ssid: "", wantErr: true},
		{name: "long ssid", ssid: strings.Repeat("x", 33), wantErr: true},
		{name: "short passphrase", ssid: "home", password: "short", wantErr: true},
		{name: "quote in passphrase", ssid: "home", password: `pass"word1`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf, err := supplicantConfig(tt.ssid, tt.password)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCredentials) {
					t.Fatalf("error = %v, want ErrInvalidCredentials", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("supplicantConfig() error = %v", err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(conf, want) {
					t.Errorf("config missing %q:\n%s", want, conf)
				}
			}
		})
	}
}

func TestHostLink_Status(t *testing.T) {
	h := NewHostLink("wlan7")
	h.status = func(name string) LinkStatus {
		if name != "wlan7" {
			t.Errorf("status lookup for %q, want wlan7", name)
		}
		return LinkStatus{Up: true, Address: "10.1.1.1"}
	}

	if err := h.Connect(testContext(t), "home", "secret123"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if st := h.Status(); !st.Up || st.Address != "10.1.1.1" {
		t.Errorf("Status() = %+v", st)
	}
}

func TestInterfaceStatus_Unknown(t *testing.T) {
	if st := interfaceStatus("does-not-exist0"); st.Up {
		t.Errorf("interfaceStatus(unknown) = %+v, want down", st)
	}
}

func TestWPALink_DownUntilSupplicantRuns(t *testing.T) {
	l := NewWPALink(WPAConfig{Interface: "wlan0", Binary: "/sbin/wpa_supplicant", ConfigPath: t.TempDir() + "/wpa.conf"})
	l.status = func(string) LinkStatus { return LinkStatus{Up: true, Address: "10.0.0.2"} }

	if st := l.Status(); st.Up {
		t.Errorf("Status() = %+v before the supplicant runs", st)
	}
}

func TestWPALink_LastOpWins(t *testing.T) {
	l := NewWPALink(WPAConfig{Interface: "wlan0", Binary: "/sbin/wpa_supplicant", ConfigPath: t.TempDir() + "/wpa.conf"})

	var mu sync.Mutex
	var ran []string
	record := func(name string) func() {
		return func() {
			mu.Lock()
			ran = append(ran, name)
			mu.Unlock()
		}
	}

	// Hold the op lock so both ops are queued before either runs, as when
	// a disconnect follows a connect that is still starting the daemons.
	l.opMu.Lock()
	connected := l.submit(record("connect"))
	disconnected := l.submit(record("disconnect"))
	l.opMu.Unlock()

	for _, done := range []<-chan struct{}{connected, disconnected} {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("op did not finish")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if want := []string{"disconnect"}; !slices.Equal(ran, want) {
		t.Errorf("ops run = %v, want %v", ran, want)
	}
}

func TestWPALink_SequentialOpsAllRun(t *testing.T) {
	l := NewWPALink(WPAConfig{Interface: "wlan0", Binary: "/sbin/wpa_supplicant", ConfigPath: t.TempDir() + "/wpa.conf"})

	var ran []string
	for _, name := range []string{"connect", "disconnect", "connect"} {
		done := l.submit(func() { ran = append(ran, name) })
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("%s did not finish", name)
		}
	}

	if want := []string{"connect", "disconnect", "connect"}; !slices.Equal(ran, want) {
		t.Errorf("ops run = %v, want %v", ran, want)
	}
}

func TestNewLink(t *testing.T) {
	if _, err := NewLink(config.NetworkConfig{Driver: DriverHost}); err != nil {
		t.Errorf("NewLink(host) error = %v", err)
	}
	if _, err := NewLink(config.NetworkConfig{Driver: DriverWPASupplicant, Interface: "wlan0"}); err != nil {
		t.Errorf("NewLink(wpa_supplicant) error = %v", err)
	}
	if _, err := NewLink(config.NetworkConfig{Driver: "carrier-pigeon"}); !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("NewLink(unknown) error = %v, want ErrUnknownDriver", err)
	}
}
