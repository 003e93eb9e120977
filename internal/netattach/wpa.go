package netattach

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/nerrad567/openvibe-core/internal/process"
)

// WPAConfig configures the wpa_supplicant-backed link.
type WPAConfig struct {
	Interface  string
	Binary     string
	ConfigPath string

	// DHCPBinary is started alongside the supplicant when set.
	DHCPBinary string
	DHCPArgs   []string
}

// WPALink attaches by supervising wpa_supplicant, and optionally a DHCP
// client, with a generated configuration file.
type WPALink struct {
	cfg        WPAConfig
	supplicant *process.Manager
	dhcp       *process.Manager
	logger     Logger
	status     func(string) LinkStatus

	// opMu serialises the background start and stop work; seq numbers
	// each submitted op so a superseded one is skipped.
	opMu sync.Mutex
	seq  atomic.Uint64
}

// NewWPALink creates a WPALink. Nothing is started until Connect.
func NewWPALink(cfg WPAConfig) *WPALink {
	l := &WPALink{
		cfg:    cfg,
		logger: noopLogger{},
		status: interfaceStatus,
	}
	l.supplicant = process.NewManager(process.Config{
		Name:             "wpa_supplicant",
		Binary:           cfg.Binary,
		Args:             []string{"-i", cfg.Interface, "-c", cfg.ConfigPath},
		RestartOnFailure: true,
	})
	if cfg.DHCPBinary != "" {
		l.dhcp = process.NewManager(process.Config{
			Name:             filepath.Base(cfg.DHCPBinary),
			Binary:           cfg.DHCPBinary,
			Args:             append(append([]string{}, cfg.DHCPArgs...), cfg.Interface),
			RestartOnFailure: true,
		})
	}
	return l
}

// SetLogger sets the logger for the link and its daemons.
func (l *WPALink) SetLogger(logger process.Logger) {
	l.logger = logger
	l.supplicant.SetLogger(logger)
	if l.dhcp != nil {
		l.dhcp.SetLogger(logger)
	}
}

// Connect writes the supplicant configuration and starts the daemons, or
// asks a running supplicant to reload. Returns once the file is written.
func (l *WPALink) Connect(ctx context.Context, ssid, password string) error {
	conf, err := supplicantConfig(ssid, password)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(l.cfg.ConfigPath), 0o750); err != nil {
		return fmt.Errorf("creating supplicant config dir: %w", err)
	}
	if err := os.WriteFile(l.cfg.ConfigPath, []byte(conf), 0o600); err != nil {
		return fmt.Errorf("writing supplicant config: %w", err)
	}

	l.submit(func() { l.start(ctx) })
	return nil
}

// submit runs op in the background. Ops run one at a time and an op is
// skipped when another has been submitted after it, so the daemons end
// up in the state the last Connect or Disconnect asked for.
func (l *WPALink) submit(op func()) <-chan struct{} {
	seq := l.seq.Add(1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.opMu.Lock()
		defer l.opMu.Unlock()
		if l.seq.Load() != seq {
			return
		}
		op()
	}()
	return done
}

func (l *WPALink) start(ctx context.Context) {
	err := l.supplicant.Start(ctx)
	switch {
	case errors.Is(err, process.ErrAlreadyRunning):
		if err := l.supplicant.Signal(syscall.SIGHUP); err != nil {
			l.logger.Warn("supplicant reload failed", "error", err)
		}
	case err != nil:
		l.logger.Warn("supplicant start failed", "error", err)
		return
	}

	if l.dhcp != nil && !l.dhcp.IsRunning() {
		if err := l.dhcp.Start(ctx); err != nil {
			l.logger.Warn("dhcp client start failed", "error", err)
		}
	}
}

// Disconnect stops the daemons in the background.
func (l *WPALink) Disconnect() error {
	l.submit(l.stop)
	return nil
}

func (l *WPALink) stop() {
	if l.dhcp != nil {
		if err := l.dhcp.Stop(); err != nil {
			l.logger.Warn("dhcp client stop failed", "error", err)
		}
	}
	if err := l.supplicant.Stop(); err != nil {
		l.logger.Warn("supplicant stop failed", "error", err)
	}
}

// Status implements Link. The link is only up while the supplicant runs.
func (l *WPALink) Status() LinkStatus {
	if !l.supplicant.IsRunning() {
		return LinkStatus{}
	}
	return l.status(l.cfg.Interface)
}

// Close stops the daemons and waits for them to exit.
func (l *WPALink) Close() error {
	l.opMu.Lock()
	defer l.opMu.Unlock()
	var errs []error
	if l.dhcp != nil {
		errs = append(errs, l.dhcp.Stop())
	}
	errs = append(errs, l.supplicant.Stop())
	return errors.Join(errs...)
}

// supplicantConfig renders a single-network wpa_supplicant configuration.
// The SSID is hex encoded so any byte sequence is accepted; an empty
// password selects an open network.
func supplicantConfig(ssid, password string) (string, error) {
	if ssid == "" || len(ssid) > 32 {
		return "", fmt.Errorf("%w: ssid must be 1-32 bytes", ErrInvalidCredentials)
	}

	var b strings.Builder
	b.WriteString("ctrl_interface=/run/wpa_supplicant\n")
	b.WriteString("update_config=0\n\n")
	b.WriteString("network={\n")
	fmt.Fprintf(&b, "\tssid=%s\n", hex.EncodeToString([]byte(ssid)))

	if password == "" {
		b.WriteString("\tkey_mgmt=NONE\n")
	} else {
		if len(password) < 8 || len(password) > 63 {
			return "", fmt.Errorf("%w: passphrase must be 8-63 characters", ErrInvalidCredentials)
		}
		for _, r := range password {
			if r < 0x20 || r > 0x7e || r == '"' {
				return "", fmt.Errorf("%w: passphrase contains unsupported characters", ErrInvalidCredentials)
			}
		}
		fmt.Fprintf(&b, "\tpsk=\"%s\"\n", password)
	}
	b.WriteString("}\n")
	return b.String(), nil
}
