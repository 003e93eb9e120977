package status

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/openvibe-core/internal/device"
)

// Snapshot is the outbound status payload.
type Snapshot struct {
	Intensity            int    `json:"intensity"`
	Battery              int    `json:"battery"`
	IsCharging           bool   `json:"isCharging"`
	IsBluetoothConnected bool   `json:"isBluetoothConnected"`
	IsWifiConnected      bool   `json:"isWifiConnected"`
	IPAddress            string `json:"ipAddress"`
	MACAddress           string `json:"macAddress"`
	Version              string `json:"version"`
	DeviceID             string `json:"deviceId"`
	Transport            string `json:"transport"`
	ServerAddress        string `json:"serverAddress,omitempty"`
}

// Sender delivers an encoded snapshot to the live channels.
type Sender interface {
	Send(payload []byte)
}

// Mirror receives a copy of every reported snapshot. Implementations must
// not block.
type Mirror interface {
	MirrorStatus(s Snapshot)
}

// Logger defines the logging interface for the reporter.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Reporter builds status snapshots from device state and sends them.
//
// Build, Report, Request, Flush and Announce run on the agent tick
// goroutine. Last may be called from any goroutine.
type Reporter struct {
	state   *device.State
	id      device.Identity
	sender  Sender
	mirrors []Mirror
	logger  Logger

	requested bool

	mu     sync.RWMutex
	last   Snapshot
	lastAt time.Time
}

// NewReporter creates a Reporter over state that sends through sender.
func NewReporter(state *device.State, id device.Identity, sender Sender) *Reporter {
	return &Reporter{
		state:  state,
		id:     id,
		sender: sender,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the reporter.
func (r *Reporter) SetLogger(logger Logger) {
	r.logger = logger
}

// AddMirror registers m to receive every reported snapshot.
func (r *Reporter) AddMirror(m Mirror) {
	r.mirrors = append(r.mirrors, m)
}

// Build returns a snapshot of the current state. Power readings are
// refreshed first.
func (r *Reporter) Build() Snapshot {
	r.state.RefreshPower()

	s := Snapshot{
		Intensity:            r.state.Intensity,
		Battery:              r.state.BatteryLevel,
		IsCharging:           r.state.IsCharging,
		IsBluetoothConnected: r.state.PeripheralConnected,
		IsWifiConnected:      r.state.NetworkConnected,
		IPAddress:            r.state.LocalAddress,
		MACAddress:           r.id.MACString(),
		Version:              r.id.Version,
		DeviceID:             r.id.DeviceID,
		Transport:            r.state.Transport.String(),
	}
	if r.state.Transport == device.ModeRemote {
		s.ServerAddress = r.state.RemoteEndpoint
	}
	return s
}

// Preview returns the snapshot as it will look once target is selected.
func (r *Reporter) Preview(target device.TransportMode, endpoint string) Snapshot {
	s := r.Build()
	s.Transport = target.String()
	s.ServerAddress = ""
	if target == device.ModeRemote {
		s.ServerAddress = endpoint
	}
	return s
}

// Report builds and sends a snapshot immediately.
func (r *Reporter) Report() {
	r.requested = false
	s := r.Build()
	r.send(s)
	r.remember(s)
	for _, m := range r.mirrors {
		m.MirrorStatus(s)
	}
}

// Request marks a report as pending. Flush sends it.
func (r *Reporter) Request() {
	r.requested = true
}

// Flush sends a pending report, if any. Reports whether one was sent.
func (r *Reporter) Flush() bool {
	if !r.requested {
		return false
	}
	r.Report()
	return true
}

// Announce sends the preview for a pending transport switch.
func (r *Reporter) Announce(target device.TransportMode, endpoint string) {
	r.send(r.Preview(target, endpoint))
}

// Last returns the most recently reported snapshot and when it was built.
// ok is false until the first report.
func (r *Reporter) Last() (s Snapshot, at time.Time, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last, r.lastAt, !r.lastAt.IsZero()
}

func (r *Reporter) send(s Snapshot) {
	payload, err := json.Marshal(s)
	if err != nil {
		r.logger.Warn("encoding status failed", "error", err)
		return
	}
	r.logger.Debug("sending status", "transport", s.Transport, "bytes", len(payload))
	r.sender.Send(payload)
}

func (r *Reporter) remember(s Snapshot) {
	r.mu.Lock()
	r.last = s
	r.lastAt = time.Now()
	r.mu.Unlock()
}
