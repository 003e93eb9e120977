package telemetry

import (
	"encoding/json"
	"errors"

	"github.com/nerrad567/openvibe-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/openvibe-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/openvibe-core/internal/status"
)

// StatusPublisher publishes an encoded snapshot to the broker.
// *mqtt.Client satisfies it.
type StatusPublisher interface {
	PublishStatus(payload []byte) error
}

// StatusWriter records status history. *influxdb.Client satisfies it.
type StatusWriter interface {
	WriteStatus(p influxdb.StatusPoint)
	WriteTransportChange(deviceID, from, to, endpoint string)
}

// Logger defines the logging interface for telemetry.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Mirror copies every reported status snapshot to MQTT and InfluxDB.
// Either sink may be nil. It implements status.Mirror.
type Mirror struct {
	publisher StatusPublisher
	writer    StatusWriter
	logger    Logger

	lastTransport string
}

// NewMirror creates a Mirror. Pass nil for a disabled sink.
func NewMirror(publisher StatusPublisher, writer StatusWriter) *Mirror {
	return &Mirror{
		publisher: publisher,
		writer:    writer,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the mirror.
func (m *Mirror) SetLogger(logger Logger) {
	m.logger = logger
}

// MirrorStatus forwards s. It never blocks on the network.
func (m *Mirror) MirrorStatus(s status.Snapshot) {
	if m.publisher != nil {
		m.publish(s)
	}
	if m.writer != nil {
		m.record(s)
	}
}

func (m *Mirror) publish(s status.Snapshot) {
	payload, err := json.Marshal(s)
	if err != nil {
		m.logger.Warn("encoding status for mqtt", "error", err)
		return
	}
	if err := m.publisher.PublishStatus(payload); err != nil {
		if errors.Is(err, mqtt.ErrNotConnected) {
			m.logger.Debug("mqtt offline, status not mirrored")
			return
		}
		m.logger.Warn("mirroring status to mqtt", "error", err)
	}
}

func (m *Mirror) record(s status.Snapshot) {
	m.writer.WriteStatus(influxdb.StatusPoint{
		DeviceID:            s.DeviceID,
		Transport:           s.Transport,
		Intensity:           s.Intensity,
		Battery:             s.Battery,
		Charging:            s.IsCharging,
		PeripheralConnected: s.IsBluetoothConnected,
		NetworkConnected:    s.IsWifiConnected,
	})

	if m.lastTransport != "" && m.lastTransport != s.Transport {
		m.writer.WriteTransportChange(s.DeviceID, m.lastTransport, s.Transport, s.ServerAddress)
	}
	m.lastTransport = s.Transport
}
