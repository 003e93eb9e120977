package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementStatus    = "openvibe_status"
	MeasurementTransport = "openvibe_transport"
)

// StatusPoint is one sample of device status.
type StatusPoint struct {
	DeviceID            string
	Transport           string
	Intensity           int
	Battery             int
	Charging            bool
	PeripheralConnected bool
	NetworkConnected    bool
	Time                time.Time
}

func newStatusPoint(s StatusPoint) *write.Point {
	ts := s.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return write.NewPoint(
		MeasurementStatus,
		map[string]string{
			"device_id": s.DeviceID,
			"transport": s.Transport,
		},
		map[string]interface{}{
			"intensity":            s.Intensity,
			"battery":              s.Battery,
			"charging":             s.Charging,
			"peripheral_connected": s.PeripheralConnected,
			"network_connected":    s.NetworkConnected,
		},
		ts,
	)
}

// WriteStatus queues a status sample. Non-blocking.
func (c *Client) WriteStatus(s StatusPoint) {
	if !c.IsOpen() {
		return
	}
	c.writeAPI.WritePoint(newStatusPoint(s))
}

func newTransportPoint(deviceID, from, to, endpoint string, ts time.Time) *write.Point {
	fields := map[string]interface{}{"from": from}
	if endpoint != "" {
		fields["endpoint"] = endpoint
	}
	return write.NewPoint(
		MeasurementTransport,
		map[string]string{
			"device_id": deviceID,
			"transport": to,
		},
		fields,
		ts,
	)
}

// WriteTransportChange records a transport switch. Non-blocking.
func (c *Client) WriteTransportChange(deviceID, from, to, endpoint string) {
	if !c.IsOpen() {
		return
	}
	c.writeAPI.WritePoint(newTransportPoint(deviceID, from, to, endpoint, time.Now()))
}
