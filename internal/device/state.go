package device

// Intensity bounds.
const (
	MinIntensity = 0
	MaxIntensity = 100
)

// Placeholder power readings until a fuel gauge is wired.
const (
	placeholderBattery  = 100
	placeholderCharging = false
)

// State is the runtime record of the device.
//
// A single State is created at startup and lives for the process lifetime.
// It is only touched from the agent tick goroutine, so it carries no lock.
// Liveness flags are written by their owning component only:
// PeripheralConnected by the transport coordinator's peripheral events,
// NetworkConnected and LocalAddress by the network attach controller,
// Transport and RemoteEndpoint by the transport coordinator.
type State struct {
	Intensity    int
	BatteryLevel int
	IsCharging   bool

	PeripheralConnected bool
	NetworkConnected    bool
	LocalAddress        string

	Transport TransportMode

	// RemoteEndpoint is only dereferenced when Transport is ModeRemote.
	RemoteEndpoint string
}

// NewState returns a State with boot defaults.
func NewState() *State {
	return &State{
		Intensity:    MinIntensity,
		BatteryLevel: placeholderBattery,
		IsCharging:   placeholderCharging,
		Transport:    ModePeripheral,
	}
}

// SetIntensity stores v clamped to [MinIntensity, MaxIntensity].
func (s *State) SetIntensity(v int) {
	s.Intensity = ClampIntensity(v)
}

// RefreshPower updates the battery readings. Called on each status build.
func (s *State) RefreshPower() {
	s.BatteryLevel = placeholderBattery
	s.IsCharging = placeholderCharging
}

// ClampIntensity bounds v to [MinIntensity, MaxIntensity].
func ClampIntensity(v int) int {
	switch {
	case v < MinIntensity:
		return MinIntensity
	case v > MaxIntensity:
		return MaxIntensity
	default:
		return v
	}
}
