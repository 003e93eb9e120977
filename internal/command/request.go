package command

// Request types accepted on every inbound channel.
const (
	TypeStatus          = "STATUS"
	TypeIntensity       = "INTENSITY"
	TypeWiFiCredentials = "WIFI_CREDENTIALS"
	TypeSwitchTransport = "SWITCH_TRANSPORT"
)

// Request is one inbound command. Optional fields are pointers so a
// missing field can be told apart from a zero value.
type Request struct {
	RequestType   string   `json:"requestType"`
	Intensity     *float64 `json:"intensity,omitempty"`
	SSID          *string  `json:"ssid,omitempty"`
	Password      *string  `json:"password,omitempty"`
	Transport     *string  `json:"transport,omitempty"`
	ServerAddress *string  `json:"serverAddress,omitempty"`
}
