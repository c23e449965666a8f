package schema

// ConnectionState is the venue session state. It is owned exclusively by
// the session manager; everything else only reads it.
type ConnectionState uint16

const (
	ConnectionDisconnected ConnectionState = iota
	ConnectionConnecting
	ConnectionConnected
)

// String returns a log-friendly state name.
func (s ConnectionState) String() string {
	switch s {
	case ConnectionConnecting:
		return "Connecting"
	case ConnectionConnected:
		return "Connected"
	default:
		return "Disconnected"
	}
}
