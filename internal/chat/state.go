package chat

// State is the lifecycle position of the connection.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}
