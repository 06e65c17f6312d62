package session

// State is the registration state of a Session.
type State int

const (
	// StateIdle holds until the first transport connection.
	StateIdle State = iota
	// StateConnecting holds from transport connect until the server
	// accepts registration.
	StateConnecting
	// StateRegistered holds after RPL_WELCOME.
	StateRegistered
	// StateDisconnected holds after the transport dropped.
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateRegistered:
		return "registered"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
