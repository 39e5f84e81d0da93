package modem

// State is the position of a session in the bring-up sequence. Each state
// implies all the ones before it, so commands for a later stage are only
// issued once the earlier stages have been reached.
type State int

const (
	StateUnknown State = iota
	StateATResponsive
	StatePinRequired
	StatePinAccepted
	StateUnregistered
	StateRegistered
	StateBearerDown
	StateBearerUp
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateATResponsive:
		return "at-responsive"
	case StatePinRequired:
		return "pin-required"
	case StatePinAccepted:
		return "pin-accepted"
	case StateUnregistered:
		return "unregistered"
	case StateRegistered:
		return "registered"
	case StateBearerDown:
		return "bearer-down"
	case StateBearerUp:
		return "bearer-up"
	default:
		return "invalid"
	}
}
