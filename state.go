package toolbridge

// State is the lifecycle stage of a Client.
type State int32

// Client states. NotStarted returns to itself after a failed start; Disposed
// is terminal.
const (
	StateNotStarted State = iota
	StateStarting
	StateReady
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}
