package session

import "fmt"

// State is the orchestrator's position in the session lifecycle.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateDecoding
	StateScored
	StateReported
)

func (s State) String() string {
	switch s {
	case StateRecording:
		return "recording"
	case StateDecoding:
		return "decoding"
	case StateScored:
		return "scored"
	case StateReported:
		return "reported"
	default:
		return "idle"
	}
}

// MarshalText makes State stable in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StateError reports an invalid transition request. Non-fatal: the
// request is ignored and no state is mutated.
type StateError struct {
	State   State
	Command string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Command, e.State)
}
