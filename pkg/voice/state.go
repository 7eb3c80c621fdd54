package voice

// State is a position in the interaction state machine.
type State string

const (
	StateIdle       State = "idle"
	StateListening  State = "listening"
	StateProcessing State = "processing"
	StateSpeaking   State = "speaking"
	StateError      State = "error"
)

func (s State) String() string { return string(s) }

// Busy reports whether an interaction is in flight.
func (s State) Busy() bool {
	return s == StateListening || s == StateProcessing || s == StateSpeaking
}

var transitions = map[State][]State{
	StateIdle:       {StateListening, StateProcessing},
	StateListening:  {StateProcessing, StateIdle, StateError},
	StateProcessing: {StateSpeaking, StateIdle, StateError},
	StateSpeaking:   {StateIdle, StateError},
	StateError:      {StateIdle},
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
