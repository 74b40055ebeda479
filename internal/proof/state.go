package proof

// State is the lifecycle state of a proof submission. The zero value is
// not a valid state; submissions are created directly in StatePending.
type State string

const (
	StatePending   State = "PENDING"
	StateReviewing State = "REVIEWING"
	StateAccepted  State = "ACCEPTED"
	StateRejected  State = "REJECTED"
	StateExpired   State = "EXPIRED"
)

// transitions is the full set of legal state moves. Anything not listed
// here is refused by the engine before any write happens.
var transitions = map[State][]State{
	StatePending:   {StateReviewing, StateAccepted, StateRejected, StateExpired},
	StateReviewing: {StateAccepted, StateRejected, StateExpired},
	StateAccepted:  {},
	StateRejected:  {},
	StateExpired:   {},
}

// Valid reports whether s is one of the five known states.
func (s State) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether s has no outgoing transitions.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

// Active reports whether a submission in state s blocks a new submission
// for the same task. REJECTED and EXPIRED rows stay in history but do
// not block resubmission.
func (s State) Active() bool {
	switch s {
	case StatePending, StateReviewing, StateAccepted:
		return true
	default:
		return false
	}
}

// CanTransition is a pure membership test against the transition table.
func CanTransition(from, to State) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}
