package proof

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to State
		want     bool
	}{
		{StatePending, StateReviewing, true},
		{StatePending, StateAccepted, true},
		{StatePending, StateRejected, true},
		{StatePending, StateExpired, true},
		{StateReviewing, StateAccepted, true},
		{StateReviewing, StateRejected, true},
		{StateReviewing, StateExpired, true},
		{StateReviewing, StatePending, false},
		{StateAccepted, StateRejected, false},
		{StateAccepted, StateAccepted, false},
		{StateRejected, StatePending, false},
		{StateRejected, StateAccepted, false},
		{StateExpired, StateAccepted, false},
		{StateExpired, StateReviewing, false},
		{StatePending, StatePending, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	terminals := map[State]bool{
		StatePending:   false,
		StateReviewing: false,
		StateAccepted:  true,
		StateRejected:  true,
		StateExpired:   true,
	}
	for s, want := range terminals {
		if got := s.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", s, got, want)
		}
	}
}

func TestActiveStates(t *testing.T) {
	// REJECTED and EXPIRED do not block a resubmission; the other three do.
	active := map[State]bool{
		StatePending:   true,
		StateReviewing: true,
		StateAccepted:  true,
		StateRejected:  false,
		StateExpired:   false,
	}
	for s, want := range active {
		if got := s.Active(); got != want {
			t.Errorf("%s.Active() = %v, want %v", s, got, want)
		}
	}
}

func TestStateValid(t *testing.T) {
	for _, s := range []State{StatePending, StateReviewing, StateAccepted, StateRejected, StateExpired} {
		if !s.Valid() {
			t.Errorf("%s.Valid() = false, want true", s)
		}
	}
	for _, s := range []State{"", "pending", "DONE", "ARCHIVED"} {
		if State(s).Valid() {
			t.Errorf("State(%q).Valid() = true, want false", s)
		}
	}
}
