package event

import "testing"

func TestConfirmationState_IsTerminalByCustomer(t *testing.T) {
	cases := map[ConfirmationState]bool{
		StateDetected:            false,
		StateCaregiverUpdated:    false,
		StateConfirmedByCustomer: true,
		StateRejectedByCustomer:  true,
		StateAutoApproved:        false,
	}
	for state, want := range cases {
		if got := state.IsTerminalByCustomer(); got != want {
			t.Errorf("%s: IsTerminalByCustomer() = %v, want %v", state, got, want)
		}
	}
}

func TestConfirmationState_IsPending(t *testing.T) {
	for _, state := range []ConfirmationState{
		StateDetected, StateConfirmedByCustomer, StateRejectedByCustomer, StateAutoApproved,
	} {
		if state.IsPending() {
			t.Errorf("%s should not be pending", state)
		}
	}
	if !StateCaregiverUpdated.IsPending() {
		t.Error("caregiver_updated should be pending")
	}
}
