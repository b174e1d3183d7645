package models

import "testing"

func TestSessionStatusTransitions(t *testing.T) {
	cases := []struct {
		from    SessionStatus
		to      SessionStatus
		allowed bool
	}{
		{SessionScheduled, SessionOngoing, true},
		{SessionScheduled, SessionCancelled, true},
		{SessionScheduled, SessionCompleted, false},
		{SessionOngoing, SessionCompleted, true},
		{SessionOngoing, SessionCancelled, true},
		{SessionOngoing, SessionScheduled, false},
		{SessionCompleted, SessionCancelled, false},
		{SessionCompleted, SessionOngoing, false},
		{SessionCancelled, SessionOngoing, false},
		{SessionCancelled, SessionCompleted, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestSessionStatusTerminal(t *testing.T) {
	if SessionScheduled.Terminal() || SessionOngoing.Terminal() {
		t.Errorf("scheduled and ongoing must not be terminal")
	}
	if !SessionCompleted.Terminal() || !SessionCancelled.Terminal() {
		t.Errorf("completed and cancelled must be terminal")
	}
}

func TestPayoutStatusTransitions(t *testing.T) {
	cases := []struct {
		from    PayoutStatus
		to      PayoutStatus
		allowed bool
	}{
		{PayoutPending, PayoutApproved, true},
		{PayoutPending, PayoutRejected, true},
		{PayoutPending, PayoutPaid, false},
		{PayoutApproved, PayoutPaid, true},
		{PayoutApproved, PayoutRejected, false},
		{PayoutPaid, PayoutApproved, false},
		{PayoutRejected, PayoutApproved, false},
		{PayoutRejected, PayoutPaid, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestAttendanceStatusValid(t *testing.T) {
	for _, s := range []AttendanceStatus{AttendancePresent, AttendanceLate, AttendancePartial, AttendanceAbsent} {
		if !s.Valid() {
			t.Errorf("expected %s to be valid", s)
		}
	}
	if AttendanceStatus("excused").Valid() {
		t.Errorf("expected unknown status to be invalid")
	}
}

func TestCalculationMethodValid(t *testing.T) {
	for _, m := range []CalculationMethod{MethodPerSession, MethodPerStudent, MethodHourly, MethodFixed} {
		if !m.Valid() {
			t.Errorf("expected %s to be valid", m)
		}
	}
	if CalculationMethod("commission").Valid() {
		t.Errorf("expected unknown method to be invalid")
	}
}
