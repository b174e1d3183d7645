package models

// SessionType distinguishes Quran circle sessions from academic tutoring.
type SessionType string

const (
	SessionTypeQuran    SessionType = "quran"
	SessionTypeAcademic SessionType = "academic"
)

func (t SessionType) Valid() bool {
	return t == SessionTypeQuran || t == SessionTypeAcademic
}

func (t SessionType) Label() string {
	switch t {
	case SessionTypeQuran:
		return "Quran Circle"
	case SessionTypeAcademic:
		return "Academic Tutoring"
	default:
		return string(t)
	}
}

// SessionStatus is the lifecycle state of a scheduled session.
// scheduled -> ongoing -> completed, with cancellation allowed from the
// two non-terminal states. completed and cancelled are terminal.
type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionOngoing   SessionStatus = "ongoing"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionCancelled
}

func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	switch next {
	case SessionOngoing:
		return s == SessionScheduled
	case SessionCompleted:
		return s == SessionOngoing
	case SessionCancelled:
		return s == SessionScheduled || s == SessionOngoing
	default:
		return false
	}
}

func (s SessionStatus) Label() string {
	switch s {
	case SessionScheduled:
		return "Scheduled"
	case SessionOngoing:
		return "Ongoing"
	case SessionCompleted:
		return "Completed"
	case SessionCancelled:
		return "Cancelled"
	default:
		return string(s)
	}
}

// SubscriptionStatus tracks a prepaid session bundle.
type SubscriptionStatus string

const (
	SubscriptionPending   SubscriptionStatus = "pending"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPaused    SubscriptionStatus = "paused"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

func (s SubscriptionStatus) Label() string {
	switch s {
	case SubscriptionPending:
		return "Pending"
	case SubscriptionActive:
		return "Active"
	case SubscriptionPaused:
		return "Paused"
	case SubscriptionExpired:
		return "Expired"
	case SubscriptionCancelled:
		return "Cancelled"
	default:
		return string(s)
	}
}

// AttendanceStatus is derived from join/leave events at session completion.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceLate    AttendanceStatus = "late"
	AttendancePartial AttendanceStatus = "partial"
	AttendanceAbsent  AttendanceStatus = "absent"
)

func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceLate, AttendancePartial, AttendanceAbsent:
		return true
	default:
		return false
	}
}

func (s AttendanceStatus) Label() string {
	switch s {
	case AttendancePresent:
		return "Present"
	case AttendanceLate:
		return "Late"
	case AttendancePartial:
		return "Partial"
	case AttendanceAbsent:
		return "Absent"
	default:
		return string(s)
	}
}

// CalculationMethod names how a teacher earning amount was computed.
type CalculationMethod string

const (
	MethodPerSession CalculationMethod = "per_session"
	MethodPerStudent CalculationMethod = "per_student"
	MethodHourly     CalculationMethod = "hourly"
	MethodFixed      CalculationMethod = "fixed"
)

func (m CalculationMethod) Valid() bool {
	switch m {
	case MethodPerSession, MethodPerStudent, MethodHourly, MethodFixed:
		return true
	default:
		return false
	}
}

// PayoutStatus is the approval workflow state of a payout batch.
// pending -> approved -> paid, or pending -> rejected.
type PayoutStatus string

const (
	PayoutPending  PayoutStatus = "pending"
	PayoutApproved PayoutStatus = "approved"
	PayoutPaid     PayoutStatus = "paid"
	PayoutRejected PayoutStatus = "rejected"
)

func (s PayoutStatus) CanTransitionTo(next PayoutStatus) bool {
	switch next {
	case PayoutApproved, PayoutRejected:
		return s == PayoutPending
	case PayoutPaid:
		return s == PayoutApproved
	default:
		return false
	}
}

func (s PayoutStatus) Label() string {
	switch s {
	case PayoutPending:
		return "Pending Approval"
	case PayoutApproved:
		return "Approved"
	case PayoutPaid:
		return "Paid"
	case PayoutRejected:
		return "Rejected"
	default:
		return string(s)
	}
}
