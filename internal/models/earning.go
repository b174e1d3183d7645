package models

import "time"

// RateStatus flags earnings created without an applicable teacher rate.
// They keep the session completion from failing but need manual
// resolution before they can be paid out.
type RateStatus string

const (
	RateOK          RateStatus = "ok"
	RatePendingRate RateStatus = "pending_rate"
)

// TeacherRate is a teacher's compensation configuration for one session
// type within an academy. Rate semantics depend on Method: flat amount
// (per_session), amount per student (per_student), amount per hour
// (hourly), or a package amount spanning a whole subscription (fixed).
type TeacherRate struct {
	ID          int64             `json:"id"`
	AcademyID   int64             `json:"academy_id"`
	TeacherID   int64             `json:"teacher_id"`
	SessionType SessionType       `json:"session_type"`
	Method      CalculationMethod `json:"method"`
	Rate        float64           `json:"rate"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Earning is one teacher's compensation for one completed session.
// Exactly one earning exists per completed billable session; the rate
// values in effect at calculation time are snapshotted for audit.
type Earning struct {
	ID                  int64              `json:"id"`
	AcademyID           int64              `json:"academy_id"`
	TeacherID           int64              `json:"teacher_id"`
	SessionID           int64              `json:"session_id"`
	Amount              float64            `json:"amount"`
	CalculationMethod   *CalculationMethod `json:"calculation_method"`
	RateSnapshot        []byte             `json:"rate_snapshot"`
	CalculationMetadata []byte             `json:"calculation_metadata"`
	RateStatus          RateStatus         `json:"rate_status"`
	IsFinalized         bool               `json:"is_finalized"`
	IsDisputed          bool               `json:"is_disputed"`
	DisputeNotes        *string            `json:"dispute_notes"`
	AuditTrail          string             `json:"audit_trail"`
	PayoutID            *int64             `json:"payout_id"`
	EarningMonth        time.Time          `json:"earning_month"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}
