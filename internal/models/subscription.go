package models

import "time"

// Subscription is a prepaid bundle of sessions for one student with one
// teacher. sessions_used + sessions_remaining == total_sessions always.
type Subscription struct {
	ID                int64              `json:"id"`
	AcademyID         int64              `json:"academy_id"`
	Code              string             `json:"code"`
	StudentID         int64              `json:"student_id"`
	TeacherID         int64              `json:"teacher_id"`
	TotalSessions     int                `json:"total_sessions"`
	SessionsUsed      int                `json:"sessions_used"`
	SessionsRemaining int                `json:"sessions_remaining"`
	Status            SubscriptionStatus `json:"status"`
	AutoRenew         bool               `json:"auto_renew"`
	StartsAt          time.Time          `json:"starts_at"`
	ExpiresAt         *time.Time         `json:"expires_at"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// SubscriptionRenewal records one auto-renewal cycle. Billing for the
// renewal is handled by an external collaborator; this row is the trigger
// it consumes.
type SubscriptionRenewal struct {
	ID             int64     `json:"id"`
	SubscriptionID int64     `json:"subscription_id"`
	PreviousCycle  int       `json:"previous_cycle_sessions"`
	GrantedCycle   int       `json:"granted_cycle_sessions"`
	RenewedAt      time.Time `json:"renewed_at"`
}
