package models

import "time"

// Payout batches a teacher's unpaid earnings for one month into a single
// payment. total_amount always equals the sum of the claimed earnings.
type Payout struct {
	ID              int64        `json:"id"`
	AcademyID       int64        `json:"academy_id"`
	Code            string       `json:"code"`
	TeacherID       int64        `json:"teacher_id"`
	TotalAmount     float64      `json:"total_amount"`
	SessionsCount   int          `json:"sessions_count"`
	PayoutMonth     time.Time    `json:"payout_month"`
	Status          PayoutStatus `json:"status"`
	ApprovedBy      *int64       `json:"approved_by"`
	ApprovedAt      *time.Time   `json:"approved_at"`
	PaidAt          *time.Time   `json:"paid_at"`
	RejectionReason *string      `json:"rejection_reason"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// PayoutDetail is a payout with its constituent earnings.
type PayoutDetail struct {
	Payout
	Earnings []Earning `json:"earnings,omitempty"`
}
