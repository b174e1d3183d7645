package models

import "time"

// Session is one scheduled teaching meeting, Quran or academic,
// individual (student_id set) or group (student_count > 1).
type Session struct {
	ID                    int64         `json:"id"`
	AcademyID             int64         `json:"academy_id"`
	Code                  string        `json:"code"`
	TeacherID             int64         `json:"teacher_id"`
	StudentID             *int64        `json:"student_id"`
	StudentCount          int           `json:"student_count"`
	SubscriptionID        *int64        `json:"subscription_id"`
	Type                  SessionType   `json:"type"`
	Status                SessionStatus `json:"status"`
	ScheduledAt           time.Time     `json:"scheduled_at"`
	DurationMinutes       int           `json:"duration_minutes"`
	StartedAt             *time.Time    `json:"started_at"`
	EndedAt               *time.Time    `json:"ended_at"`
	ActualDurationMinutes *int          `json:"actual_duration_minutes"`
	CancellationReason    *string       `json:"cancellation_reason"`
	CancelledAt           *time.Time    `json:"cancelled_at"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
}

// SessionDetail bundles a session with the records produced by its
// completion, for the admin layer's detail views.
type SessionDetail struct {
	Session
	Earning    *Earning           `json:"earning,omitempty"`
	Attendance []AttendanceRecord `json:"attendance,omitempty"`
}
