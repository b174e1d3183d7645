package models

import "time"

// AttendanceEventType is a raw join or leave signal from the meeting
// platform.
type AttendanceEventType string

const (
	EventJoin  AttendanceEventType = "join"
	EventLeave AttendanceEventType = "leave"
)

// AttendanceEvent is one append-only join/leave signal for a user in a
// session, as delivered by the meeting-platform webhook feed.
type AttendanceEvent struct {
	ID         int64               `json:"id"`
	SessionID  int64               `json:"session_id"`
	UserID     int64               `json:"user_id"`
	EventType  AttendanceEventType `json:"event_type"`
	OccurredAt time.Time           `json:"occurred_at"`
	CreatedAt  time.Time           `json:"created_at"`
}

// AttendanceRecord is the per-user, per-session aggregate. It is updated
// incrementally while events arrive and finalized once at session
// completion, unless a manual override froze it first.
type AttendanceRecord struct {
	ID                   int64             `json:"id"`
	AcademyID            int64             `json:"academy_id"`
	SessionID            int64             `json:"session_id"`
	UserID               int64             `json:"user_id"`
	UserType             string            `json:"user_type"`
	FirstJoinTime        *time.Time        `json:"first_join_time"`
	LastLeaveTime        *time.Time        `json:"last_leave_time"`
	TotalDurationMinutes int               `json:"total_duration_minutes"`
	JoinCount            int               `json:"join_count"`
	LeaveCount           int               `json:"leave_count"`
	AttendanceStatus     *AttendanceStatus `json:"attendance_status"`
	AttendancePercentage *float64          `json:"attendance_percentage"`
	IsCalculated         bool              `json:"is_calculated"`
	ManuallyOverridden   bool              `json:"manually_overridden"`
	OverrideReason       *string           `json:"override_reason"`
	OverriddenBy         *int64            `json:"overridden_by"`
	OverriddenAt         *time.Time        `json:"overridden_at"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}
