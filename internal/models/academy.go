package models

import "time"

// Academy is the tenant root. Every other entity belongs to exactly one
// academy and all queries are scoped by academy id.
type Academy struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Subdomain string    `json:"subdomain"`
	Status    string    `json:"status"`
	Timezone  string    `json:"timezone"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AttendanceSettings are the per-academy thresholds used when deriving
// attendance status at session completion.
type AttendanceSettings struct {
	AcademyID                int64   `json:"academy_id"`
	LateToleranceMinutes     int     `json:"late_tolerance_minutes"`
	MinimumAttendanceMinutes int     `json:"minimum_attendance_minutes"`
	PresentThresholdPercent  float64 `json:"present_threshold_percent"`
}

type User struct {
	ID           int64     `json:"id"`
	AcademyID    int64     `json:"academy_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type PaginationMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}
