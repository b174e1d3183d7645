package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/models"
)

const attendanceColumns = `id, academy_id, session_id, user_id, user_type, first_join_time, last_leave_time,
	total_duration_minutes, join_count, leave_count, attendance_status, attendance_percentage,
	is_calculated, manually_overridden, override_reason, overridden_by, overridden_at, created_at, updated_at`

type AttendanceRepository struct {
	db DBTX
}

func NewAttendanceRepository(db DBTX) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

func scanAttendanceRecord(row pgx.Row) (*models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	err := row.Scan(
		&record.ID,
		&record.AcademyID,
		&record.SessionID,
		&record.UserID,
		&record.UserType,
		&record.FirstJoinTime,
		&record.LastLeaveTime,
		&record.TotalDurationMinutes,
		&record.JoinCount,
		&record.LeaveCount,
		&record.AttendanceStatus,
		&record.AttendancePercentage,
		&record.IsCalculated,
		&record.ManuallyOverridden,
		&record.OverrideReason,
		&record.OverriddenBy,
		&record.OverriddenAt,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *AttendanceRepository) InsertEvent(
	ctx context.Context,
	sessionID, userID int64,
	eventType models.AttendanceEventType,
	occurredAt time.Time,
) (*models.AttendanceEvent, error) {
	query := `
		INSERT INTO attendance_events (session_id, user_id, event_type, occurred_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, session_id, user_id, event_type, occurred_at, created_at
	`
	var event models.AttendanceEvent
	err := r.db.QueryRow(ctx, query, sessionID, userID, eventType, occurredAt.UTC()).Scan(
		&event.ID,
		&event.SessionID,
		&event.UserID,
		&event.EventType,
		&event.OccurredAt,
		&event.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *AttendanceRepository) ListEventsBySession(ctx context.Context, sessionID int64) ([]models.AttendanceEvent, error) {
	query := `
		SELECT id, session_id, user_id, event_type, occurred_at, created_at
		FROM attendance_events
		WHERE session_id = $1
		ORDER BY occurred_at ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]models.AttendanceEvent, 0)
	for rows.Next() {
		var event models.AttendanceEvent
		if err := rows.Scan(
			&event.ID,
			&event.SessionID,
			&event.UserID,
			&event.EventType,
			&event.OccurredAt,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

// RecordJoin upserts the per-user aggregate for a join event.
// first_join_time is only set once; join_count always increments.
func (r *AttendanceRepository) RecordJoin(
	ctx context.Context,
	academyID, sessionID, userID int64,
	userType string,
	occurredAt time.Time,
) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf(`
		INSERT INTO attendance_records (academy_id, session_id, user_id, user_type, first_join_time, join_count)
		VALUES ($1, $2, $3, $4, $5, 1)
		ON CONFLICT (session_id, user_id) DO UPDATE
		SET first_join_time = COALESCE(attendance_records.first_join_time, EXCLUDED.first_join_time),
		    join_count = attendance_records.join_count + 1,
		    updated_at = NOW()
		RETURNING %s
	`, attendanceColumns)
	return scanAttendanceRecord(r.db.QueryRow(ctx, query, academyID, sessionID, userID, userType, occurredAt.UTC()))
}

// RecordLeave updates the aggregate for a leave event. last_leave_time
// always tracks the latest leave seen.
func (r *AttendanceRepository) RecordLeave(
	ctx context.Context,
	sessionID, userID int64,
	occurredAt time.Time,
) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf(`
		UPDATE attendance_records
		SET last_leave_time = GREATEST(COALESCE(last_leave_time, $3), $3),
		    leave_count = leave_count + 1,
		    updated_at = NOW()
		WHERE session_id = $1 AND user_id = $2
		RETURNING %s
	`, attendanceColumns)
	return scanAttendanceRecord(r.db.QueryRow(ctx, query, sessionID, userID, occurredAt.UTC()))
}

func (r *AttendanceRepository) GetBySessionAndUser(ctx context.Context, sessionID, userID int64) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM attendance_records
		WHERE session_id = $1 AND user_id = $2
	`, attendanceColumns)
	return scanAttendanceRecord(r.db.QueryRow(ctx, query, sessionID, userID))
}

func (r *AttendanceRepository) ListBySession(ctx context.Context, sessionID int64) ([]models.AttendanceRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM attendance_records
		WHERE session_id = $1
		ORDER BY user_id ASC
	`, attendanceColumns)

	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]models.AttendanceRecord, 0)
	for rows.Next() {
		record, err := scanAttendanceRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// SaveFinal writes the computed result of finalization. Overridden rows
// are excluded by the WHERE guard so a manual decision is never clobbered.
func (r *AttendanceRepository) SaveFinal(
	ctx context.Context,
	recordID int64,
	totalDurationMinutes int,
	status models.AttendanceStatus,
	percentage float64,
) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf(`
		UPDATE attendance_records
		SET total_duration_minutes = $2,
		    attendance_status = $3,
		    attendance_percentage = $4,
		    is_calculated = TRUE,
		    updated_at = NOW()
		WHERE id = $1 AND manually_overridden = FALSE
		RETURNING %s
	`, attendanceColumns)
	return scanAttendanceRecord(r.db.QueryRow(ctx, query, recordID, totalDurationMinutes, status, percentage))
}

func (r *AttendanceRepository) SetOverride(
	ctx context.Context,
	sessionID, userID int64,
	status models.AttendanceStatus,
	reason string,
	actorID int64,
	overriddenAt time.Time,
) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf(`
		UPDATE attendance_records
		SET attendance_status = $3,
		    manually_overridden = TRUE,
		    override_reason = $4,
		    overridden_by = $5,
		    overridden_at = $6,
		    updated_at = NOW()
		WHERE session_id = $1 AND user_id = $2
		RETURNING %s
	`, attendanceColumns)
	return scanAttendanceRecord(r.db.QueryRow(ctx, query, sessionID, userID, status, reason, actorID, overriddenAt.UTC()))
}

func (r *AttendanceRepository) ClearOverride(ctx context.Context, sessionID, userID int64) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf(`
		UPDATE attendance_records
		SET manually_overridden = FALSE,
		    override_reason = NULL,
		    overridden_by = NULL,
		    overridden_at = NULL,
		    is_calculated = FALSE,
		    updated_at = NOW()
		WHERE session_id = $1 AND user_id = $2
		RETURNING %s
	`, attendanceColumns)
	return scanAttendanceRecord(r.db.QueryRow(ctx, query, sessionID, userID))
}

// EnsureRecord creates an empty aggregate for a participant when a session
// starts, so finalization can mark never-joined users absent.
func (r *AttendanceRepository) EnsureRecord(
	ctx context.Context,
	academyID, sessionID, userID int64,
	userType string,
) error {
	query := `
		INSERT INTO attendance_records (academy_id, session_id, user_id, user_type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, user_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, academyID, sessionID, userID, userType)
	return err
}
