package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/models"
)

const sessionColumns = `id, academy_id, code, teacher_id, student_id, student_count, subscription_id,
	type, status, scheduled_at, duration_minutes, started_at, ended_at, actual_duration_minutes,
	cancellation_reason, cancelled_at, created_at, updated_at`

type CreateSessionInput struct {
	AcademyID       int64
	Code            string
	TeacherID       int64
	StudentID       *int64
	StudentCount    int
	SubscriptionID  *int64
	Type            models.SessionType
	ScheduledAt     time.Time
	DurationMinutes int
}

type SessionListFilter struct {
	AcademyID int64
	TeacherID int64
	StudentID int64
	Status    string
	Timeframe string
	Limit     int
	Offset    int
}

type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var session models.Session
	err := row.Scan(
		&session.ID,
		&session.AcademyID,
		&session.Code,
		&session.TeacherID,
		&session.StudentID,
		&session.StudentCount,
		&session.SubscriptionID,
		&session.Type,
		&session.Status,
		&session.ScheduledAt,
		&session.DurationMinutes,
		&session.StartedAt,
		&session.EndedAt,
		&session.ActualDurationMinutes,
		&session.CancellationReason,
		&session.CancelledAt,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) Create(ctx context.Context, input CreateSessionInput) (*models.Session, error) {
	query := fmt.Sprintf(`
		INSERT INTO sessions (academy_id, code, teacher_id, student_id, student_count, subscription_id,
			type, status, scheduled_at, duration_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'scheduled', $8, $9)
		RETURNING %s
	`, sessionColumns)

	return scanSession(r.db.QueryRow(
		ctx,
		query,
		input.AcademyID,
		input.Code,
		input.TeacherID,
		input.StudentID,
		input.StudentCount,
		input.SubscriptionID,
		input.Type,
		input.ScheduledAt.UTC(),
		input.DurationMinutes,
	))
}

func (r *SessionRepository) GetByID(ctx context.Context, academyID, sessionID int64) (*models.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM sessions
		WHERE academy_id = $1 AND id = $2
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, academyID, sessionID))
}

func (r *SessionRepository) GetByIDForUpdate(ctx context.Context, academyID, sessionID int64) (*models.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM sessions
		WHERE academy_id = $1 AND id = $2
		FOR UPDATE
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, academyID, sessionID))
}

func listWhereClause(filter SessionListFilter) (string, []any) {
	args := []any{filter.AcademyID}
	whereParts := []string{"academy_id = $1"}

	if filter.TeacherID > 0 {
		args = append(args, filter.TeacherID)
		whereParts = append(whereParts, fmt.Sprintf("teacher_id = $%d", len(args)))
	}
	if filter.StudentID > 0 {
		args = append(args, filter.StudentID)
		whereParts = append(whereParts, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		args = append(args, status)
		whereParts = append(whereParts, fmt.Sprintf("status = $%d", len(args)))
	}

	switch strings.TrimSpace(filter.Timeframe) {
	case "upcoming":
		whereParts = append(
			whereParts,
			"(scheduled_at + (duration_minutes * INTERVAL '1 minute')) > NOW()",
		)
	case "past":
		whereParts = append(
			whereParts,
			"(scheduled_at + (duration_minutes * INTERVAL '1 minute')) <= NOW()",
		)
	}

	return strings.Join(whereParts, " AND "), args
}

func (r *SessionRepository) List(ctx context.Context, filter SessionListFilter) ([]models.Session, error) {
	where, args := listWhereClause(filter)

	paging := ""
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		paging = fmt.Sprintf(" LIMIT $%d", len(args))
		if filter.Offset > 0 {
			args = append(args, filter.Offset)
			paging += fmt.Sprintf(" OFFSET $%d", len(args))
		}
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM sessions
		WHERE %s
		ORDER BY scheduled_at ASC, id ASC%s
	`, sessionColumns, where, paging)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

func (r *SessionRepository) Count(ctx context.Context, filter SessionListFilter) (int, error) {
	where, args := listWhereClause(filter)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM sessions WHERE %s`, where)

	var total int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// MarkStarted moves a scheduled session to ongoing. The status guard in the
// WHERE clause makes a concurrent start lose with pgx.ErrNoRows.
func (r *SessionRepository) MarkStarted(ctx context.Context, academyID, sessionID int64, startedAt time.Time) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET status = 'ongoing', started_at = $3, updated_at = NOW()
		WHERE academy_id = $1 AND id = $2 AND status = 'scheduled'
		RETURNING %s
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, academyID, sessionID, startedAt.UTC()))
}

func (r *SessionRepository) MarkCompleted(
	ctx context.Context,
	academyID, sessionID int64,
	endedAt time.Time,
	actualDurationMinutes int,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET status = 'completed', ended_at = $3, actual_duration_minutes = $4, updated_at = NOW()
		WHERE academy_id = $1 AND id = $2 AND status = 'ongoing'
		RETURNING %s
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, academyID, sessionID, endedAt.UTC(), actualDurationMinutes))
}

func (r *SessionRepository) MarkCancelled(
	ctx context.Context,
	academyID, sessionID int64,
	reason string,
	cancelledAt time.Time,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET status = 'cancelled', cancellation_reason = $3, cancelled_at = $4, updated_at = NOW()
		WHERE academy_id = $1 AND id = $2 AND status IN ('scheduled', 'ongoing')
		RETURNING %s
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, academyID, sessionID, reason, cancelledAt.UTC()))
}

func (r *SessionRepository) CountCompletedBySubscription(ctx context.Context, subscriptionID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM sessions
		WHERE subscription_id = $1 AND status = 'completed'
	`
	var count int
	if err := r.db.QueryRow(ctx, query, subscriptionID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
