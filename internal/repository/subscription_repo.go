package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/models"
)

const subscriptionColumns = `id, academy_id, code, student_id, teacher_id, total_sessions,
	sessions_used, sessions_remaining, status, auto_renew, starts_at, expires_at, created_at, updated_at`

type CreateSubscriptionInput struct {
	AcademyID     int64
	Code          string
	StudentID     int64
	TeacherID     int64
	TotalSessions int
	Status        models.SubscriptionStatus
	AutoRenew     bool
	StartsAt      time.Time
	ExpiresAt     *time.Time
}

type SubscriptionRepository struct {
	db DBTX
}

func NewSubscriptionRepository(db DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func scanSubscription(row pgx.Row) (*models.Subscription, error) {
	var sub models.Subscription
	err := row.Scan(
		&sub.ID,
		&sub.AcademyID,
		&sub.Code,
		&sub.StudentID,
		&sub.TeacherID,
		&sub.TotalSessions,
		&sub.SessionsUsed,
		&sub.SessionsRemaining,
		&sub.Status,
		&sub.AutoRenew,
		&sub.StartsAt,
		&sub.ExpiresAt,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *SubscriptionRepository) Create(ctx context.Context, input CreateSubscriptionInput) (*models.Subscription, error) {
	query := fmt.Sprintf(`
		INSERT INTO subscriptions (academy_id, code, student_id, teacher_id, total_sessions,
			sessions_used, sessions_remaining, status, auto_renew, starts_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, 0, $5, $6, $7, $8, $9)
		RETURNING %s
	`, subscriptionColumns)

	return scanSubscription(r.db.QueryRow(
		ctx,
		query,
		input.AcademyID,
		input.Code,
		input.StudentID,
		input.TeacherID,
		input.TotalSessions,
		input.Status,
		input.AutoRenew,
		input.StartsAt.UTC(),
		input.ExpiresAt,
	))
}

func (r *SubscriptionRepository) GetByID(ctx context.Context, academyID, subscriptionID int64) (*models.Subscription, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM subscriptions
		WHERE academy_id = $1 AND id = $2
	`, subscriptionColumns)
	return scanSubscription(r.db.QueryRow(ctx, query, academyID, subscriptionID))
}

// GetByIDForUpdate locks the subscription row. Quota consumption and
// release must run under this lock so concurrent completions serialize.
func (r *SubscriptionRepository) GetByIDForUpdate(ctx context.Context, academyID, subscriptionID int64) (*models.Subscription, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM subscriptions
		WHERE academy_id = $1 AND id = $2
		FOR UPDATE
	`, subscriptionColumns)
	return scanSubscription(r.db.QueryRow(ctx, query, academyID, subscriptionID))
}

func (r *SubscriptionRepository) UpdateUsage(
	ctx context.Context,
	subscriptionID int64,
	sessionsUsed, sessionsRemaining int,
	status models.SubscriptionStatus,
) (*models.Subscription, error) {
	query := fmt.Sprintf(`
		UPDATE subscriptions
		SET sessions_used = $2, sessions_remaining = $3, status = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, subscriptionColumns)
	return scanSubscription(r.db.QueryRow(ctx, query, subscriptionID, sessionsUsed, sessionsRemaining, status))
}

// UpdateStatus moves the subscription between lifecycle states guarded by
// the expected current state, so a concurrent change surfaces as
// pgx.ErrNoRows instead of a lost update.
func (r *SubscriptionRepository) UpdateStatus(
	ctx context.Context,
	academyID, subscriptionID int64,
	from, to models.SubscriptionStatus,
) (*models.Subscription, error) {
	query := fmt.Sprintf(`
		UPDATE subscriptions
		SET status = $4, updated_at = NOW()
		WHERE academy_id = $1 AND id = $2 AND status = $3
		RETURNING %s
	`, subscriptionColumns)
	return scanSubscription(r.db.QueryRow(ctx, query, academyID, subscriptionID, from, to))
}

// MarkCancelled ends a subscription from any non-terminal state.
func (r *SubscriptionRepository) MarkCancelled(ctx context.Context, academyID, subscriptionID int64) (*models.Subscription, error) {
	query := fmt.Sprintf(`
		UPDATE subscriptions
		SET status = 'cancelled', updated_at = NOW()
		WHERE academy_id = $1 AND id = $2 AND status IN ('pending', 'active', 'paused')
		RETURNING %s
	`, subscriptionColumns)
	return scanSubscription(r.db.QueryRow(ctx, query, academyID, subscriptionID))
}

// ResetCycle starts a fresh auto-renewal cycle: counters return to zero
// and the validity window is re-stamped.
func (r *SubscriptionRepository) ResetCycle(
	ctx context.Context,
	subscriptionID int64,
	startsAt time.Time,
	expiresAt *time.Time,
) (*models.Subscription, error) {
	query := fmt.Sprintf(`
		UPDATE subscriptions
		SET sessions_used = 0, sessions_remaining = total_sessions, status = 'active',
			starts_at = $2, expires_at = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, subscriptionColumns)
	return scanSubscription(r.db.QueryRow(ctx, query, subscriptionID, startsAt.UTC(), expiresAt))
}

func (r *SubscriptionRepository) ListByStudent(ctx context.Context, academyID, studentID int64) ([]models.Subscription, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM subscriptions
		WHERE academy_id = $1 AND student_id = $2
		ORDER BY created_at DESC, id DESC
	`, subscriptionColumns)

	rows, err := r.db.Query(ctx, query, academyID, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs := make([]models.Subscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return subs, nil
}

func (r *SubscriptionRepository) InsertRenewal(
	ctx context.Context,
	subscriptionID int64,
	previousCycle, grantedCycle int,
	renewedAt time.Time,
) (*models.SubscriptionRenewal, error) {
	query := `
		INSERT INTO subscription_renewals (subscription_id, previous_cycle_sessions, granted_cycle_sessions, renewed_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, subscription_id, previous_cycle_sessions, granted_cycle_sessions, renewed_at
	`
	var renewal models.SubscriptionRenewal
	err := r.db.QueryRow(ctx, query, subscriptionID, previousCycle, grantedCycle, renewedAt.UTC()).Scan(
		&renewal.ID,
		&renewal.SubscriptionID,
		&renewal.PreviousCycle,
		&renewal.GrantedCycle,
		&renewal.RenewedAt,
	)
	if err != nil {
		return nil, err
	}
	return &renewal, nil
}
