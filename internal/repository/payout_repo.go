package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/models"
)

const payoutColumns = `id, academy_id, code, teacher_id, total_amount, sessions_count, payout_month,
	status, approved_by, approved_at, paid_at, rejection_reason, created_at, updated_at`

type CreatePayoutInput struct {
	AcademyID     int64
	Code          string
	TeacherID     int64
	TotalAmount   float64
	SessionsCount int
	PayoutMonth   time.Time
}

type PayoutRepository struct {
	db DBTX
}

func NewPayoutRepository(db DBTX) *PayoutRepository {
	return &PayoutRepository{db: db}
}

func scanPayout(row pgx.Row) (*models.Payout, error) {
	var payout models.Payout
	err := row.Scan(
		&payout.ID,
		&payout.AcademyID,
		&payout.Code,
		&payout.TeacherID,
		&payout.TotalAmount,
		&payout.SessionsCount,
		&payout.PayoutMonth,
		&payout.Status,
		&payout.ApprovedBy,
		&payout.ApprovedAt,
		&payout.PaidAt,
		&payout.RejectionReason,
		&payout.CreatedAt,
		&payout.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *PayoutRepository) Create(ctx context.Context, input CreatePayoutInput) (*models.Payout, error) {
	query := fmt.Sprintf(`
		INSERT INTO payouts (academy_id, code, teacher_id, total_amount, sessions_count, payout_month, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending')
		RETURNING %s
	`, payoutColumns)

	return scanPayout(r.db.QueryRow(
		ctx,
		query,
		input.AcademyID,
		input.Code,
		input.TeacherID,
		input.TotalAmount,
		input.SessionsCount,
		input.PayoutMonth.UTC(),
	))
}

func (r *PayoutRepository) GetByID(ctx context.Context, academyID, payoutID int64) (*models.Payout, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM payouts
		WHERE academy_id = $1 AND id = $2
	`, payoutColumns)
	return scanPayout(r.db.QueryRow(ctx, query, academyID, payoutID))
}

func (r *PayoutRepository) GetByTeacherAndMonth(
	ctx context.Context,
	academyID, teacherID int64,
	payoutMonth time.Time,
) (*models.Payout, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM payouts
		WHERE academy_id = $1 AND teacher_id = $2 AND payout_month = $3 AND status <> 'rejected'
		ORDER BY id DESC
		LIMIT 1
	`, payoutColumns)
	return scanPayout(r.db.QueryRow(ctx, query, academyID, teacherID, payoutMonth.UTC()))
}

// UpdateTotals rewrites the batch totals after earnings were claimed, so
// the stored totals always reflect the actually-claimed set.
func (r *PayoutRepository) UpdateTotals(ctx context.Context, payoutID int64, totalAmount float64, sessionsCount int) (*models.Payout, error) {
	query := fmt.Sprintf(`
		UPDATE payouts
		SET total_amount = $2, sessions_count = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, payoutColumns)
	return scanPayout(r.db.QueryRow(ctx, query, payoutID, totalAmount, sessionsCount))
}

func (r *PayoutRepository) MarkApproved(ctx context.Context, academyID, payoutID, actorID int64, approvedAt time.Time) (*models.Payout, error) {
	query := fmt.Sprintf(`
		UPDATE payouts
		SET status = 'approved', approved_by = $3, approved_at = $4, updated_at = NOW()
		WHERE academy_id = $1 AND id = $2 AND status = 'pending'
		RETURNING %s
	`, payoutColumns)
	return scanPayout(r.db.QueryRow(ctx, query, academyID, payoutID, actorID, approvedAt.UTC()))
}

func (r *PayoutRepository) MarkRejected(ctx context.Context, academyID, payoutID int64, reason string) (*models.Payout, error) {
	query := fmt.Sprintf(`
		UPDATE payouts
		SET status = 'rejected', rejection_reason = $3, updated_at = NOW()
		WHERE academy_id = $1 AND id = $2 AND status = 'pending'
		RETURNING %s
	`, payoutColumns)
	return scanPayout(r.db.QueryRow(ctx, query, academyID, payoutID, reason))
}

func (r *PayoutRepository) MarkPaid(ctx context.Context, academyID, payoutID int64, paidAt time.Time) (*models.Payout, error) {
	query := fmt.Sprintf(`
		UPDATE payouts
		SET status = 'paid', paid_at = $3, updated_at = NOW()
		WHERE academy_id = $1 AND id = $2 AND status = 'approved'
		RETURNING %s
	`, payoutColumns)
	return scanPayout(r.db.QueryRow(ctx, query, academyID, payoutID, paidAt.UTC()))
}

func (r *PayoutRepository) ListByTeacher(ctx context.Context, academyID, teacherID int64) ([]models.Payout, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM payouts
		WHERE academy_id = $1 AND teacher_id = $2
		ORDER BY payout_month DESC, id DESC
	`, payoutColumns)

	rows, err := r.db.Query(ctx, query, academyID, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payouts := make([]models.Payout, 0)
	for rows.Next() {
		payout, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, *payout)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payouts, nil
}
