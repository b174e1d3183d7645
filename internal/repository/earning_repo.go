package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/models"
)

const earningColumns = `id, academy_id, teacher_id, session_id, amount, calculation_method,
	rate_snapshot, calculation_metadata, rate_status, is_finalized, is_disputed, dispute_notes,
	audit_trail, payout_id, earning_month, created_at, updated_at`

type CreateEarningInput struct {
	AcademyID           int64
	TeacherID           int64
	SessionID           int64
	Amount              float64
	CalculationMethod   *models.CalculationMethod
	RateSnapshot        []byte
	CalculationMetadata []byte
	RateStatus          models.RateStatus
	EarningMonth        time.Time
}

type EarningRepository struct {
	db DBTX
}

func NewEarningRepository(db DBTX) *EarningRepository {
	return &EarningRepository{db: db}
}

func scanEarning(row pgx.Row) (*models.Earning, error) {
	var earning models.Earning
	err := row.Scan(
		&earning.ID,
		&earning.AcademyID,
		&earning.TeacherID,
		&earning.SessionID,
		&earning.Amount,
		&earning.CalculationMethod,
		&earning.RateSnapshot,
		&earning.CalculationMetadata,
		&earning.RateStatus,
		&earning.IsFinalized,
		&earning.IsDisputed,
		&earning.DisputeNotes,
		&earning.AuditTrail,
		&earning.PayoutID,
		&earning.EarningMonth,
		&earning.CreatedAt,
		&earning.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &earning, nil
}

// Create inserts the earning for a session. The unique index on session_id
// makes this idempotent: a retried completion finds pgx.ErrNoRows here and
// falls back to GetBySessionID.
func (r *EarningRepository) Create(ctx context.Context, input CreateEarningInput) (*models.Earning, error) {
	query := fmt.Sprintf(`
		INSERT INTO earnings (academy_id, teacher_id, session_id, amount, calculation_method,
			rate_snapshot, calculation_metadata, rate_status, earning_month)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (session_id) DO NOTHING
		RETURNING %s
	`, earningColumns)

	return scanEarning(r.db.QueryRow(
		ctx,
		query,
		input.AcademyID,
		input.TeacherID,
		input.SessionID,
		input.Amount,
		input.CalculationMethod,
		input.RateSnapshot,
		input.CalculationMetadata,
		input.RateStatus,
		input.EarningMonth,
	))
}

func (r *EarningRepository) GetByID(ctx context.Context, academyID, earningID int64) (*models.Earning, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM earnings
		WHERE academy_id = $1 AND id = $2
	`, earningColumns)
	return scanEarning(r.db.QueryRow(ctx, query, academyID, earningID))
}

func (r *EarningRepository) GetBySessionID(ctx context.Context, sessionID int64) (*models.Earning, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM earnings
		WHERE session_id = $1
	`, earningColumns)
	return scanEarning(r.db.QueryRow(ctx, query, sessionID))
}

func (r *EarningRepository) ListByPayout(ctx context.Context, payoutID int64) ([]models.Earning, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM earnings
		WHERE payout_id = $1
		ORDER BY id ASC
	`, earningColumns)
	return r.list(ctx, query, payoutID)
}

// ListPayable returns the teacher's earnings eligible for a payout batch in
// the given month: finalized or still-open but resolved, never disputed,
// never claimed, and not waiting on a missing rate.
func (r *EarningRepository) ListPayable(
	ctx context.Context,
	academyID, teacherID int64,
	monthStart, monthEnd time.Time,
) ([]models.Earning, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM earnings
		WHERE academy_id = $1
		  AND teacher_id = $2
		  AND payout_id IS NULL
		  AND is_disputed = FALSE
		  AND rate_status = 'ok'
		  AND earning_month >= $3
		  AND earning_month < $4
		ORDER BY id ASC
	`, earningColumns)
	return r.list(ctx, query, academyID, teacherID, monthStart.UTC(), monthEnd.UTC())
}

// ClaimForPayout assigns payout_id to each candidate earning, re-checking
// payout_id IS NULL at write time so two concurrent payout runs can never
// claim the same earning. Returns the rows actually claimed.
func (r *EarningRepository) ClaimForPayout(ctx context.Context, payoutID int64, earningIDs []int64) ([]models.Earning, error) {
	if len(earningIDs) == 0 {
		return []models.Earning{}, nil
	}
	query := fmt.Sprintf(`
		UPDATE earnings
		SET payout_id = $1, updated_at = NOW()
		WHERE id = ANY($2) AND payout_id IS NULL
		RETURNING %s
	`, earningColumns)
	return r.list(ctx, query, payoutID, earningIDs)
}

// ReleaseFromPayout clears payout_id for a rejected batch so the earnings
// can be claimed again later.
func (r *EarningRepository) ReleaseFromPayout(ctx context.Context, payoutID int64) error {
	query := `
		UPDATE earnings
		SET payout_id = NULL, updated_at = NOW()
		WHERE payout_id = $1
	`
	_, err := r.db.Exec(ctx, query, payoutID)
	return err
}

func (r *EarningRepository) FinalizeByPayout(ctx context.Context, payoutID int64) error {
	query := `
		UPDATE earnings
		SET is_finalized = TRUE, updated_at = NOW()
		WHERE payout_id = $1
	`
	_, err := r.db.Exec(ctx, query, payoutID)
	return err
}

// MarkDisputed flags an unclaimed earning. The payout_id IS NULL guard
// enforces that paid-out earnings can no longer be disputed.
func (r *EarningRepository) MarkDisputed(ctx context.Context, academyID, earningID int64, notes string) (*models.Earning, error) {
	query := fmt.Sprintf(`
		UPDATE earnings
		SET is_disputed = TRUE, dispute_notes = $3, updated_at = NOW()
		WHERE academy_id = $1 AND id = $2 AND payout_id IS NULL
		RETURNING %s
	`, earningColumns)
	return scanEarning(r.db.QueryRow(ctx, query, academyID, earningID, notes))
}

func (r *EarningRepository) ResolveDispute(
	ctx context.Context,
	academyID, earningID int64,
	auditTrail string,
) (*models.Earning, error) {
	query := fmt.Sprintf(`
		UPDATE earnings
		SET is_disputed = FALSE, is_finalized = TRUE, audit_trail = $3, updated_at = NOW()
		WHERE academy_id = $1 AND id = $2 AND is_disputed = TRUE
		RETURNING %s
	`, earningColumns)
	return scanEarning(r.db.QueryRow(ctx, query, academyID, earningID, auditTrail))
}

// ResolvePendingRate fills in the amount for an earning created without a
// configured rate, once an operator has set one up.
func (r *EarningRepository) ResolvePendingRate(
	ctx context.Context,
	academyID, earningID int64,
	amount float64,
	method models.CalculationMethod,
	rateSnapshot []byte,
) (*models.Earning, error) {
	query := fmt.Sprintf(`
		UPDATE earnings
		SET amount = $3, calculation_method = $4, rate_snapshot = $5, rate_status = 'ok', updated_at = NOW()
		WHERE academy_id = $1 AND id = $2 AND rate_status = 'pending_rate'
		RETURNING %s
	`, earningColumns)
	return scanEarning(r.db.QueryRow(ctx, query, academyID, earningID, amount, method, rateSnapshot))
}

func (r *EarningRepository) list(ctx context.Context, query string, args ...any) ([]models.Earning, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	earnings := make([]models.Earning, 0)
	for rows.Next() {
		earning, err := scanEarning(rows)
		if err != nil {
			return nil, err
		}
		earnings = append(earnings, *earning)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return earnings, nil
}
