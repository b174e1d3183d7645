package services

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/models"
	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/repository"
	"github.com/abdelrahman-hamdy/itqan-platform-sub013/pkg/utils"
)

// PayoutService batches a teacher's unpaid earnings into monthly payouts
// and drives the pending -> approved -> paid workflow.
type PayoutService struct {
	db          *pgxpool.Pool
	payoutRepo  *repository.PayoutRepository
	earningRepo *repository.EarningRepository
}

func NewPayoutService(
	db *pgxpool.Pool,
	payoutRepo *repository.PayoutRepository,
	earningRepo *repository.EarningRepository,
) *PayoutService {
	return &PayoutService{db: db, payoutRepo: payoutRepo, earningRepo: earningRepo}
}

// CreatePayout claims every payable earning of the teacher in the given
// month into one new payout. At most one non-rejected payout exists per
// teacher per month; a repeat run for the same period reports
// ErrPayoutExists. The claim re-checks payout_id IS NULL at write time,
// so two concurrent runs split the earnings disjointly; the run that
// ends up with nothing reports ErrNothingToPayout.
func (s *PayoutService) CreatePayout(ctx context.Context, academyID, teacherID int64, period time.Time) (*models.PayoutDetail, error) {
	monthStart := time.Date(period.UTC().Year(), period.UTC().Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txPayoutRepo := repository.NewPayoutRepository(tx)
	txEarningRepo := repository.NewEarningRepository(tx)

	if _, err := txPayoutRepo.GetByTeacherAndMonth(ctx, academyID, teacherID, monthStart); err == nil {
		return nil, ErrPayoutExists
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	candidates, err := txEarningRepo.ListPayable(ctx, academyID, teacherID, monthStart, monthEnd)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNothingToPayout
	}

	payout, err := txPayoutRepo.Create(ctx, repository.CreatePayoutInput{
		AcademyID:   academyID,
		Code:        utils.NewCode("PAY", academyID),
		TeacherID:   teacherID,
		PayoutMonth: monthStart,
	})
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(candidates))
	for _, earning := range candidates {
		ids = append(ids, earning.ID)
	}

	claimed, err := txEarningRepo.ClaimForPayout(ctx, payout.ID, ids)
	if err != nil {
		return nil, err
	}
	if len(claimed) == 0 {
		// A concurrent run claimed every candidate between our read and
		// our write.
		return nil, ErrNothingToPayout
	}

	total := 0.0
	for _, earning := range claimed {
		total += earning.Amount
	}

	payout, err = txPayoutRepo.UpdateTotals(ctx, payout.ID, total, len(claimed))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &models.PayoutDetail{Payout: *payout, Earnings: claimed}, nil
}

func (s *PayoutService) Get(ctx context.Context, academyID, payoutID int64) (*models.PayoutDetail, error) {
	payout, err := s.payoutRepo.GetByID(ctx, academyID, payoutID)
	if err != nil {
		return nil, err
	}
	earnings, err := s.earningRepo.ListByPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	return &models.PayoutDetail{Payout: *payout, Earnings: earnings}, nil
}

func (s *PayoutService) ListByTeacher(ctx context.Context, academyID, teacherID int64) ([]models.Payout, error) {
	return s.payoutRepo.ListByTeacher(ctx, academyID, teacherID)
}

// Approve moves a pending payout to approved.
func (s *PayoutService) Approve(ctx context.Context, academyID, payoutID, actorID int64) (*models.Payout, error) {
	payout, err := s.payoutRepo.MarkApproved(ctx, academyID, payoutID, actorID, time.Now())
	if err != nil {
		return nil, s.transitionError(ctx, academyID, payoutID, err)
	}
	return payout, nil
}

// Reject rejects a pending payout and releases its earnings so a later
// batch can pick them up again.
func (s *PayoutService) Reject(ctx context.Context, academyID, payoutID int64, reason string) (*models.Payout, error) {
	if reason == "" {
		return nil, ErrInvalidInput
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txPayoutRepo := repository.NewPayoutRepository(tx)
	txEarningRepo := repository.NewEarningRepository(tx)

	payout, err := txPayoutRepo.MarkRejected(ctx, academyID, payoutID, reason)
	if err != nil {
		return nil, s.transitionError(ctx, academyID, payoutID, err)
	}

	if err := txEarningRepo.ReleaseFromPayout(ctx, payoutID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return payout, nil
}

// MarkPaid finishes an approved payout and finalizes every constituent
// earning, making the batch immutable.
func (s *PayoutService) MarkPaid(ctx context.Context, academyID, payoutID int64) (*models.Payout, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txPayoutRepo := repository.NewPayoutRepository(tx)
	txEarningRepo := repository.NewEarningRepository(tx)

	payout, err := txPayoutRepo.MarkPaid(ctx, academyID, payoutID, time.Now())
	if err != nil {
		return nil, s.transitionError(ctx, academyID, payoutID, err)
	}

	if err := txEarningRepo.FinalizeByPayout(ctx, payoutID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return payout, nil
}

// transitionError distinguishes a payout that does not exist from one that
// is in the wrong state for the requested transition.
func (s *PayoutService) transitionError(ctx context.Context, academyID, payoutID int64, err error) error {
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	if _, getErr := s.payoutRepo.GetByID(ctx, academyID, payoutID); getErr != nil {
		return getErr
	}
	return ErrInvalidPayoutTransition
}
