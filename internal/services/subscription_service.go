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

// SubscriptionService tracks session entitlements per subscription.
// Consume and Release always run under a row lock taken by the caller's
// transaction, so concurrent completions against the same subscription
// serialize instead of losing updates.
type SubscriptionService struct {
	db               *pgxpool.Pool
	subscriptionRepo *repository.SubscriptionRepository
}

func NewSubscriptionService(db *pgxpool.Pool, subscriptionRepo *repository.SubscriptionRepository) *SubscriptionService {
	return &SubscriptionService{db: db, subscriptionRepo: subscriptionRepo}
}

type CreateSubscriptionInput struct {
	StudentID     int64
	TeacherID     int64
	TotalSessions int
	AutoRenew     bool
	StartsAt      time.Time
	ExpiresAt     *time.Time
}

func (s *SubscriptionService) Create(ctx context.Context, academyID int64, input CreateSubscriptionInput) (*models.Subscription, error) {
	if input.StudentID <= 0 || input.TeacherID <= 0 || input.TotalSessions <= 0 {
		return nil, ErrInvalidInput
	}
	if input.ExpiresAt != nil && !input.ExpiresAt.After(input.StartsAt) {
		return nil, ErrInvalidInput
	}

	// Bundles sold ahead of their first cycle stay pending until the
	// start date passes.
	status := models.SubscriptionActive
	if input.StartsAt.After(time.Now()) {
		status = models.SubscriptionPending
	}

	return s.subscriptionRepo.Create(ctx, repository.CreateSubscriptionInput{
		AcademyID:     academyID,
		Code:          utils.NewCode("SUB", academyID),
		StudentID:     input.StudentID,
		TeacherID:     input.TeacherID,
		TotalSessions: input.TotalSessions,
		Status:        status,
		AutoRenew:     input.AutoRenew,
		StartsAt:      input.StartsAt,
		ExpiresAt:     input.ExpiresAt,
	})
}

func (s *SubscriptionService) Get(ctx context.Context, academyID, subscriptionID int64) (*models.Subscription, error) {
	return s.subscriptionRepo.GetByID(ctx, academyID, subscriptionID)
}

func (s *SubscriptionService) ListByStudent(ctx context.Context, academyID, studentID int64) ([]models.Subscription, error) {
	return s.subscriptionRepo.ListByStudent(ctx, academyID, studentID)
}

// ConsumeInTx decrements the remaining quota by count inside the caller's
// transaction. Paused and cancelled subscriptions reject consumption, as
// does a pending one whose start date has not passed. When the bundle is
// used up the subscription expires, unless auto-renewal is on, in which
// case a fresh cycle starts (counters reset, window re-stamped) and a
// renewal record is written for the billing collaborator.
func (s *SubscriptionService) ConsumeInTx(
	ctx context.Context,
	db repository.DBTX,
	academyID, subscriptionID int64,
	count int,
) (*models.Subscription, error) {
	if count <= 0 {
		return nil, ErrInvalidInput
	}

	txRepo := repository.NewSubscriptionRepository(db)

	sub, err := txRepo.GetByIDForUpdate(ctx, academyID, subscriptionID)
	if err != nil {
		return nil, err
	}

	switch sub.Status {
	case models.SubscriptionPaused, models.SubscriptionCancelled:
		return nil, ErrSubscriptionInactive
	case models.SubscriptionPending:
		if sub.StartsAt.After(time.Now()) {
			return nil, ErrSubscriptionInactive
		}
	}

	if sub.SessionsUsed+count > sub.TotalSessions {
		return nil, ErrQuotaExceeded
	}

	used := sub.SessionsUsed + count
	remaining := sub.TotalSessions - used
	status := sub.Status
	if status == models.SubscriptionPending {
		status = models.SubscriptionActive
	}

	if remaining == 0 {
		if sub.AutoRenew {
			now := time.Now()
			if _, err := txRepo.InsertRenewal(ctx, sub.ID, sub.TotalSessions, sub.TotalSessions, now); err != nil {
				return nil, err
			}
			var expiresAt *time.Time
			if sub.ExpiresAt != nil {
				next := now.Add(sub.ExpiresAt.Sub(sub.StartsAt))
				expiresAt = &next
			}
			return txRepo.ResetCycle(ctx, sub.ID, now, expiresAt)
		}
		status = models.SubscriptionExpired
	}

	return txRepo.UpdateUsage(ctx, sub.ID, used, remaining, status)
}

// ReleaseInTx reverses a consume, clamping sessions_used at zero. A
// subscription that regains quota comes back from expired to active.
func (s *SubscriptionService) ReleaseInTx(
	ctx context.Context,
	db repository.DBTX,
	academyID, subscriptionID int64,
	count int,
) (*models.Subscription, error) {
	if count <= 0 {
		return nil, ErrInvalidInput
	}

	txRepo := repository.NewSubscriptionRepository(db)

	sub, err := txRepo.GetByIDForUpdate(ctx, academyID, subscriptionID)
	if err != nil {
		return nil, err
	}

	used := sub.SessionsUsed - count
	if used < 0 {
		used = 0
	}
	remaining := sub.TotalSessions - used

	status := sub.Status
	if status == models.SubscriptionExpired && remaining > 0 {
		status = models.SubscriptionActive
	}

	return txRepo.UpdateUsage(ctx, sub.ID, used, remaining, status)
}

// Pause suspends an active subscription so sessions cannot consume its
// quota until it is resumed.
func (s *SubscriptionService) Pause(ctx context.Context, academyID, subscriptionID int64) (*models.Subscription, error) {
	sub, err := s.subscriptionRepo.UpdateStatus(ctx, academyID, subscriptionID,
		models.SubscriptionActive, models.SubscriptionPaused)
	if err != nil {
		return nil, s.statusError(ctx, academyID, subscriptionID, err)
	}
	return sub, nil
}

// Resume reactivates a paused subscription.
func (s *SubscriptionService) Resume(ctx context.Context, academyID, subscriptionID int64) (*models.Subscription, error) {
	sub, err := s.subscriptionRepo.UpdateStatus(ctx, academyID, subscriptionID,
		models.SubscriptionPaused, models.SubscriptionActive)
	if err != nil {
		return nil, s.statusError(ctx, academyID, subscriptionID, err)
	}
	return sub, nil
}

// Cancel ends a subscription for good. Unused quota stays on the record
// for any refund handling outside this system.
func (s *SubscriptionService) Cancel(ctx context.Context, academyID, subscriptionID int64) (*models.Subscription, error) {
	sub, err := s.subscriptionRepo.MarkCancelled(ctx, academyID, subscriptionID)
	if err != nil {
		return nil, s.statusError(ctx, academyID, subscriptionID, err)
	}
	return sub, nil
}

// statusError distinguishes a missing subscription from one in the wrong
// state for the requested transition.
func (s *SubscriptionService) statusError(ctx context.Context, academyID, subscriptionID int64, err error) error {
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	if _, getErr := s.subscriptionRepo.GetByID(ctx, academyID, subscriptionID); getErr != nil {
		return getErr
	}
	return ErrInvalidSubscriptionTransition
}

// Release is the pool-backed variant for standalone corrections from the
// admin layer.
func (s *SubscriptionService) Release(ctx context.Context, academyID, subscriptionID int64, count int) (*models.Subscription, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	sub, err := s.ReleaseInTx(ctx, tx, academyID, subscriptionID, count)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return sub, nil
}
