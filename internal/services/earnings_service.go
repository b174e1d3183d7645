package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/models"
	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/repository"
)

// Audit trail notes are capped so repeated dispute cycles cannot grow the
// row without bound.
const maxAuditTrailLen = 2000

// EarningsService computes a teacher's compensation for completed
// sessions from rate snapshots and manages the dispute workflow.
type EarningsService struct {
	db          *pgxpool.Pool
	earningRepo *repository.EarningRepository
	rateRepo    *repository.RateRepository
	sessionRepo *repository.SessionRepository
}

func NewEarningsService(
	db *pgxpool.Pool,
	earningRepo *repository.EarningRepository,
	rateRepo *repository.RateRepository,
	sessionRepo *repository.SessionRepository,
) *EarningsService {
	return &EarningsService{
		db:          db,
		earningRepo: earningRepo,
		rateRepo:    rateRepo,
		sessionRepo: sessionRepo,
	}
}

type rateSnapshot struct {
	Method models.CalculationMethod `json:"method"`
	Rate   float64                  `json:"rate"`
}

type calculationMetadata struct {
	SessionType       models.SessionType `json:"session_type"`
	DurationMinutes   int                `json:"duration_minutes"`
	StudentCount      int                `json:"student_count"`
	CompletedSessions int                `json:"completed_sessions,omitempty"`
	TotalSessions     int                `json:"total_sessions,omitempty"`
}

// RecordEarningInTx creates the earning for a freshly completed session
// inside the completion transaction. A missing rate does not block the
// completion: a zero-amount earning flagged pending_rate is written and
// ErrNoRateConfigured is returned alongside it for the caller to surface.
// Creation is idempotent per session.
func (s *EarningsService) RecordEarningInTx(
	ctx context.Context,
	db repository.DBTX,
	session *models.Session,
) (*models.Earning, error) {
	txEarningRepo := repository.NewEarningRepository(db)
	txRateRepo := repository.NewRateRepository(db)
	txSessionRepo := repository.NewSessionRepository(db)

	earningMonth := monthOf(session.ScheduledAt)

	rate, err := txRateRepo.GetForTeacher(ctx, session.AcademyID, session.TeacherID, session.Type)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		earning, err := s.createOrGet(ctx, txEarningRepo, repository.CreateEarningInput{
			AcademyID:    session.AcademyID,
			TeacherID:    session.TeacherID,
			SessionID:    session.ID,
			Amount:       0,
			RateStatus:   models.RatePendingRate,
			EarningMonth: earningMonth,
		})
		if err != nil {
			return nil, err
		}
		return earning, ErrNoRateConfigured
	}

	completed, total := 0, 0
	if rate.Method == models.MethodFixed && session.SubscriptionID != nil {
		completed, err = txSessionRepo.CountCompletedBySubscription(ctx, *session.SubscriptionID)
		if err != nil {
			return nil, err
		}
		sub, err := repository.NewSubscriptionRepository(db).GetByID(ctx, session.AcademyID, *session.SubscriptionID)
		if err != nil {
			return nil, err
		}
		total = sub.TotalSessions
	}

	amount, err := computeAmount(rate, session, total)
	if err != nil {
		return nil, err
	}

	snapshot, err := json.Marshal(rateSnapshot{Method: rate.Method, Rate: rate.Rate})
	if err != nil {
		return nil, err
	}
	metadata, err := json.Marshal(calculationMetadata{
		SessionType:       session.Type,
		DurationMinutes:   session.DurationMinutes,
		StudentCount:      session.StudentCount,
		CompletedSessions: completed,
		TotalSessions:     total,
	})
	if err != nil {
		return nil, err
	}

	method := rate.Method
	return s.createOrGet(ctx, txEarningRepo, repository.CreateEarningInput{
		AcademyID:           session.AcademyID,
		TeacherID:           session.TeacherID,
		SessionID:           session.ID,
		Amount:              amount,
		CalculationMethod:   &method,
		RateSnapshot:        snapshot,
		CalculationMetadata: metadata,
		RateStatus:          models.RateOK,
		EarningMonth:        earningMonth,
	})
}

func (s *EarningsService) createOrGet(
	ctx context.Context,
	repo *repository.EarningRepository,
	input repository.CreateEarningInput,
) (*models.Earning, error) {
	earning, err := repo.Create(ctx, input)
	if err == nil {
		return earning, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	// Conflict on session_id: a prior completion attempt already recorded
	// this earning.
	return repo.GetBySessionID(ctx, input.SessionID)
}

// computeAmount applies the rate's calculation method to the session.
// Fixed package amounts are pro-rated per session across the linked
// subscription's total.
func computeAmount(rate *models.TeacherRate, session *models.Session, totalSubscriptionSessions int) (float64, error) {
	switch rate.Method {
	case models.MethodPerSession:
		return rate.Rate, nil
	case models.MethodPerStudent:
		students := session.StudentCount
		if students < 1 {
			students = 1
		}
		return rate.Rate * float64(students), nil
	case models.MethodHourly:
		return rate.Rate * float64(session.DurationMinutes) / 60, nil
	case models.MethodFixed:
		if totalSubscriptionSessions > 0 {
			return rate.Rate / float64(totalSubscriptionSessions), nil
		}
		return rate.Rate, nil
	default:
		return 0, fmt.Errorf("unknown calculation method %q", rate.Method)
	}
}

func (s *EarningsService) Get(ctx context.Context, academyID, earningID int64) (*models.Earning, error) {
	return s.earningRepo.GetByID(ctx, academyID, earningID)
}

// Dispute flags an earning for review. Only earnings not yet claimed by a
// payout can be disputed.
func (s *EarningsService) Dispute(ctx context.Context, academyID, earningID int64, notes string) (*models.Earning, error) {
	if notes == "" {
		return nil, ErrInvalidInput
	}

	earning, err := s.earningRepo.MarkDisputed(ctx, academyID, earningID, notes)
	if err == nil {
		return earning, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	existing, getErr := s.earningRepo.GetByID(ctx, academyID, earningID)
	if getErr != nil {
		return nil, getErr
	}
	if existing.PayoutID != nil {
		return nil, ErrEarningClaimed
	}
	return nil, err
}

// ResolveDispute clears the flag, finalizes the earning, and appends a
// timestamped note to the audit trail.
func (s *EarningsService) ResolveDispute(ctx context.Context, academyID, earningID int64, resolutionNotes string) (*models.Earning, error) {
	if resolutionNotes == "" {
		return nil, ErrInvalidInput
	}

	existing, err := s.earningRepo.GetByID(ctx, academyID, earningID)
	if err != nil {
		return nil, err
	}
	if !existing.IsDisputed {
		return nil, ErrInvalidInput
	}

	trail := appendAuditNote(existing.AuditTrail, resolutionNotes, time.Now())
	return s.earningRepo.ResolveDispute(ctx, academyID, earningID, trail)
}

// ResolvePendingRate recomputes an earning that was completed before the
// teacher had a rate configured. Fails with ErrNoRateConfigured if the
// rate is still missing.
func (s *EarningsService) ResolvePendingRate(ctx context.Context, academyID, earningID int64) (*models.Earning, error) {
	existing, err := s.earningRepo.GetByID(ctx, academyID, earningID)
	if err != nil {
		return nil, err
	}
	if existing.RateStatus != models.RatePendingRate {
		return nil, ErrInvalidInput
	}

	session, err := s.sessionRepo.GetByID(ctx, academyID, existing.SessionID)
	if err != nil {
		return nil, err
	}

	rate, err := s.rateRepo.GetForTeacher(ctx, academyID, existing.TeacherID, session.Type)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoRateConfigured
		}
		return nil, err
	}

	total := 0
	if rate.Method == models.MethodFixed && session.SubscriptionID != nil {
		sub, err := repository.NewSubscriptionRepository(s.db).GetByID(ctx, academyID, *session.SubscriptionID)
		if err != nil {
			return nil, err
		}
		total = sub.TotalSessions
	}

	amount, err := computeAmount(rate, session, total)
	if err != nil {
		return nil, err
	}
	snapshot, err := json.Marshal(rateSnapshot{Method: rate.Method, Rate: rate.Rate})
	if err != nil {
		return nil, err
	}

	return s.earningRepo.ResolvePendingRate(ctx, academyID, earningID, amount, rate.Method, snapshot)
}

func appendAuditNote(trail, note string, at time.Time) string {
	entry := fmt.Sprintf("[%s] %s", at.UTC().Format(time.RFC3339), note)
	if trail != "" {
		trail = trail + "\n" + entry
	} else {
		trail = entry
	}
	if len(trail) > maxAuditTrailLen {
		trail = trail[len(trail)-maxAuditTrailLen:]
	}
	return trail
}

func monthOf(t time.Time) time.Time {
	return time.Date(t.UTC().Year(), t.UTC().Month(), 1, 0, 0, 0, 0, time.UTC)
}
