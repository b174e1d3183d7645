package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/models"
	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/repository"
	"github.com/abdelrahman-hamdy/itqan-platform-sub013/pkg/utils"
)

type userReader interface {
	GetByID(ctx context.Context, academyID, id int64) (*models.User, error)
}

type attendanceLister interface {
	ListBySession(ctx context.Context, sessionID int64) ([]models.AttendanceRecord, error)
}

type attendanceFinalizer interface {
	FinalizeInTx(ctx context.Context, db repository.DBTX, session *models.Session) error
}

type quotaConsumer interface {
	ConsumeInTx(ctx context.Context, db repository.DBTX, academyID, subscriptionID int64, count int) (*models.Subscription, error)
}

type earningRecorder interface {
	RecordEarningInTx(ctx context.Context, db repository.DBTX, session *models.Session) (*models.Earning, error)
}

// SessionService drives the session lifecycle
// (scheduled -> ongoing -> completed, with cancellation) and runs the
// completion side effects as one transaction: attendance finalization,
// quota consumption, and earning creation commit together or not at all.
type SessionService struct {
	db               *pgxpool.Pool
	sessionRepo      *repository.SessionRepository
	subscriptionRepo *repository.SubscriptionRepository
	attendanceRepo   attendanceLister
	earningRepo      *repository.EarningRepository
	userRepo         userReader
	attendance       attendanceFinalizer
	quota            quotaConsumer
	earnings         earningRecorder
}

func NewSessionService(
	db *pgxpool.Pool,
	sessionRepo *repository.SessionRepository,
	subscriptionRepo *repository.SubscriptionRepository,
	attendanceRepo attendanceLister,
	earningRepo *repository.EarningRepository,
	userRepo userReader,
	attendance attendanceFinalizer,
	quota quotaConsumer,
	earnings earningRecorder,
) *SessionService {
	return &SessionService{
		db:               db,
		sessionRepo:      sessionRepo,
		subscriptionRepo: subscriptionRepo,
		attendanceRepo:   attendanceRepo,
		earningRepo:      earningRepo,
		userRepo:         userRepo,
		attendance:       attendance,
		quota:            quota,
		earnings:         earnings,
	}
}

type ScheduleSessionInput struct {
	TeacherID       int64
	StudentID       *int64
	StudentCount    int
	SubscriptionID  *int64
	Type            models.SessionType
	ScheduledAt     time.Time
	DurationMinutes int
}

func (s *SessionService) Schedule(ctx context.Context, academyID int64, input ScheduleSessionInput) (*models.Session, error) {
	if input.TeacherID <= 0 || input.DurationMinutes <= 0 || !input.Type.Valid() {
		return nil, ErrInvalidInput
	}
	if input.ScheduledAt.Before(time.Now().Add(-1 * time.Minute)) {
		return nil, ErrInvalidInput
	}
	if input.StudentID == nil && input.StudentCount <= 0 {
		return nil, ErrInvalidInput
	}

	teacher, err := s.userRepo.GetByID(ctx, academyID, input.TeacherID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTeacherNotFound
		}
		return nil, err
	}
	if teacher.Role != "teacher" {
		return nil, ErrInvalidInput
	}

	studentCount := input.StudentCount
	if input.StudentID != nil {
		if _, err := s.userRepo.GetByID(ctx, academyID, *input.StudentID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrStudentNotFound
			}
			return nil, err
		}
		studentCount = 1
	}

	if input.SubscriptionID != nil {
		sub, err := s.subscriptionRepo.GetByID(ctx, academyID, *input.SubscriptionID)
		if err != nil {
			return nil, err
		}
		if sub.Status != models.SubscriptionActive {
			return nil, ErrInvalidInput
		}
		if input.StudentID != nil && sub.StudentID != *input.StudentID {
			return nil, ErrInvalidInput
		}
	}

	return s.sessionRepo.Create(ctx, repository.CreateSessionInput{
		AcademyID:       academyID,
		Code:            utils.NewCode("SES", academyID),
		TeacherID:       input.TeacherID,
		StudentID:       input.StudentID,
		StudentCount:    studentCount,
		SubscriptionID:  input.SubscriptionID,
		Type:            input.Type,
		ScheduledAt:     input.ScheduledAt,
		DurationMinutes: input.DurationMinutes,
	})
}

// Start moves a scheduled session to ongoing and seeds attendance
// aggregates for the known participants, so never-joining users still get
// marked absent at completion.
func (s *SessionService) Start(ctx context.Context, academyID, sessionID int64) (*models.Session, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txSessionRepo := repository.NewSessionRepository(tx)
	txAttendanceRepo := repository.NewAttendanceRepository(tx)

	session, err := txSessionRepo.MarkStarted(ctx, academyID, sessionID, time.Now())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.transitionError(ctx, academyID, sessionID)
		}
		return nil, err
	}

	if err := txAttendanceRepo.EnsureRecord(ctx, academyID, session.ID, session.TeacherID, "teacher"); err != nil {
		return nil, err
	}
	if session.StudentID != nil {
		if err := txAttendanceRepo.EnsureRecord(ctx, academyID, session.ID, *session.StudentID, "student"); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return session, nil
}

// Complete finishes an ongoing session. Attendance finalization, quota
// consumption, and earning creation run in the same transaction as the
// status change; if any of them fails the transaction rolls back and the
// session stays ongoing. A missing teacher rate is the one tolerated
// failure: the session completes and the earning is flagged pending_rate.
func (s *SessionService) Complete(ctx context.Context, academyID, sessionID int64) (*models.SessionDetail, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txSessionRepo := repository.NewSessionRepository(tx)

	session, err := txSessionRepo.GetByIDForUpdate(ctx, academyID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionOngoing {
		if session.Status.Terminal() {
			return nil, ErrAlreadyTerminal
		}
		return nil, ErrInvalidTransition
	}

	now := time.Now().UTC()
	actualMinutes := 0
	if session.StartedAt != nil && now.After(*session.StartedAt) {
		actualMinutes = int(now.Sub(*session.StartedAt) / time.Minute)
	}

	session, err = txSessionRepo.MarkCompleted(ctx, academyID, sessionID, now, actualMinutes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConcurrencyConflict
		}
		return nil, err
	}

	if err := s.attendance.FinalizeInTx(ctx, tx, session); err != nil {
		return nil, fmt.Errorf("%w: finalize attendance: %w", ErrCompletionFailed, err)
	}

	if session.SubscriptionID != nil {
		if _, err := s.quota.ConsumeInTx(ctx, tx, academyID, *session.SubscriptionID, 1); err != nil {
			return nil, fmt.Errorf("%w: consume quota: %w", ErrCompletionFailed, err)
		}
	}

	earning, err := s.earnings.RecordEarningInTx(ctx, tx, session)
	if err != nil && !errors.Is(err, ErrNoRateConfigured) {
		return nil, fmt.Errorf("%w: record earning: %w", ErrCompletionFailed, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return s.completionDetail(ctx, session, earning), nil
}

// completionDetail assembles the response for a committed completion. The
// completion already succeeded at this point, so a failed attendance read
// leaves the detail without attendance instead of failing the call.
func (s *SessionService) completionDetail(ctx context.Context, session *models.Session, earning *models.Earning) *models.SessionDetail {
	detail := &models.SessionDetail{Session: *session, Earning: earning}
	if attendance, err := s.attendanceRepo.ListBySession(ctx, session.ID); err == nil {
		detail.Attendance = attendance
	}
	return detail
}

// Cancel ends a session without any downstream effects: no quota is
// consumed and no earning is created. Cancelling an already-terminal
// session reports ErrAlreadyTerminal so callers know not to retry.
func (s *SessionService) Cancel(ctx context.Context, academyID, sessionID int64, reason string) (*models.Session, error) {
	if reason == "" {
		return nil, ErrInvalidInput
	}

	session, err := s.sessionRepo.MarkCancelled(ctx, academyID, sessionID, reason, time.Now())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.transitionError(ctx, academyID, sessionID)
		}
		return nil, err
	}
	return session, nil
}

func (s *SessionService) Get(ctx context.Context, academyID, sessionID int64) (*models.SessionDetail, error) {
	session, err := s.sessionRepo.GetByID(ctx, academyID, sessionID)
	if err != nil {
		return nil, err
	}

	detail := &models.SessionDetail{Session: *session}

	earning, err := s.earningRepo.GetBySessionID(ctx, session.ID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err == nil {
		detail.Earning = earning
	}

	attendance, err := s.attendanceRepo.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	if len(attendance) > 0 {
		detail.Attendance = attendance
	}
	return detail, nil
}

func (s *SessionService) List(ctx context.Context, filter repository.SessionListFilter) ([]models.Session, int, error) {
	sessions, err := s.sessionRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.sessionRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

// transitionError reports why a guarded status update matched no row:
// the session is missing, already terminal, or in the wrong state.
func (s *SessionService) transitionError(ctx context.Context, academyID, sessionID int64) error {
	session, err := s.sessionRepo.GetByID(ctx, academyID, sessionID)
	if err != nil {
		return err
	}
	if session.Status.Terminal() {
		return ErrAlreadyTerminal
	}
	return ErrInvalidTransition
}
