package services

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/models"
	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/repository"
)

// AttendanceService ingests join/leave events from the meeting platform
// and derives per-user attendance aggregates at session completion.
type AttendanceService struct {
	db             *pgxpool.Pool
	attendanceRepo *repository.AttendanceRepository
	sessionRepo    *repository.SessionRepository
	academyRepo    *repository.AcademyRepository
	defaults       models.AttendanceSettings
}

func NewAttendanceService(
	db *pgxpool.Pool,
	attendanceRepo *repository.AttendanceRepository,
	sessionRepo *repository.SessionRepository,
	academyRepo *repository.AcademyRepository,
	defaults models.AttendanceSettings,
) *AttendanceService {
	return &AttendanceService{
		db:             db,
		attendanceRepo: attendanceRepo,
		sessionRepo:    sessionRepo,
		academyRepo:    academyRepo,
		defaults:       defaults,
	}
}

// RecordEvent appends one join/leave signal and updates the per-user
// aggregate. Events for cancelled sessions are rejected; everything else
// is accepted append-only.
func (s *AttendanceService) RecordEvent(
	ctx context.Context,
	academyID, sessionID, userID int64,
	userType string,
	eventType models.AttendanceEventType,
	occurredAt time.Time,
) (*models.AttendanceRecord, error) {
	if eventType != models.EventJoin && eventType != models.EventLeave {
		return nil, ErrInvalidInput
	}
	if userType != "student" && userType != "teacher" {
		return nil, ErrInvalidInput
	}

	session, err := s.sessionRepo.GetByID(ctx, academyID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionCancelled {
		return nil, ErrAlreadyTerminal
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txRepo := repository.NewAttendanceRepository(tx)

	if _, err := txRepo.InsertEvent(ctx, sessionID, userID, eventType, occurredAt); err != nil {
		return nil, err
	}

	var record *models.AttendanceRecord
	if eventType == models.EventJoin {
		record, err = txRepo.RecordJoin(ctx, academyID, sessionID, userID, userType, occurredAt)
	} else {
		record, err = txRepo.RecordLeave(ctx, sessionID, userID, occurredAt)
		if errors.Is(err, pgx.ErrNoRows) {
			// Leave without a prior join: keep the event, create the
			// aggregate so reconciliation sees it.
			if err := txRepo.EnsureRecord(ctx, academyID, sessionID, userID, userType); err != nil {
				return nil, err
			}
			record, err = txRepo.RecordLeave(ctx, sessionID, userID, occurredAt)
		}
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *AttendanceService) ListForSession(ctx context.Context, academyID, sessionID int64) ([]models.AttendanceRecord, error) {
	if _, err := s.sessionRepo.GetByID(ctx, academyID, sessionID); err != nil {
		return nil, err
	}
	return s.attendanceRepo.ListBySession(ctx, sessionID)
}

// FinalizeInTx computes final attendance for every participant of a
// session from the event log, inside the caller's completion transaction.
// Manually overridden records keep their frozen status.
func (s *AttendanceService) FinalizeInTx(ctx context.Context, db repository.DBTX, session *models.Session) error {
	if session.StartedAt == nil || session.EndedAt == nil {
		return ErrInvalidInput
	}

	txAttendanceRepo := repository.NewAttendanceRepository(db)
	txAcademyRepo := repository.NewAcademyRepository(db)

	settings := s.defaults
	if saved, err := txAcademyRepo.GetAttendanceSettings(ctx, session.AcademyID); err == nil {
		settings = *saved
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	events, err := txAttendanceRepo.ListEventsBySession(ctx, session.ID)
	if err != nil {
		return err
	}
	eventsByUser := make(map[int64][]models.AttendanceEvent)
	for _, event := range events {
		eventsByUser[event.UserID] = append(eventsByUser[event.UserID], event)
	}

	records, err := txAttendanceRepo.ListBySession(ctx, session.ID)
	if err != nil {
		return err
	}

	for _, record := range records {
		if record.ManuallyOverridden {
			continue
		}

		minutes := attendedMinutes(eventsByUser[record.UserID], *session.StartedAt, *session.EndedAt)
		status, percentage := deriveAttendance(
			record.FirstJoinTime,
			minutes,
			session.DurationMinutes,
			*session.StartedAt,
			settings,
		)

		if _, err := txAttendanceRepo.SaveFinal(ctx, record.ID, minutes, status, percentage); err != nil {
			// A concurrent override slipped in between the list and the
			// update; the override wins.
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return err
		}
	}

	return nil
}

// Override freezes a record against automatic recomputation.
func (s *AttendanceService) Override(
	ctx context.Context,
	academyID, sessionID, userID int64,
	status models.AttendanceStatus,
	reason string,
	actorID int64,
) (*models.AttendanceRecord, error) {
	if !status.Valid() || reason == "" {
		return nil, ErrInvalidInput
	}
	if _, err := s.sessionRepo.GetByID(ctx, academyID, sessionID); err != nil {
		return nil, err
	}
	return s.attendanceRepo.SetOverride(ctx, sessionID, userID, status, reason, actorID, time.Now())
}

// ClearOverride re-opens a record for automatic calculation and, if the
// session already completed, recomputes it right away.
func (s *AttendanceService) ClearOverride(ctx context.Context, academyID, sessionID, userID int64) (*models.AttendanceRecord, error) {
	session, err := s.sessionRepo.GetByID(ctx, academyID, sessionID)
	if err != nil {
		return nil, err
	}

	record, err := s.attendanceRepo.ClearOverride(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	if session.Status == models.SessionCompleted {
		if err := s.FinalizeInTx(ctx, s.db, session); err != nil {
			return nil, err
		}
		return s.attendanceRepo.GetBySessionAndUser(ctx, sessionID, userID)
	}
	return record, nil
}

// attendedMinutes sums the non-overlapping [join, leave) intervals built
// from the event sequence, clipped to the session window. A join without a
// matching leave is closed at the session end.
func attendedMinutes(events []models.AttendanceEvent, windowStart, windowEnd time.Time) int {
	if !windowEnd.After(windowStart) {
		return 0
	}

	var total time.Duration
	var open *time.Time
	for _, event := range events {
		switch event.EventType {
		case models.EventJoin:
			if open == nil {
				ts := event.OccurredAt
				open = &ts
			}
		case models.EventLeave:
			if open != nil {
				total += clippedSpan(*open, event.OccurredAt, windowStart, windowEnd)
				open = nil
			}
		}
	}
	if open != nil {
		total += clippedSpan(*open, windowEnd, windowStart, windowEnd)
	}

	return int(total / time.Minute)
}

func clippedSpan(from, to, windowStart, windowEnd time.Time) time.Duration {
	if from.Before(windowStart) {
		from = windowStart
	}
	if to.After(windowEnd) {
		to = windowEnd
	}
	if !to.After(from) {
		return 0
	}
	return to.Sub(from)
}

// deriveAttendance maps attended minutes to a status and percentage using
// the academy's thresholds. Late takes precedence over present so a
// latecomer who stays the rest of the session is still marked late.
func deriveAttendance(
	firstJoin *time.Time,
	attendedMin int,
	durationMinutes int,
	sessionStart time.Time,
	settings models.AttendanceSettings,
) (models.AttendanceStatus, float64) {
	if firstJoin == nil || attendedMin <= 0 {
		return models.AttendanceAbsent, 0
	}

	percentage := 0.0
	if durationMinutes > 0 {
		percentage = float64(attendedMin) / float64(durationMinutes) * 100
	}
	if percentage > 100 {
		percentage = 100
	}
	if percentage <= 0 {
		// Zero percent is absence no matter what the event log holds.
		return models.AttendanceAbsent, 0
	}

	lateCutoff := sessionStart.Add(time.Duration(settings.LateToleranceMinutes) * time.Minute)
	if firstJoin.After(lateCutoff) && attendedMin >= settings.MinimumAttendanceMinutes {
		return models.AttendanceLate, percentage
	}
	if percentage >= settings.PresentThresholdPercent {
		return models.AttendancePresent, percentage
	}
	return models.AttendancePartial, percentage
}
