package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/models"
	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/repository"
)

var (
	testDBOnce sync.Once
	testDBPool *pgxpool.Pool
	testDBErr  error
)

func integrationTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	testDBOnce.Do(func() {
		_ = godotenv.Load(".env")
		_ = godotenv.Load(filepath.Join("..", "..", ".env"))

		dbURL := os.Getenv("DB_URL")
		if dbURL == "" {
			testDBErr = fmt.Errorf("DB_URL is not set")
			return
		}

		cfg, err := pgxpool.ParseConfig(dbURL)
		if err != nil {
			testDBErr = err
			return
		}

		testDBPool, testDBErr = pgxpool.NewWithConfig(context.Background(), cfg)
		if testDBErr != nil {
			return
		}
		testDBErr = testDBPool.Ping(context.Background())
	})

	if testDBErr != nil {
		t.Skipf("skipping integration test: %v", testDBErr)
	}
	return testDBPool
}

type integrationEnv struct {
	pool          *pgxpool.Pool
	academyID     int64
	teacherID     int64
	studentID     int64
	sessions      *SessionService
	subscriptions *SubscriptionService
	attendance    *AttendanceService
	earnings      *EarningsService
	payouts       *PayoutService
	rateRepo      *repository.RateRepository
}

func newIntegrationEnv(t *testing.T, ctx context.Context) *integrationEnv {
	t.Helper()

	pool := integrationTestPool(t)

	academyRepo := repository.NewAcademyRepository(pool)
	academy, err := academyRepo.Create(ctx, repository.CreateAcademyInput{
		Name:      "Test Academy",
		Subdomain: fmt.Sprintf("itest%d", time.Now().UnixNano()),
		Timezone:  "UTC",
		Currency:  "USD",
	})
	if err != nil {
		t.Fatalf("create academy: %v", err)
	}

	teacherID := createTestUser(t, ctx, pool, academy.ID, "teacher")
	studentID := createTestUser(t, ctx, pool, academy.ID, "student")

	sessionRepo := repository.NewSessionRepository(pool)
	subscriptionRepo := repository.NewSubscriptionRepository(pool)
	attendanceRepo := repository.NewAttendanceRepository(pool)
	rateRepo := repository.NewRateRepository(pool)
	earningRepo := repository.NewEarningRepository(pool)
	payoutRepo := repository.NewPayoutRepository(pool)
	userRepo := repository.NewUserRepository(pool)

	defaults := models.AttendanceSettings{
		LateToleranceMinutes:     15,
		MinimumAttendanceMinutes: 10,
		PresentThresholdPercent:  90,
	}

	subscriptionService := NewSubscriptionService(pool, subscriptionRepo)
	attendanceService := NewAttendanceService(pool, attendanceRepo, sessionRepo, academyRepo, defaults)
	earningsService := NewEarningsService(pool, earningRepo, rateRepo, sessionRepo)
	sessionService := NewSessionService(
		pool,
		sessionRepo,
		subscriptionRepo,
		attendanceRepo,
		earningRepo,
		userRepo,
		attendanceService,
		subscriptionService,
		earningsService,
	)
	payoutService := NewPayoutService(pool, payoutRepo, earningRepo)

	env := &integrationEnv{
		pool:          pool,
		academyID:     academy.ID,
		teacherID:     teacherID,
		studentID:     studentID,
		sessions:      sessionService,
		subscriptions: subscriptionService,
		attendance:    attendanceService,
		earnings:      earningsService,
		payouts:       payoutService,
		rateRepo:      rateRepo,
	}
	t.Cleanup(func() { env.cleanup(t, ctx) })
	return env
}

func createTestUser(t *testing.T, ctx context.Context, pool *pgxpool.Pool, academyID int64, role string) int64 {
	t.Helper()

	userRepo := repository.NewUserRepository(pool)
	user := &models.User{
		AcademyID:    academyID,
		Email:        fmt.Sprintf("itest-%s-%d@example.com", role, time.Now().UnixNano()),
		PasswordHash: "test-hash",
		Role:         role,
	}
	if err := userRepo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser(%s): %v", role, err)
	}
	return user.ID
}

func (e *integrationEnv) cleanup(t *testing.T, ctx context.Context) {
	t.Helper()

	statements := []string{
		"UPDATE earnings SET payout_id = NULL WHERE academy_id = $1",
		"DELETE FROM payouts WHERE academy_id = $1",
		"DELETE FROM earnings WHERE academy_id = $1",
		"DELETE FROM teacher_rates WHERE academy_id = $1",
		"DELETE FROM attendance_events WHERE session_id IN (SELECT id FROM sessions WHERE academy_id = $1)",
		"DELETE FROM attendance_records WHERE academy_id = $1",
		"DELETE FROM sessions WHERE academy_id = $1",
		"DELETE FROM subscription_renewals WHERE subscription_id IN (SELECT id FROM subscriptions WHERE academy_id = $1)",
		"DELETE FROM subscriptions WHERE academy_id = $1",
		"DELETE FROM users WHERE academy_id = $1",
		"DELETE FROM academy_attendance_settings WHERE academy_id = $1",
		"DELETE FROM academies WHERE id = $1",
	}
	for _, stmt := range statements {
		if _, err := e.pool.Exec(ctx, stmt, e.academyID); err != nil {
			t.Fatalf("cleanup %q: %v", stmt, err)
		}
	}
}

func (e *integrationEnv) completeSession(t *testing.T, ctx context.Context, subscriptionID *int64) *models.SessionDetail {
	t.Helper()

	session, err := e.sessions.Schedule(ctx, e.academyID, ScheduleSessionInput{
		TeacherID:       e.teacherID,
		StudentID:       &e.studentID,
		SubscriptionID:  subscriptionID,
		Type:            models.SessionTypeQuran,
		ScheduledAt:     time.Now().Add(time.Hour),
		DurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if _, err := e.sessions.Start(ctx, e.academyID, session.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	detail, err := e.sessions.Complete(ctx, e.academyID, session.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	return detail
}

func TestSessionLifecycleWithEarningAndAttendance(t *testing.T) {
	ctx := context.Background()
	env := newIntegrationEnv(t, ctx)

	if _, err := env.rateRepo.Upsert(ctx, repository.UpsertRateInput{
		AcademyID:   env.academyID,
		TeacherID:   env.teacherID,
		SessionType: models.SessionTypeQuran,
		Method:      models.MethodPerSession,
		Rate:        80,
	}); err != nil {
		t.Fatalf("Upsert rate: %v", err)
	}

	detail := env.completeSession(t, ctx, nil)

	if detail.Status != models.SessionCompleted {
		t.Fatalf("expected completed session, got %q", detail.Status)
	}
	if detail.Earning == nil || detail.Earning.Amount != 80 {
		t.Fatalf("expected earning of 80, got %+v", detail.Earning)
	}
	if detail.Earning.RateStatus != models.RateOK {
		t.Fatalf("expected rate_status ok, got %q", detail.Earning.RateStatus)
	}

	// Both participants were seeded at start; neither joined, so both are
	// marked absent after finalization.
	if len(detail.Attendance) != 2 {
		t.Fatalf("expected 2 attendance records, got %d", len(detail.Attendance))
	}
	for _, record := range detail.Attendance {
		if record.AttendanceStatus == nil || *record.AttendanceStatus != models.AttendanceAbsent {
			t.Fatalf("expected absent, got %+v for user %d", record.AttendanceStatus, record.UserID)
		}
		if !record.IsCalculated {
			t.Fatalf("expected calculated record for user %d", record.UserID)
		}
	}
}

func TestCompletionWithoutRateFlagsPendingRate(t *testing.T) {
	ctx := context.Background()
	env := newIntegrationEnv(t, ctx)

	detail := env.completeSession(t, ctx, nil)

	if detail.Status != models.SessionCompleted {
		t.Fatalf("expected session to complete despite missing rate, got %q", detail.Status)
	}
	if detail.Earning == nil || detail.Earning.RateStatus != models.RatePendingRate {
		t.Fatalf("expected pending_rate earning, got %+v", detail.Earning)
	}
	if detail.Earning.Amount != 0 {
		t.Fatalf("expected zero amount, got %.2f", detail.Earning.Amount)
	}

	// Configure the rate afterwards and resolve.
	if _, err := env.rateRepo.Upsert(ctx, repository.UpsertRateInput{
		AcademyID:   env.academyID,
		TeacherID:   env.teacherID,
		SessionType: models.SessionTypeQuran,
		Method:      models.MethodHourly,
		Rate:        60,
	}); err != nil {
		t.Fatalf("Upsert rate: %v", err)
	}

	resolved, err := env.earnings.ResolvePendingRate(ctx, env.academyID, detail.Earning.ID)
	if err != nil {
		t.Fatalf("ResolvePendingRate: %v", err)
	}
	if resolved.RateStatus != models.RateOK || resolved.Amount != 60 {
		t.Fatalf("expected resolved hourly earning of 60, got %+v", resolved)
	}
}

func TestQuotaExhaustionExpiresSubscription(t *testing.T) {
	ctx := context.Background()
	env := newIntegrationEnv(t, ctx)

	sub, err := env.subscriptions.Create(ctx, env.academyID, CreateSubscriptionInput{
		StudentID:     env.studentID,
		TeacherID:     env.teacherID,
		TotalSessions: 1,
		StartsAt:      time.Now(),
	})
	if err != nil {
		t.Fatalf("Create subscription: %v", err)
	}

	env.completeSession(t, ctx, &sub.ID)

	after, err := env.subscriptions.Get(ctx, env.academyID, sub.ID)
	if err != nil {
		t.Fatalf("Get subscription: %v", err)
	}
	if after.Status != models.SubscriptionExpired {
		t.Fatalf("expected expired subscription, got %q", after.Status)
	}
	if after.SessionsRemaining != 0 {
		t.Fatalf("expected no remaining sessions, got %d", after.SessionsRemaining)
	}

	// A further completion against the expired bundle must fail and leave
	// the session ongoing.
	session, err := env.sessions.Schedule(ctx, env.academyID, ScheduleSessionInput{
		TeacherID:       env.teacherID,
		StudentID:       &env.studentID,
		Type:            models.SessionTypeQuran,
		ScheduledAt:     time.Now().Add(time.Hour),
		DurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if _, err := env.pool.Exec(ctx,
		"UPDATE sessions SET subscription_id = $1 WHERE id = $2", sub.ID, session.ID); err != nil {
		t.Fatalf("attach subscription: %v", err)
	}
	if _, err := env.sessions.Start(ctx, env.academyID, session.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, err = env.sessions.Complete(ctx, env.academyID, session.ID)
	if !errors.Is(err, ErrCompletionFailed) || !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected completion failure from quota, got %v", err)
	}

	current, err := env.sessions.Get(ctx, env.academyID, session.ID)
	if err != nil {
		t.Fatalf("Get session: %v", err)
	}
	if current.Status != models.SessionOngoing {
		t.Fatalf("expected rolled-back ongoing session, got %q", current.Status)
	}
}

func TestAutoRenewResetsQuotaAndRecordsRenewal(t *testing.T) {
	ctx := context.Background()
	env := newIntegrationEnv(t, ctx)

	expiry := time.Now().Add(24 * time.Hour)
	sub, err := env.subscriptions.Create(ctx, env.academyID, CreateSubscriptionInput{
		StudentID:     env.studentID,
		TeacherID:     env.teacherID,
		TotalSessions: 1,
		AutoRenew:     true,
		StartsAt:      time.Now().Add(-24 * time.Hour),
		ExpiresAt:     &expiry,
	})
	if err != nil {
		t.Fatalf("Create subscription: %v", err)
	}

	env.completeSession(t, ctx, &sub.ID)

	after, err := env.subscriptions.Get(ctx, env.academyID, sub.ID)
	if err != nil {
		t.Fatalf("Get subscription: %v", err)
	}
	if after.Status != models.SubscriptionActive {
		t.Fatalf("expected active subscription after renewal, got %q", after.Status)
	}
	if after.SessionsUsed != 0 || after.SessionsRemaining != 1 {
		t.Fatalf("expected reset counters, got used=%d remaining=%d", after.SessionsUsed, after.SessionsRemaining)
	}

	// The renewal opens a fresh validity window of the same length.
	if !after.StartsAt.After(sub.StartsAt) {
		t.Fatalf("expected re-stamped starts_at, got %v (was %v)", after.StartsAt, sub.StartsAt)
	}
	if after.ExpiresAt == nil || !after.ExpiresAt.After(*sub.ExpiresAt) {
		t.Fatalf("expected shifted expires_at, got %v (was %v)", after.ExpiresAt, sub.ExpiresAt)
	}

	var renewals int
	if err := env.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM subscription_renewals WHERE subscription_id = $1", sub.ID).Scan(&renewals); err != nil {
		t.Fatalf("count renewals: %v", err)
	}
	if renewals != 1 {
		t.Fatalf("expected 1 renewal record, got %d", renewals)
	}
}

func TestPausedSubscriptionBlocksCompletion(t *testing.T) {
	ctx := context.Background()
	env := newIntegrationEnv(t, ctx)

	sub, err := env.subscriptions.Create(ctx, env.academyID, CreateSubscriptionInput{
		StudentID:     env.studentID,
		TeacherID:     env.teacherID,
		TotalSessions: 2,
		StartsAt:      time.Now().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("Create subscription: %v", err)
	}
	if _, err := env.subscriptions.Pause(ctx, env.academyID, sub.ID); err != nil {
		t.Fatalf("Pause: %v", err)
	}

	session, err := env.sessions.Schedule(ctx, env.academyID, ScheduleSessionInput{
		TeacherID:       env.teacherID,
		StudentID:       &env.studentID,
		SubscriptionID:  &sub.ID,
		Type:            models.SessionTypeQuran,
		ScheduledAt:     time.Now().Add(time.Hour),
		DurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if _, err := env.sessions.Start(ctx, env.academyID, session.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, err = env.sessions.Complete(ctx, env.academyID, session.ID)
	if !errors.Is(err, ErrCompletionFailed) || !errors.Is(err, ErrSubscriptionInactive) {
		t.Fatalf("expected completion blocked by paused subscription, got %v", err)
	}

	// Resuming reopens consumption and the completion goes through.
	if _, err := env.subscriptions.Resume(ctx, env.academyID, sub.ID); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if _, err := env.sessions.Complete(ctx, env.academyID, session.ID); err != nil {
		t.Fatalf("Complete after resume: %v", err)
	}

	after, err := env.subscriptions.Get(ctx, env.academyID, sub.ID)
	if err != nil {
		t.Fatalf("Get subscription: %v", err)
	}
	if after.SessionsUsed != 1 {
		t.Fatalf("expected 1 used session after resume, got %d", after.SessionsUsed)
	}
}

func TestOnePayoutPerTeacherPerMonth(t *testing.T) {
	ctx := context.Background()
	env := newIntegrationEnv(t, ctx)

	if _, err := env.rateRepo.Upsert(ctx, repository.UpsertRateInput{
		AcademyID:   env.academyID,
		TeacherID:   env.teacherID,
		SessionType: models.SessionTypeQuran,
		Method:      models.MethodPerSession,
		Rate:        100,
	}); err != nil {
		t.Fatalf("Upsert rate: %v", err)
	}

	first := env.completeSession(t, ctx, nil)
	second := env.completeSession(t, ctx, nil)

	period := first.Session.ScheduledAt
	payout, err := env.payouts.CreatePayout(ctx, env.academyID, env.teacherID, period)
	if err != nil {
		t.Fatalf("CreatePayout: %v", err)
	}
	if payout.TotalAmount != 200 || payout.SessionsCount != 2 {
		t.Fatalf("expected 200/2, got %.2f/%d", payout.TotalAmount, payout.SessionsCount)
	}
	_ = second

	// Even with freshly completed earnings the month is closed once a
	// non-rejected payout exists for it.
	third := env.completeSession(t, ctx, nil)
	if _, err := env.payouts.CreatePayout(ctx, env.academyID, env.teacherID, period); !errors.Is(err, ErrPayoutExists) {
		t.Fatalf("expected ErrPayoutExists on second run, got %v", err)
	}
	_ = third

	// Rejecting the batch releases the earnings and reopens the month.
	if _, err := env.payouts.Reject(ctx, env.academyID, payout.ID, "totals under review"); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	retry, err := env.payouts.CreatePayout(ctx, env.academyID, env.teacherID, period)
	if err != nil {
		t.Fatalf("retry CreatePayout: %v", err)
	}
	if retry.SessionsCount != 3 {
		t.Fatalf("expected released and new earnings claimed, got %d", retry.SessionsCount)
	}
}

func TestDisputedEarningExcludedFromPayout(t *testing.T) {
	ctx := context.Background()
	env := newIntegrationEnv(t, ctx)

	if _, err := env.rateRepo.Upsert(ctx, repository.UpsertRateInput{
		AcademyID:   env.academyID,
		TeacherID:   env.teacherID,
		SessionType: models.SessionTypeQuran,
		Method:      models.MethodPerSession,
		Rate:        100,
	}); err != nil {
		t.Fatalf("Upsert rate: %v", err)
	}

	kept := env.completeSession(t, ctx, nil)
	disputed := env.completeSession(t, ctx, nil)

	if _, err := env.earnings.Dispute(ctx, env.academyID, disputed.Earning.ID, "duration looks wrong"); err != nil {
		t.Fatalf("Dispute: %v", err)
	}

	payout, err := env.payouts.CreatePayout(ctx, env.academyID, env.teacherID, kept.Session.ScheduledAt)
	if err != nil {
		t.Fatalf("CreatePayout: %v", err)
	}
	if payout.SessionsCount != 1 || payout.TotalAmount != 100 {
		t.Fatalf("expected disputed earning excluded, got %d/%.2f", payout.SessionsCount, payout.TotalAmount)
	}
}
