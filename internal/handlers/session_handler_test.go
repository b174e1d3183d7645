package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/models"
	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/repository"
	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/services"
)

type stubSessionService struct {
	scheduleResult    *models.Session
	scheduleErr       error
	startResult       *models.Session
	startErr          error
	completeResult    *models.SessionDetail
	completeErr       error
	cancelResult      *models.Session
	cancelErr         error
	getResult         *models.SessionDetail
	getErr            error
	listResult        []models.Session
	listTotal         int
	listErr           error
	lastAcademyID     int64
	lastSessionID     int64
	lastReason        string
	lastScheduleInput services.ScheduleSessionInput
	lastListFilter    repository.SessionListFilter
}

func (s *stubSessionService) Schedule(_ context.Context, academyID int64, input services.ScheduleSessionInput) (*models.Session, error) {
	s.lastAcademyID = academyID
	s.lastScheduleInput = input
	return s.scheduleResult, s.scheduleErr
}

func (s *stubSessionService) Start(_ context.Context, academyID, sessionID int64) (*models.Session, error) {
	s.lastAcademyID = academyID
	s.lastSessionID = sessionID
	return s.startResult, s.startErr
}

func (s *stubSessionService) Complete(_ context.Context, academyID, sessionID int64) (*models.SessionDetail, error) {
	s.lastAcademyID = academyID
	s.lastSessionID = sessionID
	return s.completeResult, s.completeErr
}

func (s *stubSessionService) Cancel(_ context.Context, academyID, sessionID int64, reason string) (*models.Session, error) {
	s.lastAcademyID = academyID
	s.lastSessionID = sessionID
	s.lastReason = reason
	return s.cancelResult, s.cancelErr
}

func (s *stubSessionService) Get(_ context.Context, academyID, sessionID int64) (*models.SessionDetail, error) {
	s.lastAcademyID = academyID
	s.lastSessionID = sessionID
	return s.getResult, s.getErr
}

func (s *stubSessionService) List(_ context.Context, filter repository.SessionListFilter) ([]models.Session, int, error) {
	s.lastListFilter = filter
	return s.listResult, s.listTotal, s.listErr
}

func newSessionTestApp(handler *SessionHandler, role string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("role", role)
		c.Locals("user_id", "42")
		c.Locals("academy_id", int64(3))
		return c.Next()
	})
	app.Post("/api/v1/sessions", handler.Schedule)
	app.Get("/api/v1/sessions", handler.List)
	app.Get("/api/v1/sessions/:id", handler.Get)
	app.Post("/api/v1/sessions/:id/start", handler.Start)
	app.Post("/api/v1/sessions/:id/complete", handler.Complete)
	app.Post("/api/v1/sessions/:id/cancel", handler.Cancel)
	return app
}

func TestScheduleSessionReturnsCreated(t *testing.T) {
	service := &stubSessionService{
		scheduleResult: &models.Session{
			ID:              91,
			AcademyID:       3,
			TeacherID:       7,
			Status:          models.SessionScheduled,
			Type:            models.SessionTypeQuran,
			DurationMinutes: 60,
		},
	}
	handler := &SessionHandler{service: service}
	app := newSessionTestApp(handler, "admin")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(`{
		"teacher_id": 7,
		"student_id": 15,
		"type": "quran",
		"scheduled_at": "2026-11-15T09:00:00Z",
		"duration_minutes": 60
	}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastAcademyID != 3 {
		t.Fatalf("expected academy id 3, got %d", service.lastAcademyID)
	}
	if service.lastScheduleInput.TeacherID != 7 {
		t.Fatalf("expected teacher id 7, got %d", service.lastScheduleInput.TeacherID)
	}
	if service.lastScheduleInput.StudentID == nil || *service.lastScheduleInput.StudentID != 15 {
		t.Fatalf("expected student id 15, got %+v", service.lastScheduleInput.StudentID)
	}
	if service.lastScheduleInput.Type != models.SessionTypeQuran {
		t.Fatalf("expected quran type, got %q", service.lastScheduleInput.Type)
	}
}

func TestScheduleSessionRejectsBadTimestamp(t *testing.T) {
	service := &stubSessionService{}
	handler := &SessionHandler{service: service}
	app := newSessionTestApp(handler, "admin")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(`{
		"teacher_id": 7,
		"student_id": 15,
		"type": "quran",
		"scheduled_at": "next tuesday",
		"duration_minutes": 60
	}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCompleteSessionReturnsDetailWithEarning(t *testing.T) {
	service := &stubSessionService{
		completeResult: &models.SessionDetail{
			Session: models.Session{ID: 55, AcademyID: 3, Status: models.SessionCompleted},
			Earning: &models.Earning{ID: 8, SessionID: 55, Amount: 200},
		},
	}
	handler := &SessionHandler{service: service}
	app := newSessionTestApp(handler, "teacher")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/55/complete", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastSessionID != 55 {
		t.Fatalf("expected session id 55, got %d", service.lastSessionID)
	}

	var body struct {
		Session models.SessionDetail `json:"session"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Session.Status != models.SessionCompleted {
		t.Fatalf("expected completed status, got %q", body.Session.Status)
	}
	if body.Session.Earning == nil || body.Session.Earning.Amount != 200 {
		t.Fatalf("expected earning of 200, got %+v", body.Session.Earning)
	}
}

func TestCompleteSessionConflictWhenAlreadyCompleting(t *testing.T) {
	service := &stubSessionService{completeErr: services.ErrConcurrencyConflict}
	handler := &SessionHandler{service: service}
	app := newSessionTestApp(handler, "teacher")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/55/complete", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestCancelSessionRequiresReason(t *testing.T) {
	service := &stubSessionService{}
	handler := &SessionHandler{service: service}
	app := newSessionTestApp(handler, "admin")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/55/cancel", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCancelTerminalSessionReturnsUnprocessable(t *testing.T) {
	service := &stubSessionService{cancelErr: services.ErrAlreadyTerminal}
	handler := &SessionHandler{service: service}
	app := newSessionTestApp(handler, "admin")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/55/cancel", strings.NewReader(`{"reason":"student sick"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if service.lastReason != "student sick" {
		t.Fatalf("expected forwarded reason, got %q", service.lastReason)
	}
}

func TestListSessionsScopesTeacherToOwnSessions(t *testing.T) {
	service := &stubSessionService{
		listResult: []models.Session{{ID: 5, Status: models.SessionScheduled}},
		listTotal:  1,
	}
	handler := &SessionHandler{service: service}
	app := newSessionTestApp(handler, "teacher")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions?status=scheduled&timeframe=upcoming", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastListFilter.TeacherID != 42 {
		t.Fatalf("expected filter scoped to teacher 42, got %+v", service.lastListFilter)
	}
	if service.lastListFilter.Status != "scheduled" || service.lastListFilter.Timeframe != "upcoming" {
		t.Fatalf("unexpected filter: %+v", service.lastListFilter)
	}
	if service.lastListFilter.Limit != defaultPageLimit {
		t.Fatalf("expected default limit, got %d", service.lastListFilter.Limit)
	}
}

func TestListSessionsRejectsBadTimeframe(t *testing.T) {
	service := &stubSessionService{}
	handler := &SessionHandler{service: service}
	app := newSessionTestApp(handler, "admin")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions?timeframe=someday", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetSessionReturnsNotFound(t *testing.T) {
	service := &stubSessionService{getErr: pgx.ErrNoRows}
	handler := &SessionHandler{service: service}
	app := newSessionTestApp(handler, "student")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/999", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestMapSessionErrorDefaultsToInternalServerError(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return mapSessionError(c, errors.New("boom"))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
}

func TestMapSessionErrorReportsCompletionFailure(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return mapSessionError(c, services.ErrCompletionFailed)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}
