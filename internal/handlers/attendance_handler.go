package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/models"
	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/services"
)

type AttendanceHandler struct {
	service attendanceTrackingService
}

type attendanceTrackingService interface {
	RecordEvent(ctx context.Context, academyID, sessionID, userID int64, userType string, eventType models.AttendanceEventType, occurredAt time.Time) (*models.AttendanceRecord, error)
	ListForSession(ctx context.Context, academyID, sessionID int64) ([]models.AttendanceRecord, error)
	Override(ctx context.Context, academyID, sessionID, userID int64, status models.AttendanceStatus, reason string, actorID int64) (*models.AttendanceRecord, error)
	ClearOverride(ctx context.Context, academyID, sessionID, userID int64) (*models.AttendanceRecord, error)
}

func NewAttendanceHandler(service *services.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: service}
}

type attendanceEventRequest struct {
	UserID     int64  `json:"user_id" validate:"required,gt=0"`
	UserType   string `json:"user_type" validate:"required,oneof=student teacher"`
	EventType  string `json:"event_type" validate:"required,oneof=join leave"`
	OccurredAt string `json:"occurred_at"`
}

type attendanceOverrideRequest struct {
	UserID int64  `json:"user_id" validate:"required,gt=0"`
	Status string `json:"status" validate:"required,oneof=present late partial absent"`
	Reason string `json:"reason" validate:"required"`
}

// RecordEvent ingests a join/leave signal for a session participant,
// typically relayed from the meeting platform webhook.
func (h *AttendanceHandler) RecordEvent(c *fiber.Ctx) error {
	academyID, err := academyIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	sessionID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req attendanceEventRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	occurredAt := time.Now()
	if strings.TrimSpace(req.OccurredAt) != "" {
		parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(req.OccurredAt))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).
				JSON(fiber.Map{"error": "occurred_at must be a valid RFC3339 timestamp"})
		}
		occurredAt = parsed
	}

	record, err := h.service.RecordEvent(
		c.Context(),
		academyID,
		sessionID,
		req.UserID,
		req.UserType,
		models.AttendanceEventType(req.EventType),
		occurredAt,
	)
	if err != nil {
		return mapAttendanceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"attendance": record})
}

func (h *AttendanceHandler) ListForSession(c *fiber.Ctx) error {
	academyID, err := academyIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	sessionID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	records, err := h.service.ListForSession(c.Context(), academyID, sessionID)
	if err != nil {
		return mapAttendanceError(c, err)
	}
	return c.JSON(fiber.Map{"attendance": records})
}

func (h *AttendanceHandler) Override(c *fiber.Ctx) error {
	academyID, err := academyIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	actorID, err := actorIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	sessionID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req attendanceOverrideRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	record, err := h.service.Override(
		c.Context(),
		academyID,
		sessionID,
		req.UserID,
		models.AttendanceStatus(req.Status),
		strings.TrimSpace(req.Reason),
		actorID,
	)
	if err != nil {
		return mapAttendanceError(c, err)
	}
	return c.JSON(fiber.Map{"attendance": record})
}

func (h *AttendanceHandler) ClearOverride(c *fiber.Ctx) error {
	academyID, err := academyIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	sessionID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}
	userID, err := parseIDParam(c, "userId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user id"})
	}

	record, err := h.service.ClearOverride(c.Context(), academyID, sessionID, userID)
	if err != nil {
		return mapAttendanceError(c, err)
	}
	return c.JSON(fiber.Map{"attendance": record})
}

func mapAttendanceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrAlreadyTerminal):
		return c.Status(fiber.StatusUnprocessableEntity).
			JSON(fiber.Map{"error": "Session is cancelled"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to process attendance request"})
	}
}
