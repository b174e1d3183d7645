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

type SubscriptionHandler struct {
	service subscriptionQuotaService
}

type subscriptionQuotaService interface {
	Create(ctx context.Context, academyID int64, input services.CreateSubscriptionInput) (*models.Subscription, error)
	Get(ctx context.Context, academyID, subscriptionID int64) (*models.Subscription, error)
	ListByStudent(ctx context.Context, academyID, studentID int64) ([]models.Subscription, error)
	Release(ctx context.Context, academyID, subscriptionID int64, count int) (*models.Subscription, error)
	Pause(ctx context.Context, academyID, subscriptionID int64) (*models.Subscription, error)
	Resume(ctx context.Context, academyID, subscriptionID int64) (*models.Subscription, error)
	Cancel(ctx context.Context, academyID, subscriptionID int64) (*models.Subscription, error)
}

func NewSubscriptionHandler(service *services.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{service: service}
}

type createSubscriptionRequest struct {
	StudentID     int64   `json:"student_id" validate:"required,gt=0"`
	TeacherID     int64   `json:"teacher_id" validate:"required,gt=0"`
	TotalSessions int     `json:"total_sessions" validate:"required,gt=0"`
	AutoRenew     bool    `json:"auto_renew"`
	StartsAt      string  `json:"starts_at" validate:"required"`
	ExpiresAt     *string `json:"expires_at"`
}

type releaseQuotaRequest struct {
	Count int `json:"count" validate:"required,gt=0"`
}

func (h *SubscriptionHandler) Create(c *fiber.Ctx) error {
	academyID, err := academyIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req createSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	startsAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartsAt))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "starts_at must be a valid RFC3339 timestamp"})
	}
	var expiresAt *time.Time
	if req.ExpiresAt != nil {
		parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(*req.ExpiresAt))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).
				JSON(fiber.Map{"error": "expires_at must be a valid RFC3339 timestamp"})
		}
		expiresAt = &parsed
	}

	subscription, err := h.service.Create(c.Context(), academyID, services.CreateSubscriptionInput{
		StudentID:     req.StudentID,
		TeacherID:     req.TeacherID,
		TotalSessions: req.TotalSessions,
		AutoRenew:     req.AutoRenew,
		StartsAt:      startsAt,
		ExpiresAt:     expiresAt,
	})
	if err != nil {
		return mapSubscriptionError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"subscription": subscription})
}

func (h *SubscriptionHandler) Get(c *fiber.Ctx) error {
	academyID, err := academyIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	subscriptionID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid subscription id"})
	}

	subscription, err := h.service.Get(c.Context(), academyID, subscriptionID)
	if err != nil {
		return mapSubscriptionError(c, err)
	}
	return c.JSON(fiber.Map{"subscription": subscription})
}

func (h *SubscriptionHandler) ListByStudent(c *fiber.Ctx) error {
	academyID, err := academyIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	studentID, err := parseIDParam(c, "studentId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid student id"})
	}

	subscriptions, err := h.service.ListByStudent(c.Context(), academyID, studentID)
	if err != nil {
		return mapSubscriptionError(c, err)
	}
	return c.JSON(fiber.Map{"subscriptions": subscriptions})
}

// Release returns consumed quota to a subscription, an admin correction
// for sessions completed in error.
func (h *SubscriptionHandler) Release(c *fiber.Ctx) error {
	academyID, err := academyIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	subscriptionID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid subscription id"})
	}

	var req releaseQuotaRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "count must be greater than 0"})
	}

	subscription, err := h.service.Release(c.Context(), academyID, subscriptionID, req.Count)
	if err != nil {
		return mapSubscriptionError(c, err)
	}
	return c.JSON(fiber.Map{"subscription": subscription})
}

// Pause suspends quota consumption on an active subscription.
func (h *SubscriptionHandler) Pause(c *fiber.Ctx) error {
	academyID, err := academyIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	subscriptionID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid subscription id"})
	}

	subscription, err := h.service.Pause(c.Context(), academyID, subscriptionID)
	if err != nil {
		return mapSubscriptionError(c, err)
	}
	return c.JSON(fiber.Map{"subscription": subscription})
}

// Resume reactivates a paused subscription.
func (h *SubscriptionHandler) Resume(c *fiber.Ctx) error {
	academyID, err := academyIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	subscriptionID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid subscription id"})
	}

	subscription, err := h.service.Resume(c.Context(), academyID, subscriptionID)
	if err != nil {
		return mapSubscriptionError(c, err)
	}
	return c.JSON(fiber.Map{"subscription": subscription})
}

// Cancel ends a subscription; already-cancelled and expired bundles
// report an invalid transition.
func (h *SubscriptionHandler) Cancel(c *fiber.Ctx) error {
	academyID, err := academyIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	subscriptionID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid subscription id"})
	}

	subscription, err := h.service.Cancel(c.Context(), academyID, subscriptionID)
	if err != nil {
		return mapSubscriptionError(c, err)
	}
	return c.JSON(fiber.Map{"subscription": subscription})
}

func mapSubscriptionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrQuotaExceeded):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrSubscriptionInactive):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidSubscriptionTransition):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Subscription not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to process subscription request"})
	}
}
