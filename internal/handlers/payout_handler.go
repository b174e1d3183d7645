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

type PayoutHandler struct {
	service payoutWorkflowService
}

type payoutWorkflowService interface {
	CreatePayout(ctx context.Context, academyID, teacherID int64, period time.Time) (*models.PayoutDetail, error)
	Get(ctx context.Context, academyID, payoutID int64) (*models.PayoutDetail, error)
	ListByTeacher(ctx context.Context, academyID, teacherID int64) ([]models.Payout, error)
	Approve(ctx context.Context, academyID, payoutID, actorID int64) (*models.Payout, error)
	Reject(ctx context.Context, academyID, payoutID int64, reason string) (*models.Payout, error)
	MarkPaid(ctx context.Context, academyID, payoutID int64) (*models.Payout, error)
}

func NewPayoutHandler(service *services.PayoutService) *PayoutHandler {
	return &PayoutHandler{service: service}
}

type createPayoutRequest struct {
	TeacherID int64  `json:"teacher_id" validate:"required,gt=0"`
	Month     string `json:"month" validate:"required"`
}

type rejectPayoutRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// Create batches the teacher's unclaimed earnings for the given month
// (formatted YYYY-MM) into a new pending payout.
func (h *PayoutHandler) Create(c *fiber.Ctx) error {
	academyID, err := academyIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req createPayoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	period, err := time.Parse("2006-01", strings.TrimSpace(req.Month))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "month must be formatted YYYY-MM"})
	}

	detail, err := h.service.CreatePayout(c.Context(), academyID, req.TeacherID, period)
	if err != nil {
		return mapPayoutError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"payout": detail})
}

func (h *PayoutHandler) Get(c *fiber.Ctx) error {
	academyID, err := academyIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	payoutID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid payout id"})
	}

	detail, err := h.service.Get(c.Context(), academyID, payoutID)
	if err != nil {
		return mapPayoutError(c, err)
	}
	return c.JSON(fiber.Map{"payout": detail})
}

func (h *PayoutHandler) ListByTeacher(c *fiber.Ctx) error {
	academyID, err := academyIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	teacherID, err := parseIDParam(c, "teacherId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid teacher id"})
	}

	payouts, err := h.service.ListByTeacher(c.Context(), academyID, teacherID)
	if err != nil {
		return mapPayoutError(c, err)
	}
	return c.JSON(fiber.Map{"payouts": payouts})
}

func (h *PayoutHandler) Approve(c *fiber.Ctx) error {
	academyID, err := academyIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	actorID, err := actorIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	payoutID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid payout id"})
	}

	payout, err := h.service.Approve(c.Context(), academyID, payoutID, actorID)
	if err != nil {
		return mapPayoutError(c, err)
	}
	return c.JSON(fiber.Map{"payout": payout})
}

func (h *PayoutHandler) Reject(c *fiber.Ctx) error {
	academyID, err := academyIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	payoutID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid payout id"})
	}

	var req rejectPayoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "reason is required"})
	}

	payout, err := h.service.Reject(c.Context(), academyID, payoutID, strings.TrimSpace(req.Reason))
	if err != nil {
		return mapPayoutError(c, err)
	}
	return c.JSON(fiber.Map{"payout": payout})
}

func (h *PayoutHandler) MarkPaid(c *fiber.Ctx) error {
	academyID, err := academyIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	payoutID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid payout id"})
	}

	payout, err := h.service.MarkPaid(c.Context(), academyID, payoutID)
	if err != nil {
		return mapPayoutError(c, err)
	}
	return c.JSON(fiber.Map{"payout": payout})
}

func mapPayoutError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrNothingToPayout):
		return c.Status(fiber.StatusUnprocessableEntity).
			JSON(fiber.Map{"error": "No payable earnings for that month"})
	case errors.Is(err, services.ErrPayoutExists):
		return c.Status(fiber.StatusConflict).
			JSON(fiber.Map{"error": "A payout already exists for that teacher and month"})
	case errors.Is(err, services.ErrInvalidPayoutTransition):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Payout not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to process payout request"})
	}
}
