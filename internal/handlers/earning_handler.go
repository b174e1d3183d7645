package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/models"
	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/repository"
	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/services"
)

type EarningHandler struct {
	service  earningLedgerService
	rateRepo *repository.RateRepository
}

type earningLedgerService interface {
	Get(ctx context.Context, academyID, earningID int64) (*models.Earning, error)
	Dispute(ctx context.Context, academyID, earningID int64, notes string) (*models.Earning, error)
	ResolveDispute(ctx context.Context, academyID, earningID int64, resolutionNotes string) (*models.Earning, error)
	ResolvePendingRate(ctx context.Context, academyID, earningID int64) (*models.Earning, error)
}

func NewEarningHandler(service *services.EarningsService, rateRepo *repository.RateRepository) *EarningHandler {
	return &EarningHandler{service: service, rateRepo: rateRepo}
}

type disputeRequest struct {
	Notes string `json:"notes" validate:"required"`
}

type upsertRateRequest struct {
	TeacherID   int64   `json:"teacher_id" validate:"required,gt=0"`
	SessionType string  `json:"session_type" validate:"required,oneof=quran academic"`
	Method      string  `json:"method" validate:"required,oneof=per_session per_student hourly fixed"`
	Rate        float64 `json:"rate" validate:"required,gt=0"`
}

func (h *EarningHandler) Get(c *fiber.Ctx) error {
	academyID, err := academyIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	earningID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid earning id"})
	}

	earning, err := h.service.Get(c.Context(), academyID, earningID)
	if err != nil {
		return mapEarningError(c, err)
	}
	return c.JSON(fiber.Map{"earning": earning})
}

func (h *EarningHandler) Dispute(c *fiber.Ctx) error {
	academyID, err := academyIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	earningID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid earning id"})
	}

	var req disputeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "notes is required"})
	}

	earning, err := h.service.Dispute(c.Context(), academyID, earningID, strings.TrimSpace(req.Notes))
	if err != nil {
		return mapEarningError(c, err)
	}
	return c.JSON(fiber.Map{"earning": earning})
}

func (h *EarningHandler) ResolveDispute(c *fiber.Ctx) error {
	academyID, err := academyIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	earningID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid earning id"})
	}

	var req disputeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "notes is required"})
	}

	earning, err := h.service.ResolveDispute(c.Context(), academyID, earningID, strings.TrimSpace(req.Notes))
	if err != nil {
		return mapEarningError(c, err)
	}
	return c.JSON(fiber.Map{"earning": earning})
}

// ResolvePendingRate recomputes an earning recorded before the teacher had
// a configured rate.
func (h *EarningHandler) ResolvePendingRate(c *fiber.Ctx) error {
	academyID, err := academyIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	earningID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid earning id"})
	}

	earning, err := h.service.ResolvePendingRate(c.Context(), academyID, earningID)
	if err != nil {
		return mapEarningError(c, err)
	}
	return c.JSON(fiber.Map{"earning": earning})
}

// UpsertRate sets a teacher's compensation rate per session type.
func (h *EarningHandler) UpsertRate(c *fiber.Ctx) error {
	academyID, err := academyIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req upsertRateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	rate, err := h.rateRepo.Upsert(c.Context(), repository.UpsertRateInput{
		AcademyID:   academyID,
		TeacherID:   req.TeacherID,
		SessionType: models.SessionType(req.SessionType),
		Method:      models.CalculationMethod(req.Method),
		Rate:        req.Rate,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to save rate"})
	}
	return c.JSON(fiber.Map{"rate": rate})
}

func mapEarningError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrEarningClaimed):
		return c.Status(fiber.StatusConflict).
			JSON(fiber.Map{"error": "Earning already claimed by a payout"})
	case errors.Is(err, services.ErrNoRateConfigured):
		return c.Status(fiber.StatusUnprocessableEntity).
			JSON(fiber.Map{"error": "No rate configured for this teacher"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Earning not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to process earning request"})
	}
}
