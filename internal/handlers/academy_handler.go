package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/models"
	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/repository"
)

type AcademyHandler struct {
	academyRepo *repository.AcademyRepository
	defaults    models.AttendanceSettings
}

func NewAcademyHandler(academyRepo *repository.AcademyRepository, defaults models.AttendanceSettings) *AcademyHandler {
	return &AcademyHandler{academyRepo: academyRepo, defaults: defaults}
}

type createAcademyRequest struct {
	Name      string `json:"name" validate:"required"`
	Subdomain string `json:"subdomain" validate:"required,alphanum,lowercase"`
	Timezone  string `json:"timezone"`
	Currency  string `json:"currency"`
}

type attendanceSettingsRequest struct {
	LateToleranceMinutes     int     `json:"late_tolerance_minutes" validate:"gte=0"`
	MinimumAttendanceMinutes int     `json:"minimum_attendance_minutes" validate:"gte=0"`
	PresentThresholdPercent  float64 `json:"present_threshold_percent" validate:"gt=0,lte=100"`
}

// Create provisions a new tenant.
func (h *AcademyHandler) Create(c *fiber.Ctx) error {
	var req createAcademyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	req.Subdomain = strings.ToLower(strings.TrimSpace(req.Subdomain))
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if req.Timezone == "" {
		req.Timezone = "UTC"
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}

	academy, err := h.academyRepo.Create(c.Context(), repository.CreateAcademyInput{
		Name:      strings.TrimSpace(req.Name),
		Subdomain: req.Subdomain,
		Timezone:  req.Timezone,
		Currency:  req.Currency,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return c.Status(fiber.StatusConflict).
				JSON(fiber.Map{"error": "Subdomain already taken"})
		}
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to create academy"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"academy": academy})
}

// GetAttendanceSettings returns the academy's thresholds, falling back to
// the platform defaults when none were saved.
func (h *AcademyHandler) GetAttendanceSettings(c *fiber.Ctx) error {
	academyID, err := academyIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	settings, err := h.academyRepo.GetAttendanceSettings(c.Context(), academyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			defaults := h.defaults
			defaults.AcademyID = academyID
			return c.JSON(fiber.Map{"settings": defaults, "defaults": true})
		}
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to fetch settings"})
	}
	return c.JSON(fiber.Map{"settings": settings, "defaults": false})
}

func (h *AcademyHandler) UpdateAttendanceSettings(c *fiber.Ctx) error {
	academyID, err := academyIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req attendanceSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	settings := models.AttendanceSettings{
		AcademyID:                academyID,
		LateToleranceMinutes:     req.LateToleranceMinutes,
		MinimumAttendanceMinutes: req.MinimumAttendanceMinutes,
		PresentThresholdPercent:  req.PresentThresholdPercent,
	}
	if err := h.academyRepo.UpsertAttendanceSettings(c.Context(), settings); err != nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to save settings"})
	}
	return c.JSON(fiber.Map{"settings": settings})
}
