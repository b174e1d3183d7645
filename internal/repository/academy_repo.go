package repository

import (
	"context"

	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/models"
)

type AcademyRepository struct {
	db DBTX
}

func NewAcademyRepository(db DBTX) *AcademyRepository {
	return &AcademyRepository{db: db}
}

type CreateAcademyInput struct {
	Name      string
	Subdomain string
	Timezone  string
	Currency  string
}

func (r *AcademyRepository) Create(ctx context.Context, input CreateAcademyInput) (*models.Academy, error) {
	query := `
		INSERT INTO academies (name, subdomain, status, timezone, currency)
		VALUES ($1, $2, 'active', $3, $4)
		RETURNING id, name, subdomain, status, timezone, currency, created_at, updated_at
	`
	var academy models.Academy
	err := r.db.QueryRow(ctx, query, input.Name, input.Subdomain, input.Timezone, input.Currency).Scan(
		&academy.ID,
		&academy.Name,
		&academy.Subdomain,
		&academy.Status,
		&academy.Timezone,
		&academy.Currency,
		&academy.CreatedAt,
		&academy.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &academy, nil
}

func (r *AcademyRepository) GetByID(ctx context.Context, id int64) (*models.Academy, error) {
	query := `
		SELECT id, name, subdomain, status, timezone, currency, created_at, updated_at
		FROM academies
		WHERE id = $1
	`
	var academy models.Academy
	err := r.db.QueryRow(ctx, query, id).Scan(
		&academy.ID,
		&academy.Name,
		&academy.Subdomain,
		&academy.Status,
		&academy.Timezone,
		&academy.Currency,
		&academy.CreatedAt,
		&academy.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &academy, nil
}

func (r *AcademyRepository) GetBySubdomain(ctx context.Context, subdomain string) (*models.Academy, error) {
	query := `
		SELECT id, name, subdomain, status, timezone, currency, created_at, updated_at
		FROM academies
		WHERE subdomain = $1
	`
	var academy models.Academy
	err := r.db.QueryRow(ctx, query, subdomain).Scan(
		&academy.ID,
		&academy.Name,
		&academy.Subdomain,
		&academy.Status,
		&academy.Timezone,
		&academy.Currency,
		&academy.CreatedAt,
		&academy.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &academy, nil
}

// GetAttendanceSettings returns the academy's thresholds, or pgx.ErrNoRows
// when the academy never saved any (callers fall back to config defaults).
func (r *AcademyRepository) GetAttendanceSettings(ctx context.Context, academyID int64) (*models.AttendanceSettings, error) {
	query := `
		SELECT academy_id, late_tolerance_minutes, minimum_attendance_minutes, present_threshold_percent
		FROM academy_attendance_settings
		WHERE academy_id = $1
	`
	var settings models.AttendanceSettings
	err := r.db.QueryRow(ctx, query, academyID).Scan(
		&settings.AcademyID,
		&settings.LateToleranceMinutes,
		&settings.MinimumAttendanceMinutes,
		&settings.PresentThresholdPercent,
	)
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (r *AcademyRepository) UpsertAttendanceSettings(ctx context.Context, settings models.AttendanceSettings) error {
	query := `
		INSERT INTO academy_attendance_settings (academy_id, late_tolerance_minutes, minimum_attendance_minutes, present_threshold_percent)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (academy_id) DO UPDATE
		SET late_tolerance_minutes = EXCLUDED.late_tolerance_minutes,
		    minimum_attendance_minutes = EXCLUDED.minimum_attendance_minutes,
		    present_threshold_percent = EXCLUDED.present_threshold_percent
	`
	_, err := r.db.Exec(
		ctx,
		query,
		settings.AcademyID,
		settings.LateToleranceMinutes,
		settings.MinimumAttendanceMinutes,
		settings.PresentThresholdPercent,
	)
	return err
}
