package repository

import (
	"context"

	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/models"
)

type RateRepository struct {
	db DBTX
}

func NewRateRepository(db DBTX) *RateRepository {
	return &RateRepository{db: db}
}

type UpsertRateInput struct {
	AcademyID   int64
	TeacherID   int64
	SessionType models.SessionType
	Method      models.CalculationMethod
	Rate        float64
}

func (r *RateRepository) Upsert(ctx context.Context, input UpsertRateInput) (*models.TeacherRate, error) {
	query := `
		INSERT INTO teacher_rates (academy_id, teacher_id, session_type, method, rate)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (academy_id, teacher_id, session_type) DO UPDATE
		SET method = EXCLUDED.method, rate = EXCLUDED.rate, updated_at = NOW()
		RETURNING id, academy_id, teacher_id, session_type, method, rate, created_at, updated_at
	`
	var rate models.TeacherRate
	err := r.db.QueryRow(ctx, query, input.AcademyID, input.TeacherID, input.SessionType, input.Method, input.Rate).Scan(
		&rate.ID,
		&rate.AcademyID,
		&rate.TeacherID,
		&rate.SessionType,
		&rate.Method,
		&rate.Rate,
		&rate.CreatedAt,
		&rate.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rate, nil
}

func (r *RateRepository) GetForTeacher(
	ctx context.Context,
	academyID, teacherID int64,
	sessionType models.SessionType,
) (*models.TeacherRate, error) {
	query := `
		SELECT id, academy_id, teacher_id, session_type, method, rate, created_at, updated_at
		FROM teacher_rates
		WHERE academy_id = $1 AND teacher_id = $2 AND session_type = $3
	`
	var rate models.TeacherRate
	err := r.db.QueryRow(ctx, query, academyID, teacherID, sessionType).Scan(
		&rate.ID,
		&rate.AcademyID,
		&rate.TeacherID,
		&rate.SessionType,
		&rate.Method,
		&rate.Rate,
		&rate.CreatedAt,
		&rate.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rate, nil
}
