package repository

import (
	"context"

	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/models"
)

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (academy_id, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRow(ctx, query, user.AcademyID, user.Email, user.PasswordHash, user.Role).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

func (r *UserRepository) GetByEmail(ctx context.Context, academyID int64, email string) (*models.User, error) {
	query := `
		SELECT id, academy_id, email, password_hash, role, created_at, updated_at
		FROM users
		WHERE academy_id = $1 AND email = $2
	`
	var user models.User
	err := r.db.QueryRow(ctx, query, academyID, email).
		Scan(&user.ID, &user.AcademyID, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, academyID, id int64) (*models.User, error) {
	query := `
		SELECT id, academy_id, email, password_hash, role, created_at, updated_at
		FROM users
		WHERE academy_id = $1 AND id = $2
	`
	var user models.User
	err := r.db.QueryRow(ctx, query, academyID, id).
		Scan(&user.ID, &user.AcademyID, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
