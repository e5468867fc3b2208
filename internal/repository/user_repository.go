package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marcinucieklak/examhub/internal/model"
)

// UserRepository handles user data access.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetSummary returns the display name of a user.
func (r *UserRepository) GetSummary(ctx context.Context, id int64) (*model.UserSummary, error) {
	u := &model.UserSummary{ID: id}
	err := r.pool.QueryRow(ctx,
		`SELECT name, surname FROM users WHERE id = $1`, id,
	).Scan(&u.Name, &u.Surname)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetByID retrieves a full user.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	u := &model.User{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, type, email, name, surname, COALESCE(password_hash, ''), created_at
		 FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Type, &u.Email, &u.Name, &u.Surname, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Upsert inserts a user or updates the one with the same email, filling in
// ID and CreatedAt. An empty PasswordHash keeps the stored one.
func (r *UserRepository) Upsert(ctx context.Context, u *model.User) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO users (type, email, name, surname, password_hash)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		 ON CONFLICT (email) DO UPDATE
		 SET type = EXCLUDED.type, name = EXCLUDED.name, surname = EXCLUDED.surname,
		     password_hash = COALESCE(EXCLUDED.password_hash, users.password_hash)
		 RETURNING id, created_at`,
		u.Type, u.Email, u.Name, u.Surname, u.PasswordHash,
	).Scan(&u.ID, &u.CreatedAt)
}
