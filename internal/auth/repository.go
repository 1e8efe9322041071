package auth

import (
	"context"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cranefleet/cranefleet/internal/platform/db"
)

// Repository persists users in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindByLogin fetches a user by login.
func (r *Repository) FindByLogin(ctx context.Context, login string) (User, error) {
	var u User
	err := pgxscan.Get(ctx, r.pool, &u,
		`SELECT id, login, password_hash, is_active, created_at FROM users WHERE login = $1`, login)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrInvalidCredentials
	}
	return u, err
}

// Create inserts a new user.
func (r *Repository) Create(ctx context.Context, u User) (User, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (login, password_hash, is_active, created_at)
		 VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		u.Login, u.PasswordHash, u.IsActive, time.Now().UTC()).
		Scan(&u.ID, &u.CreatedAt)
	if db.IsUniqueViolation(err) {
		return User{}, ErrDuplicateLogin
	}
	return u, err
}
