// Package user manages user accounts and their persistence.
package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spendlog/service/internal/db"
)

// User represents a registered account holder.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      *string   `json:"name,omitempty"`
	Image     *string   `json:"image,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ErrNotFound is returned when a user does not exist.
var ErrNotFound = errors.New("user not found")

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository handles all user database operations.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, email, name, image, created_at, updated_at`

// GetByID fetches a user by their UUID.
func (r *Repository) GetByID(ctx context.Context, id string) (*User, error) {
	return Get(ctx, r.db, id)
}

// Get fetches a user by id through q.
func Get(ctx context.Context, q Querier, id string) (*User, error) {
	u := &User{}
	err := q.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.Image, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidInput(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// Upsert creates the user for email or refreshes its profile fields, and
// returns the stored record. q may be the pool or an open transaction.
func Upsert(ctx context.Context, q Querier, email string, name, image *string) (*User, error) {
	u := &User{}
	err := q.QueryRow(ctx,
		`INSERT INTO users (email, name, image)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (email) DO UPDATE
		   SET name = COALESCE(EXCLUDED.name, users.name),
		       image = COALESCE(EXCLUDED.image, users.image),
		       updated_at = NOW()
		 RETURNING `+userColumns,
		email, name, image,
	).Scan(&u.ID, &u.Email, &u.Name, &u.Image, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return u, nil
}
