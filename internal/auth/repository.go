// Package auth handles OAuth sign-in and session token issuance.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spendlog/service/internal/user"
)

// Repository links provider accounts to users.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new auth Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// LinkAccount returns the user linked to the provider account, creating the
// user (matched by email) and the link on first sign-in.
func (r *Repository) LinkAccount(ctx context.Context, provider string, p *Profile) (*user.User, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var linked string
	err = tx.QueryRow(ctx,
		`SELECT user_id FROM accounts WHERE provider = $1 AND provider_account_id = $2`,
		provider, p.Subject,
	).Scan(&linked)

	var u *user.User
	switch {
	case err == nil:
		u, err = user.Get(ctx, tx, linked)
		if err != nil {
			return nil, err
		}
	case errors.Is(err, pgx.ErrNoRows):
		u, err = user.Upsert(ctx, tx, p.Email, p.Name, p.Image)
		if err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO accounts (user_id, provider, provider_account_id)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (provider, provider_account_id) DO NOTHING`,
			u.ID, provider, p.Subject,
		); err != nil {
			return nil, fmt.Errorf("insert account: %w", err)
		}
	default:
		return nil, fmt.Errorf("find account: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return u, nil
}
