// Package receipt implements receipt images: signed direct uploads to the
// object store and the metadata rows that confirm them.
package receipt

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spendlog/service/internal/db"
	"github.com/spendlog/service/internal/transaction"
)

// Image is the metadata row of a receipt.
type Image = transaction.Image

// ErrNotFound is returned when a receipt image does not exist.
var ErrNotFound = errors.New("transaction image not found")

// Repository persists transaction_images rows.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new receipt Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Get fetches an image by id.
func (r *Repository) Get(ctx context.Context, id string) (*Image, error) {
	img := &Image{}
	err := r.db.QueryRow(ctx,
		`SELECT id, transaction_id, path, title, created_at, updated_at
		 FROM transaction_images WHERE id = $1`,
		id,
	).Scan(&img.ID, &img.TransactionID, &img.Path, &img.Title, &img.CreatedAt, &img.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidInput(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction image: %w", err)
	}
	return img, nil
}

// Create inserts img and fills in its generated fields.
func (r *Repository) Create(ctx context.Context, img *Image) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO transaction_images (transaction_id, path, title)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		img.TransactionID, img.Path, img.Title,
	).Scan(&img.ID, &img.CreatedAt, &img.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction image: %w", err)
	}
	return nil
}

// Update stores the title and path of img.
func (r *Repository) Update(ctx context.Context, img *Image) error {
	err := r.db.QueryRow(ctx,
		`UPDATE transaction_images
		 SET path = $2, title = $3, updated_at = NOW()
		 WHERE id = $1
		 RETURNING created_at, updated_at`,
		img.ID, img.Path, img.Title,
	).Scan(&img.CreatedAt, &img.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update transaction image: %w", err)
	}
	return nil
}

// Delete removes an image row.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM transaction_images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete transaction image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PathsByUser returns the storage keys referenced by every image on the
// user's transactions.
func (r *Repository) PathsByUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT ti.path
		 FROM transaction_images ti
		 JOIN transactions t ON t.id = ti.transaction_id
		 WHERE t.user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list image paths: %w", err)
	}
	paths, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect image paths: %w", err)
	}
	return paths, nil
}
