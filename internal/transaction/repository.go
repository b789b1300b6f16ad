// Package transaction manages a user's income and expense records and the
// receipt images attached to them.
package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/spendlog/service/internal/db"
)

// Operation says whether a transaction adds to or subtracts from the balance.
type Operation string

const (
	OperationAdd Operation = "ADD"
	OperationSub Operation = "SUB"
)

// Transaction is a single monetary record owned by one user.
type Transaction struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId"`
	AccomplishedAt time.Time       `json:"accomplishedAt"`
	Description    string          `json:"description"`
	Operation      Operation       `json:"operation"`
	Amount         decimal.Decimal `json:"amount"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	Images         []Image         `json:"transactionImages,omitempty"`
}

// Image is a receipt image attached to a transaction. Path is the object
// store key of the uploaded file.
type Image struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transactionId"`
	Path          string    `json:"path"`
	Title         string    `json:"title"`
	ImageURL      string    `json:"imageUrl,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ErrNotFound is returned when a transaction does not exist.
var ErrNotFound = errors.New("transaction not found")

// Repository handles transaction persistence.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new transaction Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const txColumns = `id, user_id, accomplished_at, description, operation, amount::text, created_at, updated_at`

func scanTransaction(row pgx.Row) (*Transaction, error) {
	t := &Transaction{}
	var amount string
	if err := row.Scan(&t.ID, &t.UserID, &t.AccomplishedAt, &t.Description,
		&t.Operation, &amount, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	t.Amount = d
	return t, nil
}

// ListByUser returns the user's transactions, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]Transaction, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+txColumns+`
		 FROM transactions
		 WHERE user_id = $1
		 ORDER BY accomplished_at DESC, created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := []Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// Get fetches a transaction by id without its images.
func (r *Repository) Get(ctx context.Context, id string) (*Transaction, error) {
	t, err := scanTransaction(r.db.QueryRow(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidInput(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// Images returns the images attached to a transaction, oldest first.
func (r *Repository) Images(ctx context.Context, transactionID string) ([]Image, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, transaction_id, path, title, created_at, updated_at
		 FROM transaction_images
		 WHERE transaction_id = $1
		 ORDER BY created_at`,
		transactionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list transaction images: %w", err)
	}
	defer rows.Close()

	out := []Image{}
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.TransactionID, &img.Path, &img.Title, &img.CreatedAt, &img.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction image: %w", err)
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

// Create inserts t and fills in its generated fields.
func (r *Repository) Create(ctx context.Context, t *Transaction) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO transactions (user_id, accomplished_at, description, operation, amount)
		 VALUES ($1, $2, $3, $4, $5::numeric)
		 RETURNING id, created_at, updated_at`,
		t.UserID, t.AccomplishedAt, t.Description, string(t.Operation), t.Amount.String(),
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of t.
func (r *Repository) Update(ctx context.Context, t *Transaction) error {
	err := r.db.QueryRow(ctx,
		`UPDATE transactions
		 SET accomplished_at = $2, description = $3, operation = $4, amount = $5::numeric, updated_at = NOW()
		 WHERE id = $1
		 RETURNING created_at, updated_at`,
		t.ID, t.AccomplishedAt, t.Description, string(t.Operation), t.Amount.String(),
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return nil
}

// Delete removes the transaction and, by cascade, its image rows. It returns
// the storage keys the deleted images referenced.
func (r *Repository) Delete(ctx context.Context, id string) ([]string, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	rows, err := tx.Query(ctx,
		`SELECT path FROM transaction_images WHERE transaction_id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, fmt.Errorf("select image paths: %w", err)
	}
	paths, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect image paths: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return paths, nil
}
