// Package backup exports a user's transactions and receipts and restores them
// from an exported document.
package backup

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/spendlog/service/internal/transaction"
)

// Repository reads and bulk-writes a user's records.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new backup Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Snapshot returns every transaction of the user and every image attached to
// them, both ordered for a stable export.
func (r *Repository) Snapshot(ctx context.Context, userID string) ([]transaction.Transaction, []transaction.Image, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	rows, err := tx.Query(ctx,
		`SELECT id, user_id, accomplished_at, description, operation, amount::text, created_at, updated_at
		 FROM transactions
		 WHERE user_id = $1
		 ORDER BY accomplished_at, created_at`,
		userID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("query transactions: %w", err)
	}
	txs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (transaction.Transaction, error) {
		var (
			t      transaction.Transaction
			amount string
		)
		if err := row.Scan(&t.ID, &t.UserID, &t.AccomplishedAt, &t.Description,
			&t.Operation, &amount, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return t, err
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return t, fmt.Errorf("parse amount %q: %w", amount, err)
		}
		t.Amount = d
		return t, nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("collect transactions: %w", err)
	}

	rows, err = tx.Query(ctx,
		`SELECT ti.id, ti.transaction_id, ti.path, ti.title, ti.created_at, ti.updated_at
		 FROM transaction_images ti
		 JOIN transactions t ON t.id = ti.transaction_id
		 WHERE t.user_id = $1
		 ORDER BY ti.transaction_id, ti.created_at`,
		userID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("query transaction images: %w", err)
	}
	images, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (transaction.Image, error) {
		var img transaction.Image
		err := row.Scan(&img.ID, &img.TransactionID, &img.Path, &img.Title, &img.CreatedAt, &img.UpdatedAt)
		return img, err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("collect transaction images: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}
	return txs, images, nil
}

// Restore copies the prepared rows in one database transaction. Ids must
// already be assigned; either every row is written or none is.
func (r *Repository) Restore(ctx context.Context, userID string, txs []transaction.Transaction, images []transaction.Image) error {
	owner, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("parse user id: %w", err)
	}

	txRows := make([][]any, 0, len(txs))
	for _, t := range txs {
		id, err := uuid.Parse(t.ID)
		if err != nil {
			return fmt.Errorf("parse transaction id: %w", err)
		}
		txRows = append(txRows, []any{
			pgtype.UUID{Bytes: id, Valid: true},
			pgtype.UUID{Bytes: owner, Valid: true},
			t.AccomplishedAt,
			t.Description,
			string(t.Operation),
			numeric(t.Amount),
		})
	}

	imgRows := make([][]any, 0, len(images))
	for _, img := range images {
		id, err := uuid.Parse(img.ID)
		if err != nil {
			return fmt.Errorf("parse image id: %w", err)
		}
		txID, err := uuid.Parse(img.TransactionID)
		if err != nil {
			return fmt.Errorf("parse image transaction id: %w", err)
		}
		imgRows = append(imgRows, []any{
			pgtype.UUID{Bytes: id, Valid: true},
			pgtype.UUID{Bytes: txID, Valid: true},
			img.Path,
			img.Title,
		})
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"transactions"},
		[]string{"id", "user_id", "accomplished_at", "description", "operation", "amount"},
		pgx.CopyFromRows(txRows),
	); err != nil {
		return fmt.Errorf("copy transactions: %w", err)
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"transaction_images"},
		[]string{"id", "transaction_id", "path", "title"},
		pgx.CopyFromRows(imgRows),
	); err != nil {
		return fmt.Errorf("copy transaction images: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}
