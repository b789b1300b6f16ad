package backup

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/spendlog/service/internal/apperr"
	"github.com/spendlog/service/internal/db"
	"github.com/spendlog/service/internal/storage"
	"github.com/spendlog/service/internal/transaction"
)

// Version is the document format written by Export and accepted by Import.
const Version = 1

// Store is the persistence the backup Service depends on.
type Store interface {
	Snapshot(ctx context.Context, userID string) ([]transaction.Transaction, []transaction.Image, error)
	Restore(ctx context.Context, userID string, txs []transaction.Transaction, images []transaction.Image) error
}

// URLer resolves the browser-visible URL of a stored key.
type URLer interface {
	PublicURL(key string) string
}

// Document is the exported form of a user's records.
type Document struct {
	Version           int                       `json:"version"`
	ExportedAt        time.Time                 `json:"exportedAt"`
	Transactions      []transaction.Transaction `json:"transactions"`
	TransactionImages []transaction.Image       `json:"transactionImages"`
}

// ImportResult counts the rows an import created.
type ImportResult struct {
	Transactions      int `json:"transactions"`
	TransactionImages int `json:"transactionImages"`
}

// Service exports and restores a user's records.
type Service struct {
	store Store
	urls  URLer
	log   zerolog.Logger
	now   func() time.Time
}

// NewService creates a new backup Service.
func NewService(store Store, urls URLer, log zerolog.Logger) *Service {
	return &Service{store: store, urls: urls, log: log, now: time.Now}
}

// Export returns the caller's transactions and images as a Document.
func (s *Service) Export(ctx context.Context, userID string) (*Document, error) {
	txs, images, err := s.store.Snapshot(ctx, userID)
	if err != nil {
		return nil, apperr.Upstream("export records", err)
	}
	if txs == nil {
		txs = []transaction.Transaction{}
	}
	if images == nil {
		images = []transaction.Image{}
	}
	for i := range images {
		images[i].ImageURL = s.urls.PublicURL(images[i].Path)
	}
	return &Document{
		Version:           Version,
		ExportedAt:        s.now().UTC(),
		Transactions:      txs,
		TransactionImages: images,
	}, nil
}

// Import recreates the document's records for the caller with fresh ids.
// Image rows are remapped onto the new transaction ids. Nothing is written
// unless the whole document is valid.
func (s *Service) Import(ctx context.Context, userID string, doc *Document) (*ImportResult, error) {
	txs, images, err := prepare(userID, doc)
	if err != nil {
		return nil, err
	}
	if err := s.store.Restore(ctx, userID, txs, images); err != nil {
		switch {
		case db.IsUniqueViolation(err):
			return nil, apperr.Validation("backup conflicts with existing records")
		case db.IsInvalidInput(err):
			return nil, apperr.Validation("backup contains values the database rejected")
		}
		return nil, apperr.Upstream("import records", err)
	}
	s.log.Info().Str("user_id", userID).Int("transactions", len(txs)).
		Int("images", len(images)).Msg("backup imported")
	return &ImportResult{Transactions: len(txs), TransactionImages: len(images)}, nil
}

func prepare(userID string, doc *Document) ([]transaction.Transaction, []transaction.Image, error) {
	if doc == nil {
		return nil, nil, apperr.Validation("backup document is empty")
	}
	if doc.Version != Version {
		return nil, nil, apperr.Validation("unsupported backup version %d", doc.Version)
	}

	ids := make(map[string]string, len(doc.Transactions))
	txs := make([]transaction.Transaction, 0, len(doc.Transactions))
	for i, in := range doc.Transactions {
		if in.ID == "" {
			return nil, nil, apperr.Validation("transactions[%d]: id is required", i)
		}
		if _, dup := ids[in.ID]; dup {
			return nil, nil, apperr.Validation("transactions[%d]: duplicate id %q", i, in.ID)
		}
		t := transaction.Transaction{
			ID:             uuid.NewString(),
			UserID:         userID,
			AccomplishedAt: in.AccomplishedAt,
			Description:    in.Description,
			Operation:      in.Operation,
			Amount:         in.Amount,
		}
		if err := transaction.Validate(&t); err != nil {
			return nil, nil, apperr.Validation("transactions[%d]: %s", i, apperr.Message(err))
		}
		ids[in.ID] = t.ID
		txs = append(txs, t)
	}

	paths := make(map[string]struct{}, len(doc.TransactionImages))
	images := make([]transaction.Image, 0, len(doc.TransactionImages))
	for i, in := range doc.TransactionImages {
		txID, ok := ids[in.TransactionID]
		if !ok {
			return nil, nil, apperr.Validation("transactionImages[%d]: unknown transaction %q", i, in.TransactionID)
		}
		if !storage.OwnedBy(userID, in.Path) {
			return nil, nil, apperr.Validation("transactionImages[%d]: path does not belong to the current user", i)
		}
		if _, dup := paths[in.Path]; dup {
			return nil, nil, apperr.Validation("transactionImages[%d]: path %q is used by another image", i, in.Path)
		}
		paths[in.Path] = struct{}{}
		if strings.TrimSpace(in.Title) == "" {
			return nil, nil, apperr.Validation("transactionImages[%d]: title cannot be empty", i)
		}
		images = append(images, transaction.Image{
			ID:            uuid.NewString(),
			TransactionID: txID,
			Path:          in.Path,
			Title:         in.Title,
		})
	}
	return txs, images, nil
}

const (
	sheetTransactions = "Transactions"
	sheetReceipts     = "Receipts"
)

// WriteXLSX writes doc as a workbook with one sheet per record type.
func WriteXLSX(w io.Writer, doc *Document) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName("Sheet1", sheetTransactions); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetReceipts); err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	receipts := make(map[string]int, len(doc.Transactions))
	for _, img := range doc.TransactionImages {
		receipts[img.TransactionID]++
	}

	rows := [][]any{{"ID", "Accomplished At", "Description", "Operation", "Amount", "Signed Amount", "Receipts"}}
	for _, t := range doc.Transactions {
		rows = append(rows, []any{
			t.ID,
			t.AccomplishedAt.Format(transaction.DateLayout),
			t.Description,
			string(t.Operation),
			t.Amount.InexactFloat64(),
			t.SignedAmount().InexactFloat64(),
			receipts[t.ID],
		})
	}
	if err := writeSheet(f, sheetTransactions, rows, bold); err != nil {
		return err
	}

	rows = [][]any{{"ID", "Transaction ID", "Title", "Path", "URL"}}
	for _, img := range doc.TransactionImages {
		rows = append(rows, []any{img.ID, img.TransactionID, img.Title, img.Path, img.ImageURL})
	}
	if err := writeSheet(f, sheetReceipts, rows, bold); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		row := row
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	return nil
}
