package transaction

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/spendlog/service/internal/access"
	"github.com/spendlog/service/internal/apperr"
	"github.com/spendlog/service/internal/storage"
	"github.com/spendlog/service/internal/validation"
)

// DateLayout is the accepted format of Input.AccomplishedAt (a browser
// datetime-local value).
const DateLayout = validation.DateTimeLocal

var maxAmount = decimal.New(1, 12)

// Store is the persistence the transaction Service depends on.
type Store interface {
	ListByUser(ctx context.Context, userID string) ([]Transaction, error)
	Get(ctx context.Context, id string) (*Transaction, error)
	Images(ctx context.Context, transactionID string) ([]Image, error)
	Create(ctx context.Context, t *Transaction) error
	Update(ctx context.Context, t *Transaction) error
	Delete(ctx context.Context, id string) ([]string, error)
}

// Objects is the part of the object store the Service uses.
type Objects interface {
	storage.Deleter
	PublicURL(key string) string
}

// Input is the client-supplied body for create and edit.
type Input struct {
	// UserID is optional; when present it must name the caller.
	UserID         string          `json:"userId,omitempty"`
	AccomplishedAt string          `json:"accomplishedAt" validate:"required,datetime_local"`
	Description    string          `json:"description"    validate:"min=1"`
	Operation      Operation       `json:"operation"      validate:"oneof=ADD SUB"`
	Amount         decimal.Decimal `json:"amount"         validate:"gt=0"`
}

// Service contains transaction business logic.
type Service struct {
	store          Store
	objects        Objects
	log            zerolog.Logger
	deleteParallel int
}

// NewService creates a new transaction Service. deleteParallel bounds the
// number of concurrent object deletions when a transaction is removed.
func NewService(store Store, objects Objects, log zerolog.Logger, deleteParallel int) *Service {
	return &Service{store: store, objects: objects, log: log, deleteParallel: deleteParallel}
}

// Owned looks up a transaction and checks that userID owns it.
func (s *Service) Owned(ctx context.Context, userID, id string) access.Result[*Transaction] {
	t, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return access.NotFound[*Transaction]("transaction")
	}
	if err != nil {
		return access.Fail[*Transaction](apperr.Upstream("load transaction", err))
	}
	return access.Check(t, t.UserID, userID, "transaction")
}

// List returns the caller's transactions ordered by accomplishment date, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Transaction, error) {
	out, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Upstream("list transactions", err)
	}
	return out, nil
}

// Summary is the running balance of a user's transactions.
type Summary struct {
	Count   int             `json:"count"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Total   decimal.Decimal `json:"total"`
}

// Summary adds up the caller's transactions: ADD amounts count towards the
// total and SUB amounts against it.
func (s *Service) Summary(ctx context.Context, userID string) (*Summary, error) {
	list, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Summarize(list), nil
}

// Summarize totals list.
func Summarize(list []Transaction) *Summary {
	sum := &Summary{Count: len(list), Income: decimal.Zero, Expense: decimal.Zero, Total: decimal.Zero}
	for _, t := range list {
		if t.Operation == OperationSub {
			sum.Expense = sum.Expense.Add(t.Amount)
		} else {
			sum.Income = sum.Income.Add(t.Amount)
		}
		sum.Total = sum.Total.Add(t.SignedAmount())
	}
	return sum
}

// Get returns a transaction with its images if the caller owns it.
func (s *Service) Get(ctx context.Context, userID, id string) (*Transaction, error) {
	t, err := s.Owned(ctx, userID, id).Get()
	if err != nil {
		return nil, err
	}
	images, err := s.store.Images(ctx, t.ID)
	if err != nil {
		return nil, apperr.Upstream("list transaction images", err)
	}
	for i := range images {
		images[i].ImageURL = s.objects.PublicURL(images[i].Path)
	}
	t.Images = images
	return t, nil
}

// Create records a new transaction for the caller.
func (s *Service) Create(ctx context.Context, userID string, in Input) (*Transaction, error) {
	t, err := s.fromInput(userID, in)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, apperr.Upstream("create transaction", err)
	}
	s.log.Debug().Str("user_id", userID).Str("transaction_id", t.ID).Msg("transaction created")
	return t, nil
}

// Edit replaces the mutable fields of a transaction the caller owns.
func (s *Service) Edit(ctx context.Context, userID, id string, in Input) (*Transaction, error) {
	existing, err := s.Owned(ctx, userID, id).Get()
	if err != nil {
		return nil, err
	}
	t, err := s.fromInput(userID, in)
	if err != nil {
		return nil, err
	}
	t.ID = existing.ID
	if err := s.store.Update(ctx, t); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("transaction")
		}
		return nil, apperr.Upstream("update transaction", err)
	}
	return t, nil
}

// Delete removes a transaction the caller owns together with its images, then
// deletes every image's object. The rows are gone even if some object
// deletions fail; those objects are left as orphans and the failure is
// reported as an upstream error.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if err := s.Owned(ctx, userID, id).Err(); err != nil {
		return err
	}
	paths, err := s.store.Delete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound("transaction")
	}
	if err != nil {
		return apperr.Upstream("delete transaction", err)
	}

	report, err := storage.DeleteAll(ctx, s.objects, paths, s.deleteParallel)
	if err != nil {
		s.log.Warn().Err(err).Str("transaction_id", id).Strs("failed", report.Failed).
			Msg("transaction deleted but some receipt objects remain")
		return apperr.Upstream("delete receipt objects", err)
	}
	return nil
}

func (s *Service) fromInput(userID string, in Input) (*Transaction, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if in.UserID != "" && in.UserID != userID {
		return nil, apperr.ErrUnauthorized
	}
	at, err := time.Parse(DateLayout, in.AccomplishedAt)
	if err != nil {
		return nil, apperr.Validation("accomplishedAt is not a valid date")
	}
	t := &Transaction{
		UserID:         userID,
		AccomplishedAt: at,
		Description:    in.Description,
		Operation:      in.Operation,
		Amount:         in.Amount,
	}
	if err := Validate(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks the client-controlled fields of t against the column
// constraints of the transactions table.
func Validate(t *Transaction) error {
	switch {
	case t.AccomplishedAt.IsZero():
		return apperr.Validation("accomplishedAt is required")
	case strings.TrimSpace(t.Description) == "":
		return apperr.Validation("description cannot be empty")
	case t.Operation != OperationAdd && t.Operation != OperationSub:
		return apperr.Validation("operation must be one of: ADD, SUB")
	case !t.Amount.IsPositive():
		return apperr.Validation("amount must be a positive number")
	case !t.Amount.Round(2).Equal(t.Amount):
		return apperr.Validation("amount must have at most 2 decimal places")
	case t.Amount.GreaterThanOrEqual(maxAmount):
		return apperr.Validation("amount is too large")
	}
	return nil
}

// SignedAmount returns the amount negated for SUB operations.
func (t Transaction) SignedAmount() decimal.Decimal {
	if t.Operation == OperationSub {
		return t.Amount.Neg()
	}
	return t.Amount
}
