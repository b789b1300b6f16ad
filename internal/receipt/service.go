package receipt

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/spendlog/service/internal/access"
	"github.com/spendlog/service/internal/apperr"
	"github.com/spendlog/service/internal/db"
	"github.com/spendlog/service/internal/storage"
	"github.com/spendlog/service/internal/transaction"
	"github.com/spendlog/service/internal/validation"
)

// An object key backs at most one image row, so deleting one image never
// removes the file under another.
var errPathTaken = apperr.Validation("path is already attached to a receipt")

// Store is the persistence the receipt Service depends on.
type Store interface {
	Get(ctx context.Context, id string) (*Image, error)
	Create(ctx context.Context, img *Image) error
	Update(ctx context.Context, img *Image) error
	Delete(ctx context.Context, id string) error
}

// Transactions resolves ownership of the transaction an image belongs to.
type Transactions interface {
	Owned(ctx context.Context, userID, id string) access.Result[*transaction.Transaction]
}

// UploadRequest asks for a signed upload URL.
type UploadRequest struct {
	FileType   string `json:"fileType"   validate:"required,oneof=image/png image/jpg image/jpeg"`
	ByteLength int64  `json:"byteLength" validate:"gte=0"`
}

// UploadResponse carries the signed URL. MaxBytes is advisory; the store
// does not enforce it.
type UploadResponse struct {
	storage.UploadTicket
	MaxBytes int64 `json:"maxBytes"`
}

// CreateInput confirms an upload by attaching its key to a transaction.
type CreateInput struct {
	TransactionID string `json:"transactionId" validate:"required"`
	Title         string `json:"title"         validate:"min=1"`
	Path          string `json:"path"          validate:"required"`
}

// EditInput updates an image. An empty Path keeps the stored key.
type EditInput struct {
	Title string `json:"title" validate:"min=1"`
	Path  string `json:"path,omitempty"`
}

// DownloadResponse carries a signed GET URL for an image.
type DownloadResponse struct {
	Key       string    `json:"key"`
	SignedURL string    `json:"signedUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Options tunes the signed URL lifetimes.
type Options struct {
	UploadTTL      time.Duration
	DownloadTTL    time.Duration
	MaxUploadBytes int64
}

// Service implements the two-phase upload: a client obtains a signed URL,
// uploads directly to the store, then confirms the key here. Keys that are
// uploaded but never confirmed, or replaced by an edit, stay in the store
// until reconciliation removes them.
type Service struct {
	store   Store
	txs     Transactions
	objects storage.Storage
	opts    Options
	log     zerolog.Logger
}

// NewService creates a new receipt Service.
func NewService(store Store, txs Transactions, objects storage.Storage, opts Options, log zerolog.Logger) *Service {
	return &Service{store: store, txs: txs, objects: objects, opts: opts, log: log}
}

// IssueUploadURL signs a PUT for a fresh key under the caller's prefix.
func (s *Service) IssueUploadURL(ctx context.Context, userID string, req UploadRequest) (*UploadResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	ticket, err := storage.IssueUploadURL(ctx, s.objects, userID, req.FileType, s.opts.UploadTTL)
	if err != nil {
		return nil, apperr.Upstream("issue upload url", err)
	}
	if s.opts.MaxUploadBytes > 0 && req.ByteLength > s.opts.MaxUploadBytes {
		s.log.Info().Str("user_id", userID).Int64("bytes", req.ByteLength).
			Int64("max", s.opts.MaxUploadBytes).Msg("upload larger than advised limit")
	}
	return &UploadResponse{UploadTicket: *ticket, MaxBytes: s.opts.MaxUploadBytes}, nil
}

// Owned walks image → transaction → user and yields the image if the caller
// owns its transaction.
func (s *Service) Owned(ctx context.Context, userID, id string) access.Result[*Image] {
	img, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return access.NotFound[*Image]("transaction image")
	}
	if err != nil {
		return access.Fail[*Image](apperr.Upstream("load transaction image", err))
	}
	return access.Then(s.txs.Owned(ctx, userID, img.TransactionID),
		func(*transaction.Transaction) access.Result[*Image] { return access.Grant(img) })
}

// Get returns an image the caller owns.
func (s *Service) Get(ctx context.Context, userID, id string) (*Image, error) {
	img, err := s.Owned(ctx, userID, id).Get()
	if err != nil {
		return nil, err
	}
	img.ImageURL = s.objects.PublicURL(img.Path)
	return img, nil
}

// Create records an uploaded object as an image of a transaction the caller owns.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*Image, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if err := s.txs.Owned(ctx, userID, in.TransactionID).Err(); err != nil {
		return nil, err
	}
	if err := s.confirmUpload(ctx, userID, in.Path); err != nil {
		return nil, err
	}

	img := &Image{TransactionID: in.TransactionID, Path: in.Path, Title: in.Title}
	if err := s.store.Create(ctx, img); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, errPathTaken
		}
		return nil, apperr.Upstream("create transaction image", err)
	}
	img.ImageURL = s.objects.PublicURL(img.Path)
	s.log.Debug().Str("user_id", userID).Str("image_id", img.ID).Str("path", img.Path).Msg("receipt confirmed")
	return img, nil
}

// Edit updates the title and, when a new key is supplied, substitutes the
// stored key. The superseded object is not deleted here.
func (s *Service) Edit(ctx context.Context, userID, id string, in EditInput) (*Image, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	img, err := s.Owned(ctx, userID, id).Get()
	if err != nil {
		return nil, err
	}

	if in.Path != "" && in.Path != img.Path {
		if err := s.confirmUpload(ctx, userID, in.Path); err != nil {
			return nil, err
		}
		s.log.Debug().Str("image_id", img.ID).Str("old_path", img.Path).Str("new_path", in.Path).
			Msg("receipt replaced, previous object left for reconciliation")
		img.Path = in.Path
	}
	img.Title = in.Title

	if err := s.store.Update(ctx, img); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("transaction image")
		}
		if db.IsUniqueViolation(err) {
			return nil, errPathTaken
		}
		return nil, apperr.Upstream("update transaction image", err)
	}
	img.ImageURL = s.objects.PublicURL(img.Path)
	return img, nil
}

// Delete removes the image row and then its object.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	img, err := s.Owned(ctx, userID, id).Get()
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, img.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperr.NotFound("transaction image")
		}
		return apperr.Upstream("delete transaction image", err)
	}
	if err := s.objects.Delete(ctx, img.Path); err != nil {
		return apperr.Upstream("delete receipt object", err)
	}
	return nil
}

// DownloadURL signs a GET for an image the caller owns.
func (s *Service) DownloadURL(ctx context.Context, userID, id string) (*DownloadResponse, error) {
	img, err := s.Owned(ctx, userID, id).Get()
	if err != nil {
		return nil, err
	}
	signed, err := s.objects.PresignDownload(ctx, img.Path, s.opts.DownloadTTL)
	if err != nil {
		return nil, apperr.Upstream("issue download url", err)
	}
	return &DownloadResponse{
		Key:       img.Path,
		SignedURL: signed,
		ExpiresAt: time.Now().Add(s.opts.DownloadTTL).UTC(),
	}, nil
}

// confirmUpload checks that path is one of the caller's keys and that the
// upload actually reached the store.
func (s *Service) confirmUpload(ctx context.Context, userID, path string) error {
	if !storage.OwnedBy(userID, path) {
		return apperr.Validation("path does not belong to the current user")
	}
	ok, err := s.objects.Exists(ctx, path)
	if err != nil {
		return apperr.Upstream("check uploaded object", err)
	}
	if !ok {
		return apperr.Validation("uploaded file not found")
	}
	return nil
}
