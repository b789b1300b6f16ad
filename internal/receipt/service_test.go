package receipt

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/spendlog/service/internal/access"
	"github.com/spendlog/service/internal/apperr"
	"github.com/spendlog/service/internal/storage/storagetest"
	"github.com/spendlog/service/internal/transaction"
)

type memImages struct {
	mu   sync.Mutex
	seq  int
	rows map[string]Image
}

func (m *memImages) Get(_ context.Context, id string) (*Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &img, nil
}

func (m *memImages) Create(_ context.Context, img *Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.pathTaken(img); err != nil {
		return err
	}
	m.seq++
	img.ID = fmt.Sprintf("img-%d", m.seq)
	img.CreatedAt = time.Now()
	m.rows[img.ID] = *img
	return nil
}

func (m *memImages) Update(_ context.Context, img *Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[img.ID]; !ok {
		return ErrNotFound
	}
	if err := m.pathTaken(img); err != nil {
		return err
	}
	m.rows[img.ID] = *img
	return nil
}

func (m *memImages) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

// pathTaken mirrors the unique index on transaction_images.path.
func (m *memImages) pathTaken(img *Image) error {
	for id, row := range m.rows {
		if id != img.ID && row.Path == img.Path {
			return fmt.Errorf("insert transaction image: %w",
				&pgconn.PgError{Code: "23505", ConstraintName: "transaction_images_path_key"})
		}
	}
	return nil
}

// ownerTable maps transaction id to owner.
type ownerTable map[string]string

func (o ownerTable) Owned(_ context.Context, userID, id string) access.Result[*transaction.Transaction] {
	owner, ok := o[id]
	if !ok {
		return access.NotFound[*transaction.Transaction]("transaction")
	}
	t := &transaction.Transaction{ID: id, UserID: owner}
	return access.Check(t, owner, userID, "transaction")
}

type fixture struct {
	svc    *Service
	images *memImages
	bucket *storagetest.Bucket
}

func newFixture() fixture {
	images := &memImages{rows: map[string]Image{}}
	bucket := storagetest.NewBucket()
	txs := ownerTable{"tx-alice": "alice", "tx-bob": "bob"}
	svc := NewService(images, txs, bucket, Options{
		UploadTTL:      30 * time.Second,
		DownloadTTL:    60 * time.Second,
		MaxUploadBytes: 4 << 20,
	}, zerolog.Nop())
	return fixture{svc: svc, images: images, bucket: bucket}
}

// upload performs phase one and two of the flow: sign, then PUT.
func (f fixture) upload(t *testing.T, userID, fileType string) string {
	t.Helper()
	out, err := f.svc.IssueUploadURL(context.Background(), userID, UploadRequest{FileType: fileType, ByteLength: 1024})
	if err != nil {
		t.Fatalf("IssueUploadURL() error = %v", err)
	}
	f.bucket.Put(out.Key)
	return out.Key
}

func TestIssueUploadURL(t *testing.T) {
	f := newFixture()
	out, err := f.svc.IssueUploadURL(context.Background(), "alice", UploadRequest{FileType: "image/png", ByteLength: 2048})
	if err != nil {
		t.Fatalf("IssueUploadURL() error = %v", err)
	}
	if !strings.HasPrefix(out.Key, "alice/") || !strings.HasSuffix(out.Key, ".png") {
		t.Errorf("Key = %q, want alice/<uuid>.png", out.Key)
	}
	u, err := url.Parse(out.SignedURL)
	if err != nil {
		t.Fatal(err)
	}
	if u.Query().Get("ttl") != "30" {
		t.Errorf("signed ttl = %s, want 30", u.Query().Get("ttl"))
	}
	if out.MaxBytes != 4<<20 {
		t.Errorf("MaxBytes = %d", out.MaxBytes)
	}
	if f.bucket.Len() != 0 {
		t.Error("issuing a URL must not create objects")
	}
	if len(f.images.rows) != 0 {
		t.Error("issuing a URL must not create rows")
	}
}

func TestIssueUploadURLValidation(t *testing.T) {
	f := newFixture()
	tests := []UploadRequest{
		{FileType: "image/gif", ByteLength: 10},
		{FileType: "", ByteLength: 10},
		{FileType: "image/png", ByteLength: -1},
	}
	for _, req := range tests {
		if _, err := f.svc.IssueUploadURL(context.Background(), "alice", req); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("IssueUploadURL(%+v) error = %v, want ErrValidation", req, err)
		}
	}
}

func TestCreateAfterUpload(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	key := f.upload(t, "alice", "image/jpeg")

	img, err := f.svc.Create(ctx, "alice", CreateInput{TransactionID: "tx-alice", Title: "dinner", Path: key})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if img.Path != key {
		t.Errorf("Path = %q, want %q", img.Path, key)
	}
	if img.ImageURL != "https://cdn.test/"+key {
		t.Errorf("ImageURL = %q", img.ImageURL)
	}

	got, err := f.svc.Get(ctx, "alice", img.ID)
	if err != nil || got.Title != "dinner" {
		t.Errorf("Get() = %+v, %v", got, err)
	}
}

func TestCreateRejectsUnconfirmedUpload(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	out, err := f.svc.IssueUploadURL(ctx, "alice", UploadRequest{FileType: "image/png"})
	if err != nil {
		t.Fatal(err)
	}
	// The client never PUTs the file.
	_, err = f.svc.Create(ctx, "alice", CreateInput{TransactionID: "tx-alice", Title: "ghost", Path: out.Key})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("Create() error = %v, want ErrValidation", err)
	}
	if len(f.images.rows) != 0 {
		t.Error("row created for an object that was never uploaded")
	}
}

func TestCreateOwnershipChecks(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	aliceKey := f.upload(t, "alice", "image/png")
	bobKey := f.upload(t, "bob", "image/png")

	tests := []struct {
		name string
		in   CreateInput
		want error
	}{
		{"foreign transaction", CreateInput{TransactionID: "tx-bob", Title: "x", Path: aliceKey}, apperr.ErrUnauthorized},
		{"missing transaction", CreateInput{TransactionID: "tx-none", Title: "x", Path: aliceKey}, apperr.ErrNotFound},
		{"foreign key", CreateInput{TransactionID: "tx-alice", Title: "x", Path: bobKey}, apperr.ErrValidation},
		{"empty title", CreateInput{TransactionID: "tx-alice", Title: "", Path: aliceKey}, apperr.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Create(ctx, "alice", tt.in); !errors.Is(err, tt.want) {
				t.Errorf("Create() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEditWithoutFileKeepsPath(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	key := f.upload(t, "alice", "image/png")
	img, _ := f.svc.Create(ctx, "alice", CreateInput{TransactionID: "tx-alice", Title: "old", Path: key})

	edited, err := f.svc.Edit(ctx, "alice", img.ID, EditInput{Title: "new"})
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if edited.Path != key || edited.Title != "new" {
		t.Errorf("Edit() = %+v, want path %q title new", edited, key)
	}
}

func TestEditWithFileReplacesPathAndLeavesOldObject(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	oldKey := f.upload(t, "alice", "image/png")
	img, _ := f.svc.Create(ctx, "alice", CreateInput{TransactionID: "tx-alice", Title: "t", Path: oldKey})

	newKey := f.upload(t, "alice", "image/jpeg")
	edited, err := f.svc.Edit(ctx, "alice", img.ID, EditInput{Title: "t", Path: newKey})
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if edited.Path != newKey {
		t.Errorf("Path = %q, want %q", edited.Path, newKey)
	}
	if !f.bucket.Has(oldKey) {
		t.Error("edit must not delete the superseded object")
	}
	if len(f.bucket.Deletes) != 0 {
		t.Errorf("unexpected deletes: %v", f.bucket.Deletes)
	}
}

func TestEditRejectsUnuploadedReplacement(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	key := f.upload(t, "alice", "image/png")
	img, _ := f.svc.Create(ctx, "alice", CreateInput{TransactionID: "tx-alice", Title: "t", Path: key})

	_, err := f.svc.Edit(ctx, "alice", img.ID, EditInput{Title: "t", Path: "alice/never-uploaded.png"})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("Edit() error = %v, want ErrValidation", err)
	}
	got, _ := f.svc.Get(ctx, "alice", img.ID)
	if got.Path != key {
		t.Errorf("path changed to %q after failed edit", got.Path)
	}
}

func TestImageOwnershipChain(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	key := f.upload(t, "alice", "image/png")
	img, _ := f.svc.Create(ctx, "alice", CreateInput{TransactionID: "tx-alice", Title: "t", Path: key})

	if _, err := f.svc.Get(ctx, "bob", img.ID); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("Get() as bob error = %v, want ErrUnauthorized", err)
	}
	if _, err := f.svc.Edit(ctx, "bob", img.ID, EditInput{Title: "mine"}); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("Edit() as bob error = %v, want ErrUnauthorized", err)
	}
	if err := f.svc.Delete(ctx, "bob", img.ID); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("Delete() as bob error = %v, want ErrUnauthorized", err)
	}
	if _, err := f.svc.DownloadURL(ctx, "bob", img.ID); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("DownloadURL() as bob error = %v, want ErrUnauthorized", err)
	}
	if _, err := f.svc.Get(ctx, "alice", "img-404"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestDeleteRemovesRowAndObject(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	key := f.upload(t, "alice", "image/png")
	img, _ := f.svc.Create(ctx, "alice", CreateInput{TransactionID: "tx-alice", Title: "t", Path: key})

	if err := f.svc.Delete(ctx, "alice", img.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if f.bucket.Has(key) {
		t.Error("object survived delete")
	}
	if _, err := f.svc.Get(ctx, "alice", img.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
}

func TestKeyBacksOneImage(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	key := f.upload(t, "alice", "image/png")
	first, err := f.svc.Create(ctx, "alice", CreateInput{TransactionID: "tx-alice", Title: "a", Path: key})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := f.svc.Create(ctx, "alice", CreateInput{TransactionID: "tx-alice", Title: "b", Path: key}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("second Create() with same key error = %v, want ErrValidation", err)
	}

	other := f.upload(t, "alice", "image/png")
	second, err := f.svc.Create(ctx, "alice", CreateInput{TransactionID: "tx-alice", Title: "b", Path: other})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := f.svc.Edit(ctx, "alice", second.ID, EditInput{Title: "b", Path: key}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("Edit() onto a used key error = %v, want ErrValidation", err)
	}

	if err := f.svc.Delete(ctx, "alice", second.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !f.bucket.Has(key) {
		t.Error("deleting one image removed the object of another")
	}
	got, err := f.svc.Get(ctx, "alice", first.ID)
	if err != nil || got.Path != key {
		t.Errorf("Get() = %+v, %v", got, err)
	}
}

func TestDeleteToleratesAbsentObject(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	key := f.upload(t, "alice", "image/png")
	img, _ := f.svc.Create(ctx, "alice", CreateInput{TransactionID: "tx-alice", Title: "t", Path: key})
	_ = f.bucket.Delete(ctx, key)

	if err := f.svc.Delete(ctx, "alice", img.ID); err != nil {
		t.Fatalf("Delete() with object already gone error = %v", err)
	}
}

func TestDownloadURL(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	key := f.upload(t, "alice", "image/png")
	img, _ := f.svc.Create(ctx, "alice", CreateInput{TransactionID: "tx-alice", Title: "t", Path: key})

	out, err := f.svc.DownloadURL(ctx, "alice", img.ID)
	if err != nil {
		t.Fatalf("DownloadURL() error = %v", err)
	}
	if out.Key != key || !strings.Contains(out.SignedURL, "method=GET") || !strings.Contains(out.SignedURL, "ttl=60") {
		t.Errorf("DownloadURL() = %+v", out)
	}
}
