package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/spendlog/service/internal/apperr"
	"github.com/spendlog/service/internal/middleware"
	"github.com/spendlog/service/internal/storage/storagetest"
	"github.com/spendlog/service/internal/transaction"
)

type memStore struct {
	txs      map[string][]transaction.Transaction
	images   map[string][]transaction.Image
	restores int
	fail     error
}

func newMemStore() *memStore {
	return &memStore{txs: map[string][]transaction.Transaction{}, images: map[string][]transaction.Image{}}
}

func (m *memStore) Snapshot(_ context.Context, userID string) ([]transaction.Transaction, []transaction.Image, error) {
	if m.fail != nil {
		return nil, nil, m.fail
	}
	return append([]transaction.Transaction(nil), m.txs[userID]...),
		append([]transaction.Image(nil), m.images[userID]...), nil
}

func (m *memStore) Restore(_ context.Context, userID string, txs []transaction.Transaction, images []transaction.Image) error {
	if m.fail != nil {
		return m.fail
	}
	m.restores++
	m.txs[userID] = append(m.txs[userID], txs...)
	m.images[userID] = append(m.images[userID], images...)
	return nil
}

func at(s string) time.Time {
	t, err := time.Parse(transaction.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func seeded() *memStore {
	m := newMemStore()
	m.txs["alice"] = []transaction.Transaction{
		{ID: "t1", UserID: "alice", AccomplishedAt: at("2024-01-05T09:30"), Description: "salary",
			Operation: transaction.OperationAdd, Amount: decimal.RequireFromString("2500.00")},
		{ID: "t2", UserID: "alice", AccomplishedAt: at("2024-01-06T12:00"), Description: "groceries",
			Operation: transaction.OperationSub, Amount: decimal.RequireFromString("84.15")},
	}
	m.images["alice"] = []transaction.Image{
		{ID: "i1", TransactionID: "t2", Path: "alice/r1.png", Title: "receipt"},
	}
	return m
}

func newService(store Store) *Service {
	svc := NewService(store, storagetest.NewBucket(), zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC) }
	return svc
}

func TestExport(t *testing.T) {
	svc := newService(seeded())
	doc, err := svc.Export(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if doc.Version != Version || len(doc.Transactions) != 2 || len(doc.TransactionImages) != 1 {
		t.Fatalf("Export() = %+v", doc)
	}
	if doc.TransactionImages[0].ImageURL != "https://cdn.test/alice/r1.png" {
		t.Errorf("ImageURL = %q", doc.TransactionImages[0].ImageURL)
	}

	empty, err := svc.Export(context.Background(), "bob")
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := json.Marshal(empty)
	if !strings.Contains(string(raw), `"transactions":[]`) || !strings.Contains(string(raw), `"transactionImages":[]`) {
		t.Errorf("empty export = %s, want empty arrays", raw)
	}
}

func TestExportUpstreamFailure(t *testing.T) {
	store := newMemStore()
	store.fail = errors.New("db down")
	if _, err := newService(store).Export(context.Background(), "alice"); !errors.Is(err, apperr.ErrUpstream) {
		t.Errorf("Export() error = %v, want ErrUpstream", err)
	}
}

func TestRoundTripRemapsIDs(t *testing.T) {
	src := seeded()
	doc, err := newService(src).Export(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	var decoded Document
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}

	dst := newMemStore()
	res, err := newService(dst).Import(context.Background(), "alice", &decoded)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Transactions != 2 || res.TransactionImages != 1 {
		t.Errorf("Import() = %+v", res)
	}

	txs, images := dst.txs["alice"], dst.images["alice"]
	byID := map[string]transaction.Transaction{}
	for _, tx := range txs {
		if tx.ID == "t1" || tx.ID == "t2" {
			t.Errorf("transaction kept its exported id %q", tx.ID)
		}
		if tx.UserID != "alice" {
			t.Errorf("UserID = %q", tx.UserID)
		}
		byID[tx.ID] = tx
	}
	parent, ok := byID[images[0].TransactionID]
	if !ok {
		t.Fatalf("image points at %q, not an imported transaction", images[0].TransactionID)
	}
	if parent.Description != "groceries" || !parent.Amount.Equal(decimal.RequireFromString("84.15")) {
		t.Errorf("image remapped onto %+v", parent)
	}
	if images[0].Path != "alice/r1.png" || images[0].ImageURL != "" {
		t.Errorf("image = %+v", images[0])
	}
}

func TestImportRejectsInvalidDocuments(t *testing.T) {
	valid := func() *Document {
		return &Document{
			Version: Version,
			Transactions: []transaction.Transaction{
				{ID: "a", AccomplishedAt: at("2024-03-01T10:00"), Description: "rent",
					Operation: transaction.OperationSub, Amount: decimal.RequireFromString("900")},
			},
			TransactionImages: []transaction.Image{
				{ID: "x", TransactionID: "a", Path: "alice/k.jpg", Title: "lease"},
			},
		}
	}
	tests := []struct {
		name   string
		mutate func(*Document)
	}{
		{"wrong version", func(d *Document) { d.Version = 7 }},
		{"missing id", func(d *Document) { d.Transactions[0].ID = "" }},
		{"duplicate id", func(d *Document) { d.Transactions = append(d.Transactions, d.Transactions[0]) }},
		{"bad operation", func(d *Document) { d.Transactions[0].Operation = "MUL" }},
		{"zero amount", func(d *Document) { d.Transactions[0].Amount = decimal.Zero }},
		{"three decimals", func(d *Document) { d.Transactions[0].Amount = decimal.RequireFromString("1.005") }},
		{"blank description", func(d *Document) { d.Transactions[0].Description = "  " }},
		{"missing date", func(d *Document) { d.Transactions[0].AccomplishedAt = time.Time{} }},
		{"unknown transaction", func(d *Document) { d.TransactionImages[0].TransactionID = "zzz" }},
		{"foreign path", func(d *Document) { d.TransactionImages[0].Path = "bob/k.jpg" }},
		{"empty title", func(d *Document) { d.TransactionImages[0].Title = "" }},
		{"shared path", func(d *Document) { d.TransactionImages = append(d.TransactionImages, d.TransactionImages[0]) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			doc := valid()
			tt.mutate(doc)
			if _, err := newService(store).Import(context.Background(), "alice", doc); !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("Import() error = %v, want ErrValidation", err)
			}
			if store.restores != 0 {
				t.Error("invalid document reached the store")
			}
		})
	}

	store := newMemStore()
	if _, err := newService(store).Import(context.Background(), "alice", valid()); err != nil {
		t.Fatalf("Import(valid) error = %v", err)
	}
}

func TestWriteXLSX(t *testing.T) {
	doc, err := newService(seeded()).Export(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, doc); err != nil {
		t.Fatalf("WriteXLSX() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetTransactions)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("Transactions rows = %d, want header + 2", len(rows))
	}
	if rows[0][0] != "ID" || rows[2][2] != "groceries" || rows[2][3] != "SUB" {
		t.Errorf("Transactions sheet = %v", rows)
	}
	if rows[2][5] != "-84.15" || rows[2][6] != "1" {
		t.Errorf("groceries row = %v, want signed amount -84.15 with 1 receipt", rows[2])
	}

	rows, err = f.GetRows(sheetReceipts)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[1][3] != "alice/r1.png" || rows[1][4] != "https://cdn.test/alice/r1.png" {
		t.Errorf("Receipts sheet = %v", rows)
	}
}

func TestHandlerImportAndExport(t *testing.T) {
	store := newMemStore()
	svc := newService(store)
	r := chi.NewRouter()
	r.Route("/backup", NewHandler(svc).Routes)

	call := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req = req.WithContext(middleware.WithUser(req.Context(), "alice", "alice@example.com"))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	body := `{"version":1,"transactions":[{"id":"old","accomplishedAt":"2024-04-01T08:00:00Z","description":"coffee","operation":"SUB","amount":"3.50"}],"transactionImages":[{"transactionId":"old","path":"alice/c.png","title":"cup"}]}`
	rec := call(http.MethodPost, "/backup/import", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("import status = %d body %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"transactions":1`) || !strings.Contains(rec.Body.String(), `"transactionImages":1`) {
		t.Errorf("import body = %s", rec.Body)
	}

	rec = call(http.MethodPost, "/backup/import", `{"version":1,"transactions":[],"transactionImages":[{"transactionId":"nope","path":"alice/c.png","title":"x"}]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad import status = %d", rec.Code)
	}

	rec = call(http.MethodGet, "/backup/export", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}
	var doc Document
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Transactions) != 1 || doc.Transactions[0].Description != "coffee" {
		t.Errorf("export = %+v", doc)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Disposition"), "attachment;") {
		t.Errorf("Content-Disposition = %q", rec.Header().Get("Content-Disposition"))
	}

	rec = call(http.MethodGet, "/backup/export.xlsx", "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != xlsxContentType {
		t.Fatalf("xlsx status = %d type %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if _, err := excelize.OpenReader(rec.Body); err != nil {
		t.Errorf("xlsx body is not a workbook: %v", err)
	}
}

func TestImportClassifiesStoreErrors(t *testing.T) {
	doc := &Document{Version: Version, Transactions: []transaction.Transaction{
		{ID: "a", AccomplishedAt: at("2024-03-01T10:00"), Description: "rent",
			Operation: transaction.OperationSub, Amount: decimal.RequireFromString("900")},
	}}
	tests := []struct {
		err  error
		want error
	}{
		{&pgconn.PgError{Code: "23505"}, apperr.ErrValidation},
		{&pgconn.PgError{Code: "23514"}, apperr.ErrValidation},
		{errors.New("connection reset"), apperr.ErrUpstream},
	}
	for _, tt := range tests {
		store := newMemStore()
		store.fail = tt.err
		if _, err := newService(store).Import(context.Background(), "alice", doc); !errors.Is(err, tt.want) {
			t.Errorf("Import() with store error %v = %v, want %v", tt.err, err, tt.want)
		}
	}
}
