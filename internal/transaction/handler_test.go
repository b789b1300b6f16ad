package transaction

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/spendlog/service/internal/middleware"
)

const testSecret = "handler-secret"

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func newRouter(svc *Service) http.Handler {
	r := chi.NewRouter()
	r.Route("/transactions", func(r chi.Router) {
		r.Use(middleware.RequireAuth(testSecret))
		NewHandler(svc).Routes(r)
	})
	return r
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec.Code, env
}

func TestHandlerOwnershipFlow(t *testing.T) {
	svc, _, _ := newTestService()
	h := newRouter(svc)
	alice, bob := tokenFor(t, "alice"), tokenFor(t, "bob")

	status, env := do(t, h, http.MethodPost, "/transactions", alice, map[string]any{
		"accomplishedAt": "2024-06-01T10:00",
		"description":    "salary",
		"operation":      "ADD",
		"amount":         100,
	})
	if status != http.StatusCreated {
		t.Fatalf("create status = %d (%s)", status, env.Error)
	}
	var created struct {
		ID        string `json:"id"`
		Amount    string `json:"amount"`
		Operation string `json:"operation"`
	}
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatal(err)
	}

	status, env = do(t, h, http.MethodGet, "/transactions/"+created.ID, alice, nil)
	if status != http.StatusOK {
		t.Fatalf("get status = %d (%s)", status, env.Error)
	}
	var got struct {
		Amount    string `json:"amount"`
		Operation string `json:"operation"`
	}
	_ = json.Unmarshal(env.Data, &got)
	if got.Amount != "100" || got.Operation != "ADD" {
		t.Errorf("get = %+v, want amount 100 operation ADD", got)
	}

	edit := map[string]any{
		"accomplishedAt": "2024-06-01T10:00",
		"description":    "hijack",
		"operation":      "SUB",
		"amount":         1,
	}
	for _, tc := range []struct {
		method string
		body   any
	}{
		{http.MethodGet, nil},
		{http.MethodPut, edit},
		{http.MethodDelete, nil},
	} {
		status, _ := do(t, h, tc.method, "/transactions/"+created.ID, bob, tc.body)
		if status != http.StatusForbidden {
			t.Errorf("%s as bob status = %d, want 403", tc.method, status)
		}
	}

	status, _ = do(t, h, http.MethodGet, "/transactions/does-not-exist", alice, nil)
	if status != http.StatusNotFound {
		t.Errorf("get missing status = %d, want 404", status)
	}

	status, _ = do(t, h, http.MethodDelete, "/transactions/"+created.ID, alice, nil)
	if status != http.StatusOK {
		t.Errorf("delete status = %d, want 200", status)
	}
}

func TestHandlerSummary(t *testing.T) {
	svc, _, _ := newTestService()
	h := newRouter(svc)
	alice := tokenFor(t, "alice")

	for _, body := range []map[string]any{
		{"accomplishedAt": "2024-06-01T10:00", "description": "salary", "operation": "ADD", "amount": "250.10"},
		{"accomplishedAt": "2024-06-02T10:00", "description": "groceries", "operation": "SUB", "amount": "300"},
	} {
		if status, env := do(t, h, http.MethodPost, "/transactions", alice, body); status != http.StatusCreated {
			t.Fatalf("create status = %d (%s)", status, env.Error)
		}
	}

	status, env := do(t, h, http.MethodGet, "/transactions/summary", alice, nil)
	if status != http.StatusOK {
		t.Fatalf("summary status = %d (%s)", status, env.Error)
	}
	var sum struct {
		Count int    `json:"count"`
		Total string `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &sum); err != nil {
		t.Fatal(err)
	}
	if sum.Count != 2 || sum.Total != "-49.9" {
		t.Errorf("summary = %+v, want count 2 total -49.9", sum)
	}
}

func TestHandlerRejectsInvalidBody(t *testing.T) {
	svc, _, _ := newTestService()
	h := newRouter(svc)

	status, env := do(t, h, http.MethodPost, "/transactions", tokenFor(t, "alice"), map[string]any{
		"accomplishedAt": "2024-06-01",
		"description":    "x",
		"operation":      "ADD",
		"amount":         3,
	})
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if env.Error != "accomplishedAt is not a valid date" {
		t.Errorf("error = %q", env.Error)
	}
}

func TestHandlerRequiresToken(t *testing.T) {
	svc, _, _ := newTestService()
	status, _ := do(t, newRouter(svc), http.MethodGet, "/transactions", "", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", status)
	}
}
