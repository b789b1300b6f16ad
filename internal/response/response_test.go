package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spendlog/service/internal/apperr"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		message string
	}{
		{apperr.Validation("title cannot be empty"), http.StatusBadRequest, "title cannot be empty"},
		{apperr.NotFound("transaction image"), http.StatusNotFound, "transaction image not found"},
		{apperr.ErrUnauthorized, http.StatusForbidden, "you do not have access to this resource"},
		{apperr.Upstream("stat object", errors.New("timeout")), http.StatusBadGateway, "upstream service failed"},
		{errors.New("nil pointer"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		FromError(rec, tt.err)
		if rec.Code != tt.status {
			t.Errorf("FromError(%v) status = %d, want %d", tt.err, rec.Code, tt.status)
		}
		var env Envelope
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatal(err)
		}
		if env.Success || env.Error != tt.message {
			t.Errorf("FromError(%v) envelope = %+v, want error %q", tt.err, env, tt.message)
		}
		if rec.Header().Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
		}
	}
}

func TestOKAndCreated(t *testing.T) {
	rec := httptest.NewRecorder()
	Created(rec, map[string]int{"n": 1})
	if rec.Code != http.StatusCreated || rec.Body.String() != "{\"success\":true,\"data\":{\"n\":1}}\n" {
		t.Errorf("Created() = %d %q", rec.Code, rec.Body.String())
	}
}
