package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"buste/internal/core"
)

func TestJSONResponseBuilder(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Row-Ref", "mem:1").
		Body(map[string]string{"id": "abc"}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("content type = %q", ct)
	}
	if ref := w.Header().Get("X-Row-Ref"); ref != "mem:1" {
		t.Errorf("custom header = %q", ref)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["id"] != "abc" {
		t.Errorf("body = %v", body)
	}
}

func TestWriteErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", core.ErrInvalidAmount, http.StatusUnprocessableEntity},
		{"wrapped validation", fmt.Errorf("transfer: %w", core.ErrSameEnvelope), http.StatusUnprocessableEntity},
		{"split mismatch", &core.SplitMismatchError{Expected: core.FromCents(100), Actual: core.FromCents(90)}, http.StatusUnprocessableEntity},
		{"not found", core.ErrNotFound, http.StatusNotFound},
		{"conflict", core.ErrInsufficientFunds, http.StatusConflict},
		{"cycle closed", core.ErrCycleClosed, http.StatusConflict},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest("POST", "/api/test", nil)
			WriteError(w, r, tt.err)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var body errorBody
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body.Error == "" {
				t.Error("error body should carry a message")
			}
			if tt.wantStatus == http.StatusInternalServerError && body.Error != "internal error" {
				t.Errorf("internal detail leaked: %q", body.Error)
			}
		})
	}
}
