package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/avolkov/shortlink/internal/errx"
)

func TestWriteJSON(t *testing.T) {
	t.Run("writes status code and content type", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteJSON(rec, http.StatusCreated, map[string]string{"short_code": "abc12345"})

		if rec.Code != http.StatusCreated {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusCreated)
		}
		if got := rec.Header().Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q, want %q", got, "application/json")
		}
	})

	t.Run("encodes body as JSON", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteJSON(rec, http.StatusOK, map[string]int{"count": 7})

		var body map[string]int
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("response is not valid JSON: %v", err)
		}
		if body["count"] != 7 {
			t.Errorf("count = %d, want 7", body["count"])
		}
	})
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusNotFound, "not_found", "short link doesn't exist", nil)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if resp.Error != "not_found" {
		t.Errorf("Error = %q, want %q", resp.Error, "not_found")
	}
	if resp.Message != "short link doesn't exist" {
		t.Errorf("Message = %q, want %q", resp.Message, "short link doesn't exist")
	}
}

func TestWriteKindError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteKindError(rec, errx.Gone, "link expired")

	if rec.Code != http.StatusGone {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusGone)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if resp.Error != "gone" {
		t.Errorf("Error = %q, want %q", resp.Error, "gone")
	}
}

func TestErrorKindToStatus(t *testing.T) {
	tests := []struct {
		kind errx.Kind
		want int
	}{
		{errx.NotFound, http.StatusNotFound},
		{errx.Gone, http.StatusGone},
		{errx.Conflict, http.StatusConflict},
		{errx.Invalid, http.StatusBadRequest},
		{errx.Unauthorized, http.StatusUnauthorized},
		{errx.Forbidden, http.StatusForbidden},
		{errx.Unavailable, http.StatusServiceUnavailable},
		{errx.Internal, http.StatusInternalServerError},
		{errx.Unknown, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := ErrorKindToStatus(tt.kind); got != tt.want {
				t.Errorf("ErrorKindToStatus(%v) = %d, want %d", tt.kind, got, tt.want)
			}
		})
	}
}

func TestErrorKindToCode(t *testing.T) {
	tests := []struct {
		kind errx.Kind
		want string
	}{
		{errx.NotFound, "not_found"},
		{errx.Gone, "gone"},
		{errx.Conflict, "conflict"},
		{errx.Invalid, "invalid_input"},
		{errx.Unauthorized, "unauthorized"},
		{errx.Forbidden, "forbidden"},
		{errx.Unavailable, "unavailable"},
		{errx.Internal, "internal_error"},
		{errx.Unknown, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := ErrorKindToCode(tt.kind); got != tt.want {
				t.Errorf("ErrorKindToCode(%v) = %q, want %q", tt.kind, got, tt.want)
			}
		})
	}
}
