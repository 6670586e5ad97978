package httputil

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"provegapi/pkg/apierrors"
)

func TestWriteError(t *testing.T) {
	t.Run("api error keeps code and extras", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, apierrors.New(apierrors.CodeMandatoryMissing, "Mandatory key(s) missing from params array: email").
			WithExtra("fields", []string{"email"}))

		if w.Code != 200 {
			t.Fatalf("operation errors stay HTTP 200, got %d", w.Code)
		}
		var body ErrorResult
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body.IsError != 1 {
			t.Fatalf("expected is_error 1, got %d", body.IsError)
		}
		if body.ErrorCode != "mandatory_missing" {
			t.Fatalf("expected error code mandatory_missing, got %q", body.ErrorCode)
		}
		if body.Extra["fields"] == nil {
			t.Fatalf("expected fields extra to survive")
		}
	})

	t.Run("plain error coerces to internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, errors.New("boom"))

		var body ErrorResult
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body.ErrorCode != "internal_error" {
			t.Fatalf("expected internal_error, got %q", body.ErrorCode)
		}
	})

	t.Run("bare code stays bare", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, apierrors.New(apierrors.CodeNone, "Could not determine option value from given gender."))

		var body ErrorResult
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body.ErrorCode != "" {
			t.Fatalf("expected empty error code, got %q", body.ErrorCode)
		}
	})
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, map[string]int{"id": 7}, map[string]any{"aux": true}, map[string]string{"email": "x@y.z"})

	var body struct {
		IsError int            `json:"is_error"`
		Values  map[string]int `json:"values"`
		Extra   map[string]any `json:"extra"`
		Request map[string]any `json:"request"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.IsError != 0 || body.Values["id"] != 7 {
		t.Fatalf("unexpected success envelope: %+v", body)
	}
	if body.Request["email"] != "x@y.z" {
		t.Fatalf("expected request echo in envelope")
	}
}
