package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/angelmondragon/scanmarket-backend/pkg/errors"
	"github.com/angelmondragon/scanmarket-backend/pkg/logger"
	"github.com/angelmondragon/scanmarket-backend/pkg/types"
)

func TestWriteSuccessStatus(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]string{"id": "abc"})

	if got := w.Code; got != http.StatusCreated {
		t.Fatalf("expected status 201 but got %d", got)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}

	var body types.SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode success envelope: %v", err)
	}
	if body.Data.(map[string]any)["id"] != "abc" {
		t.Fatalf("unexpected payload %v", body.Data)
	}
}

func TestWriteErrorMapsTypedError(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		code    pkgerrors.Code
		message string
		details bool
	}{
		{pkgerrors.New(pkgerrors.CodeValidation, "bad input").WithDetails(map[string]string{"field": "title"}), http.StatusBadRequest, pkgerrors.CodeValidation, "bad input", true},
		{pkgerrors.New(pkgerrors.CodeStateConflict, "asset is not uploading").WithDetails(map[string]any{"status": "READY"}), http.StatusConflict, pkgerrors.CodeStateConflict, "asset is not uploading", true},
		{pkgerrors.New(pkgerrors.CodeConflict, "product already purchased"), http.StatusConflict, pkgerrors.CodeConflict, "product already purchased", false},
		{pkgerrors.Wrap(pkgerrors.CodeUpstream, errors.New("dial tcp"), "vision call failed"), http.StatusBadGateway, pkgerrors.CodeUpstream, "upstream service failed", false},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		WriteError(context.Background(), nil, w, tt.err)

		if w.Code != tt.status {
			t.Fatalf("%s: expected status %d but got %d", tt.code, tt.status, w.Code)
		}
		var body types.ErrorEnvelope
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode error envelope: %v", err)
		}
		if body.Error.Code != string(tt.code) {
			t.Fatalf("unexpected code %s", body.Error.Code)
		}
		if body.Error.Message != tt.message {
			t.Fatalf("%s: unexpected message %q", tt.code, body.Error.Message)
		}
		if (body.Error.Details != nil) != tt.details {
			t.Fatalf("%s: details presence mismatch: %v", tt.code, body.Error.Details)
		}
	}
}

func TestWriteErrorDefaultsToInternalForUntrustedErrors(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, errors.New("pq: relation does not exist"))

	if got := w.Code; got != http.StatusInternalServerError {
		t.Fatalf("expected status 500 but got %d", got)
	}

	var body types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if body.Error.Code != string(pkgerrors.CodeInternal) {
		t.Fatalf("unexpected code %s", body.Error.Code)
	}
	if body.Error.Message != "internal server error" {
		t.Fatalf("raw error leaked: %q", body.Error.Message)
	}
	if body.Error.Details != nil {
		t.Fatalf("details should be omitted for internal errors")
	}
}

func TestWriteNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	WriteNoContent(w)
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Fatalf("expected empty 204, got %d %q", w.Code, w.Body.String())
	}
}

func TestWriteErrorLogLevelFollowsStatus(t *testing.T) {
	t.Setenv("SCANMARKET_LOG_FORMAT", "json")
	tests := []struct {
		err     error
		level   string
		message string
	}{
		{pkgerrors.New(pkgerrors.CodeValidation, "bad title"), "warn", "request.rejected"},
		{pkgerrors.New(pkgerrors.CodeNotFound, "missing"), "warn", "request.rejected"},
		{pkgerrors.Wrap(pkgerrors.CodeInternal, errors.New("db down"), "load"), "error", "request.error"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		logg := logger.New(logger.Options{ServiceName: "responses-test", Output: &buf})
		WriteError(context.Background(), logg, httptest.NewRecorder(), tt.err)

		var entry map[string]any
		if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
			t.Fatalf("decode log line %q: %v", buf.String(), err)
		}
		if entry["level"] != tt.level || entry["message"] != tt.message {
			t.Fatalf("%v: expected %s/%s, got %v/%v", tt.err, tt.level, tt.message, entry["level"], entry["message"])
		}
	}
}
