package core

import (
	stderrors "errors"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestBackofficeErrorMapper_AssignsStableCodes(t *testing.T) {
	cases := []struct {
		message  string
		textCode string
		category goerrors.Category
	}{
		{message: "core: unknown endpoint key \"x\"", textCode: ErrorEndpointUnknown, category: goerrors.CategoryValidation},
		{message: "calendar: event not found", textCode: ErrorNotFound, category: goerrors.CategoryNotFound},
		{message: "sync: mutation in progress", textCode: ErrorConflict, category: goerrors.CategoryConflict},
		{message: "summary is required", textCode: ErrorBadInput, category: goerrors.CategoryBadInput},
	}
	for _, tc := range cases {
		mapped := backofficeErrorMapper(stderrors.New(tc.message))
		if mapped.TextCode != tc.textCode {
			t.Fatalf("%s: expected %q, got %q", tc.message, tc.textCode, mapped.TextCode)
		}
		if mapped.Category != tc.category {
			t.Fatalf("%s: expected category %q, got %q", tc.message, tc.category, mapped.Category)
		}
		if mapped.Code == 0 {
			t.Fatalf("%s: expected http status on mapped error", tc.message)
		}
	}
}

func TestBackofficeErrorMapper_KeepsRichErrors(t *testing.T) {
	source := NewError("remote store down", goerrors.CategoryExternal, ErrorCalendarReadFailed, map[string]any{"category": "venda-ci"})
	mapped := backofficeErrorMapper(WrapError(source, goerrors.CategoryExternal, "outer", ErrorCalendarReadFailed, nil))
	if mapped.TextCode != ErrorCalendarReadFailed {
		t.Fatalf("expected calendar read code, got %q", mapped.TextCode)
	}
	if mapped.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for external failures, got %d", mapped.Code)
	}
}

func TestHasTextCode(t *testing.T) {
	err := WrapError(stderrors.New("boom"), goerrors.CategoryConflict, "busy", ErrorSyncMutationInProgress, nil)
	if !HasTextCode(err, ErrorSyncMutationInProgress) {
		t.Fatalf("expected text code match")
	}
	if HasTextCode(stderrors.New("plain"), ErrorSyncMutationInProgress) {
		t.Fatalf("expected plain errors not to match")
	}
	if HasTextCode(nil, ErrorBadInput) {
		t.Fatalf("expected nil not to match")
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("summary", "summary is required")
	if err.TextCode != ErrorBadInput || err.Code != http.StatusBadRequest {
		t.Fatalf("unexpected validation envelope %#v", err)
	}
}

func TestHTTPStatus(t *testing.T) {
	if HTTPStatus(goerrors.CategoryNotFound) != http.StatusNotFound {
		t.Fatalf("expected 404 for not found")
	}
	if HTTPStatus(goerrors.CategoryConflict) != http.StatusConflict {
		t.Fatalf("expected 409 for conflict")
	}
	if HTTPStatus(goerrors.CategoryInternal) != http.StatusInternalServerError {
		t.Fatalf("expected 500 for internal")
	}
}
