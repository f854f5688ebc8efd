package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestErrorConstructorsCarryCodeAndStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"not found", NewNotFound("ticket", nil), CodeNotFound, http.StatusNotFound},
		{"validation", NewValidationError("bad input", nil), CodeValidationFailed, http.StatusBadRequest},
		{"invalid transition", NewInvalidTransition("PENDING", "COMPLETED"), CodeInvalidTransition, http.StatusConflict},
		{"precondition", NewPreconditionFailed("tasks open", nil), CodePreconditionFailed, http.StatusUnprocessableEntity},
		{"already completed", NewAlreadyCompleted("done"), CodeAlreadyCompleted, http.StatusConflict},
		{"unauthorized", NewUnauthorized("no token"), CodeUnauthorized, http.StatusUnauthorized},
		{"forbidden", NewForbidden("not yours"), CodeForbidden, http.StatusForbidden},
		{"conflict", NewConflict("stale", nil), CodeConflict, http.StatusConflict},
		{"internal", NewInternalError(errors.New("boom")), CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			domainErr := ToDomainError(tc.err)
			if domainErr.Code != tc.wantCode {
				t.Errorf("Code = %s, want %s", domainErr.Code, tc.wantCode)
			}
			if domainErr.HTTPStatus != tc.wantStatus {
				t.Errorf("HTTPStatus = %d, want %d", domainErr.HTTPStatus, tc.wantStatus)
			}
		})
	}
}

func TestInvalidTransitionDetails(t *testing.T) {
	domainErr := ToDomainError(NewInvalidTransition("PENDING", "COMPLETED"))
	if domainErr.Details["from"] != "PENDING" || domainErr.Details["to"] != "COMPLETED" {
		t.Fatalf("Details = %v", domainErr.Details)
	}
}

func TestToDomainErrorMapsMissingRows(t *testing.T) {
	domainErr := ToDomainError(fmt.Errorf("query ticket: %w", pgx.ErrNoRows))
	if domainErr.Code != CodeNotFound {
		t.Fatalf("Code = %s, want %s", domainErr.Code, CodeNotFound)
	}
}

func TestToDomainErrorWrapsUnknown(t *testing.T) {
	domainErr := ToDomainError(errors.New("disk on fire"))
	if domainErr.Code != CodeInternal || domainErr.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("got %+v", domainErr)
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(NewForbidden("nope")); got != CodeForbidden {
		t.Errorf("CodeOf = %s, want %s", got, CodeForbidden)
	}
	if got := CodeOf(errors.New("anything")); got != CodeInternal {
		t.Errorf("CodeOf = %s, want %s", got, CodeInternal)
	}
}

func TestDomainErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewInternalError(cause)
	if !errors.Is(err, cause) {
		t.Error("wrapped cause lost")
	}
}
