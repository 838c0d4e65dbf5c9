package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"NotFound wraps ErrNotFound", NotFound("snippet", "abc"), ErrNotFound},
		{"ValidationFailed wraps ErrValidation", ValidationFailed("title", "required"), ErrValidation},
		{"Conflict wraps ErrConflict", Conflict("username", "alice"), ErrConflict},
		{"Forbidden wraps ErrForbidden", Forbidden("nope"), ErrForbidden},
		{"Unauthorized wraps ErrUnauthorized", Unauthorized("bad login"), ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.target) {
				t.Errorf("errors.Is(%v, %v) = false, want true", tt.err, tt.target)
			}
		})
	}
}

// Sentinels must survive another layer of %w wrapping; services wrap
// repository errors with operation context all the time.
func TestErrorsIs_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("service: doing a thing: %w", NotFound("snippet", "abc"))
	if !errors.Is(wrapped, ErrNotFound) {
		t.Error("ErrNotFound lost through fmt.Errorf wrapping")
	}
}

func TestNotFoundMessage(t *testing.T) {
	err := NotFound("snippet", "abc")
	want := "snippet not found with id abc"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("title", "snippet title is required")
	if err.Field != "title" {
		t.Errorf("Field = %q, want title", err.Field)
	}
	if err.Error() != "snippet title is required" {
		t.Errorf("Error() = %q", err.Error())
	}
}
