package db

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("creating user: %w", NewValidationError("email", "email is required"))

	if !errors.Is(err, ErrValidation) {
		t.Error("expected wrapped ValidationError to match ErrValidation")
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatal("expected errors.As to find *ValidationError")
	}
	if verr.Field != "email" {
		t.Errorf("Field = %q, want email", verr.Field)
	}
}

func TestStoreErrorUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := storeError("inserting song", cause)

	if !errors.Is(err, ErrStore) {
		t.Error("expected StoreError to match ErrStore")
	}
	if !errors.Is(err, cause) {
		t.Error("expected StoreError to unwrap to its cause")
	}
	if err.Error() != "inserting song: connection reset" {
		t.Errorf("Error() = %q", err.Error())
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("StoreError must not match ErrNotFound")
	}
}
