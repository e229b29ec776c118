package apperr

import (
	"errors"
	"strings"
	"testing"
)

func TestPersistencePreservesCause(t *testing.T) {
	cause := errors.New("UNIQUE constraint failed: notes.id")
	err := Persistence("insert note", cause)

	if !errors.Is(err, ErrPersistence) {
		t.Errorf("errors.Is(err, ErrPersistence) = false")
	}
	if !errors.Is(err, cause) {
		t.Errorf("wrapped cause lost: %v", err)
	}
	if !strings.Contains(err.Error(), "insert note") {
		t.Errorf("operation missing from message: %v", err)
	}
}

func TestTransactionPreservesCause(t *testing.T) {
	cause := errors.New("disk I/O error")
	err := Transaction("rename context", cause)

	if !errors.Is(err, ErrTransaction) {
		t.Errorf("errors.Is(err, ErrTransaction) = false")
	}
	if !errors.Is(err, cause) {
		t.Errorf("wrapped cause lost: %v", err)
	}
}

func TestValidationf(t *testing.T) {
	err := Validationf("limit %d out of range", 0)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("errors.Is(err, ErrValidation) = false")
	}
	if !strings.Contains(err.Error(), "limit 0 out of range") {
		t.Errorf("detail missing: %v", err)
	}
}
