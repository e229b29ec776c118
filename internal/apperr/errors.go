// Package apperr defines the error taxonomy shared by all storage backends.
//
// Callers branch on the sentinel values with errors.Is; the original cause
// is always preserved through %w wrapping.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks bad input rejected before any I/O.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a referenced id or name that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNoOp marks an update with nothing to change.
	ErrNoOp = errors.New("nothing to update")
	// ErrPersistence marks a backend read/write failure.
	ErrPersistence = errors.New("persistence failure")
	// ErrTransaction marks a rename/merge transaction failure after rollback.
	ErrTransaction = errors.New("transaction failed")
)

// Validationf builds an ErrValidation with a formatted detail message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf builds an ErrNotFound with a formatted detail message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Persistence wraps a backend driver error, keeping it reachable via errors.Is/As.
func Persistence(op string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, cause)
}

// Transaction wraps a merge transaction failure, keeping the cause reachable.
func Transaction(op string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransaction, op, cause)
}
