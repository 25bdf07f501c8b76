package repository

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeRecordNotFound = "RECORD_NOT_FOUND"
	textCodeConcurrency    = "CONCURRENT_MODIFICATION"
)

// NewRecordNotFound builds the error returned when a record is absent or
// logically deleted on the default read path.
func NewRecordNotFound() *goerrors.Error {
	return goerrors.New("record not found", goerrors.CategoryNotFound).
		WithTextCode(textCodeRecordNotFound).
		WithCode(goerrors.CodeNotFound)
}

// NewConcurrencyConflict builds the error surfaced when a guarded write loses
// against a concurrent modification of the same record.
func NewConcurrencyConflict() *goerrors.Error {
	return goerrors.New("record was modified concurrently", goerrors.CategoryConflict).
		WithTextCode(textCodeConcurrency).
		WithCode(goerrors.CodeConflict)
}

// IsRecordNotFound reports whether err represents a missing record.
func IsRecordNotFound(err error) bool {
	return goerrors.IsNotFound(err)
}

// IsConcurrencyConflict reports whether err is a store-detected write conflict.
func IsConcurrencyConflict(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == textCodeConcurrency
}
