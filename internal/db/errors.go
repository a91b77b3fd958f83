package db

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrStoreUnavailable means the store could not be opened or a write
	// could not be committed.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrMigrationFailed means a schema upgrade step failed; the store is
	// not usable.
	ErrMigrationFailed = errors.New("migration failed")
	// ErrNotFound means the addressed record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateName means a unique name is already taken.
	ErrDuplicateName = errors.New("duplicate name")
)

// abortError carries a caller error out of a Write transaction untouched.
type abortError struct{ err error }

func (a abortError) Error() string { return a.err.Error() }
func (a abortError) Unwrap() error { return a.err }

// Abort wraps err so that Write rolls back and returns err as is, without
// classifying it as a store failure.
func Abort(err error) error {
	return abortError{err: err}
}

// classify maps a transaction error to the store error taxonomy.
func classify(err error) error {
	var ab abortError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ab):
		return ab.err
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDuplicateName), errors.Is(err, ErrStoreUnavailable):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %w", ErrDuplicateName, err)
	default:
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
}
