package scheduling

import (
	"errors"
	"fmt"

	"github.com/ukydev/fleet-compliance/internal/db"
	"github.com/ukydev/fleet-compliance/internal/models"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrStoreUnavailable matches every *StoreError.
	ErrStoreUnavailable = errors.New("schedule store unavailable")
	// ErrDuplicateOccurrence is the store's uniqueness conflict. The engine
	// absorbs it and never returns it to callers.
	ErrDuplicateOccurrence = db.ErrDuplicateSchedule
)

// ValidationError reports invalid input. No store work is attempted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// StoreError wraps a failed read or insert against the schedule store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("schedule store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStoreUnavailable }

// SeriesError tags an error with the series it happened in.
type SeriesError struct {
	Series models.SeriesKey
	Err    error
}

func (e *SeriesError) Error() string {
	return fmt.Sprintf("series %s: %v", e.Series, e.Err)
}

func (e *SeriesError) Unwrap() error { return e.Err }
