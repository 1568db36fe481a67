package db

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

// Caller-visible error conditions. Handlers dispatch on these
// with errors.Is to pick HTTP status codes.
var (
	// ErrInvalidDuration is returned by RecordUsage for a
	// negative duration. The request is rejected with no state
	// change.
	ErrInvalidDuration = errors.New("duration must be non-negative")

	// ErrDuplicateIdentifier is returned when adding a tracked
	// identifier that already exists.
	ErrDuplicateIdentifier = errors.New("identifier already tracked")

	// ErrNotFound is returned when removing a tracked identifier
	// that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable signals that the backing store could not be
	// reached in time. The write did not happen; the caller may
	// retry on its next tick.
	ErrUnavailable = errors.New("storage unavailable")

	// ErrCreateRace signals that the apps get-or-create left no
	// resolvable row. The single-writer connection makes this
	// unreachable; it is surfaced as a server fault, never
	// swallowed.
	ErrCreateRace = errors.New("application row missing after insert")
)

// classify wraps driver-level transient failures in
// ErrUnavailable so callers see one retryable condition instead
// of sqlite error codes. Other errors pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrCantOpen:
			return errors.Join(ErrUnavailable, err)
		}
	}
	return err
}

// isUniqueViolation reports whether err is a UNIQUE constraint
// failure.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) &&
		se.ExtendedCode == sqlite3.ErrConstraintUnique
}
