package services

import "errors"

// Reservation failures surfaced to callers. Wrapped errors are matched with
// errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid reservation state")
	ErrConflict          = errors.New("active reservation already exists")
	ErrCapacityExceeded  = errors.New("no free spaces")
	ErrTimeout           = errors.New("operation timed out")
	ErrTransport         = errors.New("storage unavailable")
	ErrInconsistentState = errors.New("inconsistent state, manual reconciliation needed")
	ErrUnauthorized      = errors.New("unauthorized")
)
