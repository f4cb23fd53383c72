package database

import "errors"

// Sentinel errors surfaced by every DatabaseInterface implementation.
// Callers branch with errors.Is; the HTTP layer maps them to 404/409/502.
var (
	// ErrNotFound means the target row does not exist
	ErrNotFound = errors.New("not found")

	// ErrConflict means a unique constraint or a concurrent delete collided
	// with this write. The store never applies a partial mutation.
	ErrConflict = errors.New("conflict")

	// ErrUnavailable means the store itself could not be reached
	ErrUnavailable = errors.New("store unavailable")
)
