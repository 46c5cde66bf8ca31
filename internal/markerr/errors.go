// Package markerr defines the failure classes the runtime branches
// on. Remote calls wrap one of these sentinels so callers can decide
// whether a write is worth retrying.
package markerr

import "errors"

var (
	// ErrTransient marks failures expected to clear on their own,
	// network partitions and backend outages.
	ErrTransient = errors.New("transient failure")

	// ErrAuthExpired marks a rejected credential. Retrying without a
	// fresh sign-in cannot succeed.
	ErrAuthExpired = errors.New("session expired")

	// ErrValidation marks a payload the backend refused outright.
	ErrValidation = errors.New("validation rejected")

	// ErrNotFound marks an entity the backend no longer knows.
	ErrNotFound = errors.New("not found")
)

// Retryable reports whether retrying the same request could ever
// succeed. Auth and validation failures are terminal for the request
// as written. Unclassified errors count as retryable so no write is
// ever silently dropped.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAuthExpired) || errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) {
		return false
	}
	return true
}

// Transient reports whether the failure should park the write in the
// pending ledger rather than surface to the user.
func Transient(err error) bool {
	return Retryable(err)
}
