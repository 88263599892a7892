// Package errs defines the engine-wide error taxonomy. Every layer wraps
// with fmt.Errorf("...: %w", err) so callers can errors.Is against these
// sentinels regardless of how deep the failure happened.
package errs

import "errors"

var (
	// ErrNotFound: target discussion/reply/community is absent or tombstoned.
	ErrNotFound = errors.New("not found")

	// ErrForbidden: caller lacks the capability for this operation.
	ErrForbidden = errors.New("forbidden")

	// ErrUnauthorized: no authenticated identity (anonymous caller).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidArgument: empty title/content, tag cap exceeded, malformed
	// parent reference, unknown enum value.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConflict: optimistic-concurrency write conflict. Retried internally
	// by the vote processor; other callers see it only if they opt out of
	// retrying.
	ErrConflict = errors.New("conflict")

	// ErrUnavailable: retry budget exhausted or the storage layer is
	// unreachable. The caller should retry later.
	ErrUnavailable = errors.New("unavailable")

	// ErrLocked: the discussion is locked or closed and accepts no new
	// replies or votes.
	ErrLocked = errors.New("locked")
)
