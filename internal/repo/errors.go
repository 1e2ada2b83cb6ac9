package repo

import "errors"

// User errors reported before any mutation. Callers match with errors.Is and
// turn them into actionable messages.
var (
	// ErrEmptyCommit is returned when an operation refuses to work on a
	// commit whose tree equals its first parent's tree.
	ErrEmptyCommit = errors.New("commit is empty")

	// ErrImmutable is returned when a commit that would need rewriting is
	// protected by the immutable-bookmarks policy.
	ErrImmutable = errors.New("commit is immutable")
)
