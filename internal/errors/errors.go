// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned when a user has no stored GitHub credential.
var ErrNotConnected = errors.New("github not connected")

// ErrRepoListFetch wraps a failure of the initial repository-list fetch,
// the only remote failure that aborts a sync.
type ErrRepoListFetch struct {
	Err error
}

func (e *ErrRepoListFetch) Error() string {
	return fmt.Sprintf("failed to fetch repository list: %v", e.Err)
}

func (e *ErrRepoListFetch) Unwrap() error { return e.Err }

// ErrInvalidRepoIDs is returned when a repo_ids query filter cannot be parsed.
type ErrInvalidRepoIDs struct {
	Raw string
}

func (e *ErrInvalidRepoIDs) Error() string {
	return fmt.Sprintf("invalid repo_ids filter: %q, expected comma-separated integers", e.Raw)
}
