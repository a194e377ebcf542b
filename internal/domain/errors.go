package domain

import "errors"

var (
	// repository errors
	ErrNotFound = errors.New("not found")

	// precondition errors
	ErrNotAuthenticated = errors.New("no authenticated user")
	ErrNoIdentity       = errors.New("no identity id supplied")
	ErrMissingDueDate   = errors.New("reminder has no due date")
	ErrNoContext        = errors.New("no context available")
)

// PreconditionError marks a fatal, non-retryable failure of an operation's
// input contract.
type PreconditionError struct {
	Op  string
	Err error
}

func (e *PreconditionError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *PreconditionError) Unwrap() error { return e.Err }
