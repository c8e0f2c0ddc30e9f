package quiz

import (
	"fmt"
)

// ErrValidation indicates a request was rejected before any I/O.
type ErrValidation struct {
	Field string
	Err   error
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ErrValidation) Unwrap() error { return e.Err }

// ErrNotFound indicates a quiz, student, or item does not exist or is not
// visible to the caller.
type ErrNotFound struct {
	Kind string
	ID   string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// ErrConflict indicates the quiz is already completed or another caller won
// a race for it.
type ErrConflict struct {
	QuizID string
	Reason string
}

func (e *ErrConflict) Error() string {
	return fmt.Sprintf("quiz %s: %s", e.QuizID, e.Reason)
}

// ReasonAlreadyCompleted is the conflict reason for a quiz that was
// completed before the call.
const ReasonAlreadyCompleted = "already completed"

// ErrTransientStore indicates the store failed. Nothing was applied and the
// operation may be retried.
type ErrTransientStore struct {
	Op  string
	Err error
}

func (e *ErrTransientStore) Error() string {
	return fmt.Sprintf("%s: transient store failure: %v", e.Op, e.Err)
}

func (e *ErrTransientStore) Unwrap() error { return e.Err }
