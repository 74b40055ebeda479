package proof

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Business refusals. These are expected outcomes, not crashes, and must
// not be retried as-is by callers.
var (
	// ErrAlreadyAccepted is returned by Submit when the task already has
	// an accepted proof.
	ErrAlreadyAccepted = errors.New("task already has an accepted proof")

	// ErrReviewInProgress is returned by Submit when a PENDING or
	// REVIEWING submission exists for the task.
	ErrReviewInProgress = errors.New("task already has a proof under review")

	// ErrNotFound is returned when a submission id is unknown.
	ErrNotFound = errors.New("proof submission not found")

	// ErrInvalidTransition is returned when the requested move is not in
	// the transition table, or when a rejection carries no reason.
	ErrInvalidTransition = errors.New("invalid proof state transition")
)

// ConflictError reports the submission blocking a new Submit. It
// unwraps to ErrAlreadyAccepted or ErrReviewInProgress depending on the
// blocking row's state, so callers can use errors.Is against either.
type ConflictError struct {
	BlockingID uuid.UUID
	State      State
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("submit blocked by submission %s in state %s", e.BlockingID, e.State)
}

func (e *ConflictError) Unwrap() error {
	if e.State == StateAccepted {
		return ErrAlreadyAccepted
	}
	return ErrReviewInProgress
}

// TransitionError reports a refused transition along with the stored
// state, which is left unchanged. Unwraps to ErrInvalidTransition.
type TransitionError struct {
	SubmissionID uuid.UUID
	From         State
	To           State
	Reason       string
}

func (e *TransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot transition submission %s from %s to %s: %s", e.SubmissionID, e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("cannot transition submission %s from %s to %s", e.SubmissionID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// StoreError wraps a persistence failure (connectivity, unexpected
// constraint violation). Unlike the business refusals above it is safe
// for the caller to retry.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("proof store %s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

// IsStoreError reports whether err is a retryable persistence failure
// rather than a business refusal.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
