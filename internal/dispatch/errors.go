package dispatch

import (
	"errors"
	"fmt"
)

// ErrOrderNotFound is returned when no order resolves from the requested
// reference. Permanent for the given input.
var ErrOrderNotFound = errors.New("order not found")

// ValidationError rejects a claim before any storage access. Permanent for
// the given input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid claim request: %s %s", e.Field, e.Reason)
}

// ConflictError reports that the order is already bound to a driver, whether
// seen on the fast-path read or detected inside the transaction. The current
// driver fields may be empty when the race was detected by the conditional
// update and the winner's row could not be re-read.
type ConflictError struct {
	CurrentDriverID   string
	CurrentDriverName string
}

func (e *ConflictError) Error() string {
	if e.CurrentDriverName != "" {
		return fmt.Sprintf("order already assigned to %s", e.CurrentDriverName)
	}
	return "order already assigned"
}

// TransientError wraps storage or transaction infrastructure failures. No
// partial state is ever left behind, so the caller may retry the whole claim.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient dispatch failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func transient(err error) error {
	return &TransientError{Err: err}
}
