package purchasing

import (
	"errors"
	"fmt"
)

// Domain errors for the purchase order workflow.
var (
	// ErrNotFound indicates the requested purchase order was not found.
	ErrNotFound = errors.New("purchase order not found")
	// ErrLineNotFound indicates the referenced line item was not found.
	ErrLineNotFound = errors.New("purchase order line not found")
	// ErrInvalidState occurs when an operation violates the status workflow.
	ErrInvalidState = errors.New("operation not allowed in current status")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("invalid input")

	// Validation variants.
	ErrEmptyLines      = fmt.Errorf("%w: at least one line is required", ErrValidation)
	ErrReasonRequired  = fmt.Errorf("%w: rejection reason is required", ErrValidation)
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be greater than zero", ErrValidation)
	ErrOverReceipt     = fmt.Errorf("%w: received quantity would exceed ordered quantity", ErrValidation)
)

// TransitionError reports an operation that is not legal from the order's
// current status. It matches ErrInvalidState under errors.Is.
type TransitionError struct {
	Op     string
	Status Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("purchasing: operation %q not allowed in status %s", e.Op, e.Status)
}

// Is lets callers match the error against ErrInvalidState.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidState
}

func transitionErr(op string, status Status) error {
	return &TransitionError{Op: op, Status: status}
}
