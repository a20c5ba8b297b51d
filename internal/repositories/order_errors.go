package repositories

import (
	"errors"
	"fmt"
)

// OrderErrorCode enumerates repository error causes for order operations.
type OrderErrorCode string

const (
	// OrderErrorUnknown represents an unspecified failure.
	OrderErrorUnknown OrderErrorCode = "order_unknown"
	// OrderErrorNotFound indicates the order document is missing.
	OrderErrorNotFound OrderErrorCode = "order_not_found"
	// OrderErrorNumberConflict indicates the order number was already claimed.
	// Callers should mint a new candidate and retry.
	OrderErrorNumberConflict OrderErrorCode = "order_number_conflict"
	// OrderErrorInvalidTransition indicates the status change is not allowed
	// from the order's current state.
	OrderErrorInvalidTransition OrderErrorCode = "order_invalid_transition"
)

// OrderError wraps order-specific failures with machine readable codes.
type OrderError struct {
	Op      string
	Code    OrderErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *OrderError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *OrderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewOrderError constructs a typed order error.
func NewOrderError(code OrderErrorCode, message string, err error) *OrderError {
	if message == "" {
		message = string(code)
	}
	return &OrderError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// OrderErrorHasCode reports whether err carries the given order error code.
func OrderErrorHasCode(err error, code OrderErrorCode) bool {
	var orderErr *OrderError
	if errors.As(err, &orderErr) {
		return orderErr.Code == code
	}
	return false
}
