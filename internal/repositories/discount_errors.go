package repositories

import (
	"errors"
	"fmt"
)

// DiscountErrorCode enumerates repository error causes for discount operations.
type DiscountErrorCode string

const (
	// DiscountErrorUnknown represents an unspecified failure.
	DiscountErrorUnknown DiscountErrorCode = "discount_unknown"
	// DiscountErrorNotFound indicates no discount document matches the code.
	DiscountErrorNotFound DiscountErrorCode = "discount_not_found"
	// DiscountErrorExhausted indicates the usage cap was reached before the
	// redemption could be counted.
	DiscountErrorExhausted DiscountErrorCode = "discount_exhausted"
)

// DiscountError wraps discount-specific failures with machine readable codes.
type DiscountError struct {
	Op      string
	Code    DiscountErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *DiscountError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *DiscountError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewDiscountError constructs a typed discount error.
func NewDiscountError(code DiscountErrorCode, message string, err error) *DiscountError {
	if message == "" {
		message = string(code)
	}
	return &DiscountError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// DiscountErrorHasCode reports whether err carries the given discount error code.
func DiscountErrorHasCode(err error, code DiscountErrorCode) bool {
	var discountErr *DiscountError
	if errors.As(err, &discountErr) {
		return discountErr.Code == code
	}
	return false
}
