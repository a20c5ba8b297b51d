package repositories

import (
	"errors"
	"fmt"
)

// ProductErrorCode enumerates repository error causes for product operations.
type ProductErrorCode string

const (
	// ProductErrorUnknown represents an unspecified failure.
	ProductErrorUnknown ProductErrorCode = "product_unknown"
	// ProductErrorNotFound indicates the product document is missing.
	ProductErrorNotFound ProductErrorCode = "product_not_found"
	// ProductErrorInsufficientStock indicates the conditional stock decrement failed.
	ProductErrorInsufficientStock ProductErrorCode = "product_insufficient_stock"
	// ProductErrorSlugConflict indicates another product already claims the slug.
	ProductErrorSlugConflict ProductErrorCode = "product_slug_conflict"
)

// ProductError wraps product-specific failures with machine readable codes.
type ProductError struct {
	Op      string
	Code    ProductErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ProductError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *ProductError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewProductError constructs a typed product error.
func NewProductError(code ProductErrorCode, message string, err error) *ProductError {
	if message == "" {
		message = string(code)
	}
	return &ProductError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ProductErrorHasCode reports whether err carries the given product error code.
func ProductErrorHasCode(err error, code ProductErrorCode) bool {
	var productErr *ProductError
	if errors.As(err, &productErr) {
		return productErr.Code == code
	}
	return false
}
