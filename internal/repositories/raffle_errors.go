package repositories

import (
	"errors"
	"fmt"
)

// RaffleErrorCode enumerates repository error causes for raffle and entry operations.
type RaffleErrorCode string

const (
	// RaffleErrorUnknown represents an unspecified failure.
	RaffleErrorUnknown RaffleErrorCode = "raffle_unknown"
	// RaffleErrorNotFound indicates the raffle document is missing.
	RaffleErrorNotFound RaffleErrorCode = "raffle_not_found"
	// RaffleErrorEntryNotFound indicates the entry document is missing.
	RaffleErrorEntryNotFound RaffleErrorCode = "raffle_entry_not_found"
	// RaffleErrorSlugConflict indicates another raffle already claims the slug.
	RaffleErrorSlugConflict RaffleErrorCode = "raffle_slug_conflict"
)

// RaffleError wraps raffle-specific failures with machine readable codes.
type RaffleError struct {
	Op      string
	Code    RaffleErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *RaffleError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *RaffleError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewRaffleError constructs a typed raffle error.
func NewRaffleError(code RaffleErrorCode, message string, err error) *RaffleError {
	if message == "" {
		message = string(code)
	}
	return &RaffleError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// RaffleErrorHasCode reports whether err carries the given raffle error code.
func RaffleErrorHasCode(err error, code RaffleErrorCode) bool {
	var raffleErr *RaffleError
	if errors.As(err, &raffleErr) {
		return raffleErr.Code == code
	}
	return false
}
