// Package errors provides common, reusable error values and helpers.
package errors

import (
	"errors"
	"fmt"
)

// Validation errors, raised before any request reaches the hub.
var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrInvalidAmount    = errors.New("amount must be a positive whole number")
	ErrInsufficientPool = errors.New("insufficient units in source pool")
	ErrExceedsMaxSupply = errors.New("operation would exceed max supply")
	ErrMissingReason    = errors.New("a reason of at least 5 characters is required")
)

// Supply state and verification errors.
var (
	ErrStateUnavailable   = errors.New("supply state has not been loaded")
	ErrNothingToReconcile = errors.New("no inconsistent verification on record")
	ErrRateNotAvailable   = errors.New("exchange rate snapshot not available")
	ErrInvalidInterval    = errors.New("check interval must be at least one minute")
)

// Transport and authentication errors.
var (
	ErrUnauthorized = errors.New("unauthorized")
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
