// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"
	"fmt"
)

// Business logic errors. Validation errors are never retried.
var (
	// Validation errors (400 Bad Request).
	ErrInvalidRequest     = errors.New("invalid request")
	ErrNoContacts         = errors.New("contact id list cannot be empty")
	ErrBatchTooLarge      = errors.New("contact batch exceeds the maximum size")
	ErrWorkflowDisabled   = errors.New("workflow is disabled")
	ErrMissingTriggerNode = errors.New("workflow has no trigger node")
	ErrMissingAddress     = errors.New("contact has no address for the channel")
	ErrDoNotContact       = errors.New("contact is flagged do not contact")
	ErrUnsupportedChannel = errors.New("unsupported channel")
	ErrScheduledInPast    = errors.New("scheduled time is in the past")
	ErrInvalidBatchSize   = errors.New("batch size must be positive")
	ErrEmptyBody          = errors.New("message body cannot be empty")

	// Boundary errors rejected before any read or write.
	ErrUnauthorized = errors.New("caller is not authorized")
	ErrBadSignature = errors.New("webhook signature verification failed")
)

// ProviderError records a failed provider send. It is terminal for the
// message; the core never auto-retries it.
type ProviderError struct {
	Channel string
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider send failed: %v", e.Channel, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrNoContacts) ||
		errors.Is(err, ErrBatchTooLarge) ||
		errors.Is(err, ErrWorkflowDisabled) ||
		errors.Is(err, ErrMissingTriggerNode) ||
		errors.Is(err, ErrMissingAddress) ||
		errors.Is(err, ErrDoNotContact) ||
		errors.Is(err, ErrUnsupportedChannel) ||
		errors.Is(err, ErrScheduledInPast) ||
		errors.Is(err, ErrInvalidBatchSize) ||
		errors.Is(err, ErrEmptyBody)
}

// IsProviderError checks if an error originated from a channel provider.
func IsProviderError(err error) bool {
	var providerErr *ProviderError

	return errors.As(err, &providerErr)
}
