// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	ErrWorkflowNotFound   = errors.New("workflow not found")
	ErrContactNotFound    = errors.New("contact not found")
	ErrTemplateNotFound   = errors.New("template not found")
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	ErrExecutionNotFound  = errors.New("execution not found")
	ErrMessageNotFound    = errors.New("message not found")
	ErrSettingsNotFound   = errors.New("provider settings not found")
)

// StoreError wraps persistence errors with operation and entity context.
type StoreError struct {
	Op       string // Operation being performed (e.g., "GetByID", "Save", "Claim")
	Entity   string // Entity kind (e.g., "execution", "message")
	EntityID string
	Err      error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Entity, e.EntityID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a new store error with context.
func NewStoreError(op, entity, entityID string, err error) *StoreError {
	return &StoreError{
		Op:       op,
		Entity:   entity,
		EntityID: entityID,
		Err:      err,
	}
}

// IsNotFound checks whether the error indicates a missing entity of any kind.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrContactNotFound) ||
		errors.Is(err, ErrTemplateNotFound) ||
		errors.Is(err, ErrEnrollmentNotFound) ||
		errors.Is(err, ErrExecutionNotFound) ||
		errors.Is(err, ErrMessageNotFound) ||
		errors.Is(err, ErrSettingsNotFound)
}
