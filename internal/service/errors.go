package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/notify-api/internal/store"
)

// Common sentinel errors for the service layer.
var (
	// ErrNotificationNotFound indicates that the notification does not exist,
	// is soft-deleted, or belongs to another user.
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrTaskNotFound indicates that the task does not exist or belongs to
	// another user.
	ErrTaskNotFound = errors.New("task not found")

	// ErrPublishFailed indicates that handing a notification to the broker
	// failed. The persisted record has been marked FAILED; no automatic
	// retry is scheduled.
	ErrPublishFailed = errors.New("failed to publish notification to broker")
)

// ServiceError wraps errors from the service layer with operation context.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "create_notification").
	Operation string
	// Message is a human-readable description of the error.
	Message string
	// Err is the underlying error that caused the failure.
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// newServiceError creates a ServiceError, mapping store-level sentinel
// errors to their service-level counterparts so callers never depend on the
// persistence layer directly.
func newServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, store.ErrNotificationNotFound) {
		return ErrNotificationNotFound
	}
	if errors.Is(err, store.ErrTaskNotFound) {
		return ErrTaskNotFound
	}

	return &ServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
