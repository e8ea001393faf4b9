package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/notify-api/internal/domain"
	"github.com/phrazzld/notify-api/internal/service"
	"github.com/phrazzld/notify-api/internal/service/auth"
	"github.com/phrazzld/notify-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid):
		return http.StatusUnauthorized

	// Not found errors
	case errors.Is(err, service.ErrNotificationNotFound),
		errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, store.ErrNotificationNotFound),
		errors.Is(err, store.ErrTaskNotFound),
		errors.Is(err, store.ErrUserNotFound):
		return http.StatusNotFound

	// Bad request errors
	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrNotificationTitleEmpty),
		errors.Is(err, domain.ErrNotificationTitleTooLong),
		errors.Is(err, domain.ErrNotificationMessageEmpty),
		errors.Is(err, domain.ErrNotificationMessageTooLong),
		errors.Is(err, domain.ErrInvalidNotificationType),
		errors.Is(err, domain.ErrInvalidNotificationStatus),
		errors.Is(err, domain.ErrInvalidNotificationPriority),
		errors.Is(err, domain.ErrTaskTitleEmpty),
		errors.Is(err, domain.ErrTaskTitleTooLong),
		errors.Is(err, domain.ErrTaskDescriptionTooLong),
		errors.Is(err, domain.ErrInvalidTaskStatus),
		errors.Is(err, domain.ErrInvalidTaskPriority):
		return http.StatusBadRequest

	// A failed enqueue leaves the record FAILED; the broker is the
	// unavailable dependency.
	case errors.Is(err, service.ErrPublishFailed):
		return http.StatusServiceUnavailable

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message based
// on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"

	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid):
		return "Invalid token"

	case errors.Is(err, service.ErrNotificationNotFound),
		errors.Is(err, store.ErrNotificationNotFound):
		return "Notification not found"

	case errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, store.ErrTaskNotFound):
		return "Todo not found"

	case errors.Is(err, store.ErrUserNotFound):
		return "User not found"

	case errors.Is(err, service.ErrPublishFailed):
		return "Notification recorded but could not be queued for delivery"

	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrNotificationTitleEmpty),
		errors.Is(err, domain.ErrNotificationTitleTooLong),
		errors.Is(err, domain.ErrNotificationMessageEmpty),
		errors.Is(err, domain.ErrNotificationMessageTooLong),
		errors.Is(err, domain.ErrInvalidNotificationType),
		errors.Is(err, domain.ErrInvalidNotificationStatus),
		errors.Is(err, domain.ErrInvalidNotificationPriority),
		errors.Is(err, domain.ErrTaskTitleEmpty),
		errors.Is(err, domain.ErrTaskTitleTooLong),
		errors.Is(err, domain.ErrTaskDescriptionTooLong),
		errors.Is(err, domain.ErrInvalidTaskStatus),
		errors.Is(err, domain.ErrInvalidTaskPriority):
		return "Invalid request: " + err.Error()

	default:
		return "An unexpected error occurred"
	}
}
