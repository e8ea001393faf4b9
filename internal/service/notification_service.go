package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/notify-api/internal/domain"
	"github.com/phrazzld/notify-api/internal/rabbit"
	"github.com/phrazzld/notify-api/internal/store"
)

// Expiry windows for convenience notifications.
const (
	welcomeExpiry      = 7 * 24 * time.Hour
	announcementExpiry = 30 * 24 * time.Hour
)

// CreateNotificationParams carries the optional fields of a notification
// creation. Zero values fall back to the documented defaults.
type CreateNotificationParams struct {
	TaskID    *uuid.UUID
	Priority  domain.NotificationPriority // defaults to MEDIUM
	ExpiresAt *time.Time
	ActionURL string
	Metadata  map[string]string
}

// UpdateNotificationParams carries the mutable fields of an owner-initiated
// notification update.
type UpdateNotificationParams struct {
	Title     string
	Message   string
	Type      domain.NotificationType
	Priority  domain.NotificationPriority
	ExpiresAt *time.Time
	ActionURL string
	Metadata  map[string]string
}

// NotificationStats aggregates per-user notification counts.
type NotificationStats struct {
	Total   int64 `json:"total"`
	Unread  int64 `json:"unread"`
	Pending int64 `json:"pending"`
	Sent    int64 `json:"sent"`
	Read    int64 `json:"read"`
	Failed  int64 `json:"failed"`
}

// NotificationService provides the notification pipeline's operations.
type NotificationService interface {
	// Create builds a PENDING record, persists it, then publishes it to the
	// broker. If publishing fails the persisted record is updated to FAILED
	// and the error is surfaced to the caller; the record is not rolled back.
	Create(
		ctx context.Context,
		userID uuid.UUID,
		title, message string,
		notificationType domain.NotificationType,
		params CreateNotificationParams,
	) (*domain.Notification, error)

	// GetByID retrieves a notification owned by the given user.
	GetByID(ctx context.Context, id, userID uuid.UUID) (*domain.Notification, error)

	// GetAll retrieves all of a user's notifications, newest first.
	GetAll(ctx context.Context, userID uuid.UUID) ([]*domain.Notification, error)

	// GetByStatus retrieves a user's notifications with the given status.
	GetByStatus(
		ctx context.Context,
		userID uuid.UUID,
		status domain.NotificationStatus,
	) ([]*domain.Notification, error)

	// GetByType retrieves a user's notifications of the given type.
	GetByType(
		ctx context.Context,
		userID uuid.UUID,
		notificationType domain.NotificationType,
	) ([]*domain.Notification, error)

	// GetByPriority retrieves a user's notifications with the given priority.
	GetByPriority(
		ctx context.Context,
		userID uuid.UUID,
		priority domain.NotificationPriority,
	) ([]*domain.Notification, error)

	// GetUnread retrieves a user's unread notifications.
	GetUnread(ctx context.Context, userID uuid.UUID) ([]*domain.Notification, error)

	// GetRead retrieves a user's read notifications.
	GetRead(ctx context.Context, userID uuid.UUID) ([]*domain.Notification, error)

	// GetExpired retrieves a user's notifications whose expiry has passed.
	GetExpired(ctx context.Context, userID uuid.UUID) ([]*domain.Notification, error)

	// GetByTaskID retrieves notifications referencing the given task. NOT
	// user-scoped: any notification referencing the task is returned.
	GetByTaskID(ctx context.Context, taskID uuid.UUID) ([]*domain.Notification, error)

	// Update applies owner-initiated edits to a notification.
	Update(
		ctx context.Context,
		id, userID uuid.UUID,
		params UpdateNotificationParams,
	) (*domain.Notification, error)

	// MarkAsRead sets readAt on the matching record for that owner. No-op
	// (not an error) if already read.
	MarkAsRead(ctx context.Context, id, userID uuid.UUID) (*domain.Notification, error)

	// MarkAllAsRead sets readAt on all of the user's unread notifications.
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error

	// Delete soft-deletes a notification. No-op if already deleted.
	Delete(ctx context.Context, id, userID uuid.UUID) error

	// DeleteAll soft-deletes all of a user's notifications.
	DeleteAll(ctx context.Context, userID uuid.UUID) error

	// Stats aggregates the user's notification counts.
	Stats(ctx context.Context, userID uuid.UUID) (*NotificationStats, error)

	// CleanupExpired soft-deletes SENT notifications whose expiry has
	// passed. Returns the number of records cleaned.
	CleanupExpired(ctx context.Context) (int, error)

	// CleanupStalePending force-transitions PENDING notifications older than
	// the given number of hours to FAILED. They are presumed lost; this path
	// never redelivers. Returns the number of records affected.
	CleanupStalePending(ctx context.Context, hours int) (int, error)

	// SendWelcome creates a USER_WELCOME notification with LOW priority and
	// a 7-day expiry.
	SendWelcome(ctx context.Context, userID uuid.UUID) error

	// SendAnnouncement fans out one SYSTEM_ANNOUNCEMENT notification per
	// target user, MEDIUM priority, 30-day expiry. A failure for one user
	// does not stop the fan-out; the first error is returned after all
	// users have been attempted.
	SendAnnouncement(ctx context.Context, title, message string, userIDs []uuid.UUID) error

	// ConsumeFromQueue and HandleDeadLetter implement rabbit.Processor.
	ConsumeFromQueue(ctx context.Context, notification *domain.Notification) error
	HandleDeadLetter(ctx context.Context, notification *domain.Notification) error
}

// DeliverFunc performs the actual delivery work for a consumed notification
// (email, push, SMS). The default implementation simulates delivery.
type DeliverFunc func(ctx context.Context, notification *domain.Notification) error

// simulateDelivery stands in for a real delivery channel.
func simulateDelivery(ctx context.Context, _ *domain.Notification) error {
	select {
	case <-time.After(100 * time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// notificationService implements NotificationService.
type notificationService struct {
	notifications store.NotificationStore
	publisher     rabbit.Publisher
	deliver       DeliverFunc
	logger        *slog.Logger
}

var _ NotificationService = (*notificationService)(nil)
var _ rabbit.Processor = (*notificationService)(nil)

// NewNotificationService creates a NotificationService.
// Returns an error if any required dependency is nil.
func NewNotificationService(
	notifications store.NotificationStore,
	publisher rabbit.Publisher,
	logger *slog.Logger,
) (NotificationService, error) {
	if notifications == nil {
		return nil, errors.New("notification store cannot be nil")
	}
	if publisher == nil {
		return nil, errors.New("publisher cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &notificationService{
		notifications: notifications,
		publisher:     publisher,
		deliver:       simulateDelivery,
		logger:        logger.With("component", "notification_service"),
	}, nil
}

func (s *notificationService) Create(
	ctx context.Context,
	userID uuid.UUID,
	title, message string,
	notificationType domain.NotificationType,
	params CreateNotificationParams,
) (*domain.Notification, error) {
	notification, err := domain.NewNotification(userID, title, message, notificationType)
	if err != nil {
		return nil, newServiceError("create_notification", "validation failed", err)
	}

	notification.TaskID = params.TaskID
	notification.ExpiresAt = params.ExpiresAt
	notification.ActionURL = params.ActionURL
	notification.Metadata = params.Metadata
	if params.Priority != "" {
		notification.Priority = params.Priority
		if err := notification.Validate(); err != nil {
			return nil, newServiceError("create_notification", "validation failed", err)
		}
	}

	if err := s.notifications.Insert(ctx, notification); err != nil {
		return nil, newServiceError("create_notification", "persist failed", err)
	}

	if err := s.publisher.Publish(ctx, notification); err != nil {
		// "Failed to enqueue" is itself a terminal, observable state: the
		// record survives in FAILED rather than being rolled back.
		s.logger.Error("failed to publish notification, marking record failed",
			"notification_id", notification.ID,
			"error", err)

		notification.MarkFailed()
		if updateErr := s.notifications.Update(ctx, notification); updateErr != nil {
			s.logger.Error("failed to mark notification as failed after publish failure",
				"notification_id", notification.ID,
				"error", updateErr)
		}

		return notification, &ServiceError{
			Operation: "create_notification",
			Message:   "publish failed",
			Err:       errors.Join(ErrPublishFailed, err),
		}
	}

	return notification, nil
}

func (s *notificationService) GetByID(
	ctx context.Context,
	id, userID uuid.UUID,
) (*domain.Notification, error) {
	notification, err := s.notifications.GetByID(ctx, id, userID)
	if err != nil {
		return nil, newServiceError("get_notification", "lookup failed", err)
	}
	return notification, nil
}

func (s *notificationService) GetAll(
	ctx context.Context,
	userID uuid.UUID,
) ([]*domain.Notification, error) {
	list, err := s.notifications.ListByUser(ctx, userID)
	if err != nil {
		return nil, newServiceError("list_notifications", "query failed", err)
	}
	return list, nil
}

func (s *notificationService) GetByStatus(
	ctx context.Context,
	userID uuid.UUID,
	status domain.NotificationStatus,
) ([]*domain.Notification, error) {
	list, err := s.notifications.ListByStatus(ctx, userID, status)
	if err != nil {
		return nil, newServiceError("list_notifications", "query by status failed", err)
	}
	return list, nil
}

func (s *notificationService) GetByType(
	ctx context.Context,
	userID uuid.UUID,
	notificationType domain.NotificationType,
) ([]*domain.Notification, error) {
	list, err := s.notifications.ListByType(ctx, userID, notificationType)
	if err != nil {
		return nil, newServiceError("list_notifications", "query by type failed", err)
	}
	return list, nil
}

func (s *notificationService) GetByPriority(
	ctx context.Context,
	userID uuid.UUID,
	priority domain.NotificationPriority,
) ([]*domain.Notification, error) {
	list, err := s.notifications.ListByPriority(ctx, userID, priority)
	if err != nil {
		return nil, newServiceError("list_notifications", "query by priority failed", err)
	}
	return list, nil
}

func (s *notificationService) GetUnread(
	ctx context.Context,
	userID uuid.UUID,
) ([]*domain.Notification, error) {
	list, err := s.notifications.ListUnread(ctx, userID)
	if err != nil {
		return nil, newServiceError("list_notifications", "query unread failed", err)
	}
	return list, nil
}

func (s *notificationService) GetRead(
	ctx context.Context,
	userID uuid.UUID,
) ([]*domain.Notification, error) {
	list, err := s.notifications.ListRead(ctx, userID)
	if err != nil {
		return nil, newServiceError("list_notifications", "query read failed", err)
	}
	return list, nil
}

func (s *notificationService) GetExpired(
	ctx context.Context,
	userID uuid.UUID,
) ([]*domain.Notification, error) {
	list, err := s.notifications.ListExpiredForUser(ctx, userID, time.Now().UTC())
	if err != nil {
		return nil, newServiceError("list_notifications", "query expired failed", err)
	}
	return list, nil
}

func (s *notificationService) GetByTaskID(
	ctx context.Context,
	taskID uuid.UUID,
) ([]*domain.Notification, error) {
	list, err := s.notifications.ListByTaskID(ctx, taskID)
	if err != nil {
		return nil, newServiceError("list_notifications", "query by task failed", err)
	}
	return list, nil
}

func (s *notificationService) Update(
	ctx context.Context,
	id, userID uuid.UUID,
	params UpdateNotificationParams,
) (*domain.Notification, error) {
	notification, err := s.notifications.GetByID(ctx, id, userID)
	if err != nil {
		return nil, newServiceError("update_notification", "lookup failed", err)
	}

	notification.Title = params.Title
	notification.Message = params.Message
	notification.Type = params.Type
	notification.Priority = params.Priority
	notification.ExpiresAt = params.ExpiresAt
	notification.ActionURL = params.ActionURL
	notification.Metadata = params.Metadata
	notification.UpdatedAt = time.Now().UTC()

	if err := notification.Validate(); err != nil {
		return nil, newServiceError("update_notification", "validation failed", err)
	}

	if err := s.notifications.Update(ctx, notification); err != nil {
		return nil, newServiceError("update_notification", "persist failed", err)
	}
	return notification, nil
}

func (s *notificationService) MarkAsRead(
	ctx context.Context,
	id, userID uuid.UUID,
) (*domain.Notification, error) {
	notification, err := s.notifications.GetByID(ctx, id, userID)
	if err != nil {
		return nil, newServiceError("mark_as_read", "lookup failed", err)
	}

	if notification.IsRead() {
		// Already read; readAt keeps the first call's timestamp.
		return notification, nil
	}

	notification.MarkRead()
	if err := s.notifications.Update(ctx, notification); err != nil {
		return nil, newServiceError("mark_as_read", "persist failed", err)
	}
	return notification, nil
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	unread, err := s.notifications.ListUnread(ctx, userID)
	if err != nil {
		return newServiceError("mark_all_as_read", "query unread failed", err)
	}

	var firstErr error
	for _, notification := range unread {
		notification.MarkRead()
		if err := s.notifications.Update(ctx, notification); err != nil {
			s.logger.Error("failed to mark notification as read",
				"notification_id", notification.ID,
				"error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return newServiceError("mark_all_as_read", "persist failed", firstErr)
}

func (s *notificationService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	notification, err := s.notifications.GetByIDIncludeDeleted(ctx, id, userID)
	if err != nil {
		return newServiceError("delete_notification", "lookup failed", err)
	}

	if notification.Deleted {
		// Second delete is a no-op; deletedAt stays as it was.
		return nil
	}

	notification.SoftDelete()
	if err := s.notifications.Update(ctx, notification); err != nil {
		return newServiceError("delete_notification", "persist failed", err)
	}
	return nil
}

func (s *notificationService) DeleteAll(ctx context.Context, userID uuid.UUID) error {
	notifications, err := s.notifications.ListByUser(ctx, userID)
	if err != nil {
		return newServiceError("delete_all_notifications", "query failed", err)
	}

	var firstErr error
	for _, notification := range notifications {
		notification.SoftDelete()
		if err := s.notifications.Update(ctx, notification); err != nil {
			s.logger.Error("failed to soft-delete notification",
				"notification_id", notification.ID,
				"error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return newServiceError("delete_all_notifications", "persist failed", firstErr)
}

func (s *notificationService) Stats(
	ctx context.Context,
	userID uuid.UUID,
) (*NotificationStats, error) {
	total, err := s.notifications.CountByUser(ctx, userID)
	if err != nil {
		return nil, newServiceError("notification_stats", "count total failed", err)
	}
	unread, err := s.notifications.CountUnread(ctx, userID)
	if err != nil {
		return nil, newServiceError("notification_stats", "count unread failed", err)
	}

	stats := &NotificationStats{Total: total, Unread: unread}

	counts := []struct {
		status domain.NotificationStatus
		dest   *int64
	}{
		{domain.NotificationStatusPending, &stats.Pending},
		{domain.NotificationStatusSent, &stats.Sent},
		{domain.NotificationStatusRead, &stats.Read},
		{domain.NotificationStatusFailed, &stats.Failed},
	}
	for _, c := range counts {
		n, err := s.notifications.CountByStatus(ctx, userID, c.status)
		if err != nil {
			return nil, newServiceError("notification_stats", "count by status failed", err)
		}
		*c.dest = n
	}

	return stats, nil
}

// ConsumeFromQueue is invoked once per delivered message. It reloads the
// persisted record (the message is a snapshot; the record may have gained a
// read timestamp since), performs the delivery work, and transitions
// PENDING -> SENT, or to FAILED on any failure. Together with the cleanup
// job this method is the sole writer of SENT/FAILED.
func (s *notificationService) ConsumeFromQueue(
	ctx context.Context,
	notification *domain.Notification,
) error {
	record, err := s.notifications.GetByID(ctx, notification.ID, notification.UserID)
	if err != nil {
		if store.IsNotFoundError(err) {
			// Record deleted between publish and consumption; nothing to do.
			s.logger.Warn("consumed message for unknown notification",
				"notification_id", notification.ID)
			return nil
		}
		return newServiceError("consume_notification", "lookup failed", err)
	}

	if err := s.deliver(ctx, record); err != nil {
		record.MarkFailed()
		if updateErr := s.notifications.Update(ctx, record); updateErr != nil {
			s.logger.Error("failed to mark notification as failed",
				"notification_id", record.ID,
				"error", updateErr)
		}
		return newServiceError("consume_notification", "delivery failed", err)
	}

	record.MarkSent()
	if err := s.notifications.Update(ctx, record); err != nil {
		return newServiceError("consume_notification", "persist failed", err)
	}

	return nil
}

// HandleDeadLetter forces the record into the terminal FAILED state.
// Idempotent: a record already FAILED is left untouched. It never
// re-publishes; dead-lettered messages have exhausted their deliveries.
func (s *notificationService) HandleDeadLetter(
	ctx context.Context,
	notification *domain.Notification,
) error {
	record, err := s.notifications.GetByID(ctx, notification.ID, notification.UserID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil
		}
		return newServiceError("handle_dead_letter", "lookup failed", err)
	}

	if record.Status == domain.NotificationStatusFailed {
		return nil
	}

	record.MarkFailed()
	if err := s.notifications.Update(ctx, record); err != nil {
		return newServiceError("handle_dead_letter", "persist failed", err)
	}
	return nil
}

func (s *notificationService) CleanupExpired(ctx context.Context) (int, error) {
	expired, err := s.notifications.ListExpiredSent(ctx, time.Now().UTC())
	if err != nil {
		return 0, newServiceError("cleanup_expired", "query failed", err)
	}

	cleaned := 0
	for _, notification := range expired {
		notification.SoftDelete()
		if err := s.notifications.Update(ctx, notification); err != nil {
			s.logger.Error("failed to soft-delete expired notification",
				"notification_id", notification.ID,
				"error", err)
			continue
		}
		cleaned++
	}

	return cleaned, nil
}

func (s *notificationService) CleanupStalePending(ctx context.Context, hours int) (int, error) {
	threshold := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	stale, err := s.notifications.ListStalePending(ctx, threshold)
	if err != nil {
		return 0, newServiceError("cleanup_stale_pending", "query failed", err)
	}

	failed := 0
	for _, notification := range stale {
		notification.MarkFailed()
		if err := s.notifications.Update(ctx, notification); err != nil {
			s.logger.Error("failed to fail stale pending notification",
				"notification_id", notification.ID,
				"error", err)
			continue
		}
		failed++
	}

	return failed, nil
}

func (s *notificationService) SendWelcome(ctx context.Context, userID uuid.UUID) error {
	expiresAt := time.Now().UTC().Add(welcomeExpiry)
	_, err := s.Create(ctx, userID,
		"Welcome to TodoList App!",
		"Thank you for joining us. Start creating your first todo to get organized!",
		domain.NotificationTypeUserWelcome,
		CreateNotificationParams{
			Priority:  domain.NotificationPriorityLow,
			ExpiresAt: &expiresAt,
		})
	return err
}

func (s *notificationService) SendAnnouncement(
	ctx context.Context,
	title, message string,
	userIDs []uuid.UUID,
) error {
	expiresAt := time.Now().UTC().Add(announcementExpiry)

	var firstErr error
	for _, userID := range userIDs {
		_, err := s.Create(ctx, userID, title, message,
			domain.NotificationTypeSystemAnnouncement,
			CreateNotificationParams{
				Priority:  domain.NotificationPriorityMedium,
				ExpiresAt: &expiresAt,
			})
		if err != nil {
			s.logger.Error("failed to send announcement to user",
				"user_id", userID,
				"error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// SetDeliverFunc overrides the delivery function. Intended for tests and for
// wiring real delivery channels.
func (s *notificationService) SetDeliverFunc(deliver DeliverFunc) {
	if deliver != nil {
		s.deliver = deliver
	}
}
