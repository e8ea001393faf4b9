package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/notify-api/internal/domain"
)

// NotificationStore defines the interface for notification persistence.
// All per-user queries exclude soft-deleted records and are scoped to the
// owning user; the exceptions are documented on the methods themselves.
type NotificationStore interface {
	// Insert saves a new notification to the store.
	// Returns ErrInvalidEntity (wrapping the domain error) if validation fails.
	Insert(ctx context.Context, notification *domain.Notification) error

	// GetByID retrieves a non-deleted notification owned by the given user.
	// Returns ErrNotificationNotFound if no such record exists.
	GetByID(ctx context.Context, id, userID uuid.UUID) (*domain.Notification, error)

	// GetByIDIncludeDeleted retrieves a notification owned by the given user
	// regardless of its soft-delete flag. Used by delete paths that must stay
	// idempotent after the record has already been soft-deleted.
	GetByIDIncludeDeleted(ctx context.Context, id, userID uuid.UUID) (*domain.Notification, error)

	// Update saves changes to an existing notification, matched by ID alone.
	// Updates are last-write-wins. Returns ErrNotificationNotFound if the
	// record does not exist.
	Update(ctx context.Context, notification *domain.Notification) error

	// ListByUser retrieves all non-deleted notifications for a user,
	// ordered by creation time descending.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Notification, error)

	// ListByStatus retrieves a user's non-deleted notifications with the given status.
	ListByStatus(
		ctx context.Context,
		userID uuid.UUID,
		status domain.NotificationStatus,
	) ([]*domain.Notification, error)

	// ListByType retrieves a user's non-deleted notifications of the given type.
	ListByType(
		ctx context.Context,
		userID uuid.UUID,
		notificationType domain.NotificationType,
	) ([]*domain.Notification, error)

	// ListByPriority retrieves a user's non-deleted notifications with the given priority.
	ListByPriority(
		ctx context.Context,
		userID uuid.UUID,
		priority domain.NotificationPriority,
	) ([]*domain.Notification, error)

	// ListUnread retrieves a user's non-deleted notifications without a read timestamp.
	ListUnread(ctx context.Context, userID uuid.UUID) ([]*domain.Notification, error)

	// ListRead retrieves a user's non-deleted notifications with a read timestamp.
	ListRead(ctx context.Context, userID uuid.UUID) ([]*domain.Notification, error)

	// ListExpiredForUser retrieves a user's non-deleted notifications whose
	// expiry has passed at the given instant.
	ListExpiredForUser(
		ctx context.Context,
		userID uuid.UUID,
		now time.Time,
	) ([]*domain.Notification, error)

	// ListByTaskID retrieves non-deleted notifications referencing the given
	// task. Deliberately NOT user-scoped: any notification referencing the
	// task is returned regardless of owner.
	ListByTaskID(ctx context.Context, taskID uuid.UUID) ([]*domain.Notification, error)

	// ListExpiredSent retrieves, across all users, SENT notifications whose
	// expiry has passed. Used by the expired-cleanup job.
	ListExpiredSent(ctx context.Context, now time.Time) ([]*domain.Notification, error)

	// ListStalePending retrieves, across all users, PENDING notifications
	// created before the given threshold. Used by the stale-cleanup job.
	ListStalePending(ctx context.Context, olderThan time.Time) ([]*domain.Notification, error)

	// CountByUser returns the number of non-deleted notifications for a user.
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)

	// CountUnread returns the number of unread, non-deleted notifications for a user.
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)

	// CountByStatus returns the number of a user's non-deleted notifications
	// with the given status.
	CountByStatus(
		ctx context.Context,
		userID uuid.UUID,
		status domain.NotificationStatus,
	) (int64, error)
}

// TaskStore defines the interface for task persistence at the seams the
// notification pipeline needs: mutation side effects and due-date scans.
type TaskStore interface {
	// Insert saves a new task to the store.
	Insert(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a non-deleted task owned by the given user.
	// Returns ErrTaskNotFound if no such record exists.
	GetByID(ctx context.Context, id, userID uuid.UUID) (*domain.Task, error)

	// Update saves changes to an existing task.
	// Returns ErrTaskNotFound if the record does not exist.
	Update(ctx context.Context, task *domain.Task) error

	// ListByUser retrieves all non-deleted tasks for a user.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Task, error)

	// ListOverdue retrieves a user's non-deleted tasks whose due date is
	// before now and whose status is not COMPLETED.
	ListOverdue(ctx context.Context, userID uuid.UUID, now time.Time) ([]*domain.Task, error)

	// ListDueSoon retrieves a user's non-deleted, non-completed tasks whose
	// due date falls within [from, to].
	ListDueSoon(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*domain.Task, error)
}

// UserStore defines the read-only interface the pipeline needs over users.
type UserStore interface {
	// GetByID retrieves a user by ID.
	// Returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// ListActive retrieves all active users. Scheduled scans iterate this set.
	ListActive(ctx context.Context) ([]*domain.User, error)
}
