package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/notify-api/internal/domain"
	"github.com/phrazzld/notify-api/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// notificationDoc is the persisted shape of a domain.Notification.
type notificationDoc struct {
	ID        string            `bson:"_id"`
	UserID    string            `bson:"user_id"`
	Title     string            `bson:"title"`
	Message   string            `bson:"message"`
	Type      string            `bson:"type"`
	Status    string            `bson:"status"`
	Priority  string            `bson:"priority"`
	CreatedAt time.Time         `bson:"created_at"`
	UpdatedAt time.Time         `bson:"updated_at"`
	SentAt    *time.Time        `bson:"sent_at,omitempty"`
	ReadAt    *time.Time        `bson:"read_at,omitempty"`
	ExpiresAt *time.Time        `bson:"expires_at,omitempty"`
	TaskID    *string           `bson:"task_id,omitempty"`
	ActionURL string            `bson:"action_url,omitempty"`
	Metadata  map[string]string `bson:"metadata,omitempty"`
	Deleted   bool              `bson:"deleted"`
	DeletedAt *time.Time        `bson:"deleted_at,omitempty"`
}

func toNotificationDoc(n *domain.Notification) *notificationDoc {
	doc := &notificationDoc{
		ID:        n.ID.String(),
		UserID:    n.UserID.String(),
		Title:     n.Title,
		Message:   n.Message,
		Type:      string(n.Type),
		Status:    string(n.Status),
		Priority:  string(n.Priority),
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
		SentAt:    n.SentAt,
		ReadAt:    n.ReadAt,
		ExpiresAt: n.ExpiresAt,
		ActionURL: n.ActionURL,
		Metadata:  n.Metadata,
		Deleted:   n.Deleted,
		DeletedAt: n.DeletedAt,
	}
	if n.TaskID != nil {
		taskID := n.TaskID.String()
		doc.TaskID = &taskID
	}
	return doc
}

func (d *notificationDoc) toDomain() (*domain.Notification, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid notification id %q: %w", d.ID, err)
	}
	userID, err := uuid.Parse(d.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid notification user id %q: %w", d.UserID, err)
	}

	n := &domain.Notification{
		ID:        id,
		UserID:    userID,
		Title:     d.Title,
		Message:   d.Message,
		Type:      domain.NotificationType(d.Type),
		Status:    domain.NotificationStatus(d.Status),
		Priority:  domain.NotificationPriority(d.Priority),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
		SentAt:    d.SentAt,
		ReadAt:    d.ReadAt,
		ExpiresAt: d.ExpiresAt,
		ActionURL: d.ActionURL,
		Metadata:  d.Metadata,
		Deleted:   d.Deleted,
		DeletedAt: d.DeletedAt,
	}
	if d.TaskID != nil {
		taskID, err := uuid.Parse(*d.TaskID)
		if err != nil {
			return nil, fmt.Errorf("invalid notification task id %q: %w", *d.TaskID, err)
		}
		n.TaskID = &taskID
	}
	return n, nil
}

// NotificationStore implements store.NotificationStore on MongoDB.
type NotificationStore struct {
	coll   *mongo.Collection
	logger *slog.Logger
}

// Ensure interface compliance at compile time.
var _ store.NotificationStore = (*NotificationStore)(nil)

// NewNotificationStore creates a NotificationStore backed by the given database.
func NewNotificationStore(db *mongo.Database, logger *slog.Logger) *NotificationStore {
	return &NotificationStore{
		coll:   db.Collection(notificationsCollection),
		logger: logger.With("component", "notification_store"),
	}
}

// Insert saves a new notification. The domain entity is validated first so
// invalid records never reach storage.
func (s *NotificationStore) Insert(ctx context.Context, notification *domain.Notification) error {
	if err := notification.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	if _, err := s.coll.InsertOne(ctx, toNotificationDoc(notification)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return store.NewStoreError("notification", "insert", "insert failed", err)
	}
	return nil
}

// GetByID retrieves a non-deleted notification owned by the given user.
func (s *NotificationStore) GetByID(
	ctx context.Context,
	id, userID uuid.UUID,
) (*domain.Notification, error) {
	filter := bson.M{"_id": id.String(), "user_id": userID.String(), "deleted": false}

	var doc notificationDoc
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotificationNotFound
		}
		return nil, store.NewStoreError("notification", "get", "find failed", err)
	}
	return doc.toDomain()
}

// GetByIDIncludeDeleted retrieves a notification owned by the given user
// regardless of its soft-delete flag.
func (s *NotificationStore) GetByIDIncludeDeleted(
	ctx context.Context,
	id, userID uuid.UUID,
) (*domain.Notification, error) {
	filter := bson.M{"_id": id.String(), "user_id": userID.String()}

	var doc notificationDoc
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotificationNotFound
		}
		return nil, store.NewStoreError("notification", "get", "find failed", err)
	}
	return doc.toDomain()
}

// Update replaces an existing notification document, matched by ID alone.
// Last-write-wins; the workflow guarantees at most one writer per record.
func (s *NotificationStore) Update(ctx context.Context, notification *domain.Notification) error {
	if err := notification.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	result, err := s.coll.ReplaceOne(
		ctx,
		bson.M{"_id": notification.ID.String()},
		toNotificationDoc(notification),
	)
	if err != nil {
		return store.NewStoreError("notification", "update", "replace failed", err)
	}
	if result.MatchedCount == 0 {
		return store.ErrNotificationNotFound
	}
	return nil
}

// ListByUser retrieves all non-deleted notifications for a user, newest first.
func (s *NotificationStore) ListByUser(
	ctx context.Context,
	userID uuid.UUID,
) ([]*domain.Notification, error) {
	filter := bson.M{"user_id": userID.String(), "deleted": false}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return s.find(ctx, filter, opts)
}

// ListByStatus retrieves a user's non-deleted notifications with the given status.
func (s *NotificationStore) ListByStatus(
	ctx context.Context,
	userID uuid.UUID,
	status domain.NotificationStatus,
) ([]*domain.Notification, error) {
	filter := bson.M{"user_id": userID.String(), "status": string(status), "deleted": false}
	return s.find(ctx, filter)
}

// ListByType retrieves a user's non-deleted notifications of the given type.
func (s *NotificationStore) ListByType(
	ctx context.Context,
	userID uuid.UUID,
	notificationType domain.NotificationType,
) ([]*domain.Notification, error) {
	filter := bson.M{"user_id": userID.String(), "type": string(notificationType), "deleted": false}
	return s.find(ctx, filter)
}

// ListByPriority retrieves a user's non-deleted notifications with the given priority.
func (s *NotificationStore) ListByPriority(
	ctx context.Context,
	userID uuid.UUID,
	priority domain.NotificationPriority,
) ([]*domain.Notification, error) {
	filter := bson.M{"user_id": userID.String(), "priority": string(priority), "deleted": false}
	return s.find(ctx, filter)
}

// ListUnread retrieves a user's non-deleted notifications without a read timestamp.
func (s *NotificationStore) ListUnread(
	ctx context.Context,
	userID uuid.UUID,
) ([]*domain.Notification, error) {
	filter := bson.M{"user_id": userID.String(), "read_at": nil, "deleted": false}
	return s.find(ctx, filter)
}

// ListRead retrieves a user's non-deleted notifications with a read timestamp.
func (s *NotificationStore) ListRead(
	ctx context.Context,
	userID uuid.UUID,
) ([]*domain.Notification, error) {
	filter := bson.M{
		"user_id": userID.String(),
		"read_at": bson.M{"$ne": nil},
		"deleted": false,
	}
	return s.find(ctx, filter)
}

// ListExpiredForUser retrieves a user's non-deleted notifications whose
// expiry has passed at the given instant.
func (s *NotificationStore) ListExpiredForUser(
	ctx context.Context,
	userID uuid.UUID,
	now time.Time,
) ([]*domain.Notification, error) {
	filter := bson.M{
		"user_id":    userID.String(),
		"expires_at": bson.M{"$lt": now},
		"deleted":    false,
	}
	return s.find(ctx, filter)
}

// ListByTaskID retrieves non-deleted notifications referencing the given
// task, regardless of owner.
func (s *NotificationStore) ListByTaskID(
	ctx context.Context,
	taskID uuid.UUID,
) ([]*domain.Notification, error) {
	filter := bson.M{"task_id": taskID.String(), "deleted": false}
	return s.find(ctx, filter)
}

// ListExpiredSent retrieves, across all users, SENT notifications whose
// expiry has passed. Soft-deleted records are excluded so cleanup never
// touches them twice.
func (s *NotificationStore) ListExpiredSent(
	ctx context.Context,
	now time.Time,
) ([]*domain.Notification, error) {
	filter := bson.M{
		"status":     string(domain.NotificationStatusSent),
		"expires_at": bson.M{"$lt": now},
		"deleted":    false,
	}
	return s.find(ctx, filter)
}

// ListStalePending retrieves, across all users, PENDING notifications
// created before the given threshold.
func (s *NotificationStore) ListStalePending(
	ctx context.Context,
	olderThan time.Time,
) ([]*domain.Notification, error) {
	filter := bson.M{
		"status":     string(domain.NotificationStatusPending),
		"created_at": bson.M{"$lt": olderThan},
	}
	return s.find(ctx, filter)
}

// CountByUser returns the number of non-deleted notifications for a user.
func (s *NotificationStore) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.count(ctx, bson.M{"user_id": userID.String(), "deleted": false})
}

// CountUnread returns the number of unread, non-deleted notifications for a user.
func (s *NotificationStore) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.count(ctx, bson.M{"user_id": userID.String(), "read_at": nil, "deleted": false})
}

// CountByStatus returns the number of a user's non-deleted notifications
// with the given status.
func (s *NotificationStore) CountByStatus(
	ctx context.Context,
	userID uuid.UUID,
	status domain.NotificationStatus,
) (int64, error) {
	return s.count(
		ctx,
		bson.M{"user_id": userID.String(), "status": string(status), "deleted": false},
	)
}

func (s *NotificationStore) find(
	ctx context.Context,
	filter bson.M,
	opts ...*options.FindOptions,
) ([]*domain.Notification, error) {
	cursor, err := s.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, store.NewStoreError("notification", "list", "find failed", err)
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			s.logger.Warn("failed to close cursor", "error", err)
		}
	}()

	notifications := make([]*domain.Notification, 0)
	for cursor.Next(ctx) {
		var doc notificationDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, store.NewStoreError("notification", "list", "decode failed", err)
		}
		n, err := doc.toDomain()
		if err != nil {
			return nil, store.NewStoreError("notification", "list", "corrupt document", err)
		}
		notifications = append(notifications, n)
	}
	if err := cursor.Err(); err != nil {
		return nil, store.NewStoreError("notification", "list", "cursor failed", err)
	}
	return notifications, nil
}

func (s *NotificationStore) count(ctx context.Context, filter bson.M) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, store.NewStoreError("notification", "count", "count failed", err)
	}
	return n, nil
}
