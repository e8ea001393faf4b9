package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// NotificationType identifies what event a notification describes.
type NotificationType string

// Possible notification type values
const (
	NotificationTypeTodoCreated        NotificationType = "TODO_CREATED"
	NotificationTypeTodoUpdated        NotificationType = "TODO_UPDATED"
	NotificationTypeTodoCompleted      NotificationType = "TODO_COMPLETED"
	NotificationTypeTodoDueSoon        NotificationType = "TODO_DUE_SOON"
	NotificationTypeTodoOverdue        NotificationType = "TODO_OVERDUE"
	NotificationTypeSystemAnnouncement NotificationType = "SYSTEM_ANNOUNCEMENT"
	NotificationTypeUserWelcome        NotificationType = "USER_WELCOME"
	NotificationTypeReminder           NotificationType = "REMINDER"
)

// NotificationStatus represents the delivery state of a notification.
type NotificationStatus string

// Possible notification status values. DELIVERED and CANCELLED are valid
// states that this pipeline accepts but never produces itself.
const (
	NotificationStatusPending   NotificationStatus = "PENDING"
	NotificationStatusSent      NotificationStatus = "SENT"
	NotificationStatusDelivered NotificationStatus = "DELIVERED"
	NotificationStatusRead      NotificationStatus = "READ"
	NotificationStatusFailed    NotificationStatus = "FAILED"
	NotificationStatusCancelled NotificationStatus = "CANCELLED"
)

// NotificationPriority represents the urgency of a notification.
type NotificationPriority string

// Possible notification priority values
const (
	NotificationPriorityLow    NotificationPriority = "LOW"
	NotificationPriorityMedium NotificationPriority = "MEDIUM"
	NotificationPriorityHigh   NotificationPriority = "HIGH"
	NotificationPriorityUrgent NotificationPriority = "URGENT"
)

// Title and message length limits for notifications.
const (
	MaxNotificationTitleLen   = 200
	MaxNotificationMessageLen = 500
)

// Common validation errors for Notification
var (
	ErrNotificationIDEmpty       = errors.New("notification ID cannot be empty")
	ErrNotificationUserIDEmpty   = errors.New("notification user ID cannot be empty")
	ErrNotificationTitleEmpty    = errors.New("notification title cannot be empty")
	ErrNotificationTitleTooLong  = errors.New("notification title must be at most 200 characters")
	ErrNotificationMessageEmpty  = errors.New("notification message cannot be empty")
	ErrNotificationMessageTooLong = errors.New(
		"notification message must be at most 500 characters",
	)
	ErrInvalidNotificationType     = errors.New("invalid notification type")
	ErrInvalidNotificationStatus   = errors.New("invalid notification status")
	ErrInvalidNotificationPriority = errors.New("invalid notification priority")
)

// Notification represents a single message addressed to one user. It tracks
// the full delivery lifecycle: created PENDING, transitioned to SENT or
// FAILED by the queue consumer, optionally marked read by its owner, and
// soft-deleted by the owner or by cleanup jobs.
type Notification struct {
	ID        uuid.UUID            `json:"id"        bson:"_id"`
	UserID    uuid.UUID            `json:"user_id"   bson:"user_id"`
	Title     string               `json:"title"     bson:"title"`
	Message   string               `json:"message"   bson:"message"`
	Type      NotificationType     `json:"type"      bson:"type"`
	Status    NotificationStatus   `json:"status"    bson:"status"`
	Priority  NotificationPriority `json:"priority"  bson:"priority"`
	CreatedAt time.Time            `json:"created_at"           bson:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"           bson:"updated_at"`
	SentAt    *time.Time           `json:"sent_at,omitempty"    bson:"sent_at,omitempty"`
	ReadAt    *time.Time           `json:"read_at,omitempty"    bson:"read_at,omitempty"`
	ExpiresAt *time.Time           `json:"expires_at,omitempty" bson:"expires_at,omitempty"`
	TaskID    *uuid.UUID           `json:"task_id,omitempty"    bson:"task_id,omitempty"`
	ActionURL string               `json:"action_url,omitempty" bson:"action_url,omitempty"`
	Metadata  map[string]string    `json:"metadata,omitempty"   bson:"metadata,omitempty"`
	Deleted   bool                 `json:"deleted"              bson:"deleted"`
	DeletedAt *time.Time           `json:"deleted_at,omitempty" bson:"deleted_at,omitempty"`
}

// NewNotification creates a new Notification addressed to the given user.
// It generates a new UUID, sets the status to PENDING and the priority to
// MEDIUM, and sets the creation timestamp.
// Returns an error if validation fails.
func NewNotification(
	userID uuid.UUID,
	title, message string,
	notificationType NotificationType,
) (*Notification, error) {
	now := time.Now().UTC()
	n := &Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      notificationType,
		Status:    NotificationStatusPending,
		Priority:  NotificationPriorityMedium,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := n.Validate(); err != nil {
		return nil, err
	}

	return n, nil
}

// Validate checks if the Notification has valid data.
// Returns an error if any field fails validation.
func (n *Notification) Validate() error {
	if n.ID == uuid.Nil {
		return ErrNotificationIDEmpty
	}

	if n.UserID == uuid.Nil {
		return ErrNotificationUserIDEmpty
	}

	if n.Title == "" {
		return ErrNotificationTitleEmpty
	}

	if len(n.Title) > MaxNotificationTitleLen {
		return ErrNotificationTitleTooLong
	}

	if n.Message == "" {
		return ErrNotificationMessageEmpty
	}

	if len(n.Message) > MaxNotificationMessageLen {
		return ErrNotificationMessageTooLong
	}

	if !isValidNotificationType(n.Type) {
		return ErrInvalidNotificationType
	}

	if !isValidNotificationStatus(n.Status) {
		return ErrInvalidNotificationStatus
	}

	if !isValidNotificationPriority(n.Priority) {
		return ErrInvalidNotificationPriority
	}

	return nil
}

// MarkSent transitions the notification to SENT. The sentAt timestamp is set
// exactly once, on the first SENT transition; later calls keep the original.
func (n *Notification) MarkSent() {
	n.Status = NotificationStatusSent
	n.UpdatedAt = time.Now().UTC()
	if n.SentAt == nil {
		now := n.UpdatedAt
		n.SentAt = &now
	}
}

// MarkFailed transitions the notification to FAILED. There is no transition
// out of FAILED in this pipeline.
func (n *Notification) MarkFailed() {
	n.Status = NotificationStatusFailed
	n.UpdatedAt = time.Now().UTC()
}

// MarkRead records when the owner observed the notification and transitions
// the status to READ. Idempotent on the timestamp: a second call leaves the
// original readAt intact. FAILED and CANCELLED are terminal and keep their
// status; readAt is still recorded for them.
func (n *Notification) MarkRead() {
	n.UpdatedAt = time.Now().UTC()
	if n.ReadAt == nil {
		now := n.UpdatedAt
		n.ReadAt = &now
	}
	if n.Status != NotificationStatusFailed && n.Status != NotificationStatusCancelled {
		n.Status = NotificationStatusRead
	}
}

// SoftDelete flags the notification as deleted without removing it from
// storage. Idempotent: deleting twice leaves deletedAt unchanged.
func (n *Notification) SoftDelete() {
	if n.Deleted {
		return
	}
	n.Deleted = true
	now := time.Now().UTC()
	n.DeletedAt = &now
	n.UpdatedAt = now
}

// IsRead reports whether the owner has observed the notification.
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}

// IsExpired reports whether the notification's expiry has passed.
// Notifications without an expiry never expire.
func (n *Notification) IsExpired() bool {
	return n.ExpiresAt != nil && n.ExpiresAt.Before(time.Now().UTC())
}

// ParseNotificationType converts a string into a NotificationType.
// Returns ErrInvalidNotificationType if the value is not recognized.
func ParseNotificationType(s string) (NotificationType, error) {
	t := NotificationType(s)
	if !isValidNotificationType(t) {
		return "", ErrInvalidNotificationType
	}
	return t, nil
}

// ParseNotificationStatus converts a string into a NotificationStatus.
// Returns ErrInvalidNotificationStatus if the value is not recognized.
func ParseNotificationStatus(s string) (NotificationStatus, error) {
	st := NotificationStatus(s)
	if !isValidNotificationStatus(st) {
		return "", ErrInvalidNotificationStatus
	}
	return st, nil
}

// ParseNotificationPriority converts a string into a NotificationPriority.
// Returns ErrInvalidNotificationPriority if the value is not recognized.
func ParseNotificationPriority(s string) (NotificationPriority, error) {
	p := NotificationPriority(s)
	if !isValidNotificationPriority(p) {
		return "", ErrInvalidNotificationPriority
	}
	return p, nil
}

func isValidNotificationType(t NotificationType) bool {
	switch t {
	case NotificationTypeTodoCreated, NotificationTypeTodoUpdated,
		NotificationTypeTodoCompleted, NotificationTypeTodoDueSoon,
		NotificationTypeTodoOverdue, NotificationTypeSystemAnnouncement,
		NotificationTypeUserWelcome, NotificationTypeReminder:
		return true
	default:
		return false
	}
}

func isValidNotificationStatus(s NotificationStatus) bool {
	switch s {
	case NotificationStatusPending, NotificationStatusSent,
		NotificationStatusDelivered, NotificationStatusRead,
		NotificationStatusFailed, NotificationStatusCancelled:
		return true
	default:
		return false
	}
}

func isValidNotificationPriority(p NotificationPriority) bool {
	switch p {
	case NotificationPriorityLow, NotificationPriorityMedium,
		NotificationPriorityHigh, NotificationPriorityUrgent:
		return true
	default:
		return false
	}
}
