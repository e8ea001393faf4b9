package api

import (
	"time"

	"github.com/phrazzld/notify-api/internal/domain"
)

// CreateNotificationRequest is the request body for creating a notification.
type CreateNotificationRequest struct {
	Title     string            `json:"title"      validate:"required,max=200"`
	Message   string            `json:"message"    validate:"required,max=500"`
	Type      string            `json:"type"       validate:"required"`
	Priority  string            `json:"priority,omitempty"`
	TaskID    string            `json:"task_id,omitempty"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
	ActionURL string            `json:"action_url,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// UpdateNotificationRequest is the request body for editing a notification.
type UpdateNotificationRequest struct {
	Title     string            `json:"title"    validate:"required,max=200"`
	Message   string            `json:"message"  validate:"required,max=500"`
	Type      string            `json:"type"     validate:"required"`
	Priority  string            `json:"priority" validate:"required"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
	ActionURL string            `json:"action_url,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AnnouncementRequest is the request body for the admin announcement fan-out.
// An empty user list targets every active user.
type AnnouncementRequest struct {
	Title   string   `json:"title"   validate:"required,max=200"`
	Message string   `json:"message" validate:"required,max=500"`
	UserIDs []string `json:"user_ids,omitempty"`
}

// NotificationResponse represents the response data for a notification.
type NotificationResponse struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Type      string            `json:"type"`
	Status    string            `json:"status"`
	Priority  string            `json:"priority"`
	TaskID    string            `json:"task_id,omitempty"`
	ActionURL string            `json:"action_url,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	SentAt    *time.Time        `json:"sent_at,omitempty"`
	ReadAt    *time.Time        `json:"read_at,omitempty"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
}

// CleanupResponse reports the outcome of an admin cleanup run.
type CleanupResponse struct {
	ExpiredCleaned int `json:"expired_cleaned"`
	StaleFailed    int `json:"stale_failed"`
}

// CountResponse wraps a single count value.
type CountResponse struct {
	Count int64 `json:"count"`
}

// CreateTaskRequest is the request body for creating a task.
type CreateTaskRequest struct {
	Title       string     `json:"title"       validate:"required,max=200"`
	Description string     `json:"description,omitempty" validate:"max=1000"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// UpdateTaskRequest is the request body for editing a task.
type UpdateTaskRequest struct {
	Title       string     `json:"title"       validate:"required,max=200"`
	Description string     `json:"description,omitempty" validate:"max=1000"`
	Status      string     `json:"status"      validate:"required"`
	Priority    string     `json:"priority"    validate:"required"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
}

// TaskResponse represents the response data for a task.
type TaskResponse struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// notificationToResponse transforms a domain notification into its API shape.
func notificationToResponse(n *domain.Notification) NotificationResponse {
	resp := NotificationResponse{
		ID:        n.ID.String(),
		UserID:    n.UserID.String(),
		Title:     n.Title,
		Message:   n.Message,
		Type:      string(n.Type),
		Status:    string(n.Status),
		Priority:  string(n.Priority),
		ActionURL: n.ActionURL,
		Metadata:  n.Metadata,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
		SentAt:    n.SentAt,
		ReadAt:    n.ReadAt,
		ExpiresAt: n.ExpiresAt,
	}
	if n.TaskID != nil {
		resp.TaskID = n.TaskID.String()
	}
	return resp
}

// notificationsToResponse transforms a slice of domain notifications.
// Always returns a non-nil slice so empty lists serialize as [].
func notificationsToResponse(list []*domain.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(list))
	for _, n := range list {
		out = append(out, notificationToResponse(n))
	}
	return out
}

// taskToResponse transforms a domain task into its API shape.
func taskToResponse(t *domain.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID.String(),
		UserID:      t.UserID.String(),
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		DueDate:     t.DueDate,
		CompletedAt: t.CompletedAt,
		Tags:        t.Tags,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// tasksToResponse transforms a slice of domain tasks.
func tasksToResponse(list []*domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(list))
	for _, t := range list {
		out = append(out, taskToResponse(t))
	}
	return out
}
