package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the progress state of a task.
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusCancelled  TaskStatus = "CANCELLED"
)

// TaskPriority represents the urgency of a task.
type TaskPriority string

// Possible task priority values
const (
	TaskPriorityLow    TaskPriority = "LOW"
	TaskPriorityMedium TaskPriority = "MEDIUM"
	TaskPriorityHigh   TaskPriority = "HIGH"
	TaskPriorityUrgent TaskPriority = "URGENT"
)

// Title and description length limits for tasks.
const (
	MaxTaskTitleLen       = 200
	MaxTaskDescriptionLen = 1000
)

// Common validation errors for Task
var (
	ErrTaskIDEmpty            = errors.New("task ID cannot be empty")
	ErrTaskUserIDEmpty        = errors.New("task user ID cannot be empty")
	ErrTaskTitleEmpty         = errors.New("task title cannot be empty")
	ErrTaskTitleTooLong       = errors.New("task title must be at most 200 characters")
	ErrTaskDescriptionTooLong = errors.New("task description must be at most 1000 characters")
	ErrInvalidTaskStatus      = errors.New("invalid task status")
	ErrInvalidTaskPriority    = errors.New("invalid task priority")
)

// Task represents a user-owned todo item. The notification pipeline does not
// own tasks; it reacts to their mutations and scans their due dates.
type Task struct {
	ID          uuid.UUID    `json:"id"          bson:"_id"`
	UserID      uuid.UUID    `json:"user_id"     bson:"user_id"`
	Title       string       `json:"title"       bson:"title"`
	Description string       `json:"description,omitempty" bson:"description,omitempty"`
	Status      TaskStatus   `json:"status"      bson:"status"`
	Priority    TaskPriority `json:"priority"    bson:"priority"`
	CreatedAt   time.Time    `json:"created_at"  bson:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"  bson:"updated_at"`
	DueDate     *time.Time   `json:"due_date,omitempty"     bson:"due_date,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	Tags        []string     `json:"tags,omitempty"         bson:"tags,omitempty"`
	Deleted     bool         `json:"deleted"                bson:"deleted"`
	DeletedAt   *time.Time   `json:"deleted_at,omitempty"   bson:"deleted_at,omitempty"`
}

// NewTask creates a new Task owned by the given user with PENDING status and
// MEDIUM priority. Returns an error if validation fails.
func NewTask(userID uuid.UUID, title, description string, dueDate *time.Time) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       title,
		Description: description,
		Status:      TaskStatusPending,
		Priority:    TaskPriorityMedium,
		CreatedAt:   now,
		UpdatedAt:   now,
		DueDate:     dueDate,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrTaskIDEmpty
	}

	if t.UserID == uuid.Nil {
		return ErrTaskUserIDEmpty
	}

	if t.Title == "" {
		return ErrTaskTitleEmpty
	}

	if len(t.Title) > MaxTaskTitleLen {
		return ErrTaskTitleTooLong
	}

	if len(t.Description) > MaxTaskDescriptionLen {
		return ErrTaskDescriptionTooLong
	}

	if !isValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}

	if !isValidTaskPriority(t.Priority) {
		return ErrInvalidTaskPriority
	}

	return nil
}

// UpdateStatus changes the task's status and maintains the completedAt
// timestamp: set on the first transition to COMPLETED, cleared when the task
// leaves COMPLETED.
func (t *Task) UpdateStatus(status TaskStatus) error {
	if !isValidTaskStatus(status) {
		return ErrInvalidTaskStatus
	}

	t.Status = status
	t.UpdatedAt = time.Now().UTC()

	if status == TaskStatusCompleted {
		if t.CompletedAt == nil {
			now := time.Now().UTC()
			t.CompletedAt = &now
		}
	} else {
		t.CompletedAt = nil
	}

	return nil
}

// IsCompleted reports whether the task is in the COMPLETED state.
func (t *Task) IsCompleted() bool {
	return t.Status == TaskStatusCompleted
}

// IsOverdue reports whether the task's due date has passed and the task is
// not completed. Tasks without a due date are never overdue.
func (t *Task) IsOverdue() bool {
	return t.DueDate != nil &&
		t.DueDate.Before(time.Now().UTC()) &&
		t.Status != TaskStatusCompleted
}

// SoftDelete flags the task as deleted without removing it from storage.
func (t *Task) SoftDelete() {
	if t.Deleted {
		return
	}
	t.Deleted = true
	now := time.Now().UTC()
	t.DeletedAt = &now
	t.UpdatedAt = now
}

// ParseTaskStatus converts a string into a TaskStatus.
// Returns ErrInvalidTaskStatus if the value is not recognized.
func ParseTaskStatus(s string) (TaskStatus, error) {
	st := TaskStatus(s)
	if !isValidTaskStatus(st) {
		return "", ErrInvalidTaskStatus
	}
	return st, nil
}

func isValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

func isValidTaskPriority(p TaskPriority) bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityUrgent:
		return true
	default:
		return false
	}
}
