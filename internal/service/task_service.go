package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/notify-api/internal/domain"
	"github.com/phrazzld/notify-api/internal/store"
)

// UpdateTaskParams carries the mutable fields of a task update.
type UpdateTaskParams struct {
	Title       string
	Description string
	Status      domain.TaskStatus
	Priority    domain.TaskPriority
	DueDate     *time.Time
	Tags        []string
}

// TaskService provides task operations at the seams the notification
// pipeline cares about: mutations that trigger notifications, and the
// due-date queries the scan scheduler runs.
type TaskService interface {
	// Create persists a new task and emits a TODO_CREATED notification.
	Create(
		ctx context.Context,
		userID uuid.UUID,
		title, description string,
		dueDate *time.Time,
	) (*domain.Task, error)

	// GetByID retrieves a task owned by the given user.
	GetByID(ctx context.Context, id, userID uuid.UUID) (*domain.Task, error)

	// GetAll retrieves all of a user's tasks.
	GetAll(ctx context.Context, userID uuid.UUID) ([]*domain.Task, error)

	// Update applies edits to a task. A transition into COMPLETED emits a
	// TODO_COMPLETED notification; any other edit emits TODO_UPDATED.
	Update(ctx context.Context, id, userID uuid.UUID, params UpdateTaskParams) (*domain.Task, error)

	// Complete marks a task COMPLETED and emits a TODO_COMPLETED notification.
	Complete(ctx context.Context, id, userID uuid.UUID) (*domain.Task, error)

	// Delete soft-deletes a task. No notification is emitted.
	Delete(ctx context.Context, id, userID uuid.UUID) error

	// FindOverdue retrieves a user's overdue tasks: due date in the past and
	// status not COMPLETED.
	FindOverdue(ctx context.Context, userID uuid.UUID) ([]*domain.Task, error)

	// FindDueSoon retrieves a user's tasks due within the next hoursAhead
	// hours, excluding completed ones.
	FindDueSoon(ctx context.Context, userID uuid.UUID, hoursAhead int) ([]*domain.Task, error)

	// NotifyOverdue emits one TODO_OVERDUE notification per overdue task.
	// Runs re-notify the same overdue task every time; no de-duplication is
	// performed. Returns the number of notifications created.
	NotifyOverdue(ctx context.Context, userID uuid.UUID) (int, error)

	// NotifyDueSoon emits one TODO_DUE_SOON notification per task due within
	// the window. Same no-de-duplication behavior as NotifyOverdue.
	NotifyDueSoon(ctx context.Context, userID uuid.UUID, hoursAhead int) (int, error)
}

// taskService implements TaskService.
type taskService struct {
	tasks         store.TaskStore
	notifications NotificationService
	logger        *slog.Logger
}

var _ TaskService = (*taskService)(nil)

// NewTaskService creates a TaskService.
// Returns an error if any required dependency is nil.
func NewTaskService(
	tasks store.TaskStore,
	notifications NotificationService,
	logger *slog.Logger,
) (TaskService, error) {
	if tasks == nil {
		return nil, errors.New("task store cannot be nil")
	}
	if notifications == nil {
		return nil, errors.New("notification service cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &taskService{
		tasks:         tasks,
		notifications: notifications,
		logger:        logger.With("component", "task_service"),
	}, nil
}

func (s *taskService) Create(
	ctx context.Context,
	userID uuid.UUID,
	title, description string,
	dueDate *time.Time,
) (*domain.Task, error) {
	task, err := domain.NewTask(userID, title, description, dueDate)
	if err != nil {
		return nil, newServiceError("create_task", "validation failed", err)
	}

	if err := s.tasks.Insert(ctx, task); err != nil {
		return nil, newServiceError("create_task", "persist failed", err)
	}

	s.notify(ctx, userID, task.ID,
		"New Todo Created",
		"You have created a new todo: "+task.Title,
		domain.NotificationTypeTodoCreated)

	return task, nil
}

func (s *taskService) GetByID(ctx context.Context, id, userID uuid.UUID) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, id, userID)
	if err != nil {
		return nil, newServiceError("get_task", "lookup failed", err)
	}
	return task, nil
}

func (s *taskService) GetAll(ctx context.Context, userID uuid.UUID) ([]*domain.Task, error) {
	tasks, err := s.tasks.ListByUser(ctx, userID)
	if err != nil {
		return nil, newServiceError("list_tasks", "query failed", err)
	}
	return tasks, nil
}

func (s *taskService) Update(
	ctx context.Context,
	id, userID uuid.UUID,
	params UpdateTaskParams,
) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, id, userID)
	if err != nil {
		return nil, newServiceError("update_task", "lookup failed", err)
	}

	wasCompleted := task.IsCompleted()

	task.Title = params.Title
	task.Description = params.Description
	task.Priority = params.Priority
	task.DueDate = params.DueDate
	task.Tags = params.Tags
	if err := task.UpdateStatus(params.Status); err != nil {
		return nil, newServiceError("update_task", "invalid status", err)
	}

	if err := task.Validate(); err != nil {
		return nil, newServiceError("update_task", "validation failed", err)
	}

	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, newServiceError("update_task", "persist failed", err)
	}

	if task.IsCompleted() && !wasCompleted {
		s.notify(ctx, userID, task.ID,
			"Todo Completed",
			"Congratulations! You have completed: "+task.Title,
			domain.NotificationTypeTodoCompleted)
	} else {
		s.notify(ctx, userID, task.ID,
			"Todo Updated",
			"Your todo has been updated: "+task.Title,
			domain.NotificationTypeTodoUpdated)
	}

	return task, nil
}

func (s *taskService) Complete(ctx context.Context, id, userID uuid.UUID) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, id, userID)
	if err != nil {
		return nil, newServiceError("complete_task", "lookup failed", err)
	}

	if err := task.UpdateStatus(domain.TaskStatusCompleted); err != nil {
		return nil, newServiceError("complete_task", "invalid status", err)
	}

	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, newServiceError("complete_task", "persist failed", err)
	}

	s.notify(ctx, userID, task.ID,
		"Todo Completed",
		"Congratulations! You have completed: "+task.Title,
		domain.NotificationTypeTodoCompleted)

	return task, nil
}

func (s *taskService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	task, err := s.tasks.GetByID(ctx, id, userID)
	if err != nil {
		return newServiceError("delete_task", "lookup failed", err)
	}

	task.SoftDelete()
	if err := s.tasks.Update(ctx, task); err != nil {
		return newServiceError("delete_task", "persist failed", err)
	}
	return nil
}

func (s *taskService) FindOverdue(
	ctx context.Context,
	userID uuid.UUID,
) ([]*domain.Task, error) {
	tasks, err := s.tasks.ListOverdue(ctx, userID, time.Now().UTC())
	if err != nil {
		return nil, newServiceError("find_overdue", "query failed", err)
	}
	return tasks, nil
}

func (s *taskService) FindDueSoon(
	ctx context.Context,
	userID uuid.UUID,
	hoursAhead int,
) ([]*domain.Task, error) {
	now := time.Now().UTC()
	tasks, err := s.tasks.ListDueSoon(ctx, userID, now, now.Add(time.Duration(hoursAhead)*time.Hour))
	if err != nil {
		return nil, newServiceError("find_due_soon", "query failed", err)
	}
	return tasks, nil
}

func (s *taskService) NotifyOverdue(ctx context.Context, userID uuid.UUID) (int, error) {
	overdue, err := s.FindOverdue(ctx, userID)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, task := range overdue {
		taskID := task.ID
		_, err := s.notifications.Create(ctx, userID,
			"Todo Overdue",
			"Your todo is overdue: "+task.Title,
			domain.NotificationTypeTodoOverdue,
			CreateNotificationParams{TaskID: &taskID})
		if err != nil {
			s.logger.Error("failed to create overdue notification",
				"task_id", task.ID,
				"user_id", userID,
				"error", err)
			continue
		}
		created++
	}

	return created, nil
}

func (s *taskService) NotifyDueSoon(
	ctx context.Context,
	userID uuid.UUID,
	hoursAhead int,
) (int, error) {
	dueSoon, err := s.FindDueSoon(ctx, userID, hoursAhead)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, task := range dueSoon {
		taskID := task.ID
		_, err := s.notifications.Create(ctx, userID,
			"Todo Due Soon",
			"Your todo is due soon: "+task.Title,
			domain.NotificationTypeTodoDueSoon,
			CreateNotificationParams{TaskID: &taskID})
		if err != nil {
			s.logger.Error("failed to create due-soon notification",
				"task_id", task.ID,
				"user_id", userID,
				"error", err)
			continue
		}
		created++
	}

	return created, nil
}

// notify emits a task-mutation notification. Notification failures never
// fail the task mutation itself; the record ends up FAILED and observable.
func (s *taskService) notify(
	ctx context.Context,
	userID, taskID uuid.UUID,
	title, message string,
	notificationType domain.NotificationType,
) {
	_, err := s.notifications.Create(ctx, userID, title, message, notificationType,
		CreateNotificationParams{TaskID: &taskID})
	if err != nil {
		s.logger.Error("failed to create task notification",
			"task_id", taskID,
			"user_id", userID,
			"type", notificationType,
			"error", err)
	}
}
