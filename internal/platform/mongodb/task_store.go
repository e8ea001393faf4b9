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
)

// taskDoc is the persisted shape of a domain.Task.
type taskDoc struct {
	ID          string     `bson:"_id"`
	UserID      string     `bson:"user_id"`
	Title       string     `bson:"title"`
	Description string     `bson:"description,omitempty"`
	Status      string     `bson:"status"`
	Priority    string     `bson:"priority"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
	DueDate     *time.Time `bson:"due_date,omitempty"`
	CompletedAt *time.Time `bson:"completed_at,omitempty"`
	Tags        []string   `bson:"tags,omitempty"`
	Deleted     bool       `bson:"deleted"`
	DeletedAt   *time.Time `bson:"deleted_at,omitempty"`
}

func toTaskDoc(t *domain.Task) *taskDoc {
	return &taskDoc{
		ID:          t.ID.String(),
		UserID:      t.UserID.String(),
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		DueDate:     t.DueDate,
		CompletedAt: t.CompletedAt,
		Tags:        t.Tags,
		Deleted:     t.Deleted,
		DeletedAt:   t.DeletedAt,
	}
}

func (d *taskDoc) toDomain() (*domain.Task, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid task id %q: %w", d.ID, err)
	}
	userID, err := uuid.Parse(d.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid task user id %q: %w", d.UserID, err)
	}

	return &domain.Task{
		ID:          id,
		UserID:      userID,
		Title:       d.Title,
		Description: d.Description,
		Status:      domain.TaskStatus(d.Status),
		Priority:    domain.TaskPriority(d.Priority),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		DueDate:     d.DueDate,
		CompletedAt: d.CompletedAt,
		Tags:        d.Tags,
		Deleted:     d.Deleted,
		DeletedAt:   d.DeletedAt,
	}, nil
}

// TaskStore implements store.TaskStore on MongoDB.
type TaskStore struct {
	coll   *mongo.Collection
	logger *slog.Logger
}

var _ store.TaskStore = (*TaskStore)(nil)

// NewTaskStore creates a TaskStore backed by the given database.
func NewTaskStore(db *mongo.Database, logger *slog.Logger) *TaskStore {
	return &TaskStore{
		coll:   db.Collection(tasksCollection),
		logger: logger.With("component", "task_store"),
	}
}

// Insert saves a new task.
func (s *TaskStore) Insert(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	if _, err := s.coll.InsertOne(ctx, toTaskDoc(task)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return store.NewStoreError("task", "insert", "insert failed", err)
	}
	return nil
}

// GetByID retrieves a non-deleted task owned by the given user.
func (s *TaskStore) GetByID(ctx context.Context, id, userID uuid.UUID) (*domain.Task, error) {
	filter := bson.M{"_id": id.String(), "user_id": userID.String(), "deleted": false}

	var doc taskDoc
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrTaskNotFound
		}
		return nil, store.NewStoreError("task", "get", "find failed", err)
	}
	return doc.toDomain()
}

// Update replaces an existing task document.
func (s *TaskStore) Update(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	result, err := s.coll.ReplaceOne(ctx, bson.M{"_id": task.ID.String()}, toTaskDoc(task))
	if err != nil {
		return store.NewStoreError("task", "update", "replace failed", err)
	}
	if result.MatchedCount == 0 {
		return store.ErrTaskNotFound
	}
	return nil
}

// ListByUser retrieves all non-deleted tasks for a user.
func (s *TaskStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Task, error) {
	return s.find(ctx, bson.M{"user_id": userID.String(), "deleted": false})
}

// ListOverdue retrieves a user's tasks whose due date has passed and whose
// status is not COMPLETED.
func (s *TaskStore) ListOverdue(
	ctx context.Context,
	userID uuid.UUID,
	now time.Time,
) ([]*domain.Task, error) {
	filter := bson.M{
		"user_id":  userID.String(),
		"due_date": bson.M{"$lt": now},
		"status":   bson.M{"$ne": string(domain.TaskStatusCompleted)},
		"deleted":  false,
	}
	return s.find(ctx, filter)
}

// ListDueSoon retrieves a user's non-completed tasks due within [from, to].
func (s *TaskStore) ListDueSoon(
	ctx context.Context,
	userID uuid.UUID,
	from, to time.Time,
) ([]*domain.Task, error) {
	filter := bson.M{
		"user_id":  userID.String(),
		"due_date": bson.M{"$gte": from, "$lte": to},
		"status":   bson.M{"$ne": string(domain.TaskStatusCompleted)},
		"deleted":  false,
	}
	return s.find(ctx, filter)
}

func (s *TaskStore) find(ctx context.Context, filter bson.M) ([]*domain.Task, error) {
	cursor, err := s.coll.Find(ctx, filter)
	if err != nil {
		return nil, store.NewStoreError("task", "list", "find failed", err)
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			s.logger.Warn("failed to close cursor", "error", err)
		}
	}()

	tasks := make([]*domain.Task, 0)
	for cursor.Next(ctx) {
		var doc taskDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, store.NewStoreError("task", "list", "decode failed", err)
		}
		task, err := doc.toDomain()
		if err != nil {
			return nil, store.NewStoreError("task", "list", "corrupt document", err)
		}
		tasks = append(tasks, task)
	}
	if err := cursor.Err(); err != nil {
		return nil, store.NewStoreError("task", "list", "cursor failed", err)
	}
	return tasks, nil
}
