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

// userDoc is the persisted shape of a domain.User. Only the fields the
// pipeline reads are mapped; profile management owns the rest.
type userDoc struct {
	ID        string    `bson:"_id"`
	Email     string    `bson:"email"`
	Name      string    `bson:"name,omitempty"`
	Roles     []string  `bson:"roles"`
	Active    bool      `bson:"active"`
	CreatedAt time.Time `bson:"created_at"`
}

func (d *userDoc) toDomain() (*domain.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", d.ID, err)
	}

	return &domain.User{
		ID:        id,
		Email:     d.Email,
		Name:      d.Name,
		Roles:     d.Roles,
		Active:    d.Active,
		CreatedAt: d.CreatedAt,
	}, nil
}

// UserStore implements store.UserStore on MongoDB.
type UserStore struct {
	coll   *mongo.Collection
	logger *slog.Logger
}

var _ store.UserStore = (*UserStore)(nil)

// NewUserStore creates a UserStore backed by the given database.
func NewUserStore(db *mongo.Database, logger *slog.Logger) *UserStore {
	return &UserStore{
		coll:   db.Collection(usersCollection),
		logger: logger.With("component", "user_store"),
	}
}

// GetByID retrieves a user by ID.
func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var doc userDoc
	if err := s.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrUserNotFound
		}
		return nil, store.NewStoreError("user", "get", "find failed", err)
	}
	return doc.toDomain()
}

// ListActive retrieves all active users.
func (s *UserStore) ListActive(ctx context.Context) ([]*domain.User, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"active": true})
	if err != nil {
		return nil, store.NewStoreError("user", "list", "find failed", err)
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			s.logger.Warn("failed to close cursor", "error", err)
		}
	}()

	users := make([]*domain.User, 0)
	for cursor.Next(ctx) {
		var doc userDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, store.NewStoreError("user", "list", "decode failed", err)
		}
		user, err := doc.toDomain()
		if err != nil {
			return nil, store.NewStoreError("user", "list", "corrupt document", err)
		}
		users = append(users, user)
	}
	if err := cursor.Err(); err != nil {
		return nil, store.NewStoreError("user", "list", "cursor failed", err)
	}
	return users, nil
}
