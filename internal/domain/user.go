package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// RoleAdmin is the role required for administrative operations.
const RoleAdmin = "ADMIN"

// Common validation errors for User
var (
	ErrUserIDEmpty    = errors.New("user ID cannot be empty")
	ErrUserEmailEmpty = errors.New("user email cannot be empty")
)

// User is a collaborator entity: authentication and profile management live
// outside this core. The pipeline only needs identity, role membership, and
// the active flag that scopes scheduled scans.
type User struct {
	ID        uuid.UUID `json:"id"         bson:"_id"`
	Email     string    `json:"email"      bson:"email"`
	Name      string    `json:"name,omitempty" bson:"name,omitempty"`
	Roles     []string  `json:"roles"      bson:"roles"`
	Active    bool      `json:"active"     bson:"active"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Validate checks if the User has valid data.
func (u *User) Validate() error {
	if u.ID == uuid.Nil {
		return ErrUserIDEmpty
	}

	if u.Email == "" {
		return ErrUserEmailEmpty
	}

	return nil
}

// IsAdmin reports whether the user's role set contains ADMIN.
func (u *User) IsAdmin() bool {
	for _, role := range u.Roles {
		if role == RoleAdmin {
			return true
		}
	}
	return false
}
