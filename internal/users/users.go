// Package users provides user accounts and bearer-token credentials for
// link ownership. Links themselves never depend on this package's
// internals; ownership is carried as a plain user ID.
package users

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID
	Username       string
	HashedPassword string
	CreatedAt      time.Time
}

// Repository defines the persistence operations for User records.
type Repository interface {
	// Create inserts a new user. Conflict if the username is taken.
	Create(ctx context.Context, user User) (User, error)

	// GetByUsername returns the user with the given name. NotFound if absent.
	GetByUsername(ctx context.Context, username string) (User, error)

	// GetByID returns the user with the given ID. NotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
}
