package driven

import (
	"context"

	"github.com/custodia-labs/vidtube-core/internal/core/domain"
)

// UserStore handles user persistence (PostgreSQL)
type UserStore interface {
	// Create inserts a new user. Returns domain.ErrAlreadyExists on a username or email collision.
	Create(ctx context.Context, user *domain.User) error

	// Save updates every mutable field of an existing user
	Save(ctx context.Context, user *domain.User) error

	// FindByID retrieves a user by ID
	FindByID(ctx context.Context, id string) (*domain.User, error)

	// FindByUsernameOrEmail retrieves the user matching either field.
	// Empty arguments are ignored; returns domain.ErrNotFound when nothing matches.
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*domain.User, error)

	// SetRefreshToken overwrites the stored refresh token without touching other fields
	SetRefreshToken(ctx context.Context, id, token string) error

	// RotateRefreshToken replaces the stored refresh token only if it still equals expected.
	// Returns false when the stored value differs or the user does not exist.
	RotateRefreshToken(ctx context.Context, id, expected, next string) (bool, error)

	// UnsetRefreshToken clears the stored refresh token. Idempotent.
	UnsetRefreshToken(ctx context.Context, id string) error
}
