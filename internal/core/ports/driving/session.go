package driving

import (
	"context"

	"github.com/custodia-labs/vidtube-core/internal/core/domain"
)

// SessionManager drives registration and the session lifecycle.
// Every failure it returns is a *domain.Error.
type SessionManager interface {
	// Register creates an account and returns its public view
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.PublicUser, error)

	// Login validates credentials, issues a token pair and stores the refresh token
	Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error)

	// Refresh rotates a valid refresh token into a new token pair
	Refresh(ctx context.Context, req domain.RefreshRequest) (*domain.TokenPair, error)

	// Logout clears the stored refresh token of a user
	Logout(ctx context.Context, userID string) error

	// Authenticate resolves an access token to the user it was issued for
	Authenticate(ctx context.Context, accessToken string) (*domain.AuthContext, error)

	// CurrentUser returns the public view of a user
	CurrentUser(ctx context.Context, userID string) (*domain.PublicUser, error)
}
