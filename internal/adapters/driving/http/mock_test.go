package http

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/custodia-labs/vidtube-core/internal/core/domain"
	"github.com/custodia-labs/vidtube-core/internal/core/ports/driving"
)

var _ driving.SessionManager = (*mockSessionManager)(nil)

// mockSessionManager delegates to optional function fields
type mockSessionManager struct {
	registerFn     func(ctx context.Context, req domain.RegisterRequest) (*domain.PublicUser, error)
	loginFn        func(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error)
	refreshFn      func(ctx context.Context, req domain.RefreshRequest) (*domain.TokenPair, error)
	logoutFn       func(ctx context.Context, userID string) error
	authenticateFn func(ctx context.Context, accessToken string) (*domain.AuthContext, error)
	currentUserFn  func(ctx context.Context, userID string) (*domain.PublicUser, error)
}

var errNotConfigured = errors.New("mock not configured")

func (m *mockSessionManager) Register(ctx context.Context, req domain.RegisterRequest) (*domain.PublicUser, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, req)
	}
	return nil, errNotConfigured
}

func (m *mockSessionManager) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, req)
	}
	return nil, errNotConfigured
}

func (m *mockSessionManager) Refresh(ctx context.Context, req domain.RefreshRequest) (*domain.TokenPair, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, req)
	}
	return nil, errNotConfigured
}

func (m *mockSessionManager) Logout(ctx context.Context, userID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, userID)
	}
	return errNotConfigured
}

func (m *mockSessionManager) Authenticate(ctx context.Context, accessToken string) (*domain.AuthContext, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, accessToken)
	}
	if accessToken == "" {
		return nil, domain.NewAuthError("unauthorized request", nil)
	}
	if accessToken != "valid-access" {
		return nil, domain.NewAuthError("invalid access token", domain.ErrTokenInvalid)
	}
	return &domain.AuthContext{UserID: "user-123", Username: "janed", Email: "jane@example.com"}, nil
}

func (m *mockSessionManager) CurrentUser(ctx context.Context, userID string) (*domain.PublicUser, error) {
	if m.currentUserFn != nil {
		return m.currentUserFn(ctx, userID)
	}
	return nil, errNotConfigured
}

type mockPinger struct {
	err error
}

func (p *mockPinger) Ping(ctx context.Context) error { return p.err }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
