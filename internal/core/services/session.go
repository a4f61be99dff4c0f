package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/custodia-labs/vidtube-core/internal/core/domain"
	"github.com/custodia-labs/vidtube-core/internal/core/ports/driven"
	"github.com/custodia-labs/vidtube-core/internal/core/ports/driving"
)

// Ensure sessionManager implements SessionManager
var _ driving.SessionManager = (*sessionManager)(nil)

const (
	msgUnauthorizedRequest = "unauthorized request"
	msgInvalidRefreshToken = "invalid refresh token"
	msgRefreshTokenUsed    = "refresh token expired or used"
	msgInvalidAccessToken  = "invalid access token"
	msgUserNotFound        = "User does not exist"
)

// sessionManager implements the SessionManager interface.
//
// The token service stays stateless; the user record's refresh token field is
// the single source of truth for which refresh token is currently valid, and
// this type performs the equality check against it.
type sessionManager struct {
	userStore  driven.UserStore
	hasher     driven.PasswordHasher
	tokens     driven.TokenService
	mediaStore driven.MediaStore
	lock       driven.DistributedLock
	logger     *slog.Logger

	storeTimeout  time.Duration
	uploadTimeout time.Duration
	lockTTL       time.Duration
}

// SessionManagerConfig holds the collaborators of the session manager.
type SessionManagerConfig struct {
	UserStore     driven.UserStore
	Hasher        driven.PasswordHasher
	Tokens        driven.TokenService
	MediaStore    driven.MediaStore
	Lock          driven.DistributedLock // Optional: serializes refresh rotation per user
	Logger        *slog.Logger
	StoreTimeout  time.Duration // Bound on each store call (default: 5s)
	UploadTimeout time.Duration // Bound on media uploads (default: 60s)
	LockTTL       time.Duration // TTL of the rotation lock (default: 10s)
}

// NewSessionManager creates a new SessionManager
func NewSessionManager(cfg SessionManagerConfig) driving.SessionManager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	storeTimeout := cfg.StoreTimeout
	if storeTimeout == 0 {
		storeTimeout = 5 * time.Second
	}

	uploadTimeout := cfg.UploadTimeout
	if uploadTimeout == 0 {
		uploadTimeout = 60 * time.Second
	}

	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = 10 * time.Second
	}

	return &sessionManager{
		userStore:     cfg.UserStore,
		hasher:        cfg.Hasher,
		tokens:        cfg.Tokens,
		mediaStore:    cfg.MediaStore,
		lock:          cfg.Lock,
		logger:        logger,
		storeTimeout:  storeTimeout,
		uploadTimeout: uploadTimeout,
		lockTTL:       lockTTL,
	}
}

// Login validates credentials, issues a token pair and stores the refresh token
func (s *sessionManager) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if username == "" && email == "" {
		return nil, domain.NewValidationError("username or email is required")
	}
	if req.Password == "" {
		return nil, domain.NewValidationError("password is required")
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	user, err := s.userStore.FindByUsernameOrEmail(storeCtx, username, email)
	cancel()
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewNotFoundError(msgUserNotFound)
	}
	if err != nil {
		return nil, domain.NewInternalError("failed to look up user", err)
	}

	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		return nil, domain.NewAuthError("Invalid user credentials", nil)
	}

	pair, err := s.issueTokens(user.ID)
	if err != nil {
		return nil, domain.NewInternalError("Something went wrong while generating tokens", err)
	}

	storeCtx, cancel = context.WithTimeout(ctx, s.storeTimeout)
	err = s.userStore.SetRefreshToken(storeCtx, user.ID, pair.RefreshToken)
	cancel()
	if err != nil {
		return nil, domain.NewInternalError("failed to store refresh token", err)
	}

	s.logger.Info("user logged in", "user_id", user.ID)

	return &domain.LoginResponse{
		User:         user.ToPublic(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

// Refresh rotates a valid refresh token into a new token pair.
// Every failure is reported as an auth error.
func (s *sessionManager) Refresh(ctx context.Context, req domain.RefreshRequest) (*domain.TokenPair, error) {
	presented := strings.TrimSpace(req.RefreshToken)
	if presented == "" {
		return nil, domain.NewAuthError(msgUnauthorizedRequest, nil)
	}

	userID, err := s.tokens.VerifyRefreshToken(presented)
	if err != nil {
		return nil, domain.NewAuthError(msgInvalidRefreshToken, err)
	}

	release, err := s.acquireRotation(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	user, err := s.userStore.FindByID(storeCtx, userID)
	cancel()
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewAuthError(msgInvalidRefreshToken, err)
	}
	if err != nil {
		return nil, domain.AuthFailure(err)
	}

	if !user.HasRefreshToken(presented) {
		s.logger.Warn("rejected superseded refresh token", "user_id", userID)
		return nil, domain.NewAuthError(msgRefreshTokenUsed, nil)
	}

	pair, err := s.issueTokens(user.ID)
	if err != nil {
		return nil, domain.AuthFailure(err)
	}

	storeCtx, cancel = context.WithTimeout(ctx, s.storeTimeout)
	rotated, err := s.userStore.RotateRefreshToken(storeCtx, user.ID, presented, pair.RefreshToken)
	cancel()
	if err != nil {
		return nil, domain.AuthFailure(err)
	}
	if !rotated {
		return nil, domain.NewAuthError(msgRefreshTokenUsed, nil)
	}

	return pair, nil
}

// Logout clears the stored refresh token. Repeated calls are not an error.
func (s *sessionManager) Logout(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.NewAuthError(msgUnauthorizedRequest, nil)
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	if err := s.userStore.UnsetRefreshToken(storeCtx, userID); err != nil {
		return domain.NewInternalError("failed to log out", err)
	}

	s.logger.Info("user logged out", "user_id", userID)
	return nil
}

// Authenticate resolves an access token to the user it was issued for
func (s *sessionManager) Authenticate(ctx context.Context, accessToken string) (*domain.AuthContext, error) {
	if accessToken == "" {
		return nil, domain.NewAuthError(msgUnauthorizedRequest, nil)
	}

	userID, err := s.tokens.VerifyAccessToken(accessToken)
	if err != nil {
		return nil, domain.NewAuthError(msgInvalidAccessToken, err)
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	user, err := s.userStore.FindByID(storeCtx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewAuthError(msgInvalidAccessToken, err)
	}
	if err != nil {
		return nil, domain.NewInternalError("failed to resolve user", err)
	}

	return &domain.AuthContext{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
	}, nil
}

// CurrentUser returns the public view of a user
func (s *sessionManager) CurrentUser(ctx context.Context, userID string) (*domain.PublicUser, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	user, err := s.userStore.FindByID(storeCtx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewNotFoundError(msgUserNotFound)
	}
	if err != nil {
		return nil, domain.NewInternalError("failed to load user", err)
	}
	return user.ToPublic(), nil
}

// issueTokens mints a fresh access and refresh token for userID
func (s *sessionManager) issueTokens(userID string) (*domain.TokenPair, error) {
	accessToken, err := s.tokens.IssueAccessToken(userID)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.tokens.IssueRefreshToken(userID)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// acquireRotation takes the per-user rotation lock. A lock held elsewhere means a
// concurrent refresh is about to supersede the presented token.
func (s *sessionManager) acquireRotation(ctx context.Context, userID string) (func(), error) {
	if s.lock == nil {
		return func() {}, nil
	}

	name := "refresh:" + userID
	lockCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	acquired, err := s.lock.Acquire(lockCtx, name, s.lockTTL)
	cancel()
	if err != nil {
		return nil, domain.AuthFailure(err)
	}
	if !acquired {
		return nil, domain.NewAuthError(msgRefreshTokenUsed, nil)
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.storeTimeout)
		defer cancel()
		if err := s.lock.Release(releaseCtx, name); err != nil {
			s.logger.Warn("failed to release rotation lock", "user_id", userID, "error", err)
		}
	}, nil
}
