package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/vidtube-core/internal/core/domain"
	"github.com/custodia-labs/vidtube-core/internal/core/ports/driven/mocks"
)

type testDeps struct {
	users  *mocks.MockUserStore
	hasher *mocks.MockPasswordHasher
	tokens *mocks.MockTokenService
	media  *mocks.MockMediaStore
	lock   *mocks.MockDistributedLock
}

func newTestSessionManager() (*testDeps, *sessionManager) {
	deps := &testDeps{
		users:  mocks.NewMockUserStore(),
		hasher: mocks.NewMockPasswordHasher(),
		tokens: mocks.NewMockTokenService(),
		media:  mocks.NewMockMediaStore(),
		lock:   mocks.NewMockDistributedLock(),
	}
	svc := NewSessionManager(SessionManagerConfig{
		UserStore:  deps.users,
		Hasher:     deps.hasher,
		Tokens:     deps.tokens,
		MediaStore: deps.media,
		Lock:       deps.lock,
	}).(*sessionManager)
	return deps, svc
}

func seedUser(t *testing.T, deps *testDeps) *domain.User {
	t.Helper()
	user := &domain.User{
		ID:           "user-123",
		Username:     "jdoe",
		Email:        "jdoe@example.com",
		FullName:     "Jane Doe",
		PasswordHash: "hashed:password123", // Mock hasher prefixes the plaintext
		Avatar:       "https://media.test/avatar.png",
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	deps.users.Put(user)
	return user
}

func requireKind(t *testing.T, err error, kind error, message string) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, kind)
	de, ok := domain.AsError(err)
	require.True(t, ok, "expected *domain.Error, got %T", err)
	if message != "" {
		assert.Equal(t, message, de.Message)
	}
}

func TestNewSessionManager_Defaults(t *testing.T) {
	_, svc := newTestSessionManager()

	assert.Equal(t, 5*time.Second, svc.storeTimeout)
	assert.Equal(t, 60*time.Second, svc.uploadTimeout)
	assert.Equal(t, 10*time.Second, svc.lockTTL)
	assert.NotNil(t, svc.logger)
}

func TestSessionManager_Login(t *testing.T) {
	deps, svc := newTestSessionManager()
	seedUser(t, deps)

	tests := []struct {
		name    string
		req     domain.LoginRequest
		wantErr error
		wantMsg string
	}{
		{
			name:    "username and password",
			req:     domain.LoginRequest{Username: "jdoe", Password: "password123"},
			wantErr: nil,
		},
		{
			name:    "email and password",
			req:     domain.LoginRequest{Email: "jdoe@example.com", Password: "password123"},
			wantErr: nil,
		},
		{
			name:    "username is case-normalized",
			req:     domain.LoginRequest{Username: "JDoe", Password: "password123"},
			wantErr: nil,
		},
		{
			name:    "neither username nor email",
			req:     domain.LoginRequest{Password: "password123"},
			wantErr: domain.ErrInvalidInput,
			wantMsg: "username or email is required",
		},
		{
			name:    "empty password",
			req:     domain.LoginRequest{Username: "jdoe"},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "unknown user",
			req:     domain.LoginRequest{Username: "ghost", Password: "password123"},
			wantErr: domain.ErrNotFound,
			wantMsg: "User does not exist",
		},
		{
			name:    "wrong password",
			req:     domain.LoginRequest{Username: "jdoe", Password: "wrong"},
			wantErr: domain.ErrUnauthorized,
			wantMsg: "Invalid user credentials",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.Login(context.Background(), tt.req)

			if tt.wantErr != nil {
				requireKind(t, err, tt.wantErr, tt.wantMsg)
				assert.Nil(t, resp)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, resp)
			assert.NotEmpty(t, resp.AccessToken)
			assert.NotEmpty(t, resp.RefreshToken)
			assert.Equal(t, "user-123", resp.User.ID)

			stored, ok := deps.users.StoredRefreshToken("user-123")
			require.True(t, ok)
			assert.Equal(t, resp.RefreshToken, stored, "returned refresh token must be the stored one")
		})
	}
}

func TestSessionManager_Login_WrongPasswordKeepsStoredToken(t *testing.T) {
	deps, svc := newTestSessionManager()
	seedUser(t, deps)
	ctx := context.Background()

	first, err := svc.Login(ctx, domain.LoginRequest{Username: "jdoe", Password: "password123"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, domain.LoginRequest{Username: "jdoe", Password: "nope"})
	requireKind(t, err, domain.ErrUnauthorized, "")

	stored, ok := deps.users.StoredRefreshToken("user-123")
	require.True(t, ok)
	assert.Equal(t, first.RefreshToken, stored)
}

func TestSessionManager_Login_OverwritesPreviousRefreshToken(t *testing.T) {
	deps, svc := newTestSessionManager()
	seedUser(t, deps)
	ctx := context.Background()

	first, err := svc.Login(ctx, domain.LoginRequest{Username: "jdoe", Password: "password123"})
	require.NoError(t, err)
	second, err := svc.Login(ctx, domain.LoginRequest{Email: "jdoe@example.com", Password: "password123"})
	require.NoError(t, err)

	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = svc.Refresh(ctx, domain.RefreshRequest{RefreshToken: first.RefreshToken})
	requireKind(t, err, domain.ErrUnauthorized, "refresh token expired or used")
}

func TestSessionManager_Login_StoreFailure(t *testing.T) {
	deps, svc := newTestSessionManager()
	seedUser(t, deps)
	deps.users.SetTokenErr = errors.New("db down")

	_, err := svc.Login(context.Background(), domain.LoginRequest{Username: "jdoe", Password: "password123"})
	requireKind(t, err, domain.ErrInternal, "")
}

func TestSessionManager_Login_TokenIssueFailure(t *testing.T) {
	deps, svc := newTestSessionManager()
	seedUser(t, deps)
	deps.tokens.IssueErr = errors.New("signer broken")

	_, err := svc.Login(context.Background(), domain.LoginRequest{Username: "jdoe", Password: "password123"})
	requireKind(t, err, domain.ErrInternal, "")

	_, ok := deps.users.StoredRefreshToken("user-123")
	assert.False(t, ok, "no token may be stored when issuance fails")
}

func TestSessionManager_Refresh(t *testing.T) {
	deps, svc := newTestSessionManager()
	seedUser(t, deps)
	ctx := context.Background()

	login, err := svc.Login(ctx, domain.LoginRequest{Username: "jdoe", Password: "password123"})
	require.NoError(t, err)

	pair, err := svc.Refresh(ctx, domain.RefreshRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEqual(t, login.RefreshToken, pair.RefreshToken)

	stored, ok := deps.users.StoredRefreshToken("user-123")
	require.True(t, ok)
	assert.Equal(t, pair.RefreshToken, stored)

	// The rotated-out token is no longer accepted
	_, err = svc.Refresh(ctx, domain.RefreshRequest{RefreshToken: login.RefreshToken})
	requireKind(t, err, domain.ErrUnauthorized, "refresh token expired or used")

	// The new token keeps working
	_, err = svc.Refresh(ctx, domain.RefreshRequest{RefreshToken: pair.RefreshToken})
	require.NoError(t, err)

	assert.False(t, deps.lock.IsHeld("refresh:user-123"), "rotation lock must be released")
}

func TestSessionManager_Refresh_Failures(t *testing.T) {
	deps, svc := newTestSessionManager()
	seedUser(t, deps)
	ctx := context.Background()

	login, err := svc.Login(ctx, domain.LoginRequest{Username: "jdoe", Password: "password123"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   func() string
		wantMsg string
		cause   error
	}{
		{
			name:    "no token",
			token:   func() string { return "" },
			wantMsg: "unauthorized request",
		},
		{
			name:    "garbage token",
			token:   func() string { return "not-a-token" },
			wantMsg: "invalid refresh token",
			cause:   domain.ErrTokenInvalid,
		},
		{
			name:    "access token presented as refresh token",
			token:   func() string { return login.AccessToken },
			wantMsg: "invalid refresh token",
			cause:   domain.ErrTokenInvalid,
		},
		{
			name: "expired token",
			token: func() string {
				deps.tokens.Expire(login.RefreshToken)
				return login.RefreshToken
			},
			wantMsg: "invalid refresh token",
			cause:   domain.ErrTokenExpired,
		},
		{
			name:    "subject does not exist",
			token:   func() string { return deps.tokens.Forge(domain.TokenKindRefresh, "ghost") },
			wantMsg: "invalid refresh token",
			cause:   domain.ErrNotFound,
		},
		{
			name:    "valid signature but not the stored token",
			token:   func() string { return deps.tokens.Forge(domain.TokenKindRefresh, "user-123") },
			wantMsg: "refresh token expired or used",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair, err := svc.Refresh(ctx, domain.RefreshRequest{RefreshToken: tt.token()})
			requireKind(t, err, domain.ErrUnauthorized, tt.wantMsg)
			assert.Nil(t, pair)
			if tt.cause != nil {
				assert.ErrorIs(t, err, tt.cause)
			}
		})
	}
}

func TestSessionManager_Refresh_StoreFailureIsAuthError(t *testing.T) {
	deps, svc := newTestSessionManager()
	seedUser(t, deps)
	ctx := context.Background()

	login, err := svc.Login(ctx, domain.LoginRequest{Username: "jdoe", Password: "password123"})
	require.NoError(t, err)

	deps.users.FindByIDErr = errors.New("connection refused")
	_, err = svc.Refresh(ctx, domain.RefreshRequest{RefreshToken: login.RefreshToken})
	requireKind(t, err, domain.ErrUnauthorized, "connection refused")
}

func TestSessionManager_Refresh_LockHeldElsewhere(t *testing.T) {
	deps, svc := newTestSessionManager()
	seedUser(t, deps)
	ctx := context.Background()

	login, err := svc.Login(ctx, domain.LoginRequest{Username: "jdoe", Password: "password123"})
	require.NoError(t, err)

	deps.lock.SetLockHeld("refresh:user-123", time.Minute)

	_, err = svc.Refresh(ctx, domain.RefreshRequest{RefreshToken: login.RefreshToken})
	requireKind(t, err, domain.ErrUnauthorized, "refresh token expired or used")

	stored, _ := deps.users.StoredRefreshToken("user-123")
	assert.Equal(t, login.RefreshToken, stored, "failed rotation must not touch the stored token")
}

func TestSessionManager_Refresh_LockBackendError(t *testing.T) {
	deps, svc := newTestSessionManager()
	seedUser(t, deps)
	ctx := context.Background()

	login, err := svc.Login(ctx, domain.LoginRequest{Username: "jdoe", Password: "password123"})
	require.NoError(t, err)

	deps.lock.AcquireFn = func(ctx context.Context, name string, ttl time.Duration) (bool, error) {
		return false, errors.New("redis: connection pool timeout")
	}

	_, err = svc.Refresh(ctx, domain.RefreshRequest{RefreshToken: login.RefreshToken})
	requireKind(t, err, domain.ErrUnauthorized, "redis: connection pool timeout")
}

func TestSessionManager_Refresh_LockAcquireIsBounded(t *testing.T) {
	deps, svc := newTestSessionManager()
	svc.storeTimeout = 50 * time.Millisecond
	seedUser(t, deps)
	ctx := context.Background()

	login, err := svc.Login(ctx, domain.LoginRequest{Username: "jdoe", Password: "password123"})
	require.NoError(t, err)

	deps.lock.AcquireFn = func(ctx context.Context, name string, ttl time.Duration) (bool, error) {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline, "lock acquisition must carry a deadline")
		<-ctx.Done()
		return false, ctx.Err()
	}

	start := time.Now()
	_, err = svc.Refresh(ctx, domain.RefreshRequest{RefreshToken: login.RefreshToken})
	requireKind(t, err, domain.ErrUnauthorized, "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSessionManager_Refresh_ConcurrentSingleWinner(t *testing.T) {
	deps, svc := newTestSessionManager()
	seedUser(t, deps)
	ctx := context.Background()

	login, err := svc.Login(ctx, domain.LoginRequest{Username: "jdoe", Password: "password123"})
	require.NoError(t, err)

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes []string
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pair, err := svc.Refresh(ctx, domain.RefreshRequest{RefreshToken: login.RefreshToken})
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrUnauthorized)
				return
			}
			mu.Lock()
			successes = append(successes, pair.RefreshToken)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, successes, 1, "exactly one concurrent refresh may win")
	stored, _ := deps.users.StoredRefreshToken("user-123")
	assert.Equal(t, successes[0], stored)
}

func TestSessionManager_Refresh_WithoutLock(t *testing.T) {
	users := mocks.NewMockUserStore()
	svc := NewSessionManager(SessionManagerConfig{
		UserStore:  users,
		Hasher:     mocks.NewMockPasswordHasher(),
		Tokens:     mocks.NewMockTokenService(),
		MediaStore: mocks.NewMockMediaStore(),
	})
	users.Put(&domain.User{ID: "user-1", Username: "solo", Email: "solo@example.com", PasswordHash: "hashed:pw"})
	ctx := context.Background()

	login, err := svc.Login(ctx, domain.LoginRequest{Username: "solo", Password: "pw"})
	require.NoError(t, err)

	pair, err := svc.Refresh(ctx, domain.RefreshRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, pair.RefreshToken)
}

func TestSessionManager_Refresh_WithoutLockConcurrentSingleWinner(t *testing.T) {
	users := mocks.NewMockUserStore()
	svc := NewSessionManager(SessionManagerConfig{
		UserStore:  users,
		Hasher:     mocks.NewMockPasswordHasher(),
		Tokens:     mocks.NewMockTokenService(),
		MediaStore: mocks.NewMockMediaStore(),
	})
	users.Put(&domain.User{ID: "user-1", Username: "solo", Email: "solo@example.com", PasswordHash: "hashed:pw"})
	ctx := context.Background()

	login, err := svc.Login(ctx, domain.LoginRequest{Username: "solo", Password: "pw"})
	require.NoError(t, err)

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes []string
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pair, err := svc.Refresh(ctx, domain.RefreshRequest{RefreshToken: login.RefreshToken})
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrUnauthorized)
				return
			}
			mu.Lock()
			successes = append(successes, pair.RefreshToken)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, successes, 1, "the store compare-and-swap alone admits one winner")
	stored, _ := users.StoredRefreshToken("user-1")
	assert.Equal(t, successes[0], stored)
}

func TestSessionManager_Logout(t *testing.T) {
	deps, svc := newTestSessionManager()
	seedUser(t, deps)
	ctx := context.Background()

	login, err := svc.Login(ctx, domain.LoginRequest{Username: "jdoe", Password: "password123"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, "user-123"))

	_, ok := deps.users.StoredRefreshToken("user-123")
	assert.False(t, ok, "logout must unset the refresh token")

	_, err = svc.Refresh(ctx, domain.RefreshRequest{RefreshToken: login.RefreshToken})
	requireKind(t, err, domain.ErrUnauthorized, "refresh token expired or used")

	// Idempotent
	require.NoError(t, svc.Logout(ctx, "user-123"))
	require.NoError(t, svc.Logout(ctx, "unknown-user"))
}

func TestSessionManager_Logout_RequiresUser(t *testing.T) {
	_, svc := newTestSessionManager()

	err := svc.Logout(context.Background(), "")
	requireKind(t, err, domain.ErrUnauthorized, "unauthorized request")
}

func TestSessionManager_Authenticate(t *testing.T) {
	deps, svc := newTestSessionManager()
	seedUser(t, deps)
	ctx := context.Background()

	login, err := svc.Login(ctx, domain.LoginRequest{Username: "jdoe", Password: "password123"})
	require.NoError(t, err)

	authCtx, err := svc.Authenticate(ctx, login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-123", authCtx.UserID)
	assert.Equal(t, "jdoe", authCtx.Username)

	_, err = svc.Authenticate(ctx, "")
	requireKind(t, err, domain.ErrUnauthorized, "unauthorized request")

	_, err = svc.Authenticate(ctx, login.RefreshToken)
	requireKind(t, err, domain.ErrUnauthorized, "invalid access token")

	_, err = svc.Authenticate(ctx, deps.tokens.Forge(domain.TokenKindAccess, "ghost"))
	requireKind(t, err, domain.ErrUnauthorized, "invalid access token")

	// Access tokens stay valid after logout until they expire
	require.NoError(t, svc.Logout(ctx, "user-123"))
	_, err = svc.Authenticate(ctx, login.AccessToken)
	require.NoError(t, err)
}

func TestSessionManager_CurrentUser(t *testing.T) {
	deps, svc := newTestSessionManager()
	seedUser(t, deps)
	ctx := context.Background()

	user, err := svc.CurrentUser(ctx, "user-123")
	require.NoError(t, err)
	assert.Equal(t, "jdoe", user.Username)

	_, err = svc.CurrentUser(ctx, "ghost")
	requireKind(t, err, domain.ErrNotFound, "User does not exist")
}
