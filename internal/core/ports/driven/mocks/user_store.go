package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/vidtube-core/internal/core/domain"
	"github.com/custodia-labs/vidtube-core/internal/core/ports/driven"
)

// Ensure MockUserStore implements UserStore
var _ driven.UserStore = (*MockUserStore)(nil)

// MockUserStore is an in-memory UserStore for testing.
// Reads return copies so callers cannot mutate stored state.
type MockUserStore struct {
	mu    sync.RWMutex
	users map[string]*domain.User

	// Optional failure injection
	CreateErr   error
	FindByIDErr error
	SetTokenErr error

	// HideAfterCreate makes FindByID miss freshly created users
	HideAfterCreate bool
}

// NewMockUserStore creates a new MockUserStore
func NewMockUserStore() *MockUserStore {
	return &MockUserStore{
		users: make(map[string]*domain.User),
	}
}

func (m *MockUserStore) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	for _, u := range m.users {
		if u.Username == user.Username || u.Email == user.Email {
			return domain.ErrAlreadyExists
		}
	}
	m.users[user.ID] = copyUser(user)
	return nil
}

func (m *MockUserStore) Save(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return domain.ErrNotFound
	}
	m.users[user.ID] = copyUser(user)
	return nil
}

func (m *MockUserStore) FindByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindByIDErr != nil {
		return nil, m.FindByIDErr
	}
	if m.HideAfterCreate {
		return nil, domain.ErrNotFound
	}
	user, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyUser(user), nil
}

func (m *MockUserStore) FindByUsernameOrEmail(ctx context.Context, username, email string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			return copyUser(u), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockUserStore) SetRefreshToken(ctx context.Context, id, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetTokenErr != nil {
		return m.SetTokenErr
	}
	user, ok := m.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	user.RefreshToken = &token
	return nil
}

func (m *MockUserStore) RotateRefreshToken(ctx context.Context, id, expected, next string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetTokenErr != nil {
		return false, m.SetTokenErr
	}
	user, ok := m.users[id]
	if !ok || !user.HasRefreshToken(expected) {
		return false, nil
	}
	user.RefreshToken = &next
	return true, nil
}

func (m *MockUserStore) UnsetRefreshToken(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[id]; ok {
		user.RefreshToken = nil
	}
	return nil
}

// Helper methods for testing

// Put stores a user directly, bypassing uniqueness checks
func (m *MockUserStore) Put(user *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = copyUser(user)
}

// StoredRefreshToken returns the stored token and whether one is set
func (m *MockUserStore) StoredRefreshToken(id string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok || user.RefreshToken == nil {
		return "", false
	}
	return *user.RefreshToken, true
}

func (m *MockUserStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = make(map[string]*domain.User)
}

func (m *MockUserStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}

func copyUser(u *domain.User) *domain.User {
	c := *u
	if u.RefreshToken != nil {
		token := *u.RefreshToken
		c.RefreshToken = &token
	}
	return &c
}
