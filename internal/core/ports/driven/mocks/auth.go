package mocks

import (
	"fmt"
	"strings"
	"sync"

	"github.com/custodia-labs/vidtube-core/internal/core/domain"
	"github.com/custodia-labs/vidtube-core/internal/core/ports/driven"
)

// Ensure mocks implement the auth ports
var (
	_ driven.PasswordHasher = (*MockPasswordHasher)(nil)
	_ driven.TokenService   = (*MockTokenService)(nil)
)

// MockPasswordHasher prefixes the password instead of hashing it.
// NOT secure - only for testing.
type MockPasswordHasher struct {
	HashErr error
}

// NewMockPasswordHasher creates a new MockPasswordHasher
func NewMockPasswordHasher() *MockPasswordHasher {
	return &MockPasswordHasher{}
}

// Hash returns "hashed:" + password (for testing only)
func (m *MockPasswordHasher) Hash(password string) (string, error) {
	if m.HashErr != nil {
		return "", m.HashErr
	}
	return "hashed:" + password, nil
}

// Verify compares against the fake digest
func (m *MockPasswordHasher) Verify(password, digest string) bool {
	return digest == "hashed:"+password
}

// MockTokenService issues readable tokens of the form kind.userID.seq.
// Every issued token is unique; tokens can be expired on demand.
type MockTokenService struct {
	mu      sync.Mutex
	seq     int
	expired map[string]bool

	IssueErr error
}

// NewMockTokenService creates a new MockTokenService
func NewMockTokenService() *MockTokenService {
	return &MockTokenService{expired: make(map[string]bool)}
}

func (m *MockTokenService) IssueAccessToken(userID string) (string, error) {
	return m.issue(domain.TokenKindAccess, userID)
}

func (m *MockTokenService) IssueRefreshToken(userID string) (string, error) {
	return m.issue(domain.TokenKindRefresh, userID)
}

func (m *MockTokenService) VerifyAccessToken(token string) (string, error) {
	return m.verify(domain.TokenKindAccess, token)
}

func (m *MockTokenService) VerifyRefreshToken(token string) (string, error) {
	return m.verify(domain.TokenKindRefresh, token)
}

// Expire makes a previously issued token fail verification with ErrTokenExpired
func (m *MockTokenService) Expire(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expired[token] = true
}

// Forge builds a token that verifies for userID without being issued
func (m *MockTokenService) Forge(kind domain.TokenKind, userID string) string {
	return fmt.Sprintf("%s.%s.forged", kind, userID)
}

func (m *MockTokenService) issue(kind domain.TokenKind, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.IssueErr != nil {
		return "", m.IssueErr
	}
	m.seq++
	return fmt.Sprintf("%s.%s.%d", kind, userID, m.seq), nil
}

func (m *MockTokenService) verify(kind domain.TokenKind, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parts := strings.SplitN(token, ".", 3)
	if len(parts) != 3 || parts[0] != string(kind) || parts[1] == "" {
		return "", domain.ErrTokenInvalid
	}
	if m.expired[token] {
		return "", domain.ErrTokenExpired
	}
	return parts[1], nil
}
