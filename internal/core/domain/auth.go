package domain

import "strings"

// TokenKind distinguishes access tokens from refresh tokens
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// AuthContext contains authenticated user info for request context
type AuthContext struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// RegisterRequest carries registration fields. Avatar and cover image are
// local file paths of already received uploads; an empty path means absent.
type RegisterRequest struct {
	FullName       string `json:"fullName"`
	Email          string `json:"email"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	AvatarPath     string `json:"-"`
	CoverImagePath string `json:"-"`
}

// MissingFields reports whether any required text field is blank after trimming
func (r RegisterRequest) MissingFields() bool {
	for _, field := range []string{r.FullName, r.Email, r.Username, r.Password} {
		if strings.TrimSpace(field) == "" {
			return true
		}
	}
	return false
}

// LoginRequest represents a login attempt. Either username or email identifies the user.
type LoginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenPair holds a freshly issued access and refresh token
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LoginResponse is returned after successful authentication
type LoginResponse struct {
	User         *PublicUser `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
}

// Tokens returns the issued pair
func (r *LoginResponse) Tokens() TokenPair {
	return TokenPair{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken}
}

// RefreshRequest represents a token refresh attempt
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}
