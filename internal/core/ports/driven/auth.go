package driven

// PasswordHasher performs one-way password hashing.
// This does NOT handle storage - use UserStore for persistence.
type PasswordHasher interface {
	// Hash returns a salted digest of the plaintext password
	Hash(password string) (string, error)

	// Verify reports whether password matches digest. Never errors on mismatch.
	Verify(password, digest string) bool
}

// TokenService issues and verifies signed, expiring tokens.
// It is stateless: it never consults a store, so revocation is the caller's job.
type TokenService interface {
	// IssueAccessToken returns a short-lived token asserting userID
	IssueAccessToken(userID string) (string, error)

	// IssueRefreshToken returns a long-lived token used only to mint new access tokens
	IssueRefreshToken(userID string) (string, error)

	// VerifyAccessToken returns the subject of a valid access token
	VerifyAccessToken(token string) (string, error)

	// VerifyRefreshToken returns the subject of a valid refresh token.
	// Fails with domain.ErrTokenInvalid or domain.ErrTokenExpired.
	VerifyRefreshToken(token string) (string, error)
}
