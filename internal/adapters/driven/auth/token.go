package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/custodia-labs/vidtube-core/internal/core/domain"
	"github.com/custodia-labs/vidtube-core/internal/core/ports/driven"
)

// Ensure TokenService implements driven.TokenService
var _ driven.TokenService = (*TokenService)(nil)

var (
	// ErrMissingSecret is returned when a signing secret is empty
	ErrMissingSecret = errors.New("token secret must not be empty")

	// ErrSharedSecret is returned when access and refresh tokens would share a secret
	ErrSharedSecret = errors.New("access and refresh token secrets must differ")
)

// TokenConfig holds signing secrets and lifetimes for both token kinds
type TokenConfig struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
	Issuer        string
}

// jwtClaims is the JWT payload shared by both token kinds
type jwtClaims struct {
	Kind domain.TokenKind `json:"typ"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 JWTs.
// Access and refresh tokens are signed with independent secrets.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

// NewTokenService creates a TokenService
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, ErrMissingSecret
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, ErrSharedSecret
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("token lifetimes must be positive: access=%s refresh=%s", cfg.AccessTTL, cfg.RefreshTTL)
	}

	return &TokenService{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        cfg.Issuer,
		now:           time.Now,
	}, nil
}

// IssueAccessToken creates a signed short-lived access token
func (s *TokenService) IssueAccessToken(userID string) (string, error) {
	return s.issue(domain.TokenKindAccess, userID, s.accessSecret, s.accessTTL)
}

// IssueRefreshToken creates a signed long-lived refresh token
func (s *TokenService) IssueRefreshToken(userID string) (string, error) {
	return s.issue(domain.TokenKindRefresh, userID, s.refreshSecret, s.refreshTTL)
}

// VerifyAccessToken validates an access token and returns its subject
func (s *TokenService) VerifyAccessToken(token string) (string, error) {
	return s.verify(domain.TokenKindAccess, token, s.accessSecret)
}

// VerifyRefreshToken validates a refresh token and returns its subject
func (s *TokenService) VerifyRefreshToken(token string) (string, error) {
	return s.verify(domain.TokenKindRefresh, token, s.refreshSecret)
}

func (s *TokenService) issue(kind domain.TokenKind, userID string, secret []byte, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("issue %s token: empty subject", kind)
	}

	jti, err := newTokenID()
	if err != nil {
		return "", fmt.Errorf("issue %s token: %w", kind, err)
	}

	now := s.now()
	claims := jwtClaims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func (s *TokenService) verify(kind domain.TokenKind, tokenString string, secret []byte) (string, error) {
	claims := &jwtClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", domain.ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}

	if !token.Valid || claims.Kind != kind || claims.Subject == "" {
		return "", domain.ErrTokenInvalid
	}

	return claims.Subject, nil
}

func newTokenID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
