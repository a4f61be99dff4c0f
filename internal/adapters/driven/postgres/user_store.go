package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/vidtube-core/internal/core/domain"
	"github.com/custodia-labs/vidtube-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.UserStore = (*UserStore)(nil)

const userColumns = `id, username, email, full_name, password_hash, avatar, cover_image, refresh_token, created_at, updated_at`

// UserStore implements driven.UserStore using PostgreSQL
type UserStore struct {
	db  *DB
	now func() time.Time
}

// NewUserStore creates a new UserStore
func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db, now: time.Now}
}

// Create inserts a new user
func (s *UserStore) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.FullName,
		user.PasswordHash,
		user.Avatar,
		user.CoverImage,
		NullString(user.RefreshToken),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Save updates every mutable field of an existing user
func (s *UserStore) Save(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users SET
			username = $2,
			email = $3,
			full_name = $4,
			password_hash = $5,
			avatar = $6,
			cover_image = $7,
			refresh_token = $8,
			updated_at = $9
		WHERE id = $1
	`

	user.UpdatedAt = s.now().UTC()
	result, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.FullName,
		user.PasswordHash,
		user.Avatar,
		user.CoverImage,
		NullString(user.RefreshToken),
		user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	return requireRow(result)
}

// FindByID retrieves a user by ID
func (s *UserStore) FindByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// FindByUsernameOrEmail retrieves the user matching either field.
// Empty arguments never match.
func (s *UserStore) FindByUsernameOrEmail(ctx context.Context, username, email string) (*domain.User, error) {
	if username == "" && email == "" {
		return nil, domain.ErrNotFound
	}

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE ($1 <> '' AND username = $1) OR ($2 <> '' AND email = $2)
		LIMIT 1
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, username, email))
}

// SetRefreshToken overwrites the stored refresh token
func (s *UserStore) SetRefreshToken(ctx context.Context, id, token string) error {
	query := `UPDATE users SET refresh_token = $2, updated_at = $3 WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query, id, token, s.now().UTC())
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	return requireRow(result)
}

// RotateRefreshToken swaps the stored refresh token from expected to next.
// The WHERE clause makes the swap atomic: a concurrent rotation that already
// replaced expected leaves no row to update.
func (s *UserStore) RotateRefreshToken(ctx context.Context, id, expected, next string) (bool, error) {
	query := `
		UPDATE users SET refresh_token = $3, updated_at = $4
		WHERE id = $1 AND refresh_token = $2
	`

	result, err := s.db.ExecContext(ctx, query, id, expected, next, s.now().UTC())
	if err != nil {
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// UnsetRefreshToken clears the stored refresh token
func (s *UserStore) UnsetRefreshToken(ctx context.Context, id string) error {
	query := `UPDATE users SET refresh_token = NULL, updated_at = $2 WHERE id = $1`

	if _, err := s.db.ExecContext(ctx, query, id, s.now().UTC()); err != nil {
		return fmt.Errorf("unset refresh token: %w", err)
	}
	return nil
}

func (s *UserStore) scanUser(row *sql.Row) (*domain.User, error) {
	var user domain.User
	var refreshToken sql.NullString

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FullName,
		&user.PasswordHash,
		&user.Avatar,
		&user.CoverImage,
		&refreshToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}

	user.RefreshToken = StringPtr(refreshToken)
	return &user, nil
}

func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
