package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/vidtube-core/internal/core/domain"
)

const (
	msgAllFieldsRequired = "All fields are required"
	msgUserExists        = "User with email or username already exists"
	msgAvatarRequired    = "Avatar file is required"
	msgRegisterFailed    = "Something went wrong while registering the user"
	msgPasswordTooLong   = "Password must be at most 72 bytes"
)

// maxPasswordBytes is the longest input bcrypt accepts
const maxPasswordBytes = 72

// Register creates an account and returns its public view
func (s *sessionManager) Register(ctx context.Context, req domain.RegisterRequest) (*domain.PublicUser, error) {
	if req.MissingFields() {
		return nil, domain.NewValidationError(msgAllFieldsRequired)
	}
	if len(req.Password) > maxPasswordBytes {
		return nil, domain.NewValidationError(msgPasswordTooLong)
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))
	email := strings.ToLower(strings.TrimSpace(req.Email))

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	existing, err := s.userStore.FindByUsernameOrEmail(storeCtx, username, email)
	cancel()
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewInternalError(msgRegisterFailed, err)
	}
	if existing != nil {
		return nil, domain.NewConflictError(msgUserExists)
	}

	if req.AvatarPath == "" {
		return nil, domain.NewValidationError(msgAvatarRequired)
	}

	avatarURL, coverURL, err := s.uploadImages(ctx, req.AvatarPath, req.CoverImagePath)
	if err != nil {
		return nil, err
	}
	created := false
	defer func() {
		if !created {
			s.discardUpload(ctx, avatarURL)
			s.discardUpload(ctx, coverURL)
		}
	}()

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, domain.NewInternalError(msgRegisterFailed, err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		FullName:     strings.TrimSpace(req.FullName),
		PasswordHash: passwordHash,
		Avatar:       avatarURL,
		CoverImage:   coverURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	storeCtx, cancel = context.WithTimeout(ctx, s.storeTimeout)
	err = s.userStore.Create(storeCtx, user)
	cancel()
	if errors.Is(err, domain.ErrAlreadyExists) {
		// Lost a race with a concurrent registration
		return nil, domain.NewConflictError(msgUserExists)
	}
	if err != nil {
		return nil, domain.NewInternalError(msgRegisterFailed, err)
	}

	created = true

	storeCtx, cancel = context.WithTimeout(ctx, s.storeTimeout)
	stored, err := s.userStore.FindByID(storeCtx, user.ID)
	cancel()
	if err != nil {
		return nil, domain.NewInternalError(msgRegisterFailed, err)
	}

	s.logger.Info("user registered", "user_id", stored.ID, "username", stored.Username)
	return stored.ToPublic(), nil
}

// uploadImages uploads the avatar and the optional cover image concurrently.
// Only the avatar is required; a failed cover upload degrades to an empty URL.
func (s *sessionManager) uploadImages(ctx context.Context, avatarPath, coverPath string) (string, string, error) {
	uploadCtx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	defer cancel()

	var avatarURL, coverURL string
	g, gctx := errgroup.WithContext(uploadCtx)

	g.Go(func() error {
		url, err := s.mediaStore.Upload(gctx, avatarPath)
		if err != nil {
			return domain.NewUploadError(msgAvatarRequired, err)
		}
		if url == "" {
			return domain.NewUploadError(msgAvatarRequired, nil)
		}
		avatarURL = url
		return nil
	})

	g.Go(func() error {
		url, err := s.mediaStore.Upload(gctx, coverPath)
		if err != nil {
			s.logger.Warn("cover image upload failed", "error", err)
			return nil
		}
		coverURL = url
		return nil
	})

	if err := g.Wait(); err != nil {
		s.discardUpload(ctx, coverURL)
		return "", "", err
	}
	return avatarURL, coverURL, nil
}

// discardUpload deletes an object whose registration did not complete
func (s *sessionManager) discardUpload(ctx context.Context, url string) {
	if url == "" {
		return
	}
	deleteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.storeTimeout)
	defer cancel()
	if err := s.mediaStore.Delete(deleteCtx, url); err != nil {
		s.logger.Warn("failed to delete orphaned upload", "url", url, "error", err)
	}
}
