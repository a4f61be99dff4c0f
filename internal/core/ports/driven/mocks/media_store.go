package mocks

import (
	"context"
	"errors"
	"sync"

	"github.com/custodia-labs/vidtube-core/internal/core/ports/driven"
)

// Ensure MockMediaStore implements MediaStore
var _ driven.MediaStore = (*MockMediaStore)(nil)

// ErrMockUpload is returned for paths registered with FailOn
var ErrMockUpload = errors.New("mock upload failed")

// MockMediaStore returns https://media.test/<path> for every upload.
type MockMediaStore struct {
	mu       sync.Mutex
	failing  map[string]bool
	blank    map[string]bool
	uploaded []string
	deleted  []string
}

// NewMockMediaStore creates a new MockMediaStore
func NewMockMediaStore() *MockMediaStore {
	return &MockMediaStore{
		failing: make(map[string]bool),
		blank:   make(map[string]bool),
	}
}

func (m *MockMediaStore) Upload(ctx context.Context, localPath string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if localPath == "" {
		return "", nil
	}
	if m.failing[localPath] {
		return "", ErrMockUpload
	}
	m.uploaded = append(m.uploaded, localPath)
	if m.blank[localPath] {
		return "", nil
	}
	return "https://media.test/" + localPath, nil
}

func (m *MockMediaStore) Delete(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if url != "" {
		m.deleted = append(m.deleted, url)
	}
	return nil
}

// FailOn makes uploads of localPath fail
func (m *MockMediaStore) FailOn(localPath string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing[localPath] = true
}

// BlankOn makes uploads of localPath succeed without a usable URL
func (m *MockMediaStore) BlankOn(localPath string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blank[localPath] = true
}

// Uploaded returns the paths uploaded so far
func (m *MockMediaStore) Uploaded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.uploaded...)
}

// Deleted returns the URLs deleted so far
func (m *MockMediaStore) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}
