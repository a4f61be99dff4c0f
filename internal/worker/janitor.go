// Package worker runs background maintenance alongside the API server.
package worker

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// UploadJanitor removes stale files from the multipart scratch directory.
// Requests delete their own uploads; this catches files orphaned by a crash
// or a killed connection mid-request.
type UploadJanitor struct {
	dir      string
	maxAge   time.Duration
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// UploadJanitorConfig holds configuration for the janitor.
type UploadJanitorConfig struct {
	Dir      string
	MaxAge   time.Duration // Files older than this are removed (default: 1h)
	Interval time.Duration // Time between sweeps (default: 10m)
	Logger   *slog.Logger
}

// NewUploadJanitor creates a new janitor.
func NewUploadJanitor(cfg UploadJanitorConfig) *UploadJanitor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = time.Hour
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	return &UploadJanitor{
		dir:      cfg.Dir,
		maxAge:   maxAge,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Start begins sweeping in the background.
// It runs until Stop is called or ctx is cancelled.
func (j *UploadJanitor) Start(ctx context.Context) {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return
	}
	j.running = true
	j.stopCh = make(chan struct{})
	j.doneCh = make(chan struct{})
	j.mu.Unlock()

	j.logger.Info("upload janitor starting", "dir", j.dir, "max_age", j.maxAge, "interval", j.interval)

	go j.loop(ctx)
}

// Stop halts the janitor and waits for an in-flight sweep to finish.
func (j *UploadJanitor) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	close(j.stopCh)
	doneCh := j.doneCh
	j.mu.Unlock()

	<-doneCh

	j.mu.Lock()
	j.running = false
	j.mu.Unlock()

	j.logger.Info("upload janitor stopped")
}

func (j *UploadJanitor) loop(ctx context.Context) {
	defer close(j.doneCh)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		if _, err := j.Sweep(); err != nil {
			j.logger.Warn("upload sweep failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-j.stopCh:
			return
		case <-ticker.C:
		}
	}
}

// Sweep removes every regular file in the directory older than the max age
// and returns how many were removed. A missing directory is not an error.
func (j *UploadJanitor) Sweep() (int, error) {
	entries, err := os.ReadDir(j.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	cutoff := j.now().Add(-j.maxAge)
	removed := 0
	var errs []error

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed concurrently by its request
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(j.dir, entry.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		j.logger.Info("removed stale uploads", "count", removed)
	}
	return removed, errors.Join(errs...)
}
