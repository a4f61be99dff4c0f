package http

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var safeExt = regexp.MustCompile(`^\.[a-zA-Z0-9]{1,8}$`)

// saveUpload writes the first file of a multipart field into dir and returns
// its path. A missing field returns an empty path.
func saveUpload(form *multipart.Form, field, dir string) (string, error) {
	if form == nil || len(form.File[field]) == 0 {
		return "", nil
	}
	fh := form.File[field][0]

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", field, err)
	}
	defer src.Close()

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filepath.Base(fh.Filename)))
	if !safeExt.MatchString(ext) {
		ext = ""
	}

	dst, err := os.CreateTemp(dir, field+"-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("write %s: %w", field, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("write %s: %w", field, err)
	}
	return dst.Name(), nil
}

// removeUploads deletes temp files the media store did not consume
func removeUploads(paths ...string) {
	for _, p := range paths {
		if p != "" {
			_ = os.Remove(p)
		}
	}
}
